// Package notify is the notification collaborator: best-effort user
// notifications persisted through the document store.
package notify

import (
	"context"
	"time"

	"github.com/preplens/preplens-api/models"
	"github.com/preplens/preplens-api/store"
)

type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// Push records a notification. A missing user or message is silently
// dropped; callers treat delivery as fire-and-forget.
func (s *Service) Push(ctx context.Context, userID, title, message, msgType string) error {
	if userID == "" || message == "" {
		return nil
	}
	if title == "" {
		title = "Notification"
	}
	if msgType == "" {
		msgType = "info"
	}
	_, err := s.store.Create(ctx, models.CollectionNotifications, models.Notification{
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      msgType,
		Read:      false,
		CreatedAt: time.Now().UnixMilli(),
	})
	return err
}

// Subscribe streams a user's notifications, newest first.
func (s *Service) Subscribe(userID string, onData func([]models.Notification), onErr store.ErrFunc) (store.Unsubscribe, error) {
	if userID == "" {
		onData(nil)
		return func() {}, nil
	}
	q := store.Query{
		Conds:   []store.Cond{{Field: "userId", Op: store.OpEqual, Value: userID}},
		OrderBy: "createdAt", Desc: true,
	}
	return s.store.Subscribe(models.CollectionNotifications, q, func(docs []store.Document) {
		items := make([]models.Notification, 0, len(docs))
		for _, d := range docs {
			var n models.Notification
			if err := d.Decode(&n); err != nil {
				continue
			}
			n.ID = d.ID
			items = append(items, n)
		}
		onData(items)
	}, onErr)
}

// List returns a user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]models.Notification, error) {
	if userID == "" {
		return nil, nil
	}
	q := store.Query{
		Conds:   []store.Cond{{Field: "userId", Op: store.OpEqual, Value: userID}},
		OrderBy: "createdAt", Desc: true,
	}
	docs, err := s.store.GetAll(ctx, models.CollectionNotifications, q)
	if err != nil {
		return nil, err
	}
	items := make([]models.Notification, 0, len(docs))
	for _, d := range docs {
		var n models.Notification
		if err := d.Decode(&n); err != nil {
			continue
		}
		n.ID = d.ID
		items = append(items, n)
	}
	return items, nil
}
