// Package tasks is the task collaborator: follow-up tasks persisted
// through the document store. The engine creates one task per
// improvement-plan item after grading, tagged with an "[AI] " title
// prefix to mark its automatic origin.
package tasks

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/preplens/preplens-api/models"
	"github.com/preplens/preplens-api/store"
)

var (
	ErrStudentRequired = errors.New("please select a student")
	ErrTitleRequired   = errors.New("task title is required")
)

var validStatuses = []string{"pending", "in_progress", "completed"}

type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// Create records a task for a user. Unknown statuses fall back to
// "pending".
func (s *Service) Create(ctx context.Context, userID, title, status string) (string, error) {
	userID = strings.TrimSpace(userID)
	title = strings.TrimSpace(title)
	if userID == "" {
		return "", ErrStudentRequired
	}
	if title == "" {
		return "", ErrTitleRequired
	}

	normalized := strings.ToLower(strings.TrimSpace(status))
	if !isValidStatus(normalized) {
		normalized = "pending"
	}

	return s.store.Create(ctx, models.CollectionTasks, models.Task{
		UserID:    userID,
		Title:     title,
		Status:    normalized,
		CreatedBy: "ai-engine",
		CreatedAt: time.Now().UnixMilli(),
	})
}

// Subscribe streams a user's tasks (their own plus broadcast-scoped
// ones), newest first.
func (s *Service) Subscribe(userID string, onData func([]models.Task), onErr store.ErrFunc) (store.Unsubscribe, error) {
	if userID == "" {
		onData(nil)
		return func() {}, nil
	}
	own := store.Query{
		Conds:   []store.Cond{{Field: "userId", Op: store.OpEqual, Value: userID}},
		OrderBy: "createdAt", Desc: true,
	}
	shared := store.Query{
		Conds:   []store.Cond{{Field: "userId", Op: store.OpEqual, Value: models.BroadcastScope}},
		OrderBy: "createdAt", Desc: true,
	}
	order := store.Query{OrderBy: "createdAt", Desc: true}
	return store.SubscribeMerged(s.store, models.CollectionTasks, own, shared, order, func(docs []store.Document) {
		items := make([]models.Task, 0, len(docs))
		for _, d := range docs {
			var t models.Task
			if err := d.Decode(&t); err != nil {
				continue
			}
			t.ID = d.ID
			items = append(items, t)
		}
		onData(items)
	}, onErr)
}

func isValidStatus(status string) bool {
	for _, s := range validStatuses {
		if s == status {
			return true
		}
	}
	return false
}
