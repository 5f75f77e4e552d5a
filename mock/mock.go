// Package mock tracks mock interview sessions. The running average of
// feedback scores feeds the soft-skills blend in report synthesis.
package mock

import (
	"context"
	"errors"
	"time"

	"github.com/preplens/preplens-api/models"
	"github.com/preplens/preplens-api/store"
)

var ErrUserRequired = errors.New("user is required")

type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// Entry is one mock interview to log.
type Entry struct {
	UID           string   `json:"uid"`
	InterviewDate int64    `json:"interviewDate"`
	FeedbackScore int      `json:"feedbackScore"`
	WeakAreas     []string `json:"weakAreas"`
	Notes         string   `json:"notes"`
}

// Log records a mock interview session.
func (s *Service) Log(ctx context.Context, entry Entry) (models.MockInterview, error) {
	if entry.UID == "" {
		return models.MockInterview{}, ErrUserRequired
	}
	interviewDate := entry.InterviewDate
	if interviewDate == 0 {
		interviewDate = time.Now().UnixMilli()
	}
	interview := models.MockInterview{
		UID:           entry.UID,
		InterviewDate: interviewDate,
		FeedbackScore: entry.FeedbackScore,
		WeakAreas:     entry.WeakAreas,
		Notes:         entry.Notes,
		CreatedAt:     time.Now().UnixMilli(),
	}
	id, err := s.store.Create(ctx, models.CollectionMockInterviews, interview)
	if err != nil {
		return models.MockInterview{}, err
	}
	interview.ID = id
	return interview, nil
}

// AverageScore returns the mean feedback score across a user's mock
// interviews, or 0 when none are logged.
func (s *Service) AverageScore(ctx context.Context, uid string) (float64, error) {
	interviews, err := s.list(ctx, uid)
	if err != nil {
		return 0, err
	}
	if len(interviews) == 0 {
		return 0, nil
	}
	sum := 0
	for _, i := range interviews {
		sum += i.FeedbackScore
	}
	return float64(sum) / float64(len(interviews)), nil
}

// Subscribe streams a user's mock interviews, newest first.
func (s *Service) Subscribe(uid string, onData func([]models.MockInterview), onErr store.ErrFunc) (store.Unsubscribe, error) {
	if uid == "" {
		onData(nil)
		return func() {}, nil
	}
	q := store.Query{
		Conds:   []store.Cond{{Field: "uid", Op: store.OpEqual, Value: uid}},
		OrderBy: "createdAt", Desc: true,
	}
	return s.store.Subscribe(models.CollectionMockInterviews, q, func(docs []store.Document) {
		onData(decode(docs))
	}, onErr)
}

func (s *Service) list(ctx context.Context, uid string) ([]models.MockInterview, error) {
	if uid == "" {
		return nil, nil
	}
	q := store.Query{
		Conds: []store.Cond{{Field: "uid", Op: store.OpEqual, Value: uid}},
	}
	docs, err := s.store.GetAll(ctx, models.CollectionMockInterviews, q)
	if err != nil {
		return nil, err
	}
	return decode(docs), nil
}

func decode(docs []store.Document) []models.MockInterview {
	items := make([]models.MockInterview, 0, len(docs))
	for _, d := range docs {
		var m models.MockInterview
		if err := d.Decode(&m); err != nil {
			continue
		}
		m.ID = d.ID
		items = append(items, m)
	}
	return items
}
