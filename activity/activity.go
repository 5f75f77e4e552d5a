// Package activity tracks logged study sessions: hour validation,
// daily streaks, and the per-category hour totals that feed report
// synthesis.
package activity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/preplens/preplens-api/models"
	"github.com/preplens/preplens-api/store"
)

var (
	ErrInvalidHours = errors.New("hours must be between 0.5 and 24")
	ErrUserRequired = errors.New("please login before logging activity")
)

const fallbackCategory = "technical"

var allowedCategories = []string{"aptitude", "technical", "verbal", "softskills"}

type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// Entry is one study session to log.
type Entry struct {
	UserID   string  `json:"userId"`
	Topic    string  `json:"topic"`
	Category string  `json:"category"`
	Hours    float64 `json:"hours"`
}

// Log validates and records a study session. Categories outside the
// allowed set fall back to "technical"; "soft-skills" is aliased to
// "softskills".
func (s *Service) Log(ctx context.Context, entry Entry) (models.Activity, error) {
	if entry.Hours <= 0 || entry.Hours > 24 {
		return models.Activity{}, ErrInvalidHours
	}
	if entry.UserID == "" {
		return models.Activity{}, ErrUserRequired
	}

	topic := strings.TrimSpace(entry.Topic)
	if topic == "" {
		topic = "General study"
	}

	now := time.Now()
	activity := models.Activity{
		UserID:    entry.UserID,
		Day:       now.Format("Mon"),
		Topic:     topic,
		Category:  normalizeCategory(entry.Category),
		Hours:     entry.Hours,
		CreatedAt: now.UnixMilli(),
	}
	id, err := s.store.Create(ctx, models.CollectionActivities, activity)
	if err != nil {
		return models.Activity{}, err
	}
	activity.ID = id
	return activity, nil
}

// CategoryHours sums a user's logged hours per category.
func (s *Service) CategoryHours(ctx context.Context, userID string) (map[string]float64, error) {
	activities, err := s.list(ctx, userID)
	if err != nil {
		return nil, err
	}
	hours := make(map[string]float64)
	for _, a := range activities {
		hours[a.Category] += a.Hours
	}
	return hours, nil
}

// Streak computes the user's current daily streak from their activity
// log: consecutive calendar days ending at the most recent session.
func (s *Service) Streak(ctx context.Context, userID string) (int, error) {
	activities, err := s.list(ctx, userID)
	if err != nil {
		return 0, err
	}
	streak := 0
	var lastActiveAt int64
	for i := len(activities) - 1; i >= 0; i-- { // oldest first
		streak = NextStreak(streak, lastActiveAt, activities[i].CreatedAt)
		lastActiveAt = activities[i].CreatedAt
	}
	return streak, nil
}

// Subscribe streams a user's activities, newest first.
func (s *Service) Subscribe(userID string, onData func([]models.Activity), onErr store.ErrFunc) (store.Unsubscribe, error) {
	if userID == "" {
		onData(nil)
		return func() {}, nil
	}
	q := store.Query{
		Conds:   []store.Cond{{Field: "userId", Op: store.OpEqual, Value: userID}},
		OrderBy: "createdAt", Desc: true,
	}
	return s.store.Subscribe(models.CollectionActivities, q, func(docs []store.Document) {
		onData(decodeActivities(docs))
	}, onErr)
}

// NextStreak advances a streak given the previous state and the next
// session's timestamp: the same day keeps the streak, the following
// day extends it, anything else resets to 1.
func NextStreak(previousStreak int, lastActiveAt, nextActiveAt int64) int {
	if lastActiveAt == 0 {
		return 1
	}
	prevDay := startOfDay(lastActiveAt)
	nextDay := startOfDay(nextActiveAt)
	diffDays := int((nextDay - prevDay) / (24 * time.Hour.Milliseconds()))
	switch diffDays {
	case 0:
		return previousStreak
	case 1:
		return previousStreak + 1
	default:
		return 1
	}
}

func (s *Service) list(ctx context.Context, userID string) ([]models.Activity, error) {
	if userID == "" {
		return nil, nil
	}
	q := store.Query{
		Conds:   []store.Cond{{Field: "userId", Op: store.OpEqual, Value: userID}},
		OrderBy: "createdAt", Desc: true,
	}
	docs, err := s.store.GetAll(ctx, models.CollectionActivities, q)
	if err != nil {
		return nil, err
	}
	return decodeActivities(docs), nil
}

func decodeActivities(docs []store.Document) []models.Activity {
	items := make([]models.Activity, 0, len(docs))
	for _, d := range docs {
		var a models.Activity
		if err := d.Decode(&a); err != nil {
			continue
		}
		a.ID = d.ID
		items = append(items, a)
	}
	return items
}

func normalizeCategory(category string) string {
	normalized := strings.ToLower(strings.TrimSpace(category))
	if normalized == "soft-skills" {
		normalized = "softskills"
	}
	for _, allowed := range allowedCategories {
		if normalized == allowed {
			return normalized
		}
	}
	return fallbackCategory
}

func startOfDay(millis int64) int64 {
	t := time.UnixMilli(millis)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.UnixMilli()
}
