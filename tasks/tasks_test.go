package tasks

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preplens/preplens-api/models"
	"github.com/preplens/preplens-api/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	l, err := store.OpenLocal(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return NewService(l)
}

func TestCreateValidation(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "", "Solve 20 probability problems", "pending")
	assert.ErrorIs(t, err, ErrStudentRequired)

	_, err = s.Create(ctx, "alice", "   ", "pending")
	assert.ErrorIs(t, err, ErrTitleRequired)
}

func TestCreateNormalizesStatus(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		status string
		want   string
	}{
		{"pending", "pending"},
		{"IN_PROGRESS", "in_progress"},
		{"completed", "completed"},
		{"done", "pending"},
		{"", "pending"},
	}

	for _, tt := range tests {
		id, err := s.Create(ctx, "alice", "[AI] Practice interview storytelling", tt.status)
		require.NoError(t, err)
		assert.Contains(t, id, "tasks-")
	}

	got := collectTasks(t, s, "alice")
	require.Len(t, got, len(tests))
	statuses := make(map[string]int)
	for _, task := range got {
		statuses[task.Status]++
		assert.Equal(t, "ai-engine", task.CreatedBy)
	}
	assert.Equal(t, map[string]int{"pending": 3, "in_progress": 1, "completed": 1}, statuses)
}

func TestSubscribeMergesBroadcastTasks(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "alice", "Own task", "pending")
	require.NoError(t, err)
	_, err = s.Create(ctx, models.BroadcastScope, "Shared task", "pending")
	require.NoError(t, err)
	_, err = s.Create(ctx, "bob", "Not visible", "pending")
	require.NoError(t, err)

	got := collectTasks(t, s, "alice")
	require.Len(t, got, 2)
	titles := []string{got[0].Title, got[1].Title}
	assert.Contains(t, titles, "Own task")
	assert.Contains(t, titles, "Shared task")
}

// collectTasks grabs the merged snapshot a fresh subscription settles
// on. Initial emissions arrive synchronously, so the last one queued is
// the full union.
func collectTasks(t *testing.T, s *Service, userID string) []models.Task {
	t.Helper()
	snapshots := make(chan []models.Task, 8)
	unsub, err := s.Subscribe(userID, func(items []models.Task) {
		snapshots <- items
	}, func(err error) {
		t.Errorf("unexpected subscription error: %v", err)
	})
	require.NoError(t, err)
	unsub()

	var latest []models.Task
	for {
		select {
		case latest = <-snapshots:
		default:
			return latest
		}
	}
}
