package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	ID         string   `json:"id,omitempty"`
	UserID     string   `json:"userId"`
	AssignedTo []string `json:"assignedTo,omitempty"`
	Score      int      `json:"score"`
	CreatedAt  int64    `json:"createdAt"`
}

func openTestStore(t *testing.T) *Local {
	t.Helper()
	l, err := OpenLocal(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLocalCreateAssignsID(t *testing.T) {
	l := openTestStore(t)
	ctx := context.Background()

	id, err := l.Create(ctx, "tests", testRecord{UserID: "alice"})
	require.NoError(t, err)
	assert.Contains(t, id, "tests-")

	docs, err := l.GetAll(ctx, "tests", Query{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, id, docs[0].ID)

	var got testRecord
	require.NoError(t, docs[0].Decode(&got))
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "alice", got.UserID)
}

func TestLocalCreateKeepsProvidedID(t *testing.T) {
	l := openTestStore(t)

	id, err := l.Create(context.Background(), "tests", testRecord{ID: "tests-fixed", UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "tests-fixed", id)
}

func TestLocalGetAllFiltersAndOrders(t *testing.T) {
	l := openTestStore(t)
	ctx := context.Background()

	for _, r := range []testRecord{
		{UserID: "alice", Score: 40, CreatedAt: 100},
		{UserID: "bob", Score: 70, CreatedAt: 200},
		{UserID: "alice", Score: 90, CreatedAt: 300},
	} {
		_, err := l.Create(ctx, "testResults", r)
		require.NoError(t, err)
	}

	docs, err := l.GetAll(ctx, "testResults", Query{
		Conds:   []Cond{{Field: "userId", Op: OpEqual, Value: "alice"}},
		OrderBy: "createdAt", Desc: true,
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	var first, second testRecord
	require.NoError(t, docs[0].Decode(&first))
	require.NoError(t, docs[1].Decode(&second))
	assert.Equal(t, int64(300), first.CreatedAt)
	assert.Equal(t, int64(100), second.CreatedAt)
}

func TestLocalArrayContains(t *testing.T) {
	l := openTestStore(t)
	ctx := context.Background()

	_, err := l.Create(ctx, "tests", testRecord{UserID: "admin", AssignedTo: []string{"alice", "bob"}})
	require.NoError(t, err)
	_, err = l.Create(ctx, "tests", testRecord{UserID: "admin", AssignedTo: []string{"__all_students__"}})
	require.NoError(t, err)

	docs, err := l.GetAll(ctx, "tests", Query{
		Conds: []Cond{{Field: "assignedTo", Op: OpArrayContains, Value: "alice"}},
	})
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = l.GetAll(ctx, "tests", Query{
		Conds: []Cond{{Field: "assignedTo", Op: OpArrayContains, Value: "carol"}},
	})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestLocalSubscribeEmitsSnapshotAndUpdates(t *testing.T) {
	l := openTestStore(t)
	ctx := context.Background()

	_, err := l.Create(ctx, "notifications", testRecord{UserID: "alice", CreatedAt: 1})
	require.NoError(t, err)

	updates := make(chan int, 8)
	unsub, err := l.Subscribe("notifications", Query{
		Conds: []Cond{{Field: "userId", Op: OpEqual, Value: "alice"}},
	}, func(docs []Document) {
		updates <- len(docs)
	}, func(err error) {
		t.Errorf("unexpected subscription error: %v", err)
	})
	require.NoError(t, err)
	defer unsub()

	// initial snapshot arrives synchronously
	assert.Equal(t, 1, <-updates)

	_, err = l.Create(ctx, "notifications", testRecord{UserID: "alice", CreatedAt: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, waitForCount(t, updates, 2))

	// a write matching another subscriber's filter still wakes this one,
	// but the filtered snapshot stays the same size
	_, err = l.Create(ctx, "notifications", testRecord{UserID: "bob", CreatedAt: 3})
	require.NoError(t, err)
	assert.Equal(t, 2, waitForCount(t, updates, 2))
}

func TestLocalUnsubscribeStopsDelivery(t *testing.T) {
	l := openTestStore(t)
	ctx := context.Background()

	var mu sync.Mutex
	calls := 0
	unsub, err := l.Subscribe("tasks", Query{}, func([]Document) {
		mu.Lock()
		calls++
		mu.Unlock()
	}, func(err error) {
		t.Errorf("unexpected subscription error: %v", err)
	})
	require.NoError(t, err)

	unsub()
	unsub() // idempotent

	_, err = l.Create(ctx, "tasks", testRecord{UserID: "alice"})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls, "only the initial snapshot should be delivered")
}

func TestLocalNotifyExternalWakesSubscribers(t *testing.T) {
	l := openTestStore(t)

	updates := make(chan int, 8)
	unsub, err := l.Subscribe("activities", Query{}, func(docs []Document) {
		updates <- len(docs)
	}, func(err error) {
		t.Errorf("unexpected subscription error: %v", err)
	})
	require.NoError(t, err)
	defer unsub()

	assert.Equal(t, 0, <-updates)

	l.NotifyExternal("activities")
	select {
	case n := <-updates:
		assert.Equal(t, 0, n)
	case <-time.After(2 * time.Second):
		t.Fatal("external notify did not wake the subscriber")
	}
}

func TestLocalPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")

	l, err := OpenLocal(path)
	require.NoError(t, err)
	_, err = l.Create(context.Background(), "tests", testRecord{UserID: "alice"})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	reopened, err := OpenLocal(path)
	require.NoError(t, err)
	defer reopened.Close()

	docs, err := reopened.GetAll(context.Background(), "tests", Query{})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

// waitForCount drains updates until a snapshot of the wanted size shows
// up. Change signals coalesce, so intermediate sizes may be skipped.
func waitForCount(t *testing.T, updates chan int, want int) int {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-updates:
			if n == want {
				return n
			}
		case <-deadline:
			t.Fatalf("timed out waiting for snapshot of %d documents", want)
		}
	}
}
