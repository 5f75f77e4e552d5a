package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeMergedUnionsWithoutDuplicates(t *testing.T) {
	l := openTestStore(t)
	ctx := context.Background()

	// one test addressed to alice, one broadcast
	_, err := l.Create(ctx, "tests", testRecord{UserID: "admin", AssignedTo: []string{"alice"}, CreatedAt: 100})
	require.NoError(t, err)
	_, err = l.Create(ctx, "tests", testRecord{UserID: "admin", AssignedTo: []string{"__all_students__"}, CreatedAt: 200})
	require.NoError(t, err)

	own := Query{Conds: []Cond{{Field: "assignedTo", Op: OpArrayContains, Value: "alice"}}}
	shared := Query{Conds: []Cond{{Field: "assignedTo", Op: OpArrayContains, Value: "__all_students__"}}}
	order := Query{OrderBy: "createdAt", Desc: true}

	snapshots := make(chan []Document, 8)
	unsub, err := SubscribeMerged(l, "tests", own, shared, order, func(docs []Document) {
		snapshots <- docs
	}, func(err error) {
		t.Errorf("unexpected merge error: %v", err)
	})
	require.NoError(t, err)
	defer unsub()

	docs := waitForMerged(t, snapshots, 2)
	seen := make(map[string]bool)
	for _, d := range docs {
		assert.False(t, seen[d.ID], "duplicate id %s in merged snapshot", d.ID)
		seen[d.ID] = true
	}

	var newest testRecord
	require.NoError(t, docs[0].Decode(&newest))
	assert.Equal(t, int64(200), newest.CreatedAt, "merged snapshot should follow the order query")
}

func TestSubscribeMergedDeliversLiveUpdatesFromBothSources(t *testing.T) {
	l := openTestStore(t)
	ctx := context.Background()

	own := Query{Conds: []Cond{{Field: "assignedTo", Op: OpArrayContains, Value: "alice"}}}
	shared := Query{Conds: []Cond{{Field: "assignedTo", Op: OpArrayContains, Value: "__all_students__"}}}

	snapshots := make(chan []Document, 8)
	unsub, err := SubscribeMerged(l, "tests", own, shared, Query{OrderBy: "createdAt"}, func(docs []Document) {
		snapshots <- docs
	}, func(err error) {
		t.Errorf("unexpected merge error: %v", err)
	})
	require.NoError(t, err)
	defer unsub()

	waitForMerged(t, snapshots, 0)

	_, err = l.Create(ctx, "tests", testRecord{AssignedTo: []string{"alice"}, CreatedAt: 10})
	require.NoError(t, err)
	waitForMerged(t, snapshots, 1)

	_, err = l.Create(ctx, "tests", testRecord{AssignedTo: []string{"__all_students__"}, CreatedAt: 20})
	require.NoError(t, err)
	waitForMerged(t, snapshots, 2)
}

func TestSubscribeMergedUnsubscribeStopsBoth(t *testing.T) {
	l := openTestStore(t)
	ctx := context.Background()

	delivered := make(chan struct{}, 8)
	unsub, err := SubscribeMerged(l, "tests",
		Query{Conds: []Cond{{Field: "assignedTo", Op: OpArrayContains, Value: "alice"}}},
		Query{Conds: []Cond{{Field: "assignedTo", Op: OpArrayContains, Value: "__all_students__"}}},
		Query{},
		func([]Document) { delivered <- struct{}{} },
		func(err error) { t.Errorf("unexpected merge error: %v", err) })
	require.NoError(t, err)

	// two initial snapshots, one per source
	<-delivered
	<-delivered

	unsub()
	unsub() // idempotent

	_, err = l.Create(ctx, "tests", testRecord{AssignedTo: []string{"alice"}})
	require.NoError(t, err)
	_, err = l.Create(ctx, "tests", testRecord{AssignedTo: []string{"__all_students__"}})
	require.NoError(t, err)

	select {
	case <-delivered:
		t.Fatal("merged stream delivered after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func waitForMerged(t *testing.T, snapshots chan []Document, want int) []Document {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case docs := <-snapshots:
			if len(docs) == want {
				return docs
			}
		case <-deadline:
			t.Fatalf("timed out waiting for merged snapshot of %d documents", want)
		}
	}
}
