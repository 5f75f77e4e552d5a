package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"

	"github.com/preplens/preplens-api/utils"
)

var collectionsBucket = []byte("Collections")

// Local is the embedded backend. Every collection lives in one
// serialized JSON blob under its name; reads parse the blob fresh each
// time and writes rewrite it whole, so there is no aliasing and no
// partial write. A change bus keyed by collection name stands in for
// the server push channel of the networked backend.
type Local struct {
	db  *bbolt.DB
	bus *changeBus
}

// OpenLocal opens (or creates) the store file.
func OpenLocal(path string) (*Local, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(collectionsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing local store: %w", err)
	}
	utils.LogStore("Local store ready at %s", path)
	return &Local{db: db, bus: newChangeBus()}, nil
}

func (l *Local) Close() error {
	return l.db.Close()
}

// NotifyExternal raises the change signal for a collection without a
// write going through this handle. An embedding process that replaces
// the store file out of band calls this to keep subscribers live, the
// same way a cross-tab storage event would.
func (l *Local) NotifyExternal(collection string) {
	l.bus.publish(collection)
}

func (l *Local) readCollection(collection string) ([]record, error) {
	var blob []byte
	err := l.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(collectionsBucket).Get([]byte(collection)); v != nil {
			blob = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading collection %s: %w", collection, err)
	}
	if blob == nil {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(blob, &items); err != nil {
		return nil, fmt.Errorf("parsing collection %s: %w", collection, err)
	}
	records := make([]record, 0, len(items))
	for _, item := range items {
		r, err := decodeRecord(item)
		if err != nil {
			return nil, fmt.Errorf("collection %s: %w", collection, err)
		}
		records = append(records, r)
	}
	return records, nil
}

func (l *Local) Create(ctx context.Context, collection string, rec interface{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id, data, err := prepareRecord(collection, rec)
	if err != nil {
		return "", err
	}
	err = l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(collectionsBucket)
		var items []json.RawMessage
		if v := b.Get([]byte(collection)); v != nil {
			if err := json.Unmarshal(v, &items); err != nil {
				return fmt.Errorf("parsing collection %s: %w", collection, err)
			}
		}
		// newest first, matching the order remote queries return
		items = append([]json.RawMessage{data}, items...)
		blob, err := json.Marshal(items)
		if err != nil {
			return err
		}
		return b.Put([]byte(collection), blob)
	})
	if err != nil {
		return "", fmt.Errorf("writing collection %s: %w", collection, err)
	}
	l.bus.publish(collection)
	return id, nil
}

func (l *Local) GetAll(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := l.readCollection(collection)
	if err != nil {
		return nil, err
	}
	return selectDocs(records, q), nil
}

func (l *Local) Subscribe(collection string, q Query, onData DataFunc, onErr ErrFunc) (Unsubscribe, error) {
	docs, err := l.GetAll(context.Background(), collection, q)
	if err != nil {
		return nil, err
	}

	sub := &localSub{
		local:      l,
		collection: collection,
		q:          q,
		onData:     onData,
		onErr:      onErr,
	}
	sub.id, sub.ch = l.bus.subscribe(collection)

	onData(docs)
	go sub.loop()
	return sub.stop, nil
}

type localSub struct {
	local      *Local
	collection string
	q          Query
	onData     DataFunc
	onErr      ErrFunc
	id         int
	ch         chan struct{}
	closed     atomic.Bool
	once       sync.Once
}

func (s *localSub) loop() {
	for range s.ch {
		if s.closed.Load() {
			return
		}
		docs, err := s.local.GetAll(context.Background(), s.collection, s.q)
		if s.closed.Load() {
			return
		}
		if err != nil {
			s.stop()
			s.onErr(err)
			return
		}
		s.onData(docs)
	}
}

func (s *localSub) stop() {
	s.once.Do(func() {
		s.closed.Store(true)
		s.local.bus.unsubscribe(s.collection, s.id)
	})
}

// changeBus fans a collection's change signal out to its subscribers.
// Signals are coalescing: a subscriber that has a pending signal does
// not queue another, it re-reads full state when it wakes.
type changeBus struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]chan struct{}
}

func newChangeBus() *changeBus {
	return &changeBus{subs: make(map[string]map[int]chan struct{})}
}

func (b *changeBus) subscribe(collection string) (int, chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := b.next
	ch := make(chan struct{}, 1)
	if b.subs[collection] == nil {
		b.subs[collection] = make(map[int]chan struct{})
	}
	b.subs[collection][id] = ch
	return id, ch
}

func (b *changeBus) unsubscribe(collection string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.subs[collection]; ok {
		if ch, ok := subs[id]; ok {
			delete(subs, id)
			close(ch)
		}
	}
}

func (b *changeBus) publish(collection string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[collection] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
