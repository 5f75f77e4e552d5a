package store

import "sync"

// SubscribeMerged combines two live queries over the same collection
// into one stream: the union of both snapshots, deduplicated by record
// id, re-ordered by the order query. The usual pairing is "addressed to
// me" plus "addressed to everyone". When both sources hold the same id
// the copy from the source that updated most recently wins. An error on
// either source ends the merged stream. The returned unsubscribe stops
// both underlying listeners and is idempotent.
func SubscribeMerged(s Store, collection string, own, shared Query, order Query, onData DataFunc, onErr ErrFunc) (Unsubscribe, error) {
	m := &mergedSub{order: order, onData: onData, onErr: onErr}

	ownUnsub, err := s.Subscribe(collection, own, m.source(0), m.fail)
	if err != nil {
		return nil, err
	}
	m.setUnsub(0, ownUnsub)

	sharedUnsub, err := s.Subscribe(collection, shared, m.source(1), m.fail)
	if err != nil {
		ownUnsub()
		return nil, err
	}
	m.setUnsub(1, sharedUnsub)

	return m.stop, nil
}

type mergedSub struct {
	order  Query
	onData DataFunc
	onErr  ErrFunc

	mu     sync.Mutex
	latest [2][]Document
	last   int
	unsubs [2]Unsubscribe
	closed bool
}

func (m *mergedSub) setUnsub(i int, u Unsubscribe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubs[i] = u
}

func (m *mergedSub) source(i int) DataFunc {
	return func(docs []Document) {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		m.latest[i] = docs
		m.last = i
		union := m.union()
		emit := m.onData
		m.mu.Unlock()

		sortDocuments(union, m.order)
		emit(union)
	}
}

// union merges both snapshots, preferring the source that updated last.
func (m *mergedSub) union() []Document {
	first, second := m.latest[m.last], m.latest[1-m.last]
	seen := make(map[string]bool, len(first)+len(second))
	out := make([]Document, 0, len(first)+len(second))
	for _, docs := range [2][]Document{first, second} {
		for _, d := range docs {
			if d.ID == "" || seen[d.ID] {
				continue
			}
			seen[d.ID] = true
			out = append(out, d)
		}
	}
	return out
}

func (m *mergedSub) fail(err error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	unsubs := m.unsubs
	emit := m.onErr
	m.mu.Unlock()

	for _, u := range unsubs {
		if u != nil {
			u()
		}
	}
	emit(err)
}

func (m *mergedSub) stop() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	unsubs := m.unsubs
	m.mu.Unlock()

	for _, u := range unsubs {
		if u != nil {
			u()
		}
	}
}
