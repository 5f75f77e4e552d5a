// Package store provides a uniform document store over two
// interchangeable backends: a networked Redis store and a local bbolt
// emulation. Callers pick a backend at startup and never branch on it
// afterwards; both honor the same create/read/subscribe contract,
// including live updates.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Document is one stored record. Raw always contains the record's full
// JSON object including its "id" field.
type Document struct {
	ID  string
	Raw json.RawMessage
}

// Decode unmarshals the document into v.
func (d Document) Decode(v interface{}) error {
	return json.Unmarshal(d.Raw, v)
}

type (
	// DataFunc receives the current filtered snapshot of a collection.
	DataFunc func([]Document)
	// ErrFunc receives a subscription error. After it fires the stream is
	// closed; no further DataFunc calls happen until a re-subscribe.
	ErrFunc func(error)
	// Unsubscribe stops a subscription. Safe to call more than once.
	Unsubscribe func()
)

// Op is a filter operator.
type Op string

const (
	OpEqual         Op = "=="
	OpArrayContains Op = "array-contains"
)

// Cond filters records by one field.
type Cond struct {
	Field string
	Op    Op
	Value string
}

// Query filters and orders a collection read. OrderBy names a numeric
// field (typically a millisecond timestamp); zero value means no filter
// and no ordering.
type Query struct {
	Conds   []Cond
	OrderBy string
	Desc    bool
}

// Store is the backend-neutral contract every caller depends on.
type Store interface {
	// Create persists a record and returns its id. If the record's "id"
	// field is empty a new one is assigned.
	Create(ctx context.Context, collection string, record interface{}) (string, error)
	// GetAll returns the filtered, ordered snapshot of a collection.
	GetAll(ctx context.Context, collection string, q Query) ([]Document, error)
	// Subscribe emits the current snapshot immediately, then re-emits on
	// every change to the collection. Errors after the initial snapshot
	// go to onErr and end the stream.
	Subscribe(collection string, q Query, onData DataFunc, onErr ErrFunc) (Unsubscribe, error)
}

// record is a parsed document used for filtering and ordering.
type record struct {
	id  string
	m   map[string]interface{}
	raw json.RawMessage
}

func decodeRecord(raw []byte) (record, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return record{}, fmt.Errorf("decoding stored record: %w", err)
	}
	id, _ := m["id"].(string)
	return record{id: id, m: m, raw: append(json.RawMessage(nil), raw...)}, nil
}

// prepareRecord marshals a record, assigning an id when absent.
func prepareRecord(collection string, v interface{}) (string, []byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", nil, fmt.Errorf("encoding record: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return "", nil, fmt.Errorf("record must be a JSON object: %w", err)
	}
	id, _ := m["id"].(string)
	if id == "" {
		id = collection + "-" + uuid.NewString()
		m["id"] = id
	}
	out, err := json.Marshal(m)
	if err != nil {
		return "", nil, err
	}
	return id, out, nil
}

func (q Query) matches(m map[string]interface{}) bool {
	for _, c := range q.Conds {
		v, ok := m[c.Field]
		if !ok {
			return false
		}
		switch c.Op {
		case OpEqual:
			if stringValue(v) != c.Value {
				return false
			}
		case OpArrayContains:
			arr, isArr := v.([]interface{})
			if !isArr {
				return false
			}
			found := false
			for _, item := range arr {
				if stringValue(item) == c.Value {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// selectDocs applies a query to parsed records and strips them down to
// documents.
func selectDocs(records []record, q Query) []Document {
	matched := make([]record, 0, len(records))
	for _, r := range records {
		if q.matches(r.m) {
			matched = append(matched, r)
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			a := numberValue(matched[i].m[q.OrderBy])
			b := numberValue(matched[j].m[q.OrderBy])
			if q.Desc {
				return a > b
			}
			return a < b
		})
	}
	docs := make([]Document, 0, len(matched))
	for _, r := range matched {
		docs = append(docs, Document{ID: r.id, Raw: r.raw})
	}
	return docs
}

// sortDocuments re-orders already-selected documents, used when merging
// streams that were sorted per-source.
func sortDocuments(docs []Document, q Query) {
	if q.OrderBy == "" {
		return
	}
	type keyed struct {
		doc Document
		key float64
	}
	items := make([]keyed, len(docs))
	for i, d := range docs {
		var m map[string]interface{}
		if err := json.Unmarshal(d.Raw, &m); err == nil {
			items[i].key = numberValue(m[q.OrderBy])
		}
		items[i].doc = d
	}
	sort.SliceStable(items, func(i, j int) bool {
		if q.Desc {
			return items[i].key > items[j].key
		}
		return items[i].key < items[j].key
	})
	for i := range items {
		docs[i] = items[i].doc
	}
}

func stringValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func numberValue(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}
