// Package memory is the in-process fallback store. It keeps documents in maps
// and serialises transactions with a single store-wide lock.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/campusride/campus/internal/store"
)

type entry struct {
	data json.RawMessage
	seq  int64
}

type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]entry
	seq         int64
	closed      bool

	broadcaster store.Broadcaster
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{collections: make(map[string]map[string]entry)}
}

func (s *Store) Name() string { return "memory" }

func (s *Store) Probe(ctx context.Context) error { return ctx.Err() }

func (s *Store) Get(ctx context.Context, collection, id string, dst any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.collections[collection][id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	return json.Unmarshal(e.data, dst)
}

func (s *Store) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Record, error) {
	s.mu.Lock()
	type row struct {
		id string
		e  entry
	}
	rows := make([]row, 0, len(s.collections[collection]))
	for id, e := range s.collections[collection] {
		rows = append(rows, row{id: id, e: e})
	}
	s.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].e.seq < rows[j].e.seq })

	out := make([]store.Record, 0, len(rows))
	for _, r := range rows {
		if len(filters) > 0 {
			var doc map[string]json.RawMessage
			if err := json.Unmarshal(r.e.data, &doc); err != nil {
				return nil, fmt.Errorf("decode %s/%s: %w", collection, r.id, err)
			}
			if !store.Match(doc, filters) {
				continue
			}
		}
		out = append(out, store.Record{ID: r.id, Data: r.e.data})
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, collection, id string, doc any) error {
	return s.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Create(ctx, collection, id, doc)
	})
}

func (s *Store) RunTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	changed, err := s.runLocked(ctx, fn)
	if err != nil {
		return err
	}
	if len(changed) > 0 {
		s.broadcaster.Publish(changed...)
	}
	return nil
}

// runLocked runs fn under the store lock and commits its writes on success.
func (s *Store) runLocked(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("memory store closed")
	}
	tx := &memTx{store: s, writes: make(map[string]map[string]json.RawMessage)}
	if err := fn(ctx, tx); err != nil {
		return nil, err
	}
	return tx.commit(), nil
}

func (s *Store) Watch(ctx context.Context, collections ...string) (*store.Watcher, error) {
	return s.broadcaster.Watch(ctx, collections...), nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.broadcaster.CloseAll()
	return nil
}

// memTx buffers writes until commit. The store lock is held for its lifetime.
type memTx struct {
	store  *Store
	writes map[string]map[string]json.RawMessage
	order  []docKey
}

type docKey struct {
	collection string
	id         string
}

func (t *memTx) lookup(collection, id string) (json.RawMessage, bool) {
	if data, ok := t.writes[collection][id]; ok {
		return data, true
	}
	e, ok := t.store.collections[collection][id]
	return e.data, ok
}

func (t *memTx) Get(ctx context.Context, collection, id string, dst any) error {
	data, ok := t.lookup(collection, id)
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	return json.Unmarshal(data, dst)
}

func (t *memTx) Create(ctx context.Context, collection, id string, doc any) error {
	if _, ok := t.lookup(collection, id); ok {
		return fmt.Errorf("%s/%s: %w", collection, id, store.ErrAlreadyExists)
	}
	return t.Put(ctx, collection, id, doc)
}

func (t *memTx) Put(ctx context.Context, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	if t.writes[collection] == nil {
		t.writes[collection] = make(map[string]json.RawMessage)
	}
	if _, seen := t.writes[collection][id]; !seen {
		t.order = append(t.order, docKey{collection: collection, id: id})
	}
	t.writes[collection][id] = data
	return nil
}

func (t *memTx) commit() []string {
	changed := make(map[string]struct{})
	for _, key := range t.order {
		collection, id := key.collection, key.id
		docs := t.store.collections[collection]
		if docs == nil {
			docs = make(map[string]entry)
			t.store.collections[collection] = docs
		}
		prev, exists := docs[id]
		seq := prev.seq
		if !exists {
			t.store.seq++
			seq = t.store.seq
		}
		docs[id] = entry{data: t.writes[collection][id], seq: seq}
		changed[collection] = struct{}{}
	}
	out := make([]string, 0, len(changed))
	for c := range changed {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
