// Package store defines the document store contract shared by the durable
// Postgres backend and the in-memory fallback. Documents are JSON values keyed
// by collection and id.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/campusride/campus/shared/errs"
)

var (
	// ErrNotFound wraps errs.ErrNotFound so callers can test either.
	ErrNotFound = fmt.Errorf("document %w", errs.ErrNotFound)

	ErrAlreadyExists = errors.New("document already exists")

	// ErrNoChange may be returned by an Update mutator to commit without writing.
	ErrNoChange = errors.New("no change")
)

// Record is a raw document as returned by Query.
type Record struct {
	ID   string
	Data json.RawMessage
}

// Filter matches a top-level string field of a document. A missing field
// compares as the empty string.
type Filter struct {
	Field string
	Value string
	Not   bool
}

func Eq(field, value string) Filter  { return Filter{Field: field, Value: value} }
func Neq(field, value string) Filter { return Filter{Field: field, Value: value, Not: true} }

// Tx is the view of the store inside RunTx. Get locks the document for the
// rest of the transaction.
type Tx interface {
	Get(ctx context.Context, collection, id string, dst any) error
	Create(ctx context.Context, collection, id string, doc any) error
	Put(ctx context.Context, collection, id string, doc any) error
}

type Store interface {
	Name() string
	// Probe checks reachability once. It does not retry.
	Probe(ctx context.Context) error
	Get(ctx context.Context, collection, id string, dst any) error
	// Query returns matching documents in creation order.
	Query(ctx context.Context, collection string, filters ...Filter) ([]Record, error)
	Create(ctx context.Context, collection, id string, doc any) error
	// RunTx runs fn atomically. Writes become visible, and watchers are
	// notified, only if fn returns nil.
	RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Watch(ctx context.Context, collections ...string) (*Watcher, error)
	Close() error
}

// Update is a read-verify-write of one document inside a transaction. The
// mutator sees the locked current state; returning ErrNoChange commits
// without a write.
func Update[T any](ctx context.Context, st Store, collection, id string, mutate func(*T) error) (*T, error) {
	var out T
	err := st.RunTx(ctx, func(ctx context.Context, tx Tx) error {
		var doc T
		if err := tx.Get(ctx, collection, id, &doc); err != nil {
			return err
		}
		if err := mutate(&doc); err != nil {
			if errors.Is(err, ErrNoChange) {
				out = doc
				return nil
			}
			return err
		}
		if err := tx.Put(ctx, collection, id, &doc); err != nil {
			return err
		}
		out = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Match reports whether a decoded document satisfies every filter.
func Match(doc map[string]json.RawMessage, filters []Filter) bool {
	for _, f := range filters {
		if (fieldString(doc[f.Field]) == f.Value) == f.Not {
			return false
		}
	}
	return true
}

func fieldString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
