// Package storetest holds the conformance suite every store.Store backend runs.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/campusride/campus/internal/store"
	"github.com/campusride/campus/shared/errs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type counter struct {
	Owner string `json:"owner"`
	Kind  string `json:"kind,omitempty"`
	N     int    `json:"n"`
}

// Suite exercises a store through the public contract only. Collections are
// namespaced per test so a shared database can be reused.
type Suite struct {
	suite.Suite
	NewStore func(t *testing.T) store.Store

	st   store.Store
	coll string
	ctx  context.Context
}

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	suite.Run(t, &Suite{NewStore: newStore})
}

func (s *Suite) SetupTest() {
	s.st = s.NewStore(s.T())
	s.coll = "test_" + uuid.NewString()
	s.ctx = context.Background()
}

func (s *Suite) TearDownTest() {
	s.NoError(s.st.Close())
}

func (s *Suite) TestCreateAndGet() {
	require.NoError(s.T(), s.st.Create(s.ctx, s.coll, "a", counter{Owner: "u1", N: 3}))

	var got counter
	require.NoError(s.T(), s.st.Get(s.ctx, s.coll, "a", &got))
	s.Equal(counter{Owner: "u1", N: 3}, got)
}

func (s *Suite) TestCreateDuplicateFails() {
	require.NoError(s.T(), s.st.Create(s.ctx, s.coll, "a", counter{N: 1}))
	err := s.st.Create(s.ctx, s.coll, "a", counter{N: 2})
	s.ErrorIs(err, store.ErrAlreadyExists)

	var got counter
	require.NoError(s.T(), s.st.Get(s.ctx, s.coll, "a", &got))
	s.Equal(1, got.N)
}

func (s *Suite) TestGetMissing() {
	var got counter
	err := s.st.Get(s.ctx, s.coll, "missing", &got)
	s.ErrorIs(err, store.ErrNotFound)
	s.ErrorIs(err, errs.ErrNotFound)
}

func (s *Suite) TestQueryFiltersInCreationOrder() {
	docs := []struct {
		id string
		c  counter
	}{
		{"z", counter{Owner: "u1", Kind: "x"}},
		{"a", counter{Owner: "u2", Kind: "x"}},
		{"m", counter{Owner: "u1", Kind: "y"}},
		{"b", counter{Owner: "u3"}},
	}
	for _, d := range docs {
		require.NoError(s.T(), s.st.Create(s.ctx, s.coll, d.id, d.c))
		time.Sleep(2 * time.Millisecond)
	}

	all, err := s.st.Query(s.ctx, s.coll)
	require.NoError(s.T(), err)
	s.Equal([]string{"z", "a", "m", "b"}, ids(all))

	x, err := s.st.Query(s.ctx, s.coll, store.Eq("kind", "x"), store.Neq("owner", "u2"))
	require.NoError(s.T(), err)
	s.Equal([]string{"z"}, ids(x))

	missingKind, err := s.st.Query(s.ctx, s.coll, store.Eq("kind", ""))
	require.NoError(s.T(), err)
	s.Equal([]string{"b"}, ids(missingKind))

	var decoded counter
	require.NoError(s.T(), json.Unmarshal(all[2].Data, &decoded))
	s.Equal("y", decoded.Kind)
}

func (s *Suite) TestFailedTxLeavesNoTrace() {
	require.NoError(s.T(), s.st.Create(s.ctx, s.coll, "a", counter{N: 1}))

	boom := errors.New("boom")
	err := s.st.RunTx(s.ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Put(ctx, s.coll, "a", counter{N: 99}); err != nil {
			return err
		}
		if err := tx.Create(ctx, s.coll, "b", counter{N: 1}); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	var got counter
	require.NoError(s.T(), s.st.Get(s.ctx, s.coll, "a", &got))
	s.Equal(1, got.N)
	s.ErrorIs(s.st.Get(s.ctx, s.coll, "b", &got), store.ErrNotFound)
}

func (s *Suite) TestTxReadsOwnWrites() {
	err := s.st.RunTx(s.ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Create(ctx, s.coll, "a", counter{N: 5}); err != nil {
			return err
		}
		var got counter
		if err := tx.Get(ctx, s.coll, "a", &got); err != nil {
			return err
		}
		s.Equal(5, got.N)
		return nil
	})
	s.NoError(err)
}

func (s *Suite) TestUpdateNoChange() {
	require.NoError(s.T(), s.st.Create(s.ctx, s.coll, "a", counter{N: 1}))
	got, err := store.Update(s.ctx, s.st, s.coll, "a", func(c *counter) error {
		c.N = 42
		return store.ErrNoChange
	})
	require.NoError(s.T(), err)
	s.Equal(42, got.N)

	var stored counter
	require.NoError(s.T(), s.st.Get(s.ctx, s.coll, "a", &stored))
	s.Equal(1, stored.N)
}

func (s *Suite) TestConcurrentUpdatesSerialise() {
	require.NoError(s.T(), s.st.Create(s.ctx, s.coll, "a", counter{}))

	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := store.Update(s.ctx, s.st, s.coll, "a", func(c *counter) error {
				c.N++
				return nil
			})
			assert.NoError(s.T(), err)
		}()
	}
	wg.Wait()

	var got counter
	require.NoError(s.T(), s.st.Get(s.ctx, s.coll, "a", &got))
	s.Equal(workers, got.N)
}

func (s *Suite) TestWatchSeesCommittedChangesOnly() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	other := s.coll + "_other"

	w, err := s.st.Watch(ctx, s.coll)
	require.NoError(s.T(), err)
	defer w.Close()

	_ = s.st.RunTx(s.ctx, func(ctx context.Context, tx store.Tx) error {
		_ = tx.Create(ctx, s.coll, "rolled-back", counter{})
		return errors.New("abort")
	})
	require.NoError(s.T(), s.st.Create(s.ctx, other, "ignored", counter{}))
	require.NoError(s.T(), s.st.Create(s.ctx, s.coll, "a", counter{}))

	select {
	case <-w.Ready():
	case <-time.After(5 * time.Second):
		s.FailNow("no change notification")
	}
	s.Equal([]string{s.coll}, w.Take())
}

func (s *Suite) TestWatchClosedByContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	w, err := s.st.Watch(ctx, s.coll)
	require.NoError(s.T(), err)
	cancel()

	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		s.FailNow("watcher not closed")
	}
	w.Close()
}

func ids(recs []store.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}
