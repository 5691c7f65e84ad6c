package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/campusride/campus/internal/store"
	"github.com/campusride/campus/internal/store/memory"
	"github.com/campusride/campus/shared/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// probeStore is a memory store whose probe outcome is scripted.
type probeStore struct {
	*memory.Store
	probeFn func(ctx context.Context) error
	probes  atomic.Int32
	closed  atomic.Bool
}

func (p *probeStore) Name() string { return "scripted" }

func (p *probeStore) Probe(ctx context.Context) error {
	p.probes.Add(1)
	return p.probeFn(ctx)
}

func (p *probeStore) Close() error {
	p.closed.Store(true)
	return p.Store.Close()
}

func memoryFallback(calls *atomic.Int32) func(context.Context) (store.Store, error) {
	return func(context.Context) (store.Store, error) {
		calls.Add(1)
		return memory.New(), nil
	}
}

func TestSelectorPrefersHealthyPrimary(t *testing.T) {
	primary := &probeStore{Store: memory.New(), probeFn: func(context.Context) error { return nil }}
	var fallbacks atomic.Int32
	sel := store.NewSelector(primary, memoryFallback(&fallbacks), time.Second)

	assert.Equal(t, store.ModeUnresolved, sel.Mode())
	st, err := sel.Store(context.Background())
	require.NoError(t, err)
	assert.Same(t, primary, st)
	assert.Equal(t, store.ModeDurable, sel.Mode())
	assert.Zero(t, fallbacks.Load())
}

func TestSelectorFallsBackOnce(t *testing.T) {
	tests := []struct {
		name    string
		primary func() *probeStore
	}{
		{
			name: "probe error",
			primary: func() *probeStore {
				return &probeStore{Store: memory.New(), probeFn: func(context.Context) error { return errors.New("connection refused") }}
			},
		},
		{
			name: "probe timeout",
			primary: func() *probeStore {
				return &probeStore{Store: memory.New(), probeFn: func(ctx context.Context) error {
					<-ctx.Done()
					return ctx.Err()
				}}
			},
		},
		{
			name:    "not configured",
			primary: func() *probeStore { return nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.primary()
			var primary store.Store
			if p != nil {
				primary = p
			}
			var fallbacks atomic.Int32
			sel := store.NewSelector(primary, memoryFallback(&fallbacks), 50*time.Millisecond)

			first, err := sel.Store(context.Background())
			require.NoError(t, err)
			second, err := sel.Store(context.Background())
			require.NoError(t, err)

			assert.Same(t, first, second)
			assert.Equal(t, "memory", first.Name())
			assert.Equal(t, store.ModeFallback, sel.Mode())
			assert.EqualValues(t, 1, fallbacks.Load())
			if p != nil {
				assert.EqualValues(t, 1, p.probes.Load())
				assert.True(t, p.closed.Load())
			}
		})
	}
}

func TestSelectorConcurrentCallersShareOutcome(t *testing.T) {
	primary := &probeStore{Store: memory.New(), probeFn: func(context.Context) error {
		time.Sleep(10 * time.Millisecond)
		return errors.New("down")
	}}
	var fallbacks atomic.Int32
	sel := store.NewSelector(primary, memoryFallback(&fallbacks), time.Second)

	const callers = 8
	got := make([]store.Store, callers)
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		i := i
		go func() {
			defer wg.Done()
			st, err := sel.Store(context.Background())
			assert.NoError(t, err)
			got[i] = st
		}()
	}
	wg.Wait()

	for _, st := range got {
		assert.Same(t, got[0], st)
	}
	assert.EqualValues(t, 1, primary.probes.Load())
	assert.EqualValues(t, 1, fallbacks.Load())
}

func TestSelectorFallbackFailure(t *testing.T) {
	sel := store.NewSelector(nil, func(context.Context) (store.Store, error) {
		return nil, errors.New("seed failed")
	}, time.Second)

	_, err := sel.Store(context.Background())
	assert.ErrorIs(t, err, errs.ErrBackendUnavailable)
	assert.Equal(t, store.ModeUnresolved, sel.Mode())
}
