package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/campusride/campus/shared/errs"
)

type Mode string

const (
	ModeUnresolved Mode = ""
	ModeDurable    Mode = "durable"
	ModeFallback   Mode = "fallback"
)

const DefaultProbeTimeout = 3 * time.Second

// Selector picks the backing store once per process. The durable store is
// probed a single time; any failure, including a missing configuration,
// selects the fallback for the rest of the process.
type Selector struct {
	primary  Store
	fallback func(ctx context.Context) (Store, error)
	timeout  time.Duration

	once     sync.Once
	mu       sync.Mutex
	selected Store
	mode     Mode
	err      error
}

// NewSelector builds a selector. primary may be nil when no durable store is
// configured.
func NewSelector(primary Store, fallback func(ctx context.Context) (Store, error), timeout time.Duration) *Selector {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Selector{primary: primary, fallback: fallback, timeout: timeout}
}

// Store resolves the backend on first use and returns the same store after.
func (s *Selector) Store(ctx context.Context) (Store, error) {
	s.once.Do(func() { s.resolve(ctx) })
	return s.selected, s.err
}

func (s *Selector) resolve(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.probePrimary(ctx)
	if err == nil {
		s.selected, s.mode = s.primary, ModeDurable
		log.Printf("Store selected: %s (durable)", s.primary.Name())
		return
	}
	log.Printf("Durable store unavailable, using fallback: %v", err)

	if s.primary != nil {
		if err := s.primary.Close(); err != nil {
			log.Printf("Failed to close durable store: %v", err)
		}
	}

	fb, err := s.fallback(ctx)
	if err != nil {
		s.err = fmt.Errorf("fallback store: %w", errors.Join(errs.ErrBackendUnavailable, err))
		return
	}
	s.selected, s.mode = fb, ModeFallback
	log.Printf("Store selected: %s (fallback)", fb.Name())
}

func (s *Selector) probePrimary(ctx context.Context) error {
	if s.primary == nil {
		return fmt.Errorf("durable store not configured: %w", errs.ErrBackendUnavailable)
	}
	probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.primary.Probe(probeCtx); err != nil {
		return fmt.Errorf("probe %s: %w", s.primary.Name(), errors.Join(errs.ErrBackendUnavailable, err))
	}
	return nil
}

// Mode reports the resolved mode, or ModeUnresolved before the first Store call.
func (s *Selector) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}
