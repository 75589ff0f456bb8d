// Package memory provides in-memory implementations of storage ports.
// These back development mode and tests; durable backends live in
// adapters/sqlite.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/deepalweb/travelbuddy-sub001/domain/ratelimit"
	"github.com/deepalweb/travelbuddy-sub001/ports"
)

// RateLimitStore is an in-memory implementation of ports.RateLimitStore.
// The bucket map grows with distinct (userKey, api) pairs, so a periodic
// sweep evicts buckets whose window has been idle past the configured age.
type RateLimitStore struct {
	mu      sync.RWMutex
	state   map[string]ratelimit.WindowState
	clock   ports.Clock
	idleAge time.Duration
	sweep   *time.Ticker
	done    chan struct{}
	once    sync.Once
}

// RateLimitStoreConfig configures the store's stale-bucket sweep.
type RateLimitStoreConfig struct {
	Clock         ports.Clock
	SweepInterval time.Duration // 0 disables the background sweep
	IdleAge       time.Duration // default 5m
}

// NewRateLimitStore creates a new in-memory rate limit store.
func NewRateLimitStore(cfg RateLimitStoreConfig) *RateLimitStore {
	if cfg.IdleAge <= 0 {
		cfg.IdleAge = 5 * time.Minute
	}
	s := &RateLimitStore{
		state:   make(map[string]ratelimit.WindowState),
		clock:   cfg.Clock,
		idleAge: cfg.IdleAge,
		done:    make(chan struct{}),
	}
	if cfg.SweepInterval > 0 && cfg.Clock != nil {
		s.sweep = time.NewTicker(cfg.SweepInterval)
		go s.sweepLoop()
	}
	return s
}

// Get retrieves current window state for a bucket key.
func (s *RateLimitStore) Get(ctx context.Context, bucketKey string) (ratelimit.WindowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state[bucketKey], nil
}

// Set updates window state for a bucket key.
func (s *RateLimitStore) Set(ctx context.Context, bucketKey string, state ratelimit.WindowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[bucketKey] = state
	return nil
}

// SweepStale removes buckets idle past the configured age.
// Returns the number of evicted buckets.
func (s *RateLimitStore) SweepStale(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for k, st := range s.state {
		if ratelimit.Stale(st, now, s.idleAge) {
			delete(s.state, k)
			evicted++
		}
	}
	return evicted
}

func (s *RateLimitStore) sweepLoop() {
	for {
		select {
		case <-s.sweep.C:
			s.SweepStale(s.clock.Now())
		case <-s.done:
			return
		}
	}
}

// Close stops the sweep goroutine.
func (s *RateLimitStore) Close() error {
	s.once.Do(func() {
		close(s.done)
		if s.sweep != nil {
			s.sweep.Stop()
		}
	})
	return nil
}

// Len returns the number of tracked buckets (for testing).
func (s *RateLimitStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state)
}

// Clear removes all state (for testing).
func (s *RateLimitStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = make(map[string]ratelimit.WindowState)
}

// Ensure interface compliance.
var _ ports.RateLimitStore = (*RateLimitStore)(nil)
