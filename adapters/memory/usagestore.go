package memory

import (
	"context"
	"sync"

	"github.com/deepalweb/travelbuddy-sub001/domain/usage"
	"github.com/deepalweb/travelbuddy-sub001/ports"
)

// UsageEventStore is an in-memory implementation of ports.UsageEventStore.
// Retention is bounded only by process lifetime.
type UsageEventStore struct {
	mu     sync.RWMutex
	events []usage.Event
}

// NewUsageEventStore creates a new in-memory usage event store.
func NewUsageEventStore() *UsageEventStore {
	return &UsageEventStore{events: make([]usage.Event, 0)}
}

// Record stores a single event.
func (s *UsageEventStore) Record(ctx context.Context, e usage.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// List returns events matching the query, oldest first.
func (s *UsageEventStore) List(ctx context.Context, q usage.Query) ([]usage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matching []usage.Event
	for _, e := range s.events {
		if q.Matches(e) {
			matching = append(matching, e)
			if q.Limit > 0 && len(matching) >= q.Limit {
				break
			}
		}
	}
	return matching, nil
}

// Len returns the number of stored events (for testing).
func (s *UsageEventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Clear removes all events (for testing).
func (s *UsageEventStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make([]usage.Event, 0)
}

// Ensure interface compliance.
var _ ports.UsageEventStore = (*UsageEventStore)(nil)
