package memory

import (
	"context"
	"sync"

	"github.com/deepalweb/travelbuddy-sub001/ports"
)

// SubscriberStore is an in-memory implementation of ports.SubscriberStore.
type SubscriberStore struct {
	mu    sync.RWMutex
	tiers map[string]string
}

// NewSubscriberStore creates a new in-memory subscriber store.
func NewSubscriberStore() *SubscriberStore {
	return &SubscriberStore{tiers: make(map[string]string)}
}

// GetTier returns the stored tier for a user key, or ErrNotFound.
func (s *SubscriberStore) GetTier(ctx context.Context, userKey string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tiers[userKey]
	if !ok {
		return "", ports.ErrNotFound
	}
	return t, nil
}

// SetTier stores or replaces a user's tier.
func (s *SubscriberStore) SetTier(ctx context.Context, userKey, tier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[userKey] = tier
	return nil
}

// Ensure interface compliance.
var _ ports.SubscriberStore = (*SubscriberStore)(nil)
