package memory

import (
	"context"
	"sync"

	"github.com/deepalweb/travelbuddy-sub001/domain/cost"
	"github.com/deepalweb/travelbuddy-sub001/ports"
)

// CostConfigStore is an in-memory implementation of ports.CostConfigStore.
type CostConfigStore struct {
	mu    sync.RWMutex
	cfg   cost.Config
	saved bool
}

// NewCostConfigStore creates a new in-memory cost config store.
func NewCostConfigStore() *CostConfigStore {
	return &CostConfigStore{}
}

// Load returns the stored config, or ErrNotFound when never saved.
func (s *CostConfigStore) Load(ctx context.Context) (cost.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.saved {
		return cost.Config{}, ports.ErrNotFound
	}
	return s.cfg.Clone(), nil
}

// Save persists the config, replacing any previous value.
func (s *CostConfigStore) Save(ctx context.Context, cfg cost.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg.Clone()
	s.saved = true
	return nil
}

// Ensure interface compliance.
var _ ports.CostConfigStore = (*CostConfigStore)(nil)
