package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/deepalweb/travelbuddy-sub001/domain/usage"
	"github.com/deepalweb/travelbuddy-sub001/ports"
)

// quotaRow is one (userKey, api, day) counter.
type quotaRow struct {
	count int64
	tier  string
}

// QuotaStore is the in-memory implementation of ports.QuotaStore.
//
// This is the development fallback for when durable storage is unavailable.
// The mutex makes single-process increments atomic, but unlike the SQLite
// backend nothing survives a restart, so it must not be relied on where
// quota continuity matters.
type QuotaStore struct {
	mu   sync.Mutex
	rows map[string]*quotaRow
}

// NewQuotaStore creates a new in-memory quota store.
func NewQuotaStore() *QuotaStore {
	return &QuotaStore{rows: make(map[string]*quotaRow)}
}

// key builds the composite counter key.
func (s *QuotaStore) key(userKey string, api usage.API, day string) string {
	return fmt.Sprintf("%s:%s:%s", userKey, api, day)
}

// GetDailyCount returns the counter value; 0 for missing keys.
func (s *QuotaStore) GetDailyCount(ctx context.Context, userKey string, api usage.API, day string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.rows[s.key(userKey, api, day)]; ok {
		return row.count, nil
	}
	return 0, nil
}

// Increment atomically adds one and returns the new count.
// The tier is recorded only when the row is first created.
func (s *QuotaStore) Increment(ctx context.Context, userKey string, api usage.API, day, tier string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := s.key(userKey, api, day)
	row, ok := s.rows[k]
	if !ok {
		row = &quotaRow{tier: tier}
		s.rows[k] = row
	}
	row.count++
	return row.count, nil
}

// Decrement subtracts one, flooring at 0.
func (s *QuotaStore) Decrement(ctx context.Context, userKey string, api usage.API, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.rows[s.key(userKey, api, day)]; ok && row.count > 0 {
		row.count--
	}
	return nil
}

// Tier returns the tier recorded for a counter row (for testing).
func (s *QuotaStore) Tier(userKey string, api usage.API, day string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.rows[s.key(userKey, api, day)]; ok {
		return row.tier
	}
	return ""
}

// Clear removes all state (for testing).
func (s *QuotaStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = make(map[string]*quotaRow)
}

// Ensure interface compliance.
var _ ports.QuotaStore = (*QuotaStore)(nil)
