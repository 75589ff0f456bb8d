// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/deepalweb/travelbuddy-sub001/domain/cost"
	"github.com/deepalweb/travelbuddy-sub001/domain/ratelimit"
	"github.com/deepalweb/travelbuddy-sub001/domain/usage"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// RateLimitStore persists per-(userKey, api) fixed-window state.
// State is ephemeral by contract: losing it on restart is acceptable.
type RateLimitStore interface {
	// Get retrieves current window state for a bucket key.
	// A missing bucket returns the zero state.
	Get(ctx context.Context, bucketKey string) (ratelimit.WindowState, error)

	// Set updates window state for a bucket key.
	Set(ctx context.Context, bucketKey string, state ratelimit.WindowState) error
}

// QuotaStore persists daily admission counters keyed by (userKey, api, day).
//
// Increment is the authoritative, fail-closed write: callers increment
// optimistically, compare the returned count to the limit, and issue the
// compensating Decrement when over. Both backends expose identical
// semantics; only the durable backend guarantees cross-request atomicity.
type QuotaStore interface {
	// GetDailyCount returns the counter value; 0 for missing keys.
	GetDailyCount(ctx context.Context, userKey string, api usage.API, day string) (int64, error)

	// Increment atomically adds one and returns the new count.
	// The tier is recorded only on first creation of the row
	// (first writer's tier wins for that day).
	Increment(ctx context.Context, userKey string, api usage.API, day, tier string) (int64, error)

	// Decrement subtracts one, flooring at 0. Used to revert an
	// optimistic increment after a quota denial.
	Decrement(ctx context.Context, userKey string, api usage.API, day string) error
}

// UsageEventStore persists usage events for aggregation.
// Writes are best-effort at call sites; reads back the series endpoints
// and the cost snapshot.
type UsageEventStore interface {
	// Record stores a single event.
	Record(ctx context.Context, e usage.Event) error

	// List returns events matching the query, oldest first.
	List(ctx context.Context, q usage.Query) ([]usage.Event, error)
}

// CostConfigStore persists the mutable cost configuration.
type CostConfigStore interface {
	// Load returns the stored config, or ErrNotFound when never saved.
	Load(ctx context.Context) (cost.Config, error)

	// Save persists the config, replacing any previous value.
	Save(ctx context.Context, cfg cost.Config) error
}

// SubscriberStore persists per-user subscription tiers.
// Lookups are best-effort: enforcement degrades to the free tier when a
// lookup fails rather than blocking traffic.
type SubscriberStore interface {
	// GetTier returns the stored tier for a user key, or ErrNotFound.
	GetTier(ctx context.Context, userKey string) (string, error)

	// SetTier stores or replaces a user's tier.
	SetTier(ctx context.Context, userKey, tier string) error
}
