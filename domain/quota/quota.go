// Package quota provides pure functions for daily quota enforcement.
// All functions are deterministic with no side effects.
package quota

import "time"

// DayKey returns the UTC date key a counter row is scoped to.
// A new key is used when the date rolls over; old rows remain for
// historical aggregation.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// CheckResult represents the outcome of a daily quota check (value type).
type CheckResult struct {
	Allowed   bool
	Limit     int64
	Used      int64 // Count after this request settles
	Remaining int64
	Reason    string
}

// Reasons for denial
const (
	ReasonQuotaExceeded = "quota_exceeded"
)

// Check evaluates a post-increment count against the daily limit.
// newCount is the value returned by the store's atomic increment. When it
// exceeds the limit the caller must issue the compensating decrement, so
// Used reports the settled count (the limit), never newCount.
// This is a PURE function.
func Check(newCount, limit int64) CheckResult {
	if newCount > limit {
		return CheckResult{
			Allowed:   false,
			Limit:     limit,
			Used:      limit,
			Remaining: 0,
			Reason:    ReasonQuotaExceeded,
		}
	}
	return CheckResult{
		Allowed:   true,
		Limit:     limit,
		Used:      newCount,
		Remaining: limit - newCount,
	}
}
