// Package ratelimit provides pure rate limiting algorithms.
// All functions are deterministic - same input always produces same output.
package ratelimit

import "time"

// Window is the fixed admission window: one calendar minute.
const Window = time.Minute

// WindowState represents the current state of a rate limit window (value type).
type WindowState struct {
	WindowStart time.Time // Start of current window, truncated to the minute
	Count       int       // Requests admitted in current window
}

// CheckResult represents the outcome of a rate limit check (value type).
type CheckResult struct {
	Allowed   bool
	Limit     int
	Remaining int       // Requests remaining in window
	ResetAt   time.Time // When the window rolls over
	Reason    string    // If not allowed, why
}

// Reasons for denial
const (
	ReasonLimitExceeded = "rate_limited"
)

// Check performs a fixed-window rate limit check.
// This is a PURE function - no side effects, deterministic.
//
// The window key is now truncated to the minute; a stored state from a
// different minute resets the count. A limit of 0 always denies.
//
// Returns the result and the updated state (caller must persist).
func Check(state WindowState, limit int, now time.Time) (CheckResult, WindowState) {
	windowStart := now.Truncate(Window)
	windowEnd := windowStart.Add(Window)

	if !state.WindowStart.Equal(windowStart) {
		state = WindowState{WindowStart: windowStart, Count: 0}
	}

	if limit <= 0 || state.Count >= limit {
		return CheckResult{
			Allowed:   false,
			Limit:     limit,
			Remaining: 0,
			ResetAt:   windowEnd,
			Reason:    ReasonLimitExceeded,
		}, state
	}

	state.Count++
	return CheckResult{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - state.Count,
		ResetAt:   windowEnd,
	}, state
}

// Stale reports whether a bucket has been idle long enough to sweep.
// This is a PURE function.
func Stale(state WindowState, now time.Time, idleAge time.Duration) bool {
	if state.WindowStart.IsZero() {
		return true
	}
	return now.Sub(state.WindowStart.Add(Window)) > idleAge
}

// CalculateDelay returns how long to wait before retrying.
// This is a PURE function.
func CalculateDelay(result CheckResult, now time.Time) time.Duration {
	if result.Allowed {
		return 0
	}
	delay := result.ResetAt.Sub(now)
	if delay < 0 {
		return 0
	}
	return delay
}
