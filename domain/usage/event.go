// Package usage provides usage event types and aggregation functions.
// All functions are pure - no side effects.
package usage

import "time"

// API identifies a metered external API.
type API string

const (
	APIOpenAI API = "openai"
	APIMaps   API = "maps"
	APIPlaces API = "places"
)

// KnownAPIs lists every metered API in stable order.
var KnownAPIs = []API{APIOpenAI, APIMaps, APIPlaces}

// ValidAPI reports whether s names a metered API.
// Unknown labels are dropped at the recording boundary, not rejected.
func ValidAPI(s string) bool {
	switch API(s) {
	case APIOpenAI, APIMaps, APIPlaces:
		return true
	}
	return false
}

// Status is the outcome of an external API call.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ValidStatus reports whether s is a known outcome.
func ValidStatus(s string) bool {
	return Status(s) == StatusSuccess || Status(s) == StatusError
}

// Event represents a single external-API call outcome (immutable value type).
type Event struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	API        API               `json:"api"`
	Action     string            `json:"action"`
	Status     Status            `json:"status"`
	DurationMs int64             `json:"durationMs"`
	Meta       map[string]string `json:"meta,omitempty"`
}

// IsSuccess reports whether the call succeeded.
func (e Event) IsSuccess() bool {
	return e.Status == StatusSuccess
}

// NewEvent creates a timestamped event. Invalid durations clamp to 0.
func NewEvent(id string, api API, action string, status Status, durationMs int64, meta map[string]string, at time.Time) Event {
	if durationMs < 0 {
		durationMs = 0
	}
	return Event{
		ID:         id,
		Timestamp:  at,
		API:        api,
		Action:     action,
		Status:     status,
		DurationMs: durationMs,
		Meta:       meta,
	}
}

// Totals holds lifetime counters for one API.
type Totals struct {
	Count   int64 `json:"count"`
	Success int64 `json:"success"`
	Error   int64 `json:"error"`
}

// TotalsByAPI maps each metered API to its running totals.
type TotalsByAPI map[API]Totals

// NewTotals returns zeroed totals for every known API.
func NewTotals() TotalsByAPI {
	t := make(TotalsByAPI, len(KnownAPIs))
	for _, api := range KnownAPIs {
		t[api] = Totals{}
	}
	return t
}

// Add returns the totals with one event counted.
// This is a PURE function on the Totals value.
func (t Totals) Add(status Status) Totals {
	t.Count++
	if status == StatusSuccess {
		t.Success++
	} else {
		t.Error++
	}
	return t
}

// Clone returns an independent copy, safe to hand to subscribers.
func (t TotalsByAPI) Clone() TotalsByAPI {
	out := make(TotalsByAPI, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Query filters events in a store lookup.
// Zero Since/Until mean unbounded; empty APIs means all.
type Query struct {
	Since  time.Time
	Until  time.Time
	APIs   []API
	Status Status // empty = any
	Limit  int    // 0 = no limit
}

// Matches reports whether the event satisfies the query filters.
func (q Query) Matches(e Event) bool {
	if !q.Since.IsZero() && e.Timestamp.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && !e.Timestamp.Before(q.Until) {
		return false
	}
	if q.Status != "" && e.Status != q.Status {
		return false
	}
	if len(q.APIs) > 0 {
		found := false
		for _, api := range q.APIs {
			if e.API == api {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
