// Package tier defines subscription tiers and their per-API policies.
// The table is static configuration: loaded at startup, swapped atomically
// on config reload, never mutated in place.
package tier

import "github.com/deepalweb/travelbuddy-sub001/domain/usage"

// Tier is a named subscription level.
type Tier string

const (
	Free    Tier = "free"
	Basic   Tier = "basic"
	Premium Tier = "premium"
	Pro     Tier = "pro"
)

// Known reports whether s names a subscription tier.
func Known(s string) bool {
	switch Tier(s) {
	case Free, Basic, Premium, Pro:
		return true
	}
	return false
}

// Policy holds admission limits for one tier+API pair.
type Policy struct {
	Daily     int64 `json:"daily"`
	PerMinute int   `json:"perMinute"`
}

// Features holds tier capability caps unrelated to rate limiting.
type Features struct {
	MaxRadiusKm float64 `json:"maxRadiusKm"`
	MaxResults  int     `json:"maxResults"`
	AIPlanner   bool    `json:"aiPlanner"`
}

// ClampRadius limits a requested search radius to the tier's cap.
func (f Features) ClampRadius(km float64) float64 {
	if f.MaxRadiusKm > 0 && km > f.MaxRadiusKm {
		return f.MaxRadiusKm
	}
	return km
}

// ClampResults limits a requested page size to the tier's cap.
func (f Features) ClampResults(n int) int {
	if f.MaxResults > 0 && n > f.MaxResults {
		return f.MaxResults
	}
	return n
}

// TierPolicy is one tier's full policy record.
type TierPolicy struct {
	APIs     map[usage.API]Policy `json:"apis"`
	Features Features             `json:"features"`
}

// Table maps every tier to its policy record.
type Table map[Tier]TierPolicy

// Lookup returns the policy for a tier+API pair.
// A missing entry means the API is not policed for that tier (policies are
// opt-in per API; enforcement fails open).
func (t Table) Lookup(tier Tier, api usage.API) (Policy, bool) {
	tp, ok := t[tier]
	if !ok {
		return Policy{}, false
	}
	p, ok := tp.APIs[api]
	return p, ok
}

// Resolve picks the effective tier for a request.
// An explicit override naming a known tier wins; otherwise the stored
// subscription tier if known; otherwise Free.
// This is a PURE function.
func Resolve(override, stored string) Tier {
	if Known(override) {
		return Tier(override)
	}
	if Known(stored) {
		return Tier(stored)
	}
	return Free
}

// Defaults returns the built-in policy table, matching the platform's
// shipped tiers. Config may override any entry.
func Defaults() Table {
	return Table{
		Free: {
			APIs: map[usage.API]Policy{
				usage.APIPlaces: {Daily: 50, PerMinute: 5},
				usage.APIMaps:   {Daily: 50, PerMinute: 5},
				usage.APIOpenAI: {Daily: 10, PerMinute: 2},
			},
			Features: Features{MaxRadiusKm: 5, MaxResults: 10},
		},
		Basic: {
			APIs: map[usage.API]Policy{
				usage.APIPlaces: {Daily: 500, PerMinute: 20},
				usage.APIMaps:   {Daily: 500, PerMinute: 20},
				usage.APIOpenAI: {Daily: 50, PerMinute: 5},
			},
			Features: Features{MaxRadiusKm: 15, MaxResults: 25},
		},
		Premium: {
			APIs: map[usage.API]Policy{
				usage.APIPlaces: {Daily: 2000, PerMinute: 60},
				usage.APIMaps:   {Daily: 2000, PerMinute: 60},
				usage.APIOpenAI: {Daily: 200, PerMinute: 10},
			},
			Features: Features{MaxRadiusKm: 50, MaxResults: 50, AIPlanner: true},
		},
		Pro: {
			APIs: map[usage.API]Policy{
				usage.APIPlaces: {Daily: 10000, PerMinute: 120},
				usage.APIMaps:   {Daily: 10000, PerMinute: 120},
				usage.APIOpenAI: {Daily: 1000, PerMinute: 30},
			},
			Features: Features{MaxRadiusKm: 100, MaxResults: 100, AIPlanner: true},
		},
	}
}
