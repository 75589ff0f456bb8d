// Package cost derives cost and usage projections from recorded events.
// All functions are pure - a snapshot is a deterministic function of the
// supplied history and configuration.
package cost

import (
	"math"
	"time"

	"github.com/deepalweb/travelbuddy-sub001/domain/usage"
)

// Config holds cost accounting settings.
type Config struct {
	IncludeErrors bool                  `json:"includeErrors" yaml:"include_errors"`
	Rates         map[usage.API]float64 `json:"rates" yaml:"rates"` // USD per call
}

// DefaultConfig returns the shipped per-call rates.
func DefaultConfig() Config {
	return Config{
		IncludeErrors: false,
		Rates: map[usage.API]float64{
			usage.APIOpenAI: 0.002,
			usage.APIMaps:   0.005,
			usage.APIPlaces: 0.017,
		},
	}
}

// Clone returns an independent copy of the config.
func (c Config) Clone() Config {
	out := Config{IncludeErrors: c.IncludeErrors, Rates: make(map[usage.API]float64, len(c.Rates))}
	for k, v := range c.Rates {
		out.Rates[k] = v
	}
	return out
}

// Billable reports whether an event counts toward cost under the config.
// This is a PURE function.
func Billable(e usage.Event, cfg Config) bool {
	return cfg.IncludeErrors || e.IsSuccess()
}

// APITotal is the whole-history cost figure for one API.
type APITotal struct {
	Calls   int64   `json:"calls"`
	CostUSD float64 `json:"costUSD"`
}

// WindowStat is the trailing-window activity for one API.
type WindowStat struct {
	Calls     int64   `json:"calls"`
	PerMinute float64 `json:"perMinute"`
	CostUSD   float64 `json:"costUSD"`
}

// Projections extrapolates spend linearly from the trailing window.
type Projections struct {
	DailyUSD   float64 `json:"dailyUSD"`
	MonthlyUSD float64 `json:"monthlyUSD"`
}

// Snapshot is the full cost/usage projection served to the dashboard.
type Snapshot struct {
	Totals        map[usage.API]APITotal   `json:"totals"`
	Window        map[usage.API]WindowStat `json:"window"`
	WindowMinutes int                      `json:"windowMinutes"`
	Projections   Projections              `json:"projections"`
	Config        Config                   `json:"config"`
	UptimeSeconds int64                    `json:"uptimeSeconds"`
	GeneratedAt   time.Time                `json:"generatedAt"`
}

const (
	minutesPerDay = 1440
	daysPerMonth  = 30
)

// Round4 rounds a USD figure to 4 decimal places. All money figures are
// rounded at computation time to keep the API contract stable.
func Round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}

// Build computes a snapshot from the retained event history.
// This is a PURE function: same history, config and clock reading always
// produce the same snapshot.
//
// Projections are a linear extrapolation from the trailing window: the raw
// (un-rounded) calls-per-minute rate times 1440 minutes times the per-call
// rate; only the final figures are rounded.
func Build(events []usage.Event, cfg Config, now time.Time, windowMinutes int, startedAt time.Time) Snapshot {
	if windowMinutes <= 0 {
		windowMinutes = 60
	}
	windowStart := now.Add(-time.Duration(windowMinutes) * time.Minute)

	totals := make(map[usage.API]APITotal, len(usage.KnownAPIs))
	windows := make(map[usage.API]WindowStat, len(usage.KnownAPIs))

	for _, api := range usage.KnownAPIs {
		totals[api] = APITotal{}
		windows[api] = WindowStat{}
	}

	for _, e := range events {
		if !Billable(e, cfg) {
			continue
		}
		t := totals[e.API]
		t.Calls++
		totals[e.API] = t

		if !e.Timestamp.Before(windowStart) && !e.Timestamp.After(now) {
			w := windows[e.API]
			w.Calls++
			windows[e.API] = w
		}
	}

	var daily float64
	for api, t := range totals {
		rate := cfg.Rates[api]
		t.CostUSD = Round4(float64(t.Calls) * rate)
		totals[api] = t

		w := windows[api]
		perMin := float64(w.Calls) / float64(windowMinutes)
		w.PerMinute = Round4(perMin)
		w.CostUSD = Round4(float64(w.Calls) * rate)
		windows[api] = w

		daily += perMin * minutesPerDay * rate
	}

	daily = Round4(daily)
	return Snapshot{
		Totals:        totals,
		Window:        windows,
		WindowMinutes: windowMinutes,
		Projections: Projections{
			DailyUSD:   daily,
			MonthlyUSD: Round4(daily * daysPerMonth),
		},
		Config:        cfg.Clone(),
		UptimeSeconds: int64(now.Sub(startedAt).Seconds()),
		GeneratedAt:   now,
	}
}
