// Package metrics provides Prometheus metrics collection for the metering
// service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for the metering service.
type Collector struct {
	// Admission metrics
	AdmissionsTotal *prometheus.CounterVec
	RateLimitHits   *prometheus.CounterVec
	QuotaHits       *prometheus.CounterVec

	// Usage metrics
	UsageEvents   *prometheus.CounterVec
	UsageDuration *prometheus.HistogramVec

	// Broadcast metrics
	StreamSubscribers prometheus.Gauge
	BroadcastsTotal   prometheus.Counter

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
}

// New creates a new metrics collector registered on the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		AdmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "travelmeter",
				Name:      "admissions_total",
				Help:      "Total admission decisions by api, tier and outcome",
			},
			[]string{"api", "tier", "outcome"},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "travelmeter",
				Name:      "rate_limit_hits_total",
				Help:      "Total per-minute rate limit denials",
			},
			[]string{"api", "tier"},
		),
		QuotaHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "travelmeter",
				Name:      "quota_hits_total",
				Help:      "Total daily quota denials",
			},
			[]string{"api", "tier"},
		),
		UsageEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "travelmeter",
				Name:      "usage_events_total",
				Help:      "Total recorded usage events by api and status",
			},
			[]string{"api", "status"},
		),
		UsageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "travelmeter",
				Name:      "usage_duration_seconds",
				Help:      "Reported upstream call duration in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"api"},
		),
		StreamSubscribers: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "travelmeter",
				Name:      "stream_subscribers",
				Help:      "Number of connected realtime subscribers",
			},
		),
		BroadcastsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "travelmeter",
				Name:      "broadcasts_total",
				Help:      "Total realtime broadcast fan-outs",
			},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "travelmeter",
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "travelmeter",
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
	}
}
