package metrics_test

import (
	"testing"

	"github.com/deepalweb/travelbuddy-sub001/adapters/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func TestNewWithRegistry(t *testing.T) {
	// Use a new registry to avoid conflicts with other tests
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	if m == nil {
		t.Fatal("NewWithRegistry returned nil")
	}

	if m.AdmissionsTotal == nil {
		t.Error("AdmissionsTotal is nil")
	}
	if m.RateLimitHits == nil {
		t.Error("RateLimitHits is nil")
	}
	if m.QuotaHits == nil {
		t.Error("QuotaHits is nil")
	}
	if m.UsageEvents == nil {
		t.Error("UsageEvents is nil")
	}
	if m.UsageDuration == nil {
		t.Error("UsageDuration is nil")
	}
	if m.StreamSubscribers == nil {
		t.Error("StreamSubscribers is nil")
	}
	if m.BroadcastsTotal == nil {
		t.Error("BroadcastsTotal is nil")
	}
	if m.ConfigReloads == nil {
		t.Error("ConfigReloads is nil")
	}
	if m.ConfigReloadErrors == nil {
		t.Error("ConfigReloadErrors is nil")
	}
}

func TestAdmissionsTotal(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.AdmissionsTotal.WithLabelValues("maps", "free", "allowed").Inc()
	m.AdmissionsTotal.WithLabelValues("openai", "premium", "quota_exceeded").Add(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "travelmeter_admissions_total" {
			found = true
			if len(f.GetMetric()) != 2 {
				t.Errorf("expected 2 metric series, got %d", len(f.GetMetric()))
			}
		}
	}
	if !found {
		t.Error("travelmeter_admissions_total metric not found")
	}
}

func TestUsageDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.UsageDuration.WithLabelValues("maps").Observe(0.05)
	m.UsageDuration.WithLabelValues("maps").Observe(0.12)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}

	for _, f := range families {
		if f.GetName() == "travelmeter_usage_duration_seconds" {
			metric := f.GetMetric()[0]
			if got := metric.GetHistogram().GetSampleCount(); got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
			return
		}
	}
	t.Error("travelmeter_usage_duration_seconds metric not found")
}

func TestStreamSubscribersGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.StreamSubscribers.Inc()
	m.StreamSubscribers.Inc()
	m.StreamSubscribers.Dec()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}

	for _, f := range families {
		if f.GetName() == "travelmeter_stream_subscribers" {
			if got := f.GetMetric()[0].GetGauge().GetValue(); got != 1 {
				t.Errorf("gauge = %v, want 1", got)
			}
			return
		}
	}
	t.Error("travelmeter_stream_subscribers metric not found")
}
