package usage_test

import (
	"testing"
	"time"

	"github.com/deepalweb/travelbuddy-sub001/domain/usage"
)

var baseTime = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func TestValidAPI(t *testing.T) {
	for _, api := range []string{"openai", "maps", "places"} {
		if !usage.ValidAPI(api) {
			t.Errorf("ValidAPI(%q) = false, want true", api)
		}
	}
	for _, api := range []string{"", "weather", "OPENAI", "maps "} {
		if usage.ValidAPI(api) {
			t.Errorf("ValidAPI(%q) = true, want false", api)
		}
	}
}

func TestNewEvent_ClampsNegativeDuration(t *testing.T) {
	e := usage.NewEvent("e1", usage.APIMaps, "geocode", usage.StatusSuccess, -50, nil, baseTime)

	if e.DurationMs != 0 {
		t.Errorf("durationMs = %d, want 0", e.DurationMs)
	}
}

func TestTotals_Add(t *testing.T) {
	var tot usage.Totals

	tot = tot.Add(usage.StatusSuccess)
	tot = tot.Add(usage.StatusSuccess)
	tot = tot.Add(usage.StatusError)

	if tot.Count != 3 {
		t.Errorf("count = %d, want 3", tot.Count)
	}
	if tot.Success != 2 {
		t.Errorf("success = %d, want 2", tot.Success)
	}
	if tot.Error != 1 {
		t.Errorf("error = %d, want 1", tot.Error)
	}
}

func TestTotalsByAPI_Clone_Independent(t *testing.T) {
	orig := usage.NewTotals()
	orig[usage.APIMaps] = usage.Totals{Count: 5}

	clone := orig.Clone()
	clone[usage.APIMaps] = usage.Totals{Count: 99}

	if orig[usage.APIMaps].Count != 5 {
		t.Errorf("original mutated: count = %d, want 5", orig[usage.APIMaps].Count)
	}
}

func TestQuery_Matches(t *testing.T) {
	e := usage.NewEvent("e1", usage.APIPlaces, "search", usage.StatusSuccess, 120, nil, baseTime)

	tests := []struct {
		name string
		q    usage.Query
		want bool
	}{
		{"empty query matches", usage.Query{}, true},
		{"since before timestamp", usage.Query{Since: baseTime.Add(-time.Hour)}, true},
		{"since equal to timestamp", usage.Query{Since: baseTime}, true},
		{"since after timestamp", usage.Query{Since: baseTime.Add(time.Second)}, false},
		{"until is exclusive", usage.Query{Until: baseTime}, false},
		{"until after timestamp", usage.Query{Until: baseTime.Add(time.Second)}, true},
		{"matching api", usage.Query{APIs: []usage.API{usage.APIPlaces}}, true},
		{"other api", usage.Query{APIs: []usage.API{usage.APIMaps}}, false},
		{"matching status", usage.Query{Status: usage.StatusSuccess}, true},
		{"other status", usage.Query{Status: usage.StatusError}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.Matches(e); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
