package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deepalweb/travelbuddy-sub001/adapters/clock"
	"github.com/deepalweb/travelbuddy-sub001/adapters/idgen"
	"github.com/deepalweb/travelbuddy-sub001/adapters/memory"
	"github.com/deepalweb/travelbuddy-sub001/app"
	"github.com/deepalweb/travelbuddy-sub001/core/events"
	"github.com/deepalweb/travelbuddy-sub001/domain/usage"
	"github.com/rs/zerolog"
)

var baseTime = time.Date(2026, 1, 15, 12, 0, 30, 0, time.UTC)

func newMeter(store *memory.UsageEventStore) (*app.MeterService, *events.Bus) {
	bus := events.NewBus(zerolog.Nop())
	svc := app.NewMeterService(store, bus, clock.NewFake(baseTime), idgen.NewSequential("evt_"), nil, zerolog.Nop())
	return svc, bus
}

func TestMeter_Record(t *testing.T) {
	store := memory.NewUsageEventStore()
	svc, bus := newMeter(store)
	defer svc.Close()

	var published events.Event
	bus.Subscribe(events.UsageRecorded, func(ctx context.Context, e events.Event) error {
		published = e
		return nil
	})

	e, ok := svc.Record(context.Background(), app.RecordInput{
		API:        "maps",
		Action:     "geocode",
		Status:     "success",
		DurationMs: 120,
		Meta:       map[string]string{"region": "LK"},
	})
	if !ok {
		t.Fatal("Record() ok = false, want true")
	}
	if e.ID != "evt_1" || e.API != usage.APIMaps || e.Status != usage.StatusSuccess {
		t.Errorf("event = %+v", e)
	}
	if !e.Timestamp.Equal(baseTime) {
		t.Errorf("timestamp = %v, want %v", e.Timestamp, baseTime)
	}

	totals := svc.Totals()
	if got := totals[usage.APIMaps]; got.Count != 1 || got.Success != 1 || got.Error != 0 {
		t.Errorf("totals = %+v, want {1 1 0}", got)
	}

	if published.Name != events.UsageRecorded {
		t.Fatalf("published = %q, want %q", published.Name, events.UsageRecorded)
	}
	if _, ok := published.Data["event"]; !ok {
		t.Error("published payload missing event")
	}
	if _, ok := published.Data["totals"]; !ok {
		t.Error("published payload missing totals")
	}

	// Drain the background write, then check durability.
	svc.Close()
	stored, err := store.List(context.Background(), usage.Query{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(stored) != 1 || stored[0].ID != "evt_1" {
		t.Errorf("stored = %+v, want evt_1", stored)
	}
}

func TestMeter_UnknownAPIDropped(t *testing.T) {
	store := memory.NewUsageEventStore()
	svc, _ := newMeter(store)
	defer svc.Close()

	_, ok := svc.Record(context.Background(), app.RecordInput{API: "weather", Status: "success"})
	if ok {
		t.Fatal("unknown api must be dropped")
	}

	totals := svc.Totals()
	for api, got := range totals {
		if got.Count != 0 {
			t.Errorf("totals[%s] = %+v, want zero", api, got)
		}
	}

	svc.Close()
	if stored, _ := store.List(context.Background(), usage.Query{}); len(stored) != 0 {
		t.Errorf("stored %d events, want 0", len(stored))
	}
}

func TestMeter_UnknownStatusCountsAsError(t *testing.T) {
	svc, _ := newMeter(memory.NewUsageEventStore())
	defer svc.Close()

	e, ok := svc.Record(context.Background(), app.RecordInput{API: "openai", Status: "flaky"})
	if !ok {
		t.Fatal("Record() ok = false")
	}
	if e.Status != usage.StatusError {
		t.Errorf("status = %q, want error", e.Status)
	}
	if got := svc.Totals()[usage.APIOpenAI]; got.Error != 1 {
		t.Errorf("error count = %d, want 1", got.Error)
	}
}

func TestMeter_Recent(t *testing.T) {
	svc, _ := newMeter(memory.NewUsageEventStore())
	defer svc.Close()

	for i := 0; i < 5; i++ {
		svc.Record(context.Background(), app.RecordInput{API: "maps", Status: "success"})
	}

	recent := svc.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("len = %d, want 3", len(recent))
	}
	if recent[0].ID != "evt_3" || recent[2].ID != "evt_5" {
		t.Errorf("recent = %s..%s, want evt_3..evt_5", recent[0].ID, recent[2].ID)
	}
}

type failingUsageStore struct{}

func (failingUsageStore) Record(ctx context.Context, e usage.Event) error {
	return errors.New("disk full")
}

func (failingUsageStore) List(ctx context.Context, q usage.Query) ([]usage.Event, error) {
	return nil, errors.New("disk full")
}

func TestMeter_PersistFailureDoesNotFailCaller(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	svc := app.NewMeterService(failingUsageStore{}, bus, clock.NewFake(baseTime), idgen.NewSequential("evt_"), nil, zerolog.Nop())
	defer svc.Close()

	_, ok := svc.Record(context.Background(), app.RecordInput{API: "maps", Status: "success"})
	if !ok {
		t.Error("Record() must succeed even when the store fails")
	}
	if got := svc.Totals()[usage.APIMaps].Count; got != 1 {
		t.Errorf("totals count = %d, want 1", got)
	}
}
