package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deepalweb/travelbuddy-sub001/adapters/sqlite"
	"github.com/deepalweb/travelbuddy-sub001/domain/cost"
	"github.com/deepalweb/travelbuddy-sub001/domain/usage"
	"github.com/deepalweb/travelbuddy-sub001/ports"
)

var baseTime = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func TestQuotaStore_IncrementCreatesRow(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewQuotaStore(db)
	ctx := context.Background()

	count, err := store.Increment(ctx, "u1", usage.APIMaps, "2026-01-15", "free")
	if err != nil {
		t.Fatalf("Increment() error = %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	count, _ = store.Increment(ctx, "u1", usage.APIMaps, "2026-01-15", "free")
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	got, err := store.GetDailyCount(ctx, "u1", usage.APIMaps, "2026-01-15")
	if err != nil {
		t.Fatalf("GetDailyCount() error = %v", err)
	}
	if got != 2 {
		t.Errorf("GetDailyCount() = %d, want 2", got)
	}
}

func TestQuotaStore_GetDailyCountMissing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewQuotaStore(db)

	got, err := store.GetDailyCount(context.Background(), "nobody", usage.APIMaps, "2026-01-15")
	if err != nil {
		t.Fatalf("GetDailyCount() error = %v", err)
	}
	if got != 0 {
		t.Errorf("GetDailyCount() = %d, want 0", got)
	}
}

func TestQuotaStore_DecrementFloorsAtZero(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewQuotaStore(db)
	ctx := context.Background()

	store.Increment(ctx, "u1", usage.APIMaps, "2026-01-15", "free")
	store.Decrement(ctx, "u1", usage.APIMaps, "2026-01-15")
	store.Decrement(ctx, "u1", usage.APIMaps, "2026-01-15")

	got, _ := store.GetDailyCount(ctx, "u1", usage.APIMaps, "2026-01-15")
	if got != 0 {
		t.Errorf("count = %d, want 0", got)
	}
}

func TestQuotaStore_CleanupOldDays(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewQuotaStore(db)
	ctx := context.Background()

	store.Increment(ctx, "u1", usage.APIMaps, "2026-01-10", "free")
	store.Increment(ctx, "u1", usage.APIMaps, "2026-01-15", "free")

	removed, err := store.CleanupOldDays(ctx, "2026-01-12")
	if err != nil {
		t.Fatalf("CleanupOldDays() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if got, _ := store.GetDailyCount(ctx, "u1", usage.APIMaps, "2026-01-15"); got != 1 {
		t.Errorf("surviving count = %d, want 1", got)
	}
}

func TestUsageEventStore_RecordAndList(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewUsageEventStore(db)
	ctx := context.Background()

	e1 := usage.NewEvent("e1", usage.APIMaps, "geocode", usage.StatusSuccess, 120,
		map[string]string{"region": "LK"}, baseTime)
	e2 := usage.NewEvent("e2", usage.APIOpenAI, "plan", usage.StatusError, 900, nil, baseTime.Add(time.Minute))

	if err := store.Record(ctx, e1); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := store.Record(ctx, e2); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := store.List(ctx, usage.Query{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "e1" || got[1].ID != "e2" {
		t.Errorf("order = %s, %s, want e1, e2", got[0].ID, got[1].ID)
	}
	if got[0].Meta["region"] != "LK" {
		t.Errorf("meta = %v, want region=LK", got[0].Meta)
	}
	if got[1].Meta != nil {
		t.Errorf("meta = %v, want nil", got[1].Meta)
	}
	if got[0].DurationMs != 120 {
		t.Errorf("durationMs = %d, want 120", got[0].DurationMs)
	}
}

func TestUsageEventStore_ListFilters(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewUsageEventStore(db)
	ctx := context.Background()

	store.Record(ctx, usage.NewEvent("e1", usage.APIMaps, "a", usage.StatusSuccess, 1, nil, baseTime))
	store.Record(ctx, usage.NewEvent("e2", usage.APIPlaces, "b", usage.StatusError, 1, nil, baseTime.Add(time.Minute)))
	store.Record(ctx, usage.NewEvent("e3", usage.APIMaps, "c", usage.StatusSuccess, 1, nil, baseTime.Add(2*time.Minute)))

	byAPI, _ := store.List(ctx, usage.Query{APIs: []usage.API{usage.APIMaps}})
	if len(byAPI) != 2 {
		t.Errorf("api filter len = %d, want 2", len(byAPI))
	}

	byStatus, _ := store.List(ctx, usage.Query{Status: usage.StatusError})
	if len(byStatus) != 1 || byStatus[0].ID != "e2" {
		t.Errorf("status filter = %+v", byStatus)
	}

	// Until is exclusive.
	byRange, _ := store.List(ctx, usage.Query{Since: baseTime.Add(time.Minute), Until: baseTime.Add(2 * time.Minute)})
	if len(byRange) != 1 || byRange[0].ID != "e2" {
		t.Errorf("range filter = %+v", byRange)
	}

	limited, _ := store.List(ctx, usage.Query{Limit: 2})
	if len(limited) != 2 {
		t.Errorf("limit len = %d, want 2", len(limited))
	}
}

func TestCostConfigStore_RoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewCostConfigStore(db)
	ctx := context.Background()

	if _, err := store.Load(ctx); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("Load() before save error = %v, want ErrNotFound", err)
	}

	want := cost.Config{
		IncludeErrors: true,
		Rates: map[usage.API]float64{
			usage.APIOpenAI: 0.003,
			usage.APIMaps:   0.005,
		},
	}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !got.IncludeErrors {
		t.Error("includeErrors = false, want true")
	}
	if got.Rates[usage.APIOpenAI] != 0.003 || got.Rates[usage.APIMaps] != 0.005 {
		t.Errorf("rates = %v", got.Rates)
	}

	// Second save replaces the single row.
	want.IncludeErrors = false
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}
	got, _ = store.Load(ctx)
	if got.IncludeErrors {
		t.Error("includeErrors = true after replace, want false")
	}
}

func TestSubscriberStore_Upsert(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewSubscriberStore(db)
	ctx := context.Background()

	if _, err := store.GetTier(ctx, "u1"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("GetTier() error = %v, want ErrNotFound", err)
	}

	store.SetTier(ctx, "u1", "basic")
	if got, _ := store.GetTier(ctx, "u1"); got != "basic" {
		t.Errorf("tier = %q, want basic", got)
	}

	store.SetTier(ctx, "u1", "pro")
	if got, _ := store.GetTier(ctx, "u1"); got != "pro" {
		t.Errorf("tier after upsert = %q, want pro", got)
	}
}
