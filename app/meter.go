// Package app provides the application services that orchestrate domain
// logic, ports and adapters.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/deepalweb/travelbuddy-sub001/adapters/metrics"
	"github.com/deepalweb/travelbuddy-sub001/core/events"
	"github.com/deepalweb/travelbuddy-sub001/domain/usage"
	"github.com/deepalweb/travelbuddy-sub001/ports"
	"github.com/rs/zerolog"
)

// persistTimeout bounds the background write of a usage event.
const persistTimeout = 5 * time.Second

// RecordInput is a usage report from an upstream caller.
type RecordInput struct {
	API        string            `json:"api"`
	Action     string            `json:"action"`
	Status     string            `json:"status"`
	DurationMs int64             `json:"durationMs"`
	Meta       map[string]string `json:"meta,omitempty"`
}

// MeterService ingests usage events: it maintains the in-memory recent
// ring and lifetime totals, persists events best-effort, and publishes
// them on the event bus.
type MeterService struct {
	store     ports.UsageEventStore
	bus       *events.Bus
	clock     ports.Clock
	idgen     ports.IDGenerator
	metrics   *metrics.Collector
	logger    zerolog.Logger
	startedAt time.Time

	mu     sync.RWMutex
	ring   *usage.Ring
	totals usage.TotalsByAPI

	wg sync.WaitGroup
}

// NewMeterService creates the metering service.
func NewMeterService(
	store ports.UsageEventStore,
	bus *events.Bus,
	clock ports.Clock,
	idgen ports.IDGenerator,
	collector *metrics.Collector,
	logger zerolog.Logger,
) *MeterService {
	return &MeterService{
		store:     store,
		bus:       bus,
		clock:     clock,
		idgen:     idgen,
		metrics:   collector,
		logger:    logger.With().Str("component", "meter").Logger(),
		startedAt: clock.Now(),
		ring:      usage.NewRing(usage.RingSize),
		totals:    usage.NewTotals(),
	}
}

// Record ingests one usage report. Reports naming an unknown API are
// silently dropped (recorded=false); recording never fails the caller.
// Unknown statuses count as errors.
func (s *MeterService) Record(ctx context.Context, in RecordInput) (usage.Event, bool) {
	if !usage.ValidAPI(in.API) {
		s.logger.Debug().Str("api", in.API).Msg("dropping report for unknown api")
		return usage.Event{}, false
	}

	status := usage.Status(in.Status)
	if !usage.ValidStatus(in.Status) {
		status = usage.StatusError
	}

	e := usage.NewEvent(s.idgen.New(), usage.API(in.API), in.Action, status, in.DurationMs, in.Meta, s.clock.Now())

	s.mu.Lock()
	s.ring.Append(e)
	s.totals[e.API] = s.totals[e.API].Add(e.Status)
	totals := s.totals.Clone()
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.UsageEvents.WithLabelValues(string(e.API), string(e.Status)).Inc()
		s.metrics.UsageDuration.WithLabelValues(string(e.API)).Observe(float64(e.DurationMs) / 1000)
	}

	s.bus.Publish(ctx, events.Event{
		Name: events.UsageRecorded,
		Data: map[string]any{
			"event":  e,
			"totals": totals,
		},
	})

	// Durable write is best-effort and off the hot path.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		pctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.store.Record(pctx, e); err != nil {
			s.logger.Error().Err(err).
				Str("event_id", e.ID).
				Str("api", string(e.API)).
				Msg("failed to persist usage event")
		}
	}()

	return e, true
}

// Totals returns a copy of the lifetime per-API counters.
func (s *MeterService) Totals() usage.TotalsByAPI {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totals.Clone()
}

// Recent returns up to n most recent events, oldest first.
func (s *MeterService) Recent(n int) []usage.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ring.Last(n)
}

// RingSnapshot returns every retained recent event, oldest first.
// Used as the degraded data source when the durable store is unreadable.
func (s *MeterService) RingSnapshot() []usage.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ring.Snapshot()
}

// Series returns stored events matching the query, oldest first.
func (s *MeterService) Series(ctx context.Context, q usage.Query) ([]usage.Event, error) {
	return s.store.List(ctx, q)
}

// StartedAt returns when the service came up; uptime and cost
// projections are measured from this instant.
func (s *MeterService) StartedAt() time.Time {
	return s.startedAt
}

// Close waits for in-flight background writes to finish.
func (s *MeterService) Close() {
	s.wg.Wait()
}
