package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/deepalweb/travelbuddy-sub001/core/events"
	"github.com/deepalweb/travelbuddy-sub001/domain/cost"
	"github.com/deepalweb/travelbuddy-sub001/domain/usage"
	"github.com/deepalweb/travelbuddy-sub001/ports"
	"github.com/rs/zerolog"
)

// ErrInvalidPatch marks a cost-config update rejected by validation.
var ErrInvalidPatch = errors.New("invalid cost config patch")

// ConfigPatch is a partial cost-config update. Nil fields are left
// unchanged; supplied rates replace only the named APIs.
type ConfigPatch struct {
	IncludeErrors *bool              `json:"includeErrors,omitempty"`
	Rates         map[string]float64 `json:"rates,omitempty"`
}

// CostService owns the mutable cost configuration and builds cost
// snapshots from the recorded history.
type CostService struct {
	store  ports.CostConfigStore
	meter  *MeterService
	bus    *events.Bus
	clock  ports.Clock
	logger zerolog.Logger

	mu  sync.RWMutex
	cfg cost.Config
}

// NewCostService creates the cost service. The persisted config wins
// over defaults; a missing or unreadable store falls back to defaults so
// the dashboard keeps working.
func NewCostService(
	ctx context.Context,
	store ports.CostConfigStore,
	meter *MeterService,
	bus *events.Bus,
	clock ports.Clock,
	logger zerolog.Logger,
	defaults cost.Config,
) *CostService {
	s := &CostService{
		store:  store,
		meter:  meter,
		bus:    bus,
		clock:  clock,
		logger: logger.With().Str("component", "cost").Logger(),
		cfg:    defaults.Clone(),
	}

	stored, err := store.Load(ctx)
	switch {
	case err == nil:
		s.cfg = stored
	case errors.Is(err, ports.ErrNotFound):
		// First boot, defaults apply.
	default:
		s.logger.Warn().Err(err).Msg("cost config load failed, using defaults")
	}

	return s
}

// Config returns a copy of the active cost configuration.
func (s *CostService) Config() cost.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Update applies a partial config change. The write to the store is
// authoritative: if persistence fails the in-memory config is left
// untouched and the error is returned.
func (s *CostService) Update(ctx context.Context, patch ConfigPatch) (cost.Config, error) {
	for api, rate := range patch.Rates {
		if !usage.ValidAPI(api) {
			return cost.Config{}, fmt.Errorf("%w: unknown api %q", ErrInvalidPatch, api)
		}
		if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
			return cost.Config{}, fmt.Errorf("%w: rate for %q must be a finite number >= 0", ErrInvalidPatch, api)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg.Clone()
	if patch.IncludeErrors != nil {
		next.IncludeErrors = *patch.IncludeErrors
	}
	for api, rate := range patch.Rates {
		next.Rates[usage.API(api)] = rate
	}

	if err := s.store.Save(ctx, next); err != nil {
		return cost.Config{}, fmt.Errorf("save cost config: %w", err)
	}
	s.cfg = next

	s.bus.Publish(ctx, events.Event{
		Name: events.CostUpdated,
		Data: map[string]any{"config": next.Clone()},
	})

	s.logger.Info().Bool("include_errors", next.IncludeErrors).Msg("cost config updated")
	return next.Clone(), nil
}

// Snapshot builds the cost/usage projection over the full recorded
// history with a trailing window of windowMinutes. When the durable
// store is unreadable the in-memory recent ring serves as a degraded
// data source.
func (s *CostService) Snapshot(ctx context.Context, windowMinutes int) cost.Snapshot {
	history, err := s.meter.Series(ctx, usage.Query{})
	if err != nil {
		s.logger.Warn().Err(err).Msg("event history read failed, using recent ring")
		history = s.meter.RingSnapshot()
	}
	return cost.Build(history, s.Config(), s.clock.Now(), windowMinutes, s.meter.StartedAt())
}
