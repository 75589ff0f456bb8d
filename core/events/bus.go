// Package events provides a simple event bus for publish/subscribe patterns.
// The metering service publishes domain events; the realtime broadcaster and
// cost snapshot refresh are independent subscribers.
package events

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Event names published by the metering core.
const (
	UsageRecorded = "usage.recorded"
	CostUpdated   = "cost.updated"
)

// Event represents a published event.
type Event struct {
	// Name is the event name (e.g., "usage.recorded", "cost.updated").
	Name string

	// Data contains the event payload.
	Data map[string]any
}

// Handler is a function that processes an event.
type Handler func(ctx context.Context, event Event) error

// Bus is a simple publish/subscribe event bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   zerolog.Logger
}

// NewBus creates a new event bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event.
// Supports wildcard subscriptions:
//   - "usage.recorded" - exact match
//   - "usage.*" - all usage events
//   - "*" - all events
func (b *Bus) Subscribe(event string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], handler)
}

// Publish emits an event to all matching handlers.
// Handlers are called synchronously in registration order. Handler errors
// are logged and never propagate: delivery is best-effort by contract.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	b.logger.Debug().
		Str("event", event.Name).
		Msg("event emitted")

	var matched []Handler

	// Exact match
	if handlers, ok := b.handlers[event.Name]; ok {
		matched = append(matched, handlers...)
	}

	// Prefix wildcard (e.g., "usage.*")
	if i := strings.IndexByte(event.Name, '.'); i > 0 {
		wildcard := event.Name[:i] + ".*"
		if handlers, ok := b.handlers[wildcard]; ok {
			matched = append(matched, handlers...)
		}
	}

	// Global wildcard
	if handlers, ok := b.handlers["*"]; ok {
		matched = append(matched, handlers...)
	}

	for _, handler := range matched {
		if err := handler(ctx, event); err != nil {
			b.logger.Error().
				Err(err).
				Str("event", event.Name).
				Msg("event handler error")
		}
	}
}

// HasSubscribers checks if any handlers are registered for an event.
func (b *Bus) HasSubscribers(event string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.handlers[event]) > 0 {
		return true
	}
	if i := strings.IndexByte(event, '.'); i > 0 {
		if len(b.handlers[event[:i]+".*"]) > 0 {
			return true
		}
	}
	return len(b.handlers["*"]) > 0
}
