package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/deepalweb/travelbuddy-sub001/adapters/metrics"
	"github.com/deepalweb/travelbuddy-sub001/app"
	"github.com/deepalweb/travelbuddy-sub001/core/events"
	"github.com/rs/zerolog"
)

// subscriberBuffer is the per-connection send queue. A subscriber that
// falls this far behind is disconnected rather than allowed to block
// the broadcast path.
const subscriberBuffer = 16

// broadcastWindowMinutes is the trailing window for the cost snapshot
// attached to live frames.
const broadcastWindowMinutes = 60

// Hub fans metering events out to connected SSE clients. It subscribes
// to the event bus, so publishers never know about HTTP.
type Hub struct {
	meter   *app.MeterService
	cost    *app.CostService
	metrics *metrics.Collector
	logger  zerolog.Logger

	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

// NewHub creates the broadcast hub and wires it to the bus.
func NewHub(bus *events.Bus, meter *app.MeterService, cost *app.CostService, collector *metrics.Collector, logger zerolog.Logger) *Hub {
	h := &Hub{
		meter:   meter,
		cost:    cost,
		metrics: collector,
		logger:  logger.With().Str("component", "stream").Logger(),
		subs:    make(map[chan []byte]struct{}),
	}

	// Every recorded event pushes the new event, the running totals, the
	// last 50 events and a rebuilt cost snapshot; every config mutation
	// pushes the config and a rebuilt snapshot.
	bus.Subscribe(events.UsageRecorded, func(ctx context.Context, e events.Event) error {
		h.broadcast(map[string]any{
			"type":   "usage",
			"event":  e.Data["event"],
			"totals": e.Data["totals"],
			"events": h.meter.Recent(defaultRecentLimit),
			"cost":   h.cost.Snapshot(ctx, broadcastWindowMinutes),
		})
		return nil
	})
	bus.Subscribe(events.CostUpdated, func(ctx context.Context, e events.Event) error {
		h.broadcast(map[string]any{
			"type":   "cost",
			"config": e.Data["config"],
			"cost":   h.cost.Snapshot(ctx, broadcastWindowMinutes),
		})
		return nil
	})

	return h
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) broadcast(payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error().Err(err).Msg("broadcast payload marshal failed")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.BroadcastsTotal.Inc()
	}

	for ch := range h.subs {
		select {
		case ch <- data:
		default:
			// Slow consumer: drop the connection, not the broadcast.
			delete(h.subs, ch)
			close(ch)
			if h.metrics != nil {
				h.metrics.StreamSubscribers.Dec()
			}
			h.logger.Warn().Msg("dropping slow stream subscriber")
		}
	}
}

func (h *Hub) subscribe() chan []byte {
	ch := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.StreamSubscribers.Inc()
	}
	return ch
}

func (h *Hub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	_, live := h.subs[ch]
	if live {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
	if live && h.metrics != nil {
		h.metrics.StreamSubscribers.Dec()
	}
}

// ServeHTTP streams metering activity as server-sent events. Each
// client first receives an init frame with the current totals and
// recent events, then live frames as they happen.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	init, err := json.Marshal(map[string]any{
		"type":   "init",
		"totals": h.meter.Totals(),
		"events": h.meter.Recent(50),
		"cost":   h.cost.Config(),
	})
	if err == nil {
		writeSSE(w, init)
		flusher.Flush()
	}

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	h.logger.Debug().Str("remote", r.RemoteAddr).Msg("stream subscriber connected")

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-ch:
			if !ok {
				return
			}
			writeSSE(w, data)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, data []byte) {
	w.Write([]byte("data: "))
	w.Write(data)
	w.Write([]byte("\n\n"))
}
