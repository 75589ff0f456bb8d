// Package http provides the HTTP surface of the metering service.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/deepalweb/travelbuddy-sub001/app"
	"github.com/deepalweb/travelbuddy-sub001/domain/usage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// defaultRecentLimit caps GET /usage/recent when no limit is supplied.
const defaultRecentLimit = 50

// Handler serves the metering API.
type Handler struct {
	meter  *app.MeterService
	policy *app.PolicyService
	cost   *app.CostService
	hub    *Hub
	logger zerolog.Logger
}

// NewHandler creates the API handler.
func NewHandler(meter *app.MeterService, policy *app.PolicyService, cost *app.CostService, hub *Hub, logger zerolog.Logger) *Handler {
	return &Handler{
		meter:  meter,
		policy: policy,
		cost:   cost,
		hub:    hub,
		logger: logger.With().Str("component", "http").Logger(),
	}
}

// RouterConfig holds optional router wiring.
type RouterConfig struct {
	MetricsHandler http.Handler // /metrics exporter; nil disables the endpoint
	MetricsPath    string
	AdminTokenHash func() string // bcrypt hash for admin endpoints; nil or "" disables the gate
	AdminForCosts  func() bool   // gate GET /costs behind the admin token too
}

// NewRouter builds the service router.
func NewRouter(h *Handler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Get("/version", h.VersionInfo)

	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.MetricsHandler)
	}

	tokenHash := cfg.AdminTokenHash
	if tokenHash == nil {
		tokenHash = func() string { return "" }
	}
	admin := RequireAdmin(tokenHash)

	adminForCosts := cfg.AdminForCosts
	if adminForCosts == nil {
		adminForCosts = func() bool { return false }
	}
	costsGate := func(next http.Handler) http.Handler {
		gated := admin(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminForCosts() {
				gated.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/usage", h.RecordUsage)
		r.Get("/usage/recent", h.RecentUsage)
		r.Get("/usage/series", h.UsageSeries)
		r.Get("/usage/stream", h.hub.ServeHTTP)

		r.Get("/policy", h.PolicyInfo)
		r.Post("/admit/{api}", h.Admit)

		r.With(costsGate).Get("/costs", h.Costs)
		r.With(admin).Put("/costs/config", h.UpdateCostConfig)
		r.With(admin).Put("/subscribers/{userKey}", h.SetSubscriber)
	})

	return r
}

// MetricsHandler returns the default Prometheus exporter handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// VersionInfo handles GET /version.
func (h *Handler) VersionInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "meterd",
		"version": Version,
	})
}

// RecordUsage handles POST /api/v1/usage. Reports are accepted even
// when they name an unknown API; recorded=false tells the caller the
// report was dropped.
func (h *Handler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	var in app.RecordInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	e, recorded := h.meter.Record(r.Context(), in)
	resp := map[string]any{"recorded": recorded}
	if recorded {
		resp["event"] = e
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// RecentUsage handles GET /api/v1/usage/recent.
func (h *Handler) RecentUsage(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > usage.RingSize {
		limit = usage.RingSize
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": h.meter.Recent(limit),
		"totals": h.meter.Totals(),
	})
}

// UsageSeries handles GET /api/v1/usage/series.
// Query: since, until (RFC3339; until defaults to now, since to
// until-1h), granularity (minute|hour|day|auto), api (repeatable).
func (h *Handler) UsageSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	until := time.Now().UTC()
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "until must be RFC3339")
			return
		}
		until = t
	}

	since := until.Add(-time.Hour)
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "since must be RFC3339")
			return
		}
		since = t
	}
	if !since.Before(until) {
		writeError(w, http.StatusBadRequest, "bad_request", "since must be before until")
		return
	}

	g := usage.AutoGranularity(since, until)
	if v := q.Get("granularity"); v != "" && v != "auto" {
		if !usage.ValidGranularity(v) {
			writeError(w, http.StatusBadRequest, "bad_request", "granularity must be minute, hour, day or auto")
			return
		}
		g = usage.Granularity(v)
	}

	var apis []usage.API
	for _, v := range q["api"] {
		if !usage.ValidAPI(v) {
			writeError(w, http.StatusBadRequest, "bad_request", "unknown api "+strconv.Quote(v))
			return
		}
		apis = append(apis, usage.API(v))
	}

	var status usage.Status
	if v := q.Get("status"); v != "" {
		if !usage.ValidStatus(v) {
			writeError(w, http.StatusBadRequest, "bad_request", "status must be success or error")
			return
		}
		status = usage.Status(v)
	}

	events, err := h.meter.Series(r.Context(), usage.Query{Since: since, Until: until, APIs: apis, Status: status})
	if err != nil {
		h.logger.Error().Err(err).Msg("series query failed")
		writeError(w, http.StatusInternalServerError, "storage_unavailable", "event history unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"since":       since,
		"until":       until,
		"granularity": g,
		"buckets":     usage.Bucket(events, since, until, g),
	})
}

// PolicyInfo handles GET /api/v1/policy: the effective policy and
// today's consumption for the calling user.
func (h *Handler) PolicyInfo(w http.ResponseWriter, r *http.Request) {
	userKey := resolveUserKey(r)
	view := h.policy.Introspect(r.Context(), userKey, r.Header.Get("X-Tier"))
	writeJSON(w, http.StatusOK, view)
}

// Admit handles POST /api/v1/admit/{api}: one admission decision,
// consuming rate and quota budget when admitted.
func (h *Handler) Admit(w http.ResponseWriter, r *http.Request) {
	apiName := chi.URLParam(r, "api")
	if !usage.ValidAPI(apiName) {
		writeError(w, http.StatusNotFound, "unknown_api", "unknown api "+strconv.Quote(apiName))
		return
	}
	api := usage.API(apiName)

	Enforce(h.policy, api)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, _ := DecisionFromContext(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{
			"allowed":  true,
			"api":      api,
			"tier":     d.Tier,
			"enforced": d.Enforced,
		})
	})).ServeHTTP(w, r)
}

// Costs handles GET /api/v1/costs?window=N (trailing window minutes,
// default 60).
func (h *Handler) Costs(w http.ResponseWriter, r *http.Request) {
	window := 60
	if v := r.URL.Query().Get("window"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "window must be a positive integer of minutes")
			return
		}
		window = n
	}
	writeJSON(w, http.StatusOK, h.cost.Snapshot(r.Context(), window))
}

// UpdateCostConfig handles PUT /api/v1/costs/config.
func (h *Handler) UpdateCostConfig(w http.ResponseWriter, r *http.Request) {
	var patch app.ConfigPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	cfg, err := h.cost.Update(r.Context(), patch)
	if err != nil {
		if errors.Is(err, app.ErrInvalidPatch) {
			writeError(w, http.StatusUnprocessableEntity, "invalid_config", err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("cost config update failed")
		writeError(w, http.StatusInternalServerError, "storage_unavailable", "config could not be persisted")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// SetSubscriber handles PUT /api/v1/subscribers/{userKey}.
func (h *Handler) SetSubscriber(w http.ResponseWriter, r *http.Request) {
	userKey := chi.URLParam(r, "userKey")
	if userKey == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "user key required")
		return
	}

	var body struct {
		Tier string `json:"tier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	if err := h.policy.SetSubscriber(r.Context(), userKey, body.Tier); err != nil {
		if errors.Is(err, app.ErrUnknownTier) {
			writeError(w, http.StatusUnprocessableEntity, "invalid_tier", err.Error())
			return
		}
		h.logger.Error().Err(err).Str("user_key", userKey).Msg("subscriber write failed")
		writeError(w, http.StatusInternalServerError, "storage_unavailable", "subscriber could not be saved")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"userKey": userKey,
		"tier":    body.Tier,
	})
}

// extractIP extracts the client IP from the request.
func extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
