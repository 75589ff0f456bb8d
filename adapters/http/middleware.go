package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/deepalweb/travelbuddy-sub001/app"
	"github.com/deepalweb/travelbuddy-sub001/domain/usage"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const (
	ctxKeyDecision contextKey = "admission_decision"
)

// DecisionFromContext returns the admission decision attached by the
// Enforce middleware, if any.
func DecisionFromContext(ctx context.Context) (app.Decision, bool) {
	d, ok := ctx.Value(ctxKeyDecision).(app.Decision)
	return d, ok
}

// NewLoggingMiddleware creates request logging middleware.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("remote", extractIP(r)).
				Msg("request")
		})
	}
}

// RequireAdmin gates mutating endpoints behind a bearer token checked
// against a bcrypt hash. An empty hash disables the gate (development).
func RequireAdmin(tokenHash func() string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hash := tokenHash()
			if hash == "" {
				next.ServeHTTP(w, r)
				return
			}

			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "valid admin token required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Enforce wraps a handler with the admission check for one API. The
// decision travels in the request context; limit headers are set on
// every response, allowed or not.
func Enforce(policy *app.PolicyService, api usage.API) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userKey := resolveUserKey(r)
			override := r.Header.Get("X-Tier")

			d, err := policy.Check(r.Context(), userKey, api, override)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "quota_unavailable", "admission counter unavailable")
				return
			}

			setDecisionHeaders(w, d)

			if !d.Allowed {
				writeDenial(w, d, api)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyDecision, d)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// setDecisionHeaders exposes the effective tier and both limit states
// to clients, mirroring conventional X-RateLimit-* headers.
func setDecisionHeaders(w http.ResponseWriter, d app.Decision) {
	h := w.Header()
	h.Set("X-Tier", string(d.Tier))

	if !d.Enforced {
		return
	}

	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Rate.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Rate.Remaining))
	if !d.Rate.ResetAt.IsZero() {
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.Rate.ResetAt.Unix(), 10))
	}

	h.Set("X-Quota-Limit", strconv.FormatInt(d.Quota.Limit, 10))
	h.Set("X-Quota-Used", strconv.FormatInt(d.Quota.Used, 10))
	h.Set("X-Quota-Remaining", strconv.FormatInt(d.Quota.Remaining, 10))
}

func writeDenial(w http.ResponseWriter, d app.Decision, api usage.API) {
	when := "daily"
	if d.Reason == "rate_limited" {
		when = "per_minute"
	}
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"error": d.Reason,
		"tier":  d.Tier,
		"api":   api,
		"when":  when,
		"limits": map[string]any{
			"perMinute": d.Policy.PerMinute,
			"daily":     d.Policy.Daily,
		},
	})
}

// resolveUserKey identifies the caller: an explicit X-User-ID header
// wins, otherwise the client IP groups anonymous traffic.
func resolveUserKey(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
		return id
	}
	return "ip:" + extractIP(r)
}
