package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/deepalweb/travelbuddy-sub001/adapters/metrics"
	"github.com/deepalweb/travelbuddy-sub001/domain/quota"
	"github.com/deepalweb/travelbuddy-sub001/domain/ratelimit"
	"github.com/deepalweb/travelbuddy-sub001/domain/tier"
	"github.com/deepalweb/travelbuddy-sub001/domain/usage"
	"github.com/deepalweb/travelbuddy-sub001/ports"
	"github.com/rs/zerolog"
)

// ErrUnknownTier marks a subscriber write naming a tier that does not
// exist.
var ErrUnknownTier = errors.New("unknown tier")

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed bool
	Reason  string // denial reason, empty when allowed

	// Enforced is false when the global flag is off or the tier does not
	// police this API; such requests pass without touching any counter.
	Enforced bool

	Tier     tier.Tier
	Policy   tier.Policy
	Features tier.Features

	Rate  ratelimit.CheckResult
	Quota quota.CheckResult
}

// PolicyView is the effective-policy introspection for one user.
type PolicyView struct {
	Enforce   bool                      `json:"enforce"`
	Date      string                    `json:"date"`
	Tier      tier.Tier                 `json:"tier"`
	Limits    map[usage.API]tier.Policy `json:"limits"`
	UsedDaily map[usage.API]int64       `json:"usedDaily"`
	Features  tier.Features             `json:"features"`
}

// PolicyService makes admission decisions: per-minute rate limit first,
// then the daily quota via optimistic increment with compensating
// decrement. The quota increment is authoritative and fails closed;
// everything else fails open.
type PolicyService struct {
	rates   ports.RateLimitStore
	quotas  ports.QuotaStore
	subs    ports.SubscriberStore
	clock   ports.Clock
	metrics *metrics.Collector
	logger  zerolog.Logger

	// Live config accessors; swapped atomically on reload.
	table   func() tier.Table
	enforce func() bool
}

// NewPolicyService creates the enforcement service. table and enforce
// are read per-request so config reloads take effect immediately.
func NewPolicyService(
	rates ports.RateLimitStore,
	quotas ports.QuotaStore,
	subs ports.SubscriberStore,
	clock ports.Clock,
	collector *metrics.Collector,
	logger zerolog.Logger,
	table func() tier.Table,
	enforce func() bool,
) *PolicyService {
	return &PolicyService{
		rates:   rates,
		quotas:  quotas,
		subs:    subs,
		clock:   clock,
		metrics: collector,
		logger:  logger.With().Str("component", "policy").Logger(),
		table:   table,
		enforce: enforce,
	}
}

// ResolveTier determines the effective tier for a user. An explicit
// override wins; otherwise the stored subscription; otherwise free.
// Store lookup failures degrade to free rather than blocking traffic.
func (s *PolicyService) ResolveTier(ctx context.Context, userKey, override string) tier.Tier {
	stored := ""
	if !tier.Known(override) {
		t, err := s.subs.GetTier(ctx, userKey)
		if err != nil && !errors.Is(err, ports.ErrNotFound) {
			s.logger.Warn().Err(err).Str("user_key", userKey).Msg("tier lookup failed, defaulting to free")
		} else {
			stored = t
		}
	}
	return tier.Resolve(override, stored)
}

// Check admits or denies one request for userKey against api.
// A non-nil error means the authoritative quota counter could not be
// updated; callers must treat that as an internal failure, not a denial.
func (s *PolicyService) Check(ctx context.Context, userKey string, api usage.API, override string) (Decision, error) {
	now := s.clock.Now()
	effective := s.ResolveTier(ctx, userKey, override)

	d := Decision{Allowed: true, Tier: effective}

	tp, ok := s.table()[effective]
	if ok {
		d.Features = tp.Features
	}

	if !s.enforce() {
		return d, nil
	}

	policy, policed := s.table().Lookup(effective, api)
	if !policed {
		// No policy entry for this tier+api pair: not policed, fail open.
		return d, nil
	}
	d.Enforced = true
	d.Policy = policy

	// Per-minute window first; cheaper and keeps burst traffic away from
	// the quota counter.
	bucketKey := userKey + ":" + string(api)
	state, err := s.rates.Get(ctx, bucketKey)
	if err != nil {
		s.logger.Warn().Err(err).Str("bucket", bucketKey).Msg("rate state read failed, skipping window check")
	} else {
		result, newState := ratelimit.Check(state, policy.PerMinute, now)
		d.Rate = result
		if err := s.rates.Set(ctx, bucketKey, newState); err != nil {
			s.logger.Warn().Err(err).Str("bucket", bucketKey).Msg("rate state write failed")
		}
		if !result.Allowed {
			d.Allowed = false
			d.Reason = result.Reason
			// Clients self-throttle off both limiters, so the denial still
			// reports the quota state. Best-effort read, never a counter write.
			if used, qerr := s.quotas.GetDailyCount(ctx, userKey, api, quota.DayKey(now)); qerr != nil {
				s.logger.Warn().Err(qerr).Str("user_key", userKey).Msg("daily count read failed")
			} else {
				remaining := policy.Daily - used
				if remaining < 0 {
					remaining = 0
				}
				d.Quota = quota.CheckResult{
					Allowed:   used < policy.Daily,
					Limit:     policy.Daily,
					Used:      used,
					Remaining: remaining,
				}
			}
			s.observe(api, effective, result.Reason)
			if s.metrics != nil {
				s.metrics.RateLimitHits.WithLabelValues(string(api), string(effective)).Inc()
			}
			return d, nil
		}
	}

	// Daily quota: optimistic increment, compare, compensating decrement.
	day := quota.DayKey(now)
	newCount, err := s.quotas.Increment(ctx, userKey, api, day, string(effective))
	if err != nil {
		// The counter is authoritative; if we cannot update it we cannot
		// admit the request.
		s.observe(api, effective, "error")
		return Decision{}, fmt.Errorf("quota increment: %w", err)
	}

	qr := quota.Check(newCount, policy.Daily)
	d.Quota = qr
	if !qr.Allowed {
		if err := s.quotas.Decrement(ctx, userKey, api, day); err != nil {
			s.logger.Error().Err(err).
				Str("user_key", userKey).
				Str("api", string(api)).
				Str("day", day).
				Msg("compensating decrement failed, counter over-reports by one")
		}
		d.Allowed = false
		d.Reason = qr.Reason
		s.observe(api, effective, qr.Reason)
		if s.metrics != nil {
			s.metrics.QuotaHits.WithLabelValues(string(api), string(effective)).Inc()
		}
		return d, nil
	}

	s.observe(api, effective, "allowed")
	return d, nil
}

// Introspect reports the effective policy and today's consumption for a
// user. Counter read failures degrade to 0.
func (s *PolicyService) Introspect(ctx context.Context, userKey, override string) PolicyView {
	now := s.clock.Now()
	effective := s.ResolveTier(ctx, userKey, override)
	day := quota.DayKey(now)

	view := PolicyView{
		Enforce:   s.enforce(),
		Date:      day,
		Tier:      effective,
		Limits:    make(map[usage.API]tier.Policy, len(usage.KnownAPIs)),
		UsedDaily: make(map[usage.API]int64, len(usage.KnownAPIs)),
	}

	tp, ok := s.table()[effective]
	if !ok {
		return view
	}
	view.Features = tp.Features

	for api, policy := range tp.APIs {
		view.Limits[api] = policy
		used, err := s.quotas.GetDailyCount(ctx, userKey, api, day)
		if err != nil {
			s.logger.Warn().Err(err).Str("api", string(api)).Msg("daily count read failed")
			used = 0
		}
		view.UsedDaily[api] = used
	}
	return view
}

// SetSubscriber stores a user's subscription tier.
func (s *PolicyService) SetSubscriber(ctx context.Context, userKey, tierName string) error {
	if !tier.Known(tierName) {
		return fmt.Errorf("%w %q", ErrUnknownTier, tierName)
	}
	return s.subs.SetTier(ctx, userKey, tierName)
}

func (s *PolicyService) observe(api usage.API, t tier.Tier, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.AdmissionsTotal.WithLabelValues(string(api), string(t), outcome).Inc()
}
