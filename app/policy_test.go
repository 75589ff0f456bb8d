package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deepalweb/travelbuddy-sub001/adapters/clock"
	"github.com/deepalweb/travelbuddy-sub001/adapters/memory"
	"github.com/deepalweb/travelbuddy-sub001/app"
	"github.com/deepalweb/travelbuddy-sub001/domain/tier"
	"github.com/deepalweb/travelbuddy-sub001/domain/usage"
	"github.com/deepalweb/travelbuddy-sub001/ports"
	"github.com/rs/zerolog"
)

type policyFixture struct {
	svc    *app.PolicyService
	rates  *memory.RateLimitStore
	quotas ports.QuotaStore
	subs   *memory.SubscriberStore
	clock  *clock.Fake
}

func newPolicy(t *testing.T, quotas ports.QuotaStore, enforce bool) *policyFixture {
	t.Helper()

	f := &policyFixture{
		rates:  memory.NewRateLimitStore(memory.RateLimitStoreConfig{}),
		quotas: quotas,
		subs:   memory.NewSubscriberStore(),
		clock:  clock.NewFake(baseTime),
	}
	t.Cleanup(func() { f.rates.Close() })

	f.svc = app.NewPolicyService(
		f.rates, f.quotas, f.subs, f.clock, nil, zerolog.Nop(),
		tier.Defaults, func() bool { return enforce },
	)
	return f
}

func TestPolicy_Allowed(t *testing.T) {
	f := newPolicy(t, memory.NewQuotaStore(), true)

	d, err := f.svc.Check(context.Background(), "u1", usage.APIOpenAI, "")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !d.Allowed || !d.Enforced {
		t.Errorf("decision = %+v, want allowed and enforced", d)
	}
	if d.Tier != tier.Free {
		t.Errorf("tier = %q, want free", d.Tier)
	}
	// Free/openai is 2 per minute, 10 per day.
	if d.Rate.Remaining != 1 {
		t.Errorf("rate remaining = %d, want 1", d.Rate.Remaining)
	}
	if d.Quota.Used != 1 || d.Quota.Remaining != 9 {
		t.Errorf("quota = %+v, want used 1 remaining 9", d.Quota)
	}
}

func TestPolicy_RateLimited(t *testing.T) {
	f := newPolicy(t, memory.NewQuotaStore(), true)
	ctx := context.Background()

	f.svc.Check(ctx, "u1", usage.APIOpenAI, "")
	f.svc.Check(ctx, "u1", usage.APIOpenAI, "")

	d, err := f.svc.Check(ctx, "u1", usage.APIOpenAI, "")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if d.Allowed {
		t.Fatal("third call in the minute must be denied")
	}
	if d.Reason != "rate_limited" {
		t.Errorf("reason = %q, want rate_limited", d.Reason)
	}

	// Rate denials never touch the daily counter.
	used, _ := f.quotas.GetDailyCount(ctx, "u1", usage.APIOpenAI, "2026-01-15")
	if used != 2 {
		t.Errorf("daily count = %d, want 2", used)
	}

	// Next minute admits again.
	f.clock.Advance(time.Minute)
	d, _ = f.svc.Check(ctx, "u1", usage.APIOpenAI, "")
	if !d.Allowed {
		t.Error("new minute must reset the window")
	}
}

func TestPolicy_RateDenialReportsQuotaState(t *testing.T) {
	f := newPolicy(t, memory.NewQuotaStore(), true)
	ctx := context.Background()

	f.svc.Check(ctx, "u1", usage.APIOpenAI, "")
	f.svc.Check(ctx, "u1", usage.APIOpenAI, "")

	d, err := f.svc.Check(ctx, "u1", usage.APIOpenAI, "")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if d.Allowed {
		t.Fatal("third call in the minute must be denied")
	}
	if d.Quota.Limit != 10 || d.Quota.Used != 2 || d.Quota.Remaining != 8 {
		t.Errorf("quota on rate denial = %+v, want {limit 10 used 2 remaining 8}", d.Quota)
	}
}

func TestPolicy_QuotaExceeded(t *testing.T) {
	f := newPolicy(t, memory.NewQuotaStore(), true)
	ctx := context.Background()

	// Burn the free daily openai quota of 10 at 2 per minute.
	for i := 0; i < 10; i++ {
		d, err := f.svc.Check(ctx, "u1", usage.APIOpenAI, "")
		if err != nil || !d.Allowed {
			t.Fatalf("call %d: decision = %+v, err = %v", i, d, err)
		}
		if i%2 == 1 {
			f.clock.Advance(time.Minute)
		}
	}

	d, err := f.svc.Check(ctx, "u1", usage.APIOpenAI, "")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if d.Allowed {
		t.Fatal("11th call must be denied")
	}
	if d.Reason != "quota_exceeded" {
		t.Errorf("reason = %q, want quota_exceeded", d.Reason)
	}
	if d.Quota.Used != 10 || d.Quota.Remaining != 0 {
		t.Errorf("quota = %+v, want settled used 10", d.Quota)
	}

	// Compensating decrement keeps the counter at the limit.
	used, _ := f.quotas.GetDailyCount(ctx, "u1", usage.APIOpenAI, "2026-01-15")
	if used != 10 {
		t.Errorf("daily count = %d, want 10", used)
	}
}

func TestPolicy_EnforcementDisabled(t *testing.T) {
	f := newPolicy(t, memory.NewQuotaStore(), false)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		d, err := f.svc.Check(ctx, "u1", usage.APIOpenAI, "")
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if !d.Allowed || d.Enforced {
			t.Fatalf("decision = %+v, want allowed and unenforced", d)
		}
	}

	used, _ := f.quotas.GetDailyCount(ctx, "u1", usage.APIOpenAI, "2026-01-15")
	if used != 0 {
		t.Errorf("daily count = %d, want 0 when enforcement is off", used)
	}
}

func TestPolicy_UnpolicedAPIPasses(t *testing.T) {
	rates := memory.NewRateLimitStore(memory.RateLimitStoreConfig{})
	defer rates.Close()
	quotas := memory.NewQuotaStore()

	// Free tier polices maps only; openai has no entry.
	table := tier.Table{
		tier.Free: {APIs: map[usage.API]tier.Policy{
			usage.APIMaps: {Daily: 10, PerMinute: 2},
		}},
	}
	svc := app.NewPolicyService(
		rates, quotas, memory.NewSubscriberStore(), clock.NewFake(baseTime), nil, zerolog.Nop(),
		func() tier.Table { return table }, func() bool { return true },
	)

	d, err := svc.Check(context.Background(), "u1", usage.APIOpenAI, "")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !d.Allowed || d.Enforced {
		t.Errorf("decision = %+v, want allowed and unenforced", d)
	}
}

type failingQuotaStore struct{}

func (failingQuotaStore) GetDailyCount(ctx context.Context, userKey string, api usage.API, day string) (int64, error) {
	return 0, errors.New("connection refused")
}

func (failingQuotaStore) Increment(ctx context.Context, userKey string, api usage.API, day, tier string) (int64, error) {
	return 0, errors.New("connection refused")
}

func (failingQuotaStore) Decrement(ctx context.Context, userKey string, api usage.API, day string) error {
	return errors.New("connection refused")
}

func TestPolicy_QuotaStoreFailureFailsClosed(t *testing.T) {
	f := newPolicy(t, failingQuotaStore{}, true)

	_, err := f.svc.Check(context.Background(), "u1", usage.APIOpenAI, "")
	if err == nil {
		t.Fatal("unreachable quota counter must fail the check")
	}
}

func TestPolicy_ResolveTier(t *testing.T) {
	f := newPolicy(t, memory.NewQuotaStore(), true)
	ctx := context.Background()

	if got := f.svc.ResolveTier(ctx, "u1", ""); got != tier.Free {
		t.Errorf("unknown user = %q, want free", got)
	}

	f.subs.SetTier(ctx, "u1", "premium")
	if got := f.svc.ResolveTier(ctx, "u1", ""); got != tier.Premium {
		t.Errorf("stored tier = %q, want premium", got)
	}
	if got := f.svc.ResolveTier(ctx, "u1", "basic"); got != tier.Basic {
		t.Errorf("override = %q, want basic", got)
	}
	if got := f.svc.ResolveTier(ctx, "u1", "gold"); got != tier.Premium {
		t.Errorf("bad override = %q, want stored premium", got)
	}
}

func TestPolicy_OverrideUsesTierLimits(t *testing.T) {
	f := newPolicy(t, memory.NewQuotaStore(), true)

	d, err := f.svc.Check(context.Background(), "u1", usage.APIOpenAI, "pro")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if d.Tier != tier.Pro {
		t.Errorf("tier = %q, want pro", d.Tier)
	}
	if d.Policy.Daily != 1000 || d.Policy.PerMinute != 30 {
		t.Errorf("policy = %+v, want pro/openai {1000 30}", d.Policy)
	}
}

func TestPolicy_Introspect(t *testing.T) {
	f := newPolicy(t, memory.NewQuotaStore(), true)
	ctx := context.Background()

	f.svc.Check(ctx, "u1", usage.APIOpenAI, "")
	f.svc.Check(ctx, "u1", usage.APIOpenAI, "")

	view := f.svc.Introspect(ctx, "u1", "")
	if !view.Enforce {
		t.Error("enforce = false, want true")
	}
	if view.Date != "2026-01-15" {
		t.Errorf("date = %q, want 2026-01-15", view.Date)
	}
	if view.Tier != tier.Free {
		t.Errorf("tier = %q, want free", view.Tier)
	}
	if got := view.Limits[usage.APIOpenAI]; got.Daily != 10 || got.PerMinute != 2 {
		t.Errorf("openai limits = %+v, want {10 2}", got)
	}
	if got := view.UsedDaily[usage.APIOpenAI]; got != 2 {
		t.Errorf("openai used = %d, want 2", got)
	}
	if got := view.UsedDaily[usage.APIMaps]; got != 0 {
		t.Errorf("maps used = %d, want 0", got)
	}
}

func TestPolicy_SetSubscriber(t *testing.T) {
	f := newPolicy(t, memory.NewQuotaStore(), true)
	ctx := context.Background()

	if err := f.svc.SetSubscriber(ctx, "u1", "gold"); !errors.Is(err, app.ErrUnknownTier) {
		t.Errorf("error = %v, want ErrUnknownTier", err)
	}

	if err := f.svc.SetSubscriber(ctx, "u1", "premium"); err != nil {
		t.Fatalf("SetSubscriber() error = %v", err)
	}
	if got, _ := f.subs.GetTier(ctx, "u1"); got != "premium" {
		t.Errorf("stored tier = %q, want premium", got)
	}
}
