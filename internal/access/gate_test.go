package access

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/commonstack/trusthub/internal/platformconfig"
	"github.com/commonstack/trusthub/internal/store"
)

// fakeProvider serves fixed access configuration.
type fakeProvider struct {
	features    platformconfig.FeatureTable
	limits      platformconfig.UsageLimits
	pricing     platformconfig.TierPricing
	eligibility platformconfig.VouchEligibility
	featuresErr error
}

func (p *fakeProvider) Formula(context.Context) (platformconfig.TrustFormula, error) {
	return platformconfig.TrustFormula{}, nil
}
func (p *fakeProvider) ActivityWeights(context.Context) (platformconfig.ActivityWeights, error) {
	return platformconfig.ActivityWeights{}, nil
}
func (p *fakeProvider) Levels(context.Context) ([]platformconfig.LevelBand, error) {
	return nil, nil
}
func (p *fakeProvider) Decay(context.Context) (platformconfig.DecayPolicy, error) {
	return platformconfig.DecayPolicy{}, nil
}
func (p *fakeProvider) AccountabilityRates(context.Context) (platformconfig.AccountabilityRates, error) {
	return platformconfig.AccountabilityRates{}, nil
}
func (p *fakeProvider) Features(context.Context) (platformconfig.FeatureTable, error) {
	if p.featuresErr != nil {
		return nil, p.featuresErr
	}
	return p.features, nil
}
func (p *fakeProvider) UsageLimits(context.Context) (platformconfig.UsageLimits, error) {
	return p.limits, nil
}
func (p *fakeProvider) TierPricing(context.Context) (platformconfig.TierPricing, error) {
	return p.pricing, nil
}
func (p *fakeProvider) VouchEligibility(context.Context) (platformconfig.VouchEligibility, error) {
	return p.eligibility, nil
}

// fakeAccessStore is an in-memory stand-in for the gate's store slice.
type fakeAccessStore struct {
	users        map[uuid.UUID]*store.User
	subs         map[uuid.UUID]*store.Subscription
	vouchesGiven map[uuid.UUID]int
	usage        map[string]int

	recorded []string
}

func (f *fakeAccessStore) GetUser(_ context.Context, id uuid.UUID) (*store.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeAccessStore) GetSubscription(_ context.Context, userID uuid.UUID) (*store.Subscription, error) {
	sub, ok := f.subs[userID]
	if !ok {
		return nil, store.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (f *fakeAccessStore) CountActiveVouchesGiven(_ context.Context, voucherID uuid.UUID) (int, error) {
	return f.vouchesGiven[voucherID], nil
}

func (f *fakeAccessStore) CountFeatureUsage(_ context.Context, _ uuid.UUID, feature string, _ time.Time) (int, error) {
	return f.usage[feature], nil
}

func (f *fakeAccessStore) RecordFeatureUsage(_ context.Context, _ uuid.UUID, feature string) error {
	f.recorded = append(f.recorded, feature)
	return nil
}

func ptr(v float64) *float64 { return &v }

func testGate(st *fakeAccessStore, p *fakeProvider) *Gate {
	return NewGate(st, p, slog.Default())
}

func userWith(st *fakeAccessStore, score float64, tier store.Tier) uuid.UUID {
	id := uuid.New()
	st.users[id] = &store.User{ID: id, TrustScore: score, TrustLevel: "newcomer", CreatedAt: time.Now().AddDate(0, -6, 0)}
	if tier != "" && tier != store.TierFree {
		st.subs[id] = &store.Subscription{UserID: id, Tier: tier, Status: "active"}
	}
	return id
}

func newFakeAccessStore() *fakeAccessStore {
	return &fakeAccessStore{
		users:        make(map[uuid.UUID]*store.User),
		subs:         make(map[uuid.UUID]*store.Subscription),
		vouchesGiven: make(map[uuid.UUID]int),
		usage:        make(map[string]int),
	}
}

func TestCanAccessFeature_DualGate(t *testing.T) {
	features := platformconfig.FeatureTable{
		"marketplace.sell": {MinSubscriptionTier: "basic", MinTrustScore: ptr(50)},
	}

	tests := []struct {
		name      string
		score     float64
		tier      store.Tier
		allowed   bool
		blockedBy string
	}{
		{"both satisfied", 60, store.TierBasic, true, ""},
		{"premium tier with low trust is still blocked", 5, store.TierPremium, false, BlockedByTrust},
		{"high trust on free tier is still blocked", 90, store.TierFree, false, BlockedBySubscription},
		{"neither satisfied", 5, store.TierFree, false, BlockedByBoth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newFakeAccessStore()
			userID := userWith(st, tt.score, tt.tier)
			g := testGate(st, &fakeProvider{features: features})

			d, err := g.CanAccessFeature(context.Background(), userID, "marketplace.sell")
			if err != nil {
				t.Fatalf("CanAccessFeature failed: %v", err)
			}
			if d.Allowed != tt.allowed {
				t.Errorf("Allowed = %v, want %v", d.Allowed, tt.allowed)
			}
			if d.BlockedBy != tt.blockedBy {
				t.Errorf("BlockedBy = %q, want %q", d.BlockedBy, tt.blockedBy)
			}
		})
	}
}

func TestCanAccessFeature_TrustDenialCarriesUpgradeGuidance(t *testing.T) {
	st := newFakeAccessStore()
	userID := userWith(st, 42, store.TierPremium)
	g := testGate(st, &fakeProvider{
		features: platformconfig.FeatureTable{"f": {MinTrustScore: ptr(50)}},
	})

	d, err := g.CanAccessFeature(context.Background(), userID, "f")
	if err != nil {
		t.Fatalf("CanAccessFeature failed: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected denial")
	}
	if d.Upgrade == nil {
		t.Fatal("expected upgrade options")
	}
	if d.Upgrade.TrustGap != 8 {
		t.Errorf("expected trust gap 8, got %f", d.Upgrade.TrustGap)
	}
	if d.Upgrade.EstimatedWeeks != 4 { // 8 points at 2 points/week
		t.Errorf("expected 4 estimated weeks, got %d", d.Upgrade.EstimatedWeeks)
	}
	if len(d.Upgrade.SuggestedActions) == 0 {
		t.Error("expected suggested actions")
	}
}

func TestCanAccessFeature_SubscriptionDenialPricesUpgrade(t *testing.T) {
	st := newFakeAccessStore()
	userID := userWith(st, 90, store.TierFree)
	g := testGate(st, &fakeProvider{
		features: platformconfig.FeatureTable{"f": {MinSubscriptionTier: "premium"}},
		pricing:  platformconfig.TierPricing{"free": 0, "basic": 7.99, "premium": 19.99},
	})

	d, err := g.CanAccessFeature(context.Background(), userID, "f")
	if err != nil {
		t.Fatalf("CanAccessFeature failed: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected denial")
	}
	if d.Upgrade.RequiredTier != "premium" {
		t.Errorf("expected required tier premium, got %q", d.Upgrade.RequiredTier)
	}
	if d.Upgrade.PriceDelta != 19.99 {
		t.Errorf("expected price delta 19.99, got %f", d.Upgrade.PriceDelta)
	}
}

func TestCanAccessFeature_MinTrustLevelUsesBands(t *testing.T) {
	st := newFakeAccessStore()
	// "established" starts at 50 on the fallback ladder.
	low := userWith(st, 40, store.TierPremium)
	high := userWith(st, 55, store.TierPremium)
	g := testGate(st, &fakeProvider{
		features: platformconfig.FeatureTable{"f": {MinTrustLevel: "established"}},
	})

	d, err := g.CanAccessFeature(context.Background(), low, "f")
	if err != nil {
		t.Fatalf("CanAccessFeature failed: %v", err)
	}
	if d.Allowed {
		t.Error("expected denial below the level threshold")
	}

	d, err = g.CanAccessFeature(context.Background(), high, "f")
	if err != nil {
		t.Fatalf("CanAccessFeature failed: %v", err)
	}
	if !d.Allowed {
		t.Error("expected access at the level threshold")
	}
}

func TestCanAccessFeature_UnconfiguredFeatureIsOpen(t *testing.T) {
	st := newFakeAccessStore()
	userID := userWith(st, 0, store.TierFree)
	g := testGate(st, &fakeProvider{features: platformconfig.FeatureTable{}})

	d, err := g.CanAccessFeature(context.Background(), userID, "anything")
	if err != nil {
		t.Fatalf("CanAccessFeature failed: %v", err)
	}
	if !d.Allowed {
		t.Error("expected unconfigured feature to be open")
	}
}

func TestCanAccessFeature_FeatureTableFailureAllows(t *testing.T) {
	st := newFakeAccessStore()
	userID := userWith(st, 0, store.TierFree)
	g := testGate(st, &fakeProvider{featuresErr: errors.New("store down")})

	d, err := g.CanAccessFeature(context.Background(), userID, "f")
	if err != nil {
		t.Fatalf("CanAccessFeature failed: %v", err)
	}
	if !d.Allowed {
		t.Error("expected open access when the feature table is unavailable")
	}
}

func TestCanAccessFeature_UnknownUser(t *testing.T) {
	g := testGate(newFakeAccessStore(), &fakeProvider{})
	if _, err := g.CanAccessFeature(context.Background(), uuid.New(), "f"); !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCheckFeatureUsage(t *testing.T) {
	limits := platformconfig.UsageLimits{
		"events.host": {"free": 0, "basic": 4, "premium": -1},
	}

	tests := []struct {
		name      string
		tier      store.Tier
		used      int
		allowed   bool
		unlimited bool
	}{
		{"free tier has no allowance", store.TierFree, 0, false, false},
		{"basic under the limit", store.TierBasic, 3, true, false},
		{"basic at the limit", store.TierBasic, 4, false, false},
		{"premium is unlimited", store.TierPremium, 1000, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newFakeAccessStore()
			userID := userWith(st, 50, tt.tier)
			st.usage["events.host"] = tt.used
			g := testGate(st, &fakeProvider{limits: limits})

			u, err := g.CheckFeatureUsage(context.Background(), userID, "events.host")
			if err != nil {
				t.Fatalf("CheckFeatureUsage failed: %v", err)
			}
			if u.Allowed != tt.allowed {
				t.Errorf("Allowed = %v, want %v", u.Allowed, tt.allowed)
			}
			if u.Unlimited != tt.unlimited {
				t.Errorf("Unlimited = %v, want %v", u.Unlimited, tt.unlimited)
			}
		})
	}
}

func TestCheckFeatureUsage_UnlistedFeatureUnlimited(t *testing.T) {
	st := newFakeAccessStore()
	userID := userWith(st, 50, store.TierFree)
	g := testGate(st, &fakeProvider{limits: platformconfig.UsageLimits{}})

	u, err := g.CheckFeatureUsage(context.Background(), userID, "unlisted")
	if err != nil {
		t.Fatalf("CheckFeatureUsage failed: %v", err)
	}
	if !u.Unlimited || !u.Allowed {
		t.Errorf("expected unlisted feature unlimited, got %+v", u)
	}
}

func TestRequireFeature_DenialPayload(t *testing.T) {
	st := newFakeAccessStore()
	userID := userWith(st, 42, store.TierPremium)
	st.users[userID].TrustLevel = "contributor"
	g := testGate(st, &fakeProvider{
		features: platformconfig.FeatureTable{"f": {MinTrustScore: ptr(50)}},
	})

	denial, err := g.RequireFeature(context.Background(), userID, "f")
	if err != nil {
		t.Fatalf("RequireFeature failed: %v", err)
	}
	if denial == nil {
		t.Fatal("expected a denial")
	}
	if denial.CurrentScore != 42 || denial.RequiredScore != 50 {
		t.Errorf("unexpected scores: %+v", denial)
	}
	if denial.RequiredLevel != "established" {
		t.Errorf("expected required level established, got %q", denial.RequiredLevel)
	}
	if denial.Progress != 84 {
		t.Errorf("expected progress 84, got %f", denial.Progress)
	}
	if denial.EstimatedWeeks != 4 {
		t.Errorf("expected 4 estimated weeks, got %d", denial.EstimatedWeeks)
	}
	if denial.BlockedBy != BlockedByTrust {
		t.Errorf("expected blockedBy trust, got %q", denial.BlockedBy)
	}
}

func TestRequireFeature_NilWhenAllowed(t *testing.T) {
	st := newFakeAccessStore()
	userID := userWith(st, 80, store.TierPremium)
	g := testGate(st, &fakeProvider{
		features: platformconfig.FeatureTable{"f": {MinTrustScore: ptr(50)}},
	})

	denial, err := g.RequireFeature(context.Background(), userID, "f")
	if err != nil {
		t.Fatalf("RequireFeature failed: %v", err)
	}
	if denial != nil {
		t.Errorf("expected nil denial, got %+v", denial)
	}
}

func TestRequireTrustLevel(t *testing.T) {
	st := newFakeAccessStore()
	userID := userWith(st, 30, store.TierFree)
	g := testGate(st, &fakeProvider{})

	denial, err := g.RequireTrustLevel(context.Background(), userID, 50, "vouching")
	if err != nil {
		t.Fatalf("RequireTrustLevel failed: %v", err)
	}
	if denial == nil {
		t.Fatal("expected a denial")
	}
	if denial.Feature != "vouching" || denial.RequiredScore != 50 {
		t.Errorf("unexpected denial: %+v", denial)
	}
	if denial.EstimatedWeeks != 10 { // 20 points at 2 points/week
		t.Errorf("expected 10 estimated weeks, got %d", denial.EstimatedWeeks)
	}

	denial, err = g.RequireTrustLevel(context.Background(), userID, 20, "vouching")
	if err != nil {
		t.Fatalf("RequireTrustLevel failed: %v", err)
	}
	if denial != nil {
		t.Errorf("expected nil denial above the bar, got %+v", denial)
	}
}

func TestCheckVouchEligibility(t *testing.T) {
	criteria := platformconfig.VouchEligibility{
		MinTrustScore:     50,
		MinAccountAgeDays: 30,
		MaxActiveVouches:  5,
	}

	t.Run("eligible", func(t *testing.T) {
		st := newFakeAccessStore()
		userID := userWith(st, 60, store.TierFree)
		g := testGate(st, &fakeProvider{eligibility: criteria})

		e, err := g.CheckVouchEligibility(context.Background(), userID)
		if err != nil {
			t.Fatalf("CheckVouchEligibility failed: %v", err)
		}
		if !e.Eligible {
			t.Errorf("expected eligible, reasons: %v", e.Reasons)
		}
	})

	t.Run("low score and young account", func(t *testing.T) {
		st := newFakeAccessStore()
		userID := uuid.New()
		st.users[userID] = &store.User{ID: userID, TrustScore: 10, CreatedAt: time.Now().AddDate(0, 0, -5)}
		g := testGate(st, &fakeProvider{eligibility: criteria})

		e, err := g.CheckVouchEligibility(context.Background(), userID)
		if err != nil {
			t.Fatalf("CheckVouchEligibility failed: %v", err)
		}
		if e.Eligible || len(e.Reasons) != 2 {
			t.Errorf("expected 2 blocking reasons, got %+v", e)
		}
	})

	t.Run("at the vouch cap", func(t *testing.T) {
		st := newFakeAccessStore()
		userID := userWith(st, 60, store.TierFree)
		st.vouchesGiven[userID] = 5
		g := testGate(st, &fakeProvider{eligibility: criteria})

		e, err := g.CheckVouchEligibility(context.Background(), userID)
		if err != nil {
			t.Fatalf("CheckVouchEligibility failed: %v", err)
		}
		if e.Eligible {
			t.Error("expected ineligible at the vouch cap")
		}
	})
}

func TestUserAccessSummary(t *testing.T) {
	st := newFakeAccessStore()
	userID := userWith(st, 60, store.TierBasic)
	st.users[userID].TrustLevel = "established"
	g := testGate(st, &fakeProvider{
		features: platformconfig.FeatureTable{
			"open":  {},
			"gated": {MinTrustScore: ptr(90)},
			"paid":  {MinSubscriptionTier: "premium"},
		},
	})

	s, err := g.UserAccessSummary(context.Background(), userID)
	if err != nil {
		t.Fatalf("UserAccessSummary failed: %v", err)
	}
	if s.Tier != store.TierBasic {
		t.Errorf("expected basic tier, got %q", s.Tier)
	}
	if !s.Features["open"].Allowed {
		t.Error("expected open feature allowed")
	}
	if s.Features["gated"].Allowed {
		t.Error("expected gated feature blocked")
	}
	if s.Features["paid"].BlockedBy != BlockedBySubscription {
		t.Errorf("expected paid feature blocked by subscription, got %q", s.Features["paid"].BlockedBy)
	}
}
