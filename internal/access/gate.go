// Package access gates feature calls on the combination of subscription
// tier and trust standing, evaluated independently.
package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/commonstack/trusthub/internal/platformconfig"
	"github.com/commonstack/trusthub/internal/store"
	"github.com/commonstack/trusthub/internal/trust"
)

// Store is the slice of the durable store the gate needs.
type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (*store.User, error)
	GetSubscription(ctx context.Context, userID uuid.UUID) (*store.Subscription, error)
	CountActiveVouchesGiven(ctx context.Context, voucherID uuid.UUID) (int, error)
	CountFeatureUsage(ctx context.Context, userID uuid.UUID, feature string, since time.Time) (int, error)
	RecordFeatureUsage(ctx context.Context, userID uuid.UUID, feature string) error
}

type Gate struct {
	store   Store
	configs platformconfig.Provider
	logger  *slog.Logger
}

func NewGate(st Store, configs platformconfig.Provider, logger *slog.Logger) *Gate {
	return &Gate{store: st, configs: configs, logger: logger}
}

// Blocking axes reported on denial.
const (
	BlockedBySubscription = "subscription"
	BlockedByTrust        = "trust"
	BlockedByBoth         = "both"
)

// trustPointsPerWeek is the heuristic used to estimate how long closing a
// trust gap takes.
const trustPointsPerWeek = 2.0

// Decision is the gate verdict. Denials carry actionable remediation rather
// than bare refusals.
type Decision struct {
	Allowed   bool            `json:"allowed"`
	Reason    string          `json:"reason,omitempty"`
	BlockedBy string          `json:"blockedBy,omitempty"`
	Upgrade   *UpgradeOptions `json:"upgradeOptions,omitempty"`
}

type UpgradeOptions struct {
	RequiredTier     string   `json:"requiredTier,omitempty"`
	PriceDelta       float64  `json:"priceDelta,omitempty"`
	TrustGap         float64  `json:"trustGap,omitempty"`
	EstimatedWeeks   int      `json:"estimatedWeeks,omitempty"`
	SuggestedActions []string `json:"suggestedActions,omitempty"`
}

// CanAccessFeature evaluates the subscription and trust requirements for a
// feature independently; both axes must pass. A missing subscription means
// the free tier; a missing requirement tuple means the feature is open.
func (g *Gate) CanAccessFeature(ctx context.Context, userID uuid.UUID, feature string) (*Decision, error) {
	user, err := g.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	tier := g.userTier(ctx, userID)

	features, err := g.configs.Features(ctx)
	if err != nil {
		g.logger.Warn("feature table unavailable, allowing by default", "feature", feature, "error", err)
		return &Decision{Allowed: true}, nil
	}
	req, ok := features[feature]
	if !ok {
		return &Decision{Allowed: true}, nil
	}

	subOK := g.subscriptionSatisfied(req, tier)
	trustOK, requiredScore := g.trustSatisfied(ctx, req, user)

	if subOK && trustOK {
		return &Decision{Allowed: true}, nil
	}

	d := &Decision{Allowed: false, Upgrade: &UpgradeOptions{}}
	switch {
	case !subOK && !trustOK:
		d.BlockedBy = BlockedByBoth
		d.Reason = fmt.Sprintf("%s requires the %s tier and more trust", feature, req.MinSubscriptionTier)
	case !subOK:
		d.BlockedBy = BlockedBySubscription
		d.Reason = fmt.Sprintf("%s requires the %s tier", feature, req.MinSubscriptionTier)
	default:
		d.BlockedBy = BlockedByTrust
		d.Reason = fmt.Sprintf("%s requires more trust", feature)
	}

	if !subOK {
		d.Upgrade.RequiredTier = req.MinSubscriptionTier
		d.Upgrade.PriceDelta = g.priceDelta(ctx, tier, store.Tier(req.MinSubscriptionTier))
	}
	if !trustOK {
		gap := requiredScore - user.TrustScore
		if gap > 0 {
			d.Upgrade.TrustGap = gap
			d.Upgrade.EstimatedWeeks = int(math.Ceil(gap / trustPointsPerWeek))
		}
		d.Upgrade.SuggestedActions = suggestedActions
	}
	return d, nil
}

// suggestedActions are the standing recommendations for raising a trust
// score.
var suggestedActions = []string{
	"attend community events",
	"host an event for your community",
	"provide services to other members",
	"ask an established member for a vouch",
	"collect public trust moments from people you have helped",
}

func (g *Gate) subscriptionSatisfied(req platformconfig.FeatureRequirement, tier store.Tier) bool {
	if req.MinSubscriptionTier == "" {
		return true
	}
	return store.TierRank(tier) >= store.TierRank(store.Tier(req.MinSubscriptionTier))
}

// trustSatisfied checks both the score and level requirements and reports
// the effective score needed, for upgrade guidance.
func (g *Gate) trustSatisfied(ctx context.Context, req platformconfig.FeatureRequirement, user *store.User) (bool, float64) {
	ok := true
	required := 0.0

	if req.MinTrustScore != nil {
		required = *req.MinTrustScore
		if user.TrustScore < required {
			ok = false
		}
	}

	if req.MinTrustLevel != "" {
		bands, err := g.configs.Levels(ctx)
		if err != nil {
			bands = nil
		}
		needed, found := bandFor(bands, req.MinTrustLevel)
		if found {
			if user.TrustScore < needed.Min {
				ok = false
			}
			if needed.Min > required {
				required = needed.Min
			}
		}
	}
	return ok, required
}

// bandFor looks a level name up in the configured bands, falling back to the
// fixed ladder.
func bandFor(bands []platformconfig.LevelBand, level string) (platformconfig.LevelBand, bool) {
	for _, b := range bands {
		if b.Level == level {
			return b, true
		}
	}
	for _, b := range trust.FallbackBands() {
		if b.Level == level {
			return b, true
		}
	}
	return platformconfig.LevelBand{}, false
}

func (g *Gate) userTier(ctx context.Context, userID uuid.UUID) store.Tier {
	sub, err := g.store.GetSubscription(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrSubscriptionNotFound) {
			g.logger.Warn("subscription lookup failed, assuming free tier", "user_id", userID, "error", err)
		}
		return store.TierFree
	}
	return sub.Tier
}

func (g *Gate) priceDelta(ctx context.Context, current, required store.Tier) float64 {
	pricing, err := g.configs.TierPricing(ctx)
	if err != nil {
		return 0
	}
	delta := pricing[string(required)] - pricing[string(current)]
	if delta < 0 {
		return 0
	}
	return delta
}

// Usage is the rolling-month feature usage verdict. A limit of -1 means
// unlimited.
type Usage struct {
	Feature   string `json:"feature"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Unlimited bool   `json:"unlimited"`
	Allowed   bool   `json:"allowed"`
}

const usageWindow = 30 * 24 * time.Hour

// CheckFeatureUsage enforces the tier-derived monthly usage limit,
// independently of the requirement gate.
func (g *Gate) CheckFeatureUsage(ctx context.Context, userID uuid.UUID, feature string) (*Usage, error) {
	if _, err := g.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	tier := g.userTier(ctx, userID)

	limits, err := g.configs.UsageLimits(ctx)
	if err != nil {
		g.logger.Warn("usage limits unavailable, allowing by default", "feature", feature, "error", err)
		return &Usage{Feature: feature, Limit: -1, Unlimited: true, Allowed: true}, nil
	}
	byTier, ok := limits[feature]
	if !ok {
		return &Usage{Feature: feature, Limit: -1, Unlimited: true, Allowed: true}, nil
	}
	limit, ok := byTier[string(tier)]
	if !ok {
		limit = 0
	}
	if limit == -1 {
		return &Usage{Feature: feature, Limit: -1, Unlimited: true, Allowed: true}, nil
	}

	used, err := g.store.CountFeatureUsage(ctx, userID, feature, time.Now().Add(-usageWindow))
	if err != nil {
		return nil, fmt.Errorf("count feature usage: %w", err)
	}
	return &Usage{Feature: feature, Used: used, Limit: limit, Allowed: used < limit}, nil
}

// RecordFeatureUsage charges one use against the rolling window.
func (g *Gate) RecordFeatureUsage(ctx context.Context, userID uuid.UUID, feature string) error {
	return g.store.RecordFeatureUsage(ctx, userID, feature)
}

// AccessSummary is the per-user overview of tier, trust, and feature
// verdicts.
type AccessSummary struct {
	UserID     uuid.UUID           `json:"userId"`
	Tier       store.Tier          `json:"tier"`
	TrustScore float64             `json:"trustScore"`
	TrustLevel string              `json:"trustLevel"`
	Features   map[string]Decision `json:"features"`
}

func (g *Gate) UserAccessSummary(ctx context.Context, userID uuid.UUID) (*AccessSummary, error) {
	user, err := g.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &AccessSummary{
		UserID:     userID,
		Tier:       g.userTier(ctx, userID),
		TrustScore: user.TrustScore,
		TrustLevel: user.TrustLevel,
		Features:   make(map[string]Decision),
	}

	features, err := g.configs.Features(ctx)
	if err != nil {
		return summary, nil
	}
	for code := range features {
		d, err := g.CanAccessFeature(ctx, userID, code)
		if err != nil {
			g.logger.Warn("feature check failed in summary", "feature", code, "error", err)
			continue
		}
		summary.Features[code] = *d
	}
	return summary, nil
}

// VouchEligibility reports whether a user may extend new vouches under the
// configured criteria.
type VouchEligibility struct {
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons,omitempty"`
}

func (g *Gate) CheckVouchEligibility(ctx context.Context, userID uuid.UUID) (*VouchEligibility, error) {
	user, err := g.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	criteria, err := g.configs.VouchEligibility(ctx)
	if err != nil {
		return nil, fmt.Errorf("load vouch eligibility: %w", err)
	}

	var reasons []string
	if user.TrustScore < criteria.MinTrustScore {
		reasons = append(reasons, fmt.Sprintf("trust score %.1f is below the required %.1f", user.TrustScore, criteria.MinTrustScore))
	}
	if age := time.Since(user.CreatedAt); age < time.Duration(criteria.MinAccountAgeDays)*24*time.Hour {
		reasons = append(reasons, fmt.Sprintf("account must be at least %d days old", criteria.MinAccountAgeDays))
	}
	if criteria.MaxActiveVouches > 0 {
		given, err := g.store.CountActiveVouchesGiven(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("count vouches given: %w", err)
		}
		if given >= criteria.MaxActiveVouches {
			reasons = append(reasons, fmt.Sprintf("already sponsoring %d of %d allowed vouchees", given, criteria.MaxActiveVouches))
		}
	}
	return &VouchEligibility{Eligible: len(reasons) == 0, Reasons: reasons}, nil
}
