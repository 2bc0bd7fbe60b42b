package platformconfig

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Result is the outcome of a structural validation pass. Errors block
// persistence; warnings are advisory only.
type Result struct {
	Valid    bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (r *Result) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Result) finish() Result {
	r.Valid = len(r.Errors) == 0
	return *r
}

const weightSumTolerance = 1e-4

// Validate runs the structural checks for a category/key document. Unknown
// documents pass with a warning so new keys can be introduced without a
// matching validator.
func Validate(category, key string, raw json.RawMessage) Result {
	switch join(category, key) {
	case join(CategoryTrust, KeyFormula):
		return unmarshalThen(raw, ValidateFormula)
	case join(CategoryTrust, KeyActivityWeights):
		return unmarshalThen(raw, ValidateActivityWeights)
	case join(CategoryTrust, KeyLevels):
		return unmarshalThen(raw, ValidateLevels)
	case join(CategoryTrust, KeyDecay):
		return unmarshalThen(raw, ValidateDecay)
	case join(CategoryTrust, KeyAccountabilityRates):
		return unmarshalThen(raw, ValidateAccountabilityRates)
	case join(CategoryAccess, KeyFeatures):
		return unmarshalThen(raw, ValidateFeatures)
	case join(CategoryAccess, KeyUsageLimits):
		return unmarshalThen(raw, ValidateUsageLimits)
	case join(CategoryVouch, KeyEligibility):
		return unmarshalThen(raw, ValidateEligibility)
	case join(CategoryBadges, KeyBadgeTiers):
		return unmarshalThen(raw, ValidateBadgeTiers)
	case join(CategorySubscription, KeyTierPricing):
		return unmarshalThen(raw, ValidateTierPricing)
	default:
		var r Result
		if !json.Valid(raw) {
			r.errorf("value is not valid JSON")
			return r.finish()
		}
		r.warnf("no validator registered for %s/%s", category, key)
		return r.finish()
	}
}

func unmarshalThen[T any](raw json.RawMessage, validate func(T) Result) Result {
	var doc T
	if err := json.Unmarshal(raw, &doc); err != nil {
		var r Result
		r.errorf("malformed document: %v", err)
		return r.finish()
	}
	return validate(doc)
}

func ValidateFormula(f TrustFormula) Result {
	var r Result
	for name, w := range map[string]float64{
		"vouchWeight":       f.VouchWeight,
		"activityWeight":    f.ActivityWeight,
		"trustMomentWeight": f.TrustMomentWeight,
		"primaryWeight":     f.PrimaryWeight,
		"secondaryWeight":   f.SecondaryWeight,
		"communityWeight":   f.CommunityWeight,
	} {
		if w < 0 || w > 1 {
			r.errorf("%s must be in [0,1], got %g", name, w)
		}
	}

	sum := f.VouchWeight + f.ActivityWeight + f.TrustMomentWeight
	if math.Abs(sum-1.0) > weightSumTolerance {
		r.errorf("vouch, activity and trustMoment weights must sum to 1.0, got %g", sum)
	}

	subSum := f.PrimaryWeight + f.SecondaryWeight + f.CommunityWeight
	if math.Abs(subSum-f.VouchWeight) > weightSumTolerance {
		r.errorf("vouch sub-weights must sum to the vouch weight %g, got %g", f.VouchWeight, subSum)
	}
	return r.finish()
}

func ValidateActivityWeights(w ActivityWeights) Result {
	var r Result
	for name, v := range map[string]float64{
		"eventsAttended":    w.EventsAttended,
		"eventsHosted":      w.EventsHosted,
		"communitiesJoined": w.CommunitiesJoined,
		"servicesProvided":  w.ServicesProvided,
	} {
		if v < 0 {
			r.errorf("%s weight must be non-negative, got %g", name, v)
		}
	}
	if w.MaxScore <= 0 {
		r.errorf("maxScore must be positive, got %g", w.MaxScore)
	}
	return r.finish()
}

func ValidateLevels(bands []LevelBand) Result {
	var r Result
	if len(bands) == 0 {
		r.errorf("at least one level band is required")
		return r.finish()
	}

	sorted := make([]LevelBand, len(bands))
	copy(sorted, bands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })

	if sorted[0].Min != 0 {
		r.errorf("bands must start at 0, first band starts at %g", sorted[0].Min)
	}
	if sorted[len(sorted)-1].Max != 100 {
		r.errorf("bands must end at 100, last band ends at %g", sorted[len(sorted)-1].Max)
	}

	seen := make(map[string]bool)
	for i, b := range sorted {
		if b.Level == "" {
			r.errorf("band %d has an empty level name", i)
		}
		if seen[b.Level] {
			r.errorf("duplicate level name %q", b.Level)
		}
		seen[b.Level] = true
		if b.Max < b.Min {
			r.errorf("band %q has max %g below min %g", b.Level, b.Max, b.Min)
		}
		if i > 0 {
			prev := sorted[i-1]
			if b.Min <= prev.Max {
				r.errorf("band %q overlaps band %q", b.Level, prev.Level)
			} else if b.Min != prev.Max+1 {
				r.errorf("gap between band %q (max %g) and band %q (min %g)", prev.Level, prev.Max, b.Level, b.Min)
			}
		}
	}
	return r.finish()
}

func ValidateDecay(p DecayPolicy) Result {
	var r Result
	if len(p.Rules) == 0 {
		r.errorf("at least one decay rule is required")
	}
	for i, rule := range p.Rules {
		if rule.InactivityDays <= 0 {
			r.errorf("rule %d: inactivityDays must be positive, got %d", i, rule.InactivityDays)
		}
		if rule.Rate < 0 || rule.Rate > 1 {
			r.errorf("rule %d: rate must be in [0,1], got %g", i, rule.Rate)
		}
	}

	// An inverted severity ordering is legal but almost certainly a typo.
	sorted := make([]DecayRule, len(p.Rules))
	copy(sorted, p.Rules)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].InactivityDays < sorted[j].InactivityDays })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Rate < sorted[i-1].Rate {
			r.warnf("rule for %d days of inactivity decays less (%g) than the rule for %d days (%g)",
				sorted[i].InactivityDays, sorted[i].Rate, sorted[i-1].InactivityDays, sorted[i-1].Rate)
		}
	}

	if p.WarningDays < 0 {
		r.errorf("warningDays must be non-negative, got %d", p.WarningDays)
	}
	if p.ReactivationBonusPoints < 0 {
		r.errorf("reactivationBonusPoints must be non-negative, got %g", p.ReactivationBonusPoints)
	}
	if p.ReactivationWindowDays < 0 {
		r.errorf("reactivationWindowDays must be non-negative, got %d", p.ReactivationWindowDays)
	}
	return r.finish()
}

func ValidateAccountabilityRates(rates AccountabilityRates) Result {
	var r Result
	for name, v := range map[string]float64{
		"negative": rates.Negative,
		"positive": rates.Positive,
		"neutral":  rates.Neutral,
	} {
		if v < 0 || v > 1 {
			r.errorf("%s rate must be in [0,1], got %g", name, v)
		}
	}
	if rates.Neutral != 0 {
		r.warnf("neutral rate is conventionally 0, got %g", rates.Neutral)
	}
	return r.finish()
}

var validTiers = map[string]bool{"free": true, "basic": true, "premium": true}

func ValidateFeatures(table FeatureTable) Result {
	var r Result
	for code, req := range table {
		if code == "" {
			r.errorf("empty feature code")
		}
		if req.MinSubscriptionTier != "" && !validTiers[req.MinSubscriptionTier] {
			r.errorf("feature %q: unknown tier %q", code, req.MinSubscriptionTier)
		}
		if req.MinTrustScore != nil && (*req.MinTrustScore < 0 || *req.MinTrustScore > 100) {
			r.errorf("feature %q: minTrustScore must be in [0,100], got %g", code, *req.MinTrustScore)
		}
		if req.MinSubscriptionTier == "" && req.MinTrustLevel == "" && req.MinTrustScore == nil {
			r.warnf("feature %q has no requirements and will always be allowed", code)
		}
	}
	return r.finish()
}

func ValidateUsageLimits(limits UsageLimits) Result {
	var r Result
	for code, byTier := range limits {
		for tier, limit := range byTier {
			if !validTiers[tier] {
				r.errorf("feature %q: unknown tier %q", code, tier)
			}
			if limit < -1 {
				r.errorf("feature %q tier %q: limit must be -1 (unlimited) or >= 0, got %d", code, tier, limit)
			}
		}
	}
	return r.finish()
}

func ValidateEligibility(e VouchEligibility) Result {
	var r Result
	if e.MinTrustScore < 0 || e.MinTrustScore > 100 {
		r.errorf("minTrustScore must be in [0,100], got %g", e.MinTrustScore)
	}
	if e.MinAccountAgeDays < 0 {
		r.errorf("minAccountAgeDays must be non-negative, got %d", e.MinAccountAgeDays)
	}
	if e.MaxActiveVouches < 0 {
		r.errorf("maxActiveVouches must be non-negative, got %d", e.MaxActiveVouches)
	}
	return r.finish()
}

func ValidateBadgeTiers(tiers []BadgeTier) Result {
	var r Result
	seen := make(map[string]bool)
	for _, t := range tiers {
		if t.Type == "" {
			r.errorf("badge tier with empty type code")
			continue
		}
		if seen[t.Type] {
			r.errorf("duplicate badge type %q", t.Type)
		}
		seen[t.Type] = true
		if !(t.Bronze <= t.Silver && t.Silver <= t.Gold && t.Gold <= t.Platinum) {
			r.errorf("badge %q: thresholds must ascend bronze <= silver <= gold <= platinum", t.Type)
		}
	}
	return r.finish()
}

func ValidateTierPricing(p TierPricing) Result {
	var r Result
	for tier, price := range p {
		if !validTiers[tier] {
			r.errorf("unknown tier %q", tier)
		}
		if price < 0 {
			r.errorf("tier %q: price must be non-negative, got %g", tier, price)
		}
	}
	if p["basic"] > p["premium"] && p["premium"] != 0 {
		r.warnf("basic tier priced above premium")
	}
	return r.finish()
}
