package platformconfig

import "encoding/json"

// Hardcoded fallbacks keep the platform functional when the config store is
// unreachable or a row is missing. Reads degrade to these; writes never
// touch them.
var defaults = map[string]any{
	join(CategoryTrust, KeyFormula): TrustFormula{
		VouchWeight:       0.4,
		ActivityWeight:    0.35,
		TrustMomentWeight: 0.25,
		PrimaryWeight:     0.2,
		SecondaryWeight:   0.12,
		CommunityWeight:   0.08,
	},
	join(CategoryTrust, KeyActivityWeights): ActivityWeights{
		EventsAttended:    2,
		EventsHosted:      5,
		CommunitiesJoined: 3,
		ServicesProvided:  4,
		MaxScore:          100,
	},
	join(CategoryTrust, KeyLevels): []LevelBand{
		{Level: "newcomer", Min: 0, Max: 19},
		{Level: "participant", Min: 20, Max: 34},
		{Level: "contributor", Min: 35, Max: 49},
		{Level: "established", Min: 50, Max: 64},
		{Level: "trusted", Min: 65, Max: 79},
		{Level: "pillar", Min: 80, Max: 100},
	},
	join(CategoryTrust, KeyDecay): DecayPolicy{
		Rules: []DecayRule{
			{InactivityDays: 30, Rate: 0.01},
			{InactivityDays: 60, Rate: 0.02},
			{InactivityDays: 90, Rate: 0.05},
		},
		WarningDays:             7,
		ReactivationBonusPoints: 2,
		ReactivationWindowDays:  14,
	},
	join(CategoryTrust, KeyAccountabilityRates): AccountabilityRates{
		Negative: 0.4,
		Positive: 0.2,
		Neutral:  0,
	},
	join(CategoryAccess, KeyFeatures): FeatureTable{
		"events.host":        {MinSubscriptionTier: "basic", MinTrustScore: ptr(35)},
		"marketplace.sell":   {MinSubscriptionTier: "basic", MinTrustScore: ptr(50)},
		"communities.create": {MinSubscriptionTier: "premium", MinTrustLevel: "established"},
		"vouches.extend":     {MinTrustScore: ptr(50)},
		"moments.give":       {MinTrustLevel: "participant"},
		"messages.broadcast": {MinSubscriptionTier: "premium", MinTrustLevel: "trusted"},
	},
	join(CategoryAccess, KeyUsageLimits): UsageLimits{
		"events.host":        {"free": 0, "basic": 4, "premium": -1},
		"marketplace.sell":   {"free": 1, "basic": 10, "premium": -1},
		"messages.broadcast": {"free": 0, "basic": 0, "premium": 20},
	},
	join(CategoryVouch, KeyEligibility): VouchEligibility{
		MinTrustScore:     50,
		MinAccountAgeDays: 30,
		MaxActiveVouches:  5,
	},
	join(CategoryBadges, KeyBadgeTiers): []BadgeTier{
		{Type: "host", Bronze: 5, Silver: 15, Gold: 40, Platinum: 100},
		{Type: "helper", Bronze: 10, Silver: 25, Gold: 60, Platinum: 150},
		{Type: "connector", Bronze: 3, Silver: 10, Gold: 25, Platinum: 60},
	},
	join(CategorySubscription, KeyTierPricing): TierPricing{
		"free":    0,
		"basic":   7.99,
		"premium": 19.99,
	},
}

func join(category, key string) string {
	return category + "/" + key
}

func ptr(v float64) *float64 { return &v }

// defaultFor returns the hardcoded default document for a category/key, if
// one exists.
func defaultFor(category, key string) (json.RawMessage, bool) {
	v, ok := defaults[join(category, key)]
	if !ok {
		return nil, false
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return raw, true
}

// defaultsForCategory returns every default document under a category,
// keyed by config key.
func defaultsForCategory(category string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage)
	prefix := category + "/"
	for k, v := range defaults {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			raw, err := json.Marshal(v)
			if err != nil {
				continue
			}
			out[k[len(prefix):]] = raw
		}
	}
	return out
}
