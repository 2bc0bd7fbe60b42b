// Package platformconfig holds the administrator-tunable configuration
// documents that drive trust scoring, decay, accountability, and feature
// gating, plus the validation and cached access around them.
package platformconfig

// Categories and keys address configuration documents in the store.
const (
	CategoryTrust        = "trust"
	CategoryAccess       = "access"
	CategoryVouch        = "vouch"
	CategoryBadges       = "badges"
	CategorySubscription = "subscription"

	KeyFormula             = "formula"
	KeyActivityWeights     = "activity_weights"
	KeyLevels              = "levels"
	KeyDecay               = "decay"
	KeyAccountabilityRates = "accountability_rates"
	KeyFeatures            = "features"
	KeyUsageLimits         = "usage_limits"
	KeyEligibility         = "eligibility"
	KeyBadgeTiers          = "tiers"
	KeyTierPricing         = "pricing"
)

// TrustFormula weights the three sub-scores of the composite trust score.
// The three top-level weights sum to 1.0; the vouch sub-weights sum to the
// vouch weight.
type TrustFormula struct {
	VouchWeight       float64 `json:"vouchWeight"`
	ActivityWeight    float64 `json:"activityWeight"`
	TrustMomentWeight float64 `json:"trustMomentWeight"`

	PrimaryWeight   float64 `json:"primaryWeight"`
	SecondaryWeight float64 `json:"secondaryWeight"`
	CommunityWeight float64 `json:"communityWeight"`
}

// ActivityWeights converts raw activity counters into the activity
// sub-score, clamped to MaxScore.
type ActivityWeights struct {
	EventsAttended    float64 `json:"eventsAttended"`
	EventsHosted      float64 `json:"eventsHosted"`
	CommunitiesJoined float64 `json:"communitiesJoined"`
	ServicesProvided  float64 `json:"servicesProvided"`
	MaxScore          float64 `json:"maxScore"`
}

// LevelBand maps a score range to a named trust level. Bands must be
// contiguous, starting at 0 and ending at 100.
type LevelBand struct {
	Level string  `json:"level"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// DecayRule depresses the score of users inactive for at least
// InactivityDays by Rate (a fraction: 0.01 means 1%).
type DecayRule struct {
	InactivityDays int     `json:"inactivityDays"`
	Rate           float64 `json:"rate"`
}

type DecayPolicy struct {
	Rules                   []DecayRule `json:"rules"`
	WarningDays             int         `json:"warningDays"`
	ReactivationBonusPoints float64     `json:"reactivationBonusPoints"`
	ReactivationWindowDays  int         `json:"reactivationWindowDays"`
}

// AccountabilityRates are the fractions of a vouchee event's impact value
// applied to each active voucher's score.
type AccountabilityRates struct {
	Negative float64 `json:"negative"`
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
}

// FeatureRequirement gates a feature on subscription tier and trust,
// evaluated independently. Zero values mean no requirement on that axis.
type FeatureRequirement struct {
	MinSubscriptionTier string   `json:"minSubscriptionTier,omitempty"`
	MinTrustLevel       string   `json:"minTrustLevel,omitempty"`
	MinTrustScore       *float64 `json:"minTrustScore,omitempty"`
}

// FeatureTable maps feature codes to their requirement tuples.
type FeatureTable map[string]FeatureRequirement

// UsageLimits maps feature code -> tier -> monthly usage limit.
// -1 means unlimited.
type UsageLimits map[string]map[string]int

// TierPricing maps tier -> monthly price, used for upgrade guidance.
type TierPricing map[string]float64

// VouchEligibility is the bar a member must clear before extending vouches.
type VouchEligibility struct {
	MinTrustScore     float64 `json:"minTrustScore"`
	MinAccountAgeDays int     `json:"minAccountAgeDays"`
	MaxActiveVouches  int     `json:"maxActiveVouches"`
}

// BadgeTier defines the ascending thresholds for one badge type.
type BadgeTier struct {
	Type     string  `json:"type"`
	Bronze   float64 `json:"bronze"`
	Silver   float64 `json:"silver"`
	Gold     float64 `json:"gold"`
	Platinum float64 `json:"platinum"`
}
