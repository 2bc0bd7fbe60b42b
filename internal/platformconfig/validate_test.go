package platformconfig

import (
	"encoding/json"
	"testing"
)

func TestValidateFormula(t *testing.T) {
	tests := []struct {
		name    string
		formula TrustFormula
		valid   bool
	}{
		{
			"defaults are valid",
			TrustFormula{VouchWeight: 0.4, ActivityWeight: 0.35, TrustMomentWeight: 0.25, PrimaryWeight: 0.2, SecondaryWeight: 0.12, CommunityWeight: 0.08},
			true,
		},
		{
			"top-level weights must sum to 1",
			TrustFormula{VouchWeight: 0.5, ActivityWeight: 0.5, TrustMomentWeight: 0.5, PrimaryWeight: 0.25, SecondaryWeight: 0.15, CommunityWeight: 0.1},
			false,
		},
		{
			"sub-weights must sum to the vouch weight",
			TrustFormula{VouchWeight: 0.4, ActivityWeight: 0.35, TrustMomentWeight: 0.25, PrimaryWeight: 0.3, SecondaryWeight: 0.3, CommunityWeight: 0.3},
			false,
		},
		{
			"negative weight rejected",
			TrustFormula{VouchWeight: -0.4, ActivityWeight: 1.15, TrustMomentWeight: 0.25, PrimaryWeight: -0.2, SecondaryWeight: -0.12, CommunityWeight: -0.08},
			false,
		},
		{
			"tiny float drift tolerated",
			TrustFormula{VouchWeight: 0.4, ActivityWeight: 0.35, TrustMomentWeight: 0.25000001, PrimaryWeight: 0.2, SecondaryWeight: 0.12, CommunityWeight: 0.08},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ValidateFormula(tt.formula)
			if r.Valid != tt.valid {
				t.Errorf("ValidateFormula(%+v).Valid = %v, want %v (errors: %v)", tt.formula, r.Valid, tt.valid, r.Errors)
			}
		})
	}
}

func TestValidateActivityWeights(t *testing.T) {
	ok := ActivityWeights{EventsAttended: 2, EventsHosted: 5, CommunitiesJoined: 3, ServicesProvided: 4, MaxScore: 100}
	if r := ValidateActivityWeights(ok); !r.Valid {
		t.Errorf("expected valid, got errors %v", r.Errors)
	}

	if r := ValidateActivityWeights(ActivityWeights{EventsAttended: -1, MaxScore: 100}); r.Valid {
		t.Error("expected negative weight to fail")
	}
	if r := ValidateActivityWeights(ActivityWeights{EventsAttended: 2}); r.Valid {
		t.Error("expected zero maxScore to fail")
	}
}

func TestValidateLevels(t *testing.T) {
	tests := []struct {
		name  string
		bands []LevelBand
		valid bool
	}{
		{
			"contiguous bands",
			[]LevelBand{{Level: "low", Min: 0, Max: 49}, {Level: "high", Min: 50, Max: 100}},
			true,
		},
		{"empty", nil, false},
		{
			"gap between bands",
			[]LevelBand{{Level: "low", Min: 0, Max: 40}, {Level: "high", Min: 50, Max: 100}},
			false,
		},
		{
			"overlapping bands",
			[]LevelBand{{Level: "low", Min: 0, Max: 60}, {Level: "high", Min: 50, Max: 100}},
			false,
		},
		{
			"must start at 0",
			[]LevelBand{{Level: "low", Min: 10, Max: 49}, {Level: "high", Min: 50, Max: 100}},
			false,
		},
		{
			"must end at 100",
			[]LevelBand{{Level: "low", Min: 0, Max: 49}, {Level: "high", Min: 50, Max: 90}},
			false,
		},
		{
			"duplicate names",
			[]LevelBand{{Level: "x", Min: 0, Max: 49}, {Level: "x", Min: 50, Max: 100}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ValidateLevels(tt.bands)
			if r.Valid != tt.valid {
				t.Errorf("ValidateLevels(%+v).Valid = %v, want %v (errors: %v)", tt.bands, r.Valid, tt.valid, r.Errors)
			}
		})
	}
}

func TestValidateDecay(t *testing.T) {
	ok := DecayPolicy{
		Rules:                   []DecayRule{{InactivityDays: 30, Rate: 0.01}, {InactivityDays: 60, Rate: 0.02}},
		WarningDays:             7,
		ReactivationBonusPoints: 2,
		ReactivationWindowDays:  14,
	}
	if r := ValidateDecay(ok); !r.Valid {
		t.Errorf("expected valid, got errors %v", r.Errors)
	}

	if r := ValidateDecay(DecayPolicy{}); r.Valid {
		t.Error("expected empty rule set to fail")
	}
	if r := ValidateDecay(DecayPolicy{Rules: []DecayRule{{InactivityDays: 30, Rate: 1.5}}}); r.Valid {
		t.Error("expected rate above 1 to fail")
	}
	if r := ValidateDecay(DecayPolicy{Rules: []DecayRule{{InactivityDays: 0, Rate: 0.01}}}); r.Valid {
		t.Error("expected zero inactivityDays to fail")
	}
}

func TestValidateDecay_InvertedRatesWarn(t *testing.T) {
	p := DecayPolicy{
		Rules: []DecayRule{{InactivityDays: 30, Rate: 0.05}, {InactivityDays: 90, Rate: 0.01}},
	}
	r := ValidateDecay(p)
	if !r.Valid {
		t.Fatalf("inverted severity should be legal, got errors %v", r.Errors)
	}
	if len(r.Warnings) == 0 {
		t.Error("expected a warning for inverted severity ordering")
	}
}

func TestValidateAccountabilityRates(t *testing.T) {
	if r := ValidateAccountabilityRates(AccountabilityRates{Negative: 0.4, Positive: 0.2}); !r.Valid {
		t.Errorf("expected valid, got errors %v", r.Errors)
	}
	if r := ValidateAccountabilityRates(AccountabilityRates{Negative: 1.4}); r.Valid {
		t.Error("expected rate above 1 to fail")
	}

	r := ValidateAccountabilityRates(AccountabilityRates{Negative: 0.4, Positive: 0.2, Neutral: 0.1})
	if !r.Valid {
		t.Fatalf("nonzero neutral should be legal, got errors %v", r.Errors)
	}
	if len(r.Warnings) == 0 {
		t.Error("expected a warning for nonzero neutral rate")
	}
}

func TestValidateFeatures(t *testing.T) {
	score := 50.0
	ok := FeatureTable{
		"create_listing": {MinSubscriptionTier: "basic", MinTrustScore: &score},
	}
	if r := ValidateFeatures(ok); !r.Valid {
		t.Errorf("expected valid, got errors %v", r.Errors)
	}

	if r := ValidateFeatures(FeatureTable{"f": {MinSubscriptionTier: "platinum"}}); r.Valid {
		t.Error("expected unknown tier to fail")
	}
	bad := 150.0
	if r := ValidateFeatures(FeatureTable{"f": {MinTrustScore: &bad}}); r.Valid {
		t.Error("expected out-of-range minTrustScore to fail")
	}

	r := ValidateFeatures(FeatureTable{"open": {}})
	if !r.Valid || len(r.Warnings) == 0 {
		t.Error("expected requirement-free feature to pass with a warning")
	}
}

func TestValidateUsageLimits(t *testing.T) {
	ok := UsageLimits{"create_listing": {"free": 2, "basic": 10, "premium": -1}}
	if r := ValidateUsageLimits(ok); !r.Valid {
		t.Errorf("expected valid, got errors %v", r.Errors)
	}
	if r := ValidateUsageLimits(UsageLimits{"f": {"gold": 5}}); r.Valid {
		t.Error("expected unknown tier to fail")
	}
	if r := ValidateUsageLimits(UsageLimits{"f": {"free": -2}}); r.Valid {
		t.Error("expected limit below -1 to fail")
	}
}

func TestValidateBadgeTiers(t *testing.T) {
	ok := []BadgeTier{{Type: "host", Bronze: 1, Silver: 5, Gold: 10, Platinum: 25}}
	if r := ValidateBadgeTiers(ok); !r.Valid {
		t.Errorf("expected valid, got errors %v", r.Errors)
	}
	descending := []BadgeTier{{Type: "host", Bronze: 10, Silver: 5, Gold: 3, Platinum: 1}}
	if r := ValidateBadgeTiers(descending); r.Valid {
		t.Error("expected descending thresholds to fail")
	}
	dup := []BadgeTier{
		{Type: "host", Bronze: 1, Silver: 2, Gold: 3, Platinum: 4},
		{Type: "host", Bronze: 1, Silver: 2, Gold: 3, Platinum: 4},
	}
	if r := ValidateBadgeTiers(dup); r.Valid {
		t.Error("expected duplicate badge type to fail")
	}
}

func TestValidate_Dispatch(t *testing.T) {
	r := Validate(CategoryTrust, KeyFormula, json.RawMessage(`{"vouchWeight":0.4,"activityWeight":0.35,"trustMomentWeight":0.25,"primaryWeight":0.2,"secondaryWeight":0.12,"communityWeight":0.08}`))
	if !r.Valid {
		t.Errorf("expected valid formula document, got errors %v", r.Errors)
	}

	r = Validate(CategoryTrust, KeyFormula, json.RawMessage(`{"vouchWeight":"lots"}`))
	if r.Valid {
		t.Error("expected malformed document to fail")
	}

	r = Validate("experimental", "new_thing", json.RawMessage(`{"anything":true}`))
	if !r.Valid || len(r.Warnings) == 0 {
		t.Error("expected unknown key to pass with a warning")
	}

	r = Validate("experimental", "new_thing", json.RawMessage(`{not json`))
	if r.Valid {
		t.Error("expected invalid JSON to fail even without a validator")
	}
}
