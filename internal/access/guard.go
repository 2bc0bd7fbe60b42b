package access

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/commonstack/trusthub/internal/trust"
)

// Denial is the structured payload handed back when a guard blocks a call.
// It tells the user where they stand, what is required, and how to close the
// gap.
type Denial struct {
	Feature        string   `json:"feature"`
	CurrentScore   float64  `json:"currentScore"`
	RequiredScore  float64  `json:"requiredScore,omitempty"`
	CurrentLevel   string   `json:"currentLevel"`
	RequiredLevel  string   `json:"requiredLevel,omitempty"`
	Progress       float64  `json:"progress"`
	EstimatedWeeks int      `json:"estimatedWeeks,omitempty"`
	Suggestions    []string `json:"suggestions"`
	BlockedBy      string   `json:"blockedBy,omitempty"`
}

// RequireTrustLevel enforces a minimum score for a named feature. Returns
// nil when the user clears the bar.
func (g *Gate) RequireTrustLevel(ctx context.Context, userID uuid.UUID, minScore float64, featureName string) (*Denial, error) {
	user, err := g.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TrustScore >= minScore {
		return nil, nil
	}

	bands, err := g.configs.Levels(ctx)
	if err != nil {
		bands = nil
	}

	gap := minScore - user.TrustScore
	return &Denial{
		Feature:        featureName,
		CurrentScore:   user.TrustScore,
		RequiredScore:  minScore,
		CurrentLevel:   user.TrustLevel,
		RequiredLevel:  trust.LevelFor(bands, minScore),
		Progress:       progress(user.TrustScore, minScore),
		EstimatedWeeks: int(math.Ceil(gap / trustPointsPerWeek)),
		Suggestions:    suggestedActions,
		BlockedBy:      BlockedByTrust,
	}, nil
}

// RequireFeature enforces the full dual gate for a configured feature key.
// Returns nil when allowed.
func (g *Gate) RequireFeature(ctx context.Context, userID uuid.UUID, featureKey string) (*Denial, error) {
	decision, err := g.CanAccessFeature(ctx, userID, featureKey)
	if err != nil {
		return nil, err
	}
	if decision.Allowed {
		return nil, nil
	}

	user, err := g.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	d := &Denial{
		Feature:      featureKey,
		CurrentScore: user.TrustScore,
		CurrentLevel: user.TrustLevel,
		BlockedBy:    decision.BlockedBy,
		Suggestions:  suggestedActions,
	}
	if decision.Upgrade != nil {
		if decision.Upgrade.TrustGap > 0 {
			d.RequiredScore = user.TrustScore + decision.Upgrade.TrustGap
			d.EstimatedWeeks = decision.Upgrade.EstimatedWeeks
		}
		if decision.Upgrade.RequiredTier != "" {
			d.Suggestions = append([]string{
				fmt.Sprintf("upgrade to the %s tier", decision.Upgrade.RequiredTier),
			}, suggestedActions...)
		}
	}
	if d.RequiredScore > 0 {
		bands, err := g.configs.Levels(ctx)
		if err != nil {
			bands = nil
		}
		d.RequiredLevel = trust.LevelFor(bands, d.RequiredScore)
		d.Progress = progress(user.TrustScore, d.RequiredScore)
	}
	return d, nil
}

// progress expresses the current score as a percentage of the requirement,
// capped at 100.
func progress(current, required float64) float64 {
	if required <= 0 {
		return 100
	}
	p := current / required * 100
	if p > 100 {
		p = 100
	}
	if p < 0 {
		p = 0
	}
	return math.Round(p*10) / 10
}
