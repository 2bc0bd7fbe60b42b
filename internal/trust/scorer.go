// Package trust computes the 0-100 composite trust score from weighted
// vouch, activity, and trust-moment sub-scores.
package trust

import (
	"math"

	"github.com/commonstack/trusthub/internal/platformconfig"
)

// Scoring-time cardinality caps per vouch type. Only this many vouches of
// each type can contribute, regardless of how many exist.
const (
	maxPrimaryVouches   = 1
	maxSecondaryVouches = 3
	maxCommunityVouches = 2
)

// Caps on the trust-moments volume bonus.
const (
	momentBonusPerMoment = 0.3
	momentBonusCap       = 10
)

// VouchSubScore computes the 0-100 vouch sub-score. The configured vouch
// sub-weights sum to the overall vouch weight, so they are normalized here;
// the composite applies the vouch weight once.
func VouchSubScore(f platformconfig.TrustFormula, primary, secondary, community int) float64 {
	if f.VouchWeight <= 0 {
		return 0
	}

	score := 0.0
	if primary >= 1 {
		// Primary vouching is binary: one active primary vouch earns the
		// full primary share, extras earn nothing.
		score += f.PrimaryWeight / f.VouchWeight * 100
	}
	score += f.SecondaryWeight / f.VouchWeight * 100 *
		float64(min(secondary, maxSecondaryVouches)) / maxSecondaryVouches
	score += f.CommunityWeight / f.VouchWeight * 100 *
		float64(min(community, maxCommunityVouches)) / maxCommunityVouches

	return clamp(score, 0, 100)
}

// ActivityCounts are the raw behavioral counters feeding the activity
// sub-score.
type ActivityCounts struct {
	EventsAttended    int
	EventsHosted      int
	CommunitiesJoined int
	ServicesProvided  int
}

// ActivitySubScore is the weighted counter sum clamped to the configured
// maximum. The cap is the ceiling; there is no rescale to 100.
func ActivitySubScore(w platformconfig.ActivityWeights, c ActivityCounts) float64 {
	score := float64(c.EventsAttended)*w.EventsAttended +
		float64(c.EventsHosted)*w.EventsHosted +
		float64(c.CommunitiesJoined)*w.CommunitiesJoined +
		float64(c.ServicesProvided)*w.ServicesProvided
	return clamp(score, 0, w.MaxScore)
}

// MomentSubScore converts the average rating of public trust moments into a
// 0-100 sub-score with a small volume bonus. Zero moments score zero.
func MomentSubScore(avgRating float64, count int) float64 {
	if count <= 0 {
		return 0
	}
	score := avgRating/5*100 + math.Min(float64(count)*momentBonusPerMoment, momentBonusCap)
	return clamp(score, 0, 100)
}

// Composite combines the three sub-scores under the formula weights.
func Composite(f platformconfig.TrustFormula, vouch, activity, moments float64) float64 {
	score := f.VouchWeight*vouch + f.ActivityWeight*activity + f.TrustMomentWeight*moments
	return clamp(score, 0, 100)
}

// FallbackBands returns the fixed 6-band ladder used when no band
// configuration matches.
func FallbackBands() []platformconfig.LevelBand {
	out := make([]platformconfig.LevelBand, len(fallbackBands))
	copy(out, fallbackBands)
	return out
}

var fallbackBands = []platformconfig.LevelBand{
	{Level: "newcomer", Min: 0, Max: 19},
	{Level: "participant", Min: 20, Max: 34},
	{Level: "contributor", Min: 35, Max: 49},
	{Level: "established", Min: 50, Max: 64},
	{Level: "trusted", Min: 65, Max: 79},
	{Level: "pillar", Min: 80, Max: 100},
}

// LevelFor derives the level label for a score: the first configured band
// containing the score wins; failing that, the highest configured band below
// it; failing that, the fixed fallback ladder.
func LevelFor(bands []platformconfig.LevelBand, score float64) string {
	if level, ok := levelIn(bands, score); ok {
		return level
	}
	level, _ := levelIn(fallbackBands, score)
	return level
}

func levelIn(bands []platformconfig.LevelBand, score float64) (string, bool) {
	for _, b := range bands {
		if score >= b.Min && score <= b.Max {
			return b.Level, true
		}
	}
	// Fractional scores can land in the seam between integer bands.
	best := ""
	bestMin := math.Inf(-1)
	for _, b := range bands {
		if b.Min <= score && b.Min > bestMin {
			best = b.Level
			bestMin = b.Min
		}
	}
	return best, best != ""
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
