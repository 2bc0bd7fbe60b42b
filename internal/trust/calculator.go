package trust

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/commonstack/trusthub/internal/platformconfig"
	"github.com/commonstack/trusthub/internal/store"
)

// Store is the slice of the durable store the calculator needs.
type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (*store.User, error)
	ListUserIDs(ctx context.Context) ([]uuid.UUID, error)
	CountActiveVouchesByType(ctx context.Context, voucheeID uuid.UUID) (map[store.VouchType]int, error)
	PublicMomentStats(ctx context.Context, receiverID uuid.UUID) (store.MomentStats, error)
	SetTrustScore(ctx context.Context, userID uuid.UUID, score float64, level string, entry *store.HistoryEntry) error
}

// Calculator recomputes composite trust scores and persists them through the
// history-recording path.
type Calculator struct {
	store   Store
	configs platformconfig.Provider
	logger  *slog.Logger
}

func NewCalculator(st Store, configs platformconfig.Provider, logger *slog.Logger) *Calculator {
	return &Calculator{store: st, configs: configs, logger: logger}
}

// Result is the outcome of one recalculation. The sub-scores are the
// weighted values that entered the composite.
type Result struct {
	UserID        uuid.UUID `json:"userId"`
	Score         float64   `json:"score"`
	Level         string    `json:"level"`
	VouchScore    float64   `json:"vouchScore"`
	ActivityScore float64   `json:"activityScore"`
	MomentScore   float64   `json:"momentScore"`
}

// historyDeltaThreshold is the smallest score change worth a ledger row.
const historyDeltaThreshold = 0.01

// Calculate recomputes a user's composite score and level and persists them.
// Sub-score read failures are logged and treated as zero so one broken
// aggregate cannot zero out the whole pipeline.
func (c *Calculator) Calculate(ctx context.Context, userID uuid.UUID) (*Result, error) {
	user, err := c.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	formula, err := c.configs.Formula(ctx)
	if err != nil {
		return nil, fmt.Errorf("load trust formula: %w", err)
	}

	vouchSub := 0.0
	if counts, err := c.store.CountActiveVouchesByType(ctx, userID); err != nil {
		c.logger.Error("vouch sub-score failed, treating as zero", "user_id", userID, "error", err)
	} else {
		vouchSub = VouchSubScore(formula,
			counts[store.VouchPrimary], counts[store.VouchSecondary], counts[store.VouchCommunity])
	}

	activitySub := 0.0
	if weights, err := c.configs.ActivityWeights(ctx); err != nil {
		c.logger.Error("activity weights unavailable, treating as zero", "user_id", userID, "error", err)
	} else {
		activitySub = ActivitySubScore(weights, ActivityCounts{
			EventsAttended:    user.EventsAttended,
			EventsHosted:      user.EventsHosted,
			CommunitiesJoined: user.CommunitiesJoined,
			ServicesProvided:  user.ServicesProvided,
		})
	}

	momentSub := 0.0
	if stats, err := c.store.PublicMomentStats(ctx, userID); err != nil {
		c.logger.Error("moment sub-score failed, treating as zero", "user_id", userID, "error", err)
	} else {
		momentSub = MomentSubScore(stats.AvgRating, stats.Count)
	}

	composite := Composite(formula, vouchSub, activitySub, momentSub)

	bands, err := c.configs.Levels(ctx)
	if err != nil {
		c.logger.Warn("level bands unavailable, using fallback", "error", err)
		bands = nil
	}
	level := LevelFor(bands, composite)

	result := &Result{
		UserID:        userID,
		Score:         composite,
		Level:         level,
		VouchScore:    formula.VouchWeight * vouchSub,
		ActivityScore: formula.ActivityWeight * activitySub,
		MomentScore:   formula.TrustMomentWeight * momentSub,
	}

	var entry *store.HistoryEntry
	if math.Abs(composite-user.TrustScore) > historyDeltaThreshold {
		entry = &store.HistoryEntry{
			UserID:        userID,
			PreviousScore: user.TrustScore,
			NewScore:      composite,
			Reason:        "trust score recalculated",
			Category:      store.HistoryRecalculation,
			Metadata: map[string]any{
				"vouchScore":    result.VouchScore,
				"activityScore": result.ActivityScore,
				"momentScore":   result.MomentScore,
			},
		}
	}

	if err := c.store.SetTrustScore(ctx, userID, composite, level, entry); err != nil {
		return nil, fmt.Errorf("persist trust score: %w", err)
	}
	return result, nil
}

// BatchResult reports a batch recompute with per-user failure isolation.
type BatchResult struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// RecalculateAll recomputes every user. One user's failure never aborts the
// rest.
func (c *Calculator) RecalculateAll(ctx context.Context) (BatchResult, error) {
	ids, err := c.store.ListUserIDs(ctx)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list users: %w", err)
	}

	var res BatchResult
	for _, id := range ids {
		if _, err := c.Calculate(ctx, id); err != nil {
			c.logger.Error("recalculation failed", "user_id", id, "error", err)
			res.Failed++
			continue
		}
		res.Succeeded++
	}
	c.logger.Info("batch recalculation finished", "succeeded", res.Succeeded, "failed", res.Failed)
	return res, nil
}
