package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Tier string

const (
	TierFree    Tier = "free"
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
)

// TierRank orders tiers for comparison. Unknown tiers rank below free.
func TierRank(t Tier) int {
	switch t {
	case TierFree:
		return 0
	case TierBasic:
		return 1
	case TierPremium:
		return 2
	default:
		return -1
	}
}

type Subscription struct {
	UserID      uuid.UUID
	Tier        Tier
	Status      string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// GetSubscription returns the user's current subscription. Callers fall back
// to the free tier on ErrSubscriptionNotFound.
func (s *Store) GetSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, tier, status, period_start, period_end
		FROM subscriptions
		WHERE user_id = $1 AND status = 'active'
		ORDER BY period_end DESC
		LIMIT 1`,
		userID,
	)
	var sub Subscription
	err := row.Scan(&sub.UserID, &sub.Tier, &sub.Status, &sub.PeriodStart, &sub.PeriodEnd)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return &sub, nil
}

// CountFeatureUsage counts a user's recorded uses of a feature since the
// given time (rolling window, not calendar month).
func (s *Store) CountFeatureUsage(ctx context.Context, userID uuid.UUID, feature string, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM feature_usage
		WHERE user_id = $1 AND feature = $2 AND used_at >= $3`,
		userID, feature, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count feature usage: %w", err)
	}
	return n, nil
}

func (s *Store) RecordFeatureUsage(ctx context.Context, userID uuid.UUID, feature string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO feature_usage (id, user_id, feature, used_at)
		VALUES ($1, $2, $3, now())`,
		uuid.New(), userID, feature,
	)
	if err != nil {
		return fmt.Errorf("record feature usage: %w", err)
	}
	return nil
}
