package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type MomentStats struct {
	Count     int
	AvgRating float64
}

// PublicMomentStats aggregates the public trust moments received by a user.
// Private moments never influence the score.
func (s *Store) PublicMomentStats(ctx context.Context, receiverID uuid.UUID) (MomentStats, error) {
	var stats MomentStats
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(AVG(rating), 0)
		FROM trust_moments
		WHERE receiver_id = $1 AND is_public`,
		receiverID,
	).Scan(&stats.Count, &stats.AvgRating)
	if err != nil {
		return MomentStats{}, fmt.Errorf("public moment stats: %w", err)
	}
	return stats, nil
}
