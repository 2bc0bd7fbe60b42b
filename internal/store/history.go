package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// History categories. Every score mutation carries one so a single ledger
// serves all sources without losing origin.
const (
	HistoryActivity       = "activity"
	HistoryDecay          = "decay"
	HistoryAccountability = "accountability"
	HistoryRecalculation  = "recalculation"
)

type HistoryEntry struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	PreviousScore     float64
	NewScore          float64
	Reason            string
	Category          string
	RelatedEntityType string
	RelatedEntityID   string
	Metadata          map[string]any
	CreatedAt         time.Time
}

// appendHistoryTx inserts a ledger row inside the caller's transaction.
// The ledger is append-only; there is no update or delete path.
func appendHistoryTx(ctx context.Context, tx pgx.Tx, e HistoryEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO trust_score_history
			(id, user_id, previous_score, new_score, reason, category,
			 related_entity_type, related_entity_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())`,
		uuid.New(), e.UserID, e.PreviousScore, e.NewScore, e.Reason, e.Category,
		e.RelatedEntityType, e.RelatedEntityID, e.Metadata,
	)
	if err != nil {
		return fmt.Errorf("append score history: %w", err)
	}
	return nil
}

func (s *Store) ListScoreHistory(ctx context.Context, userID uuid.UUID, limit int) ([]HistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, previous_score, new_score, reason, category,
		       related_entity_type, related_entity_id, metadata, created_at
		FROM trust_score_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list score history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.PreviousScore, &e.NewScore, &e.Reason,
			&e.Category, &e.RelatedEntityType, &e.RelatedEntityID, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type ReactivationCandidate struct {
	UserID      uuid.UUID
	DecayedAt   time.Time
	DecayAmount float64
}

// ListReactivationCandidates finds users whose most recent decay inside the
// window was followed by fresh activity and who have not already been granted
// a bonus for it.
func (s *Store) ListReactivationCandidates(ctx context.Context, window time.Duration) ([]ReactivationCandidate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (h.user_id)
		       h.user_id, h.created_at, h.previous_score - h.new_score
		FROM trust_score_history h
		JOIN users u ON u.id = h.user_id
		WHERE h.category = 'decay'
		  AND h.created_at > now() - $1::interval
		  AND `+lastActivityExpr+` > h.created_at
		  AND NOT EXISTS (
			SELECT 1 FROM trust_score_history b
			WHERE b.user_id = h.user_id
			  AND b.category = 'activity'
			  AND b.reason = 'reactivation bonus'
			  AND b.created_at > h.created_at
		  )
		ORDER BY h.user_id, h.created_at DESC`,
		window,
	)
	if err != nil {
		return nil, fmt.Errorf("list reactivation candidates: %w", err)
	}
	defer rows.Close()

	var out []ReactivationCandidate
	for rows.Next() {
		var c ReactivationCandidate
		if err := rows.Scan(&c.UserID, &c.DecayedAt, &c.DecayAmount); err != nil {
			return nil, fmt.Errorf("scan reactivation candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
