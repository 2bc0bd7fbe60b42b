package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ImpactType string

const (
	ImpactPositive ImpactType = "positive"
	ImpactNegative ImpactType = "negative"
	ImpactNeutral  ImpactType = "neutral"
)

type AccountabilityLog struct {
	ID                uuid.UUID
	VoucherID         uuid.UUID
	VoucheeID         uuid.UUID
	VouchID           uuid.UUID
	ImpactType        ImpactType
	ImpactValue       float64
	Description       string
	RelatedEntityType string
	RelatedEntityID   string
	Metadata          map[string]any
	IsProcessed       bool
	ProcessedAt       *time.Time
	OccurredAt        time.Time
}

func (s *Store) InsertAccountabilityLog(ctx context.Context, l *AccountabilityLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accountability_logs
			(id, voucher_id, vouchee_id, vouch_id, impact_type, impact_value,
			 description, related_entity_type, related_entity_id, metadata,
			 is_processed, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, false, now())`,
		l.ID, l.VoucherID, l.VoucheeID, l.VouchID, l.ImpactType, l.ImpactValue,
		l.Description, l.RelatedEntityType, l.RelatedEntityID, l.Metadata,
	)
	if err != nil {
		return fmt.Errorf("insert accountability log: %w", err)
	}
	return nil
}

func (s *Store) GetAccountabilityLog(ctx context.Context, id uuid.UUID) (*AccountabilityLog, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, voucher_id, vouchee_id, vouch_id, impact_type, impact_value,
		       description, related_entity_type, related_entity_id, metadata,
		       is_processed, processed_at, occurred_at
		FROM accountability_logs
		WHERE id = $1`,
		id,
	)
	var l AccountabilityLog
	err := row.Scan(&l.ID, &l.VoucherID, &l.VoucheeID, &l.VouchID, &l.ImpactType, &l.ImpactValue,
		&l.Description, &l.RelatedEntityType, &l.RelatedEntityID, &l.Metadata,
		&l.IsProcessed, &l.ProcessedAt, &l.OccurredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLogNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get accountability log: %w", err)
	}
	return &l, nil
}

// MarkLogProcessed flips a log to processed. Returns false when the log was
// already processed, which callers treat as the idempotent no-op signal.
func (s *Store) MarkLogProcessed(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accountability_logs
		SET is_processed = true, processed_at = now()
		WHERE id = $1 AND NOT is_processed`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("mark log processed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListUnprocessedLogs returns unprocessed logs oldest first, for the
// recovery sweep.
func (s *Store) ListUnprocessedLogs(ctx context.Context, limit int) ([]AccountabilityLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, voucher_id, vouchee_id, vouch_id, impact_type, impact_value,
		       description, related_entity_type, related_entity_id, metadata,
		       is_processed, processed_at, occurred_at
		FROM accountability_logs
		WHERE NOT is_processed
		ORDER BY occurred_at
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed logs: %w", err)
	}
	defer rows.Close()
	return scanAccountabilityLogs(rows)
}

func (s *Store) ListLogsByVoucher(ctx context.Context, voucherID uuid.UUID, limit int) ([]AccountabilityLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, voucher_id, vouchee_id, vouch_id, impact_type, impact_value,
		       description, related_entity_type, related_entity_id, metadata,
		       is_processed, processed_at, occurred_at
		FROM accountability_logs
		WHERE voucher_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2`,
		voucherID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list logs by voucher: %w", err)
	}
	defer rows.Close()
	return scanAccountabilityLogs(rows)
}

func scanAccountabilityLogs(rows pgx.Rows) ([]AccountabilityLog, error) {
	var logs []AccountabilityLog
	for rows.Next() {
		var l AccountabilityLog
		if err := rows.Scan(&l.ID, &l.VoucherID, &l.VoucheeID, &l.VouchID, &l.ImpactType, &l.ImpactValue,
			&l.Description, &l.RelatedEntityType, &l.RelatedEntityID, &l.Metadata,
			&l.IsProcessed, &l.ProcessedAt, &l.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan accountability log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
