package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ConfigRecord struct {
	ID        uuid.UUID
	Category  string
	Key       string
	Value     json.RawMessage
	Version   int
	UpdatedBy string
	UpdatedAt time.Time
}

func (s *Store) GetConfig(ctx context.Context, category, key string) (*ConfigRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, category, key, value, version, updated_by, updated_at
		FROM platform_configs
		WHERE category = $1 AND key = $2`,
		category, key,
	)
	var c ConfigRecord
	err := row.Scan(&c.ID, &c.Category, &c.Key, &c.Value, &c.Version, &c.UpdatedBy, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}
	return &c, nil
}

func (s *Store) ListConfig(ctx context.Context, category string) ([]ConfigRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, category, key, value, version, updated_by, updated_at
		FROM platform_configs
		WHERE category = $1
		ORDER BY key`,
		category,
	)
	if err != nil {
		return nil, fmt.Errorf("list config: %w", err)
	}
	defer rows.Close()

	var records []ConfigRecord
	for rows.Next() {
		var c ConfigRecord
		if err := rows.Scan(&c.ID, &c.Category, &c.Key, &c.Value, &c.Version, &c.UpdatedBy, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		records = append(records, c)
	}
	return records, rows.Err()
}

// UpdateConfig replaces the value of an existing config row, bumps its
// version, and appends the change to the history ledger in one transaction.
// Creating new keys through this path is deliberately not supported.
func (s *Store) UpdateConfig(ctx context.Context, category, key string, newValue json.RawMessage, changedBy, reason string) (*ConfigRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT id, value, version FROM platform_configs
		WHERE category = $1 AND key = $2
		FOR UPDATE`,
		category, key,
	)
	var id uuid.UUID
	var prevValue json.RawMessage
	var version int
	if err := row.Scan(&id, &prevValue, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("lock config row: %w", err)
	}

	updated := ConfigRecord{
		ID:        id,
		Category:  category,
		Key:       key,
		Value:     newValue,
		Version:   version + 1,
		UpdatedBy: changedBy,
	}
	err = tx.QueryRow(ctx, `
		UPDATE platform_configs
		SET value = $2, version = version + 1, updated_by = $3, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		id, newValue, changedBy,
	).Scan(&updated.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update config: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO platform_config_history
			(id, config_id, category, key, previous_value, new_value, changed_by, reason, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`,
		uuid.New(), id, category, key, prevValue, newValue, changedBy, reason,
	)
	if err != nil {
		return nil, fmt.Errorf("append config history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &updated, nil
}
