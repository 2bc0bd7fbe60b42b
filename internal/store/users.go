package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type User struct {
	ID                uuid.UUID
	DisplayName       string
	TrustScore        float64
	TrustLevel        string
	EventsAttended    int
	EventsHosted      int
	CommunitiesJoined int
	ServicesProvided  int
	CreatedAt         time.Time
}

// lastActivityExpr computes a user's most recent activity timestamp across
// every signal we track, falling back to account creation for users who
// have never done anything.
const lastActivityExpr = `GREATEST(
	COALESCE(u.last_event_at, u.created_at),
	COALESCE(u.last_moment_given_at, u.created_at),
	COALESCE(u.last_listing_at, u.created_at),
	COALESCE(u.last_connection_at, u.created_at),
	u.created_at
)`

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, display_name, trust_score, trust_level,
		       events_attended, events_hosted, communities_joined, services_provided,
		       created_at
		FROM users
		WHERE id = $1`,
		id,
	)

	var u User
	err := row.Scan(&u.ID, &u.DisplayName, &u.TrustScore, &u.TrustLevel,
		&u.EventsAttended, &u.EventsHosted, &u.CommunitiesJoined, &u.ServicesProvided,
		&u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *Store) ListUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetTrustScore writes an absolute score and level. When entry is non-nil a
// history row is appended in the same transaction, so the ledger can never
// drift from the live field.
func (s *Store) SetTrustScore(ctx context.Context, userID uuid.UUID, score float64, level string, entry *HistoryEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE users SET trust_score = $2, trust_level = $3, updated_at = now()
		WHERE id = $1`,
		userID, score, level,
	)
	if err != nil {
		return fmt.Errorf("update trust score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	if entry != nil {
		if err := appendHistoryTx(ctx, tx, *entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ApplyTrustDelta applies a clamped score delta atomically at the store
// layer, so concurrent writers from different triggers cannot lose updates.
// The history row is filled in with the actual previous/new values and
// written in the same transaction. Returns the previous and new scores.
func (s *Store) ApplyTrustDelta(ctx context.Context, userID uuid.UUID, delta float64, entry HistoryEntry) (float64, float64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE users u
		SET trust_score = LEAST(100, GREATEST(0, u.trust_score + $2)), updated_at = now()
		FROM (SELECT trust_score AS prev FROM users WHERE id = $1 FOR UPDATE) p
		WHERE u.id = $1
		RETURNING p.prev, u.trust_score`,
		userID, delta,
	)

	var prev, next float64
	if err := row.Scan(&prev, &next); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrUserNotFound
		}
		return 0, 0, fmt.Errorf("apply trust delta: %w", err)
	}

	entry.UserID = userID
	entry.PreviousScore = prev
	entry.NewScore = next
	if err := appendHistoryTx(ctx, tx, entry); err != nil {
		return 0, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	return prev, next, nil
}

// UpdateTrustLevel refreshes the derived level label without touching the score.
func (s *Store) UpdateTrustLevel(ctx context.Context, userID uuid.UUID, level string) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET trust_level = $2, updated_at = now() WHERE id = $1`, userID, level)
	if err != nil {
		return fmt.Errorf("update trust level: %w", err)
	}
	return nil
}

// activityColumns maps behavioral event kinds to the counter and timestamp
// they touch. Kinds outside this map are rejected.
var activityColumns = map[string]struct{ counter, touched string }{
	"event_attended":    {"events_attended", "last_event_at"},
	"event_hosted":      {"events_hosted", "last_event_at"},
	"community_joined":  {"communities_joined", "last_connection_at"},
	"service_provided":  {"services_provided", "last_listing_at"},
	"moment_given":      {"", "last_moment_given_at"},
	"connection_made":   {"", "last_connection_at"},
	"listing_published": {"", "last_listing_at"},
}

// RecordActivity bumps the counter for a behavioral event kind (when it has
// one) and touches the matching last-activity timestamp.
func (s *Store) RecordActivity(ctx context.Context, userID uuid.UUID, kind string) error {
	cols, ok := activityColumns[kind]
	if !ok {
		return fmt.Errorf("unknown activity kind %q", kind)
	}

	query := `UPDATE users SET ` + cols.touched + ` = now(), updated_at = now() WHERE id = $1`
	if cols.counter != "" {
		query = `UPDATE users SET ` + cols.counter + ` = ` + cols.counter + ` + 1, ` +
			cols.touched + ` = now(), updated_at = now() WHERE id = $1`
	}

	tag, err := s.pool.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

type InactiveUser struct {
	ID           uuid.UUID
	TrustScore   float64
	LastActivity time.Time
	InactiveDays int
}

// ListInactiveUsers returns users with a positive score whose last activity
// is at least minDays in the past.
func (s *Store) ListInactiveUsers(ctx context.Context, minDays int) ([]InactiveUser, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.id, u.trust_score, `+lastActivityExpr+` AS last_activity,
		       (now()::date - (`+lastActivityExpr+`)::date) AS inactive_days
		FROM users u
		WHERE u.trust_score > 0
		  AND `+lastActivityExpr+` < now() - make_interval(days => $1)
		ORDER BY last_activity`,
		minDays,
	)
	if err != nil {
		return nil, fmt.Errorf("list inactive users: %w", err)
	}
	defer rows.Close()
	return scanInactiveUsers(rows)
}

// ListUsersInactiveExactly returns users whose inactivity is exactly the
// given number of whole days, used for pre-decay warnings.
func (s *Store) ListUsersInactiveExactly(ctx context.Context, days int) ([]InactiveUser, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.id, u.trust_score, `+lastActivityExpr+` AS last_activity,
		       (now()::date - (`+lastActivityExpr+`)::date) AS inactive_days
		FROM users u
		WHERE u.trust_score > 0
		  AND (now()::date - (`+lastActivityExpr+`)::date) = $1`,
		days,
	)
	if err != nil {
		return nil, fmt.Errorf("list users nearing decay: %w", err)
	}
	defer rows.Close()
	return scanInactiveUsers(rows)
}

func scanInactiveUsers(rows pgx.Rows) ([]InactiveUser, error) {
	var users []InactiveUser
	for rows.Next() {
		var u InactiveUser
		if err := rows.Scan(&u.ID, &u.TrustScore, &u.LastActivity, &u.InactiveDays); err != nil {
			return nil, fmt.Errorf("scan inactive user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
