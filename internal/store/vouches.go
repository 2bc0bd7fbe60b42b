package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type VouchType string

const (
	VouchPrimary   VouchType = "primary"
	VouchSecondary VouchType = "secondary"
	VouchCommunity VouchType = "community"
)

type Vouch struct {
	ID        uuid.UUID
	VoucherID uuid.UUID
	VoucheeID uuid.UUID
	Type      VouchType
	Status    string
	CreatedAt time.Time
}

// Only approved or active vouches count toward scoring and accountability.
const activeVouchStatuses = `('approved', 'active')`

// ListActiveVouchers returns the active vouches naming the given user as
// vouchee, one per sponsoring voucher.
func (s *Store) ListActiveVouchers(ctx context.Context, voucheeID uuid.UUID) ([]Vouch, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, voucher_id, vouchee_id, vouch_type, status, created_at
		FROM vouches
		WHERE vouchee_id = $1 AND status IN `+activeVouchStatuses+`
		ORDER BY created_at`,
		voucheeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list active vouchers: %w", err)
	}
	defer rows.Close()

	var vouches []Vouch
	for rows.Next() {
		var v Vouch
		if err := rows.Scan(&v.ID, &v.VoucherID, &v.VoucheeID, &v.Type, &v.Status, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan vouch: %w", err)
		}
		vouches = append(vouches, v)
	}
	return vouches, rows.Err()
}

// CountActiveVouchesByType counts active vouches received by a user, grouped
// by vouch type. Absent types are simply missing from the map.
func (s *Store) CountActiveVouchesByType(ctx context.Context, voucheeID uuid.UUID) (map[VouchType]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT vouch_type, COUNT(*)
		FROM vouches
		WHERE vouchee_id = $1 AND status IN `+activeVouchStatuses+`
		GROUP BY vouch_type`,
		voucheeID,
	)
	if err != nil {
		return nil, fmt.Errorf("count vouches: %w", err)
	}
	defer rows.Close()

	counts := make(map[VouchType]int)
	for rows.Next() {
		var t VouchType
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("scan vouch count: %w", err)
		}
		counts[t] = n
	}
	return counts, rows.Err()
}

// CountActiveVouchesGiven counts active vouches a user has extended, used by
// vouch-eligibility checks.
func (s *Store) CountActiveVouchesGiven(ctx context.Context, voucherID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM vouches
		WHERE voucher_id = $1 AND status IN `+activeVouchStatuses,
		voucherID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count vouches given: %w", err)
	}
	return n, nil
}
