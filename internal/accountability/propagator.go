// Package accountability propagates the consequences of a vouchee's
// behavior onto the trust scores of their active vouchers.
package accountability

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/commonstack/trusthub/internal/notify"
	"github.com/commonstack/trusthub/internal/platformconfig"
	"github.com/commonstack/trusthub/internal/store"
	"github.com/commonstack/trusthub/internal/trust"
)

// Store is the slice of the durable store the propagator needs.
type Store interface {
	ListActiveVouchers(ctx context.Context, voucheeID uuid.UUID) ([]store.Vouch, error)
	InsertAccountabilityLog(ctx context.Context, l *store.AccountabilityLog) error
	GetAccountabilityLog(ctx context.Context, id uuid.UUID) (*store.AccountabilityLog, error)
	MarkLogProcessed(ctx context.Context, id uuid.UUID) (bool, error)
	ListUnprocessedLogs(ctx context.Context, limit int) ([]store.AccountabilityLog, error)
	ListLogsByVoucher(ctx context.Context, voucherID uuid.UUID, limit int) ([]store.AccountabilityLog, error)
	ApplyTrustDelta(ctx context.Context, userID uuid.UUID, delta float64, entry store.HistoryEntry) (float64, float64, error)
	UpdateTrustLevel(ctx context.Context, userID uuid.UUID, level string) error
}

type Notifier interface {
	Notify(userID uuid.UUID, kind string, payload map[string]any)
}

type Propagator struct {
	store    Store
	configs  platformconfig.Provider
	notifier Notifier
	logger   *slog.Logger
}

func NewPropagator(st Store, configs platformconfig.Provider, notifier Notifier, logger *slog.Logger) *Propagator {
	return &Propagator{store: st, configs: configs, notifier: notifier, logger: logger}
}

// sweepBatchSize bounds one recovery sweep.
const sweepBatchSize = 500

// RecordEvent fans a vouchee behavioral event out to every active voucher:
// one unprocessed log each, then an inline processing attempt per log.
// A processing failure leaves its log unprocessed for the sweep and never
// aborts the other vouchers. Returns the number of logs created.
func (p *Propagator) RecordEvent(ctx context.Context, voucheeID uuid.UUID, impact store.ImpactType, impactValue float64, reason string, relatedEntityType, relatedEntityID string, metadata map[string]any) (int, error) {
	vouches, err := p.store.ListActiveVouchers(ctx, voucheeID)
	if err != nil {
		return 0, fmt.Errorf("list active vouchers: %w", err)
	}
	if len(vouches) == 0 {
		return 0, nil
	}

	created := 0
	for _, v := range vouches {
		log := &store.AccountabilityLog{
			ID:                uuid.New(),
			VoucherID:         v.VoucherID,
			VoucheeID:         voucheeID,
			VouchID:           v.ID,
			ImpactType:        impact,
			ImpactValue:       impactValue,
			Description:       reason,
			RelatedEntityType: relatedEntityType,
			RelatedEntityID:   relatedEntityID,
			Metadata:          metadata,
		}
		if err := p.store.InsertAccountabilityLog(ctx, log); err != nil {
			p.logger.Error("accountability log insert failed",
				"voucher_id", v.VoucherID, "vouchee_id", voucheeID, "error", err)
			continue
		}
		created++

		if err := p.Process(ctx, log.ID); err != nil {
			// The sweep will retry it.
			p.logger.Error("inline accountability processing failed",
				"log_id", log.ID, "voucher_id", v.VoucherID, "error", err)
		}
	}
	return created, nil
}

// Process applies one accountability log to its voucher's score. Idempotent:
// an already-processed log is a no-op.
func (p *Propagator) Process(ctx context.Context, logID uuid.UUID) error {
	log, err := p.store.GetAccountabilityLog(ctx, logID)
	if err != nil {
		return err
	}
	if log.IsProcessed {
		return nil
	}

	rates, err := p.configs.AccountabilityRates(ctx)
	if err != nil {
		return fmt.Errorf("load accountability rates: %w", err)
	}
	delta := deltaFor(rates, log.ImpactType, log.ImpactValue)

	if delta != 0 {
		_, newScore, err := p.store.ApplyTrustDelta(ctx, log.VoucherID, delta, store.HistoryEntry{
			Reason:            fmt.Sprintf("accountability for vouchee %s: %s", log.VoucheeID, log.Description),
			Category:          store.HistoryAccountability,
			RelatedEntityType: "accountability_log",
			RelatedEntityID:   log.ID.String(),
			Metadata: map[string]any{
				"voucheeId":   log.VoucheeID.String(),
				"impactType":  string(log.ImpactType),
				"impactValue": log.ImpactValue,
				"delta":       delta,
			},
		})
		if err != nil {
			return fmt.Errorf("apply accountability delta: %w", err)
		}

		if bands, err := p.configs.Levels(ctx); err == nil {
			if err := p.store.UpdateTrustLevel(ctx, log.VoucherID, trust.LevelFor(bands, newScore)); err != nil {
				p.logger.Warn("trust level refresh failed", "user_id", log.VoucherID, "error", err)
			}
		}

		p.notifier.Notify(log.VoucherID, notify.KindAccountabilityImpact, map[string]any{
			"voucheeId":   log.VoucheeID.String(),
			"impactType":  string(log.ImpactType),
			"impactValue": log.ImpactValue,
			"delta":       delta,
			"newScore":    newScore,
			"reason":      log.Description,
		})
	}

	if _, err := p.store.MarkLogProcessed(ctx, logID); err != nil {
		return fmt.Errorf("mark log processed: %w", err)
	}
	return nil
}

// ProcessUnprocessed is the recovery sweep for logs whose inline processing
// failed. Oldest first, per-log failure isolation.
func (p *Propagator) ProcessUnprocessed(ctx context.Context) (processed, failed int, err error) {
	logs, err := p.store.ListUnprocessedLogs(ctx, sweepBatchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("list unprocessed logs: %w", err)
	}

	for _, log := range logs {
		if err := p.Process(ctx, log.ID); err != nil {
			p.logger.Error("sweep processing failed", "log_id", log.ID, "error", err)
			failed++
			continue
		}
		processed++
	}
	if len(logs) > 0 {
		p.logger.Info("accountability sweep finished", "processed", processed, "failed", failed)
	}
	return processed, failed, nil
}

// deltaFor derives the voucher score delta from the stored raw impact value.
// Negative impact deducts, positive credits, neutral defaults to no movement.
func deltaFor(rates platformconfig.AccountabilityRates, impact store.ImpactType, value float64) float64 {
	switch impact {
	case store.ImpactNegative:
		return -value * rates.Negative
	case store.ImpactPositive:
		return value * rates.Positive
	default:
		return value * rates.Neutral
	}
}
