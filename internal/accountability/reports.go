package accountability

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/commonstack/trusthub/internal/store"
)

const reportLimit = 200

// Impact aggregates the accountability pressure on one voucher. Deltas are
// recomputed from the stored raw impact values under the current rates
// rather than trusted from any cached figure.
type Impact struct {
	VoucherID     uuid.UUID `json:"voucherId"`
	TotalDelta    float64   `json:"totalDelta"`
	PositiveCount int       `json:"positiveCount"`
	NegativeCount int       `json:"negativeCount"`
	NeutralCount  int       `json:"neutralCount"`
	Unprocessed   int       `json:"unprocessed"`
}

func (p *Propagator) Impact(ctx context.Context, voucherID uuid.UUID) (*Impact, error) {
	logs, err := p.store.ListLogsByVoucher(ctx, voucherID, reportLimit)
	if err != nil {
		return nil, fmt.Errorf("list voucher logs: %w", err)
	}
	rates, err := p.configs.AccountabilityRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load accountability rates: %w", err)
	}

	impact := &Impact{VoucherID: voucherID}
	for _, l := range logs {
		if !l.IsProcessed {
			impact.Unprocessed++
			continue
		}
		impact.TotalDelta += deltaFor(rates, l.ImpactType, l.ImpactValue)
		switch l.ImpactType {
		case store.ImpactPositive:
			impact.PositiveCount++
		case store.ImpactNegative:
			impact.NegativeCount++
		default:
			impact.NeutralCount++
		}
	}
	return impact, nil
}

// HistoryItem pairs a log with the delta its raw value derives to under the
// current rates.
type HistoryItem struct {
	Log   store.AccountabilityLog `json:"log"`
	Delta float64                 `json:"delta"`
}

func (p *Propagator) History(ctx context.Context, voucherID uuid.UUID, limit int) ([]HistoryItem, error) {
	if limit <= 0 || limit > reportLimit {
		limit = reportLimit
	}
	logs, err := p.store.ListLogsByVoucher(ctx, voucherID, limit)
	if err != nil {
		return nil, fmt.Errorf("list voucher logs: %w", err)
	}
	rates, err := p.configs.AccountabilityRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load accountability rates: %w", err)
	}

	items := make([]HistoryItem, 0, len(logs))
	for _, l := range logs {
		items = append(items, HistoryItem{Log: l, Delta: deltaFor(rates, l.ImpactType, l.ImpactValue)})
	}
	return items, nil
}
