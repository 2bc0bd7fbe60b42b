// Package decay runs the scheduled batch that depresses trust scores of
// inactive users, warns them beforehand, and rewards prompt returns.
package decay

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/commonstack/trusthub/internal/notify"
	"github.com/commonstack/trusthub/internal/platformconfig"
	"github.com/commonstack/trusthub/internal/store"
	"github.com/commonstack/trusthub/internal/trust"
)

// Store is the slice of the durable store the decay job needs.
type Store interface {
	ListInactiveUsers(ctx context.Context, minDays int) ([]store.InactiveUser, error)
	ListUsersInactiveExactly(ctx context.Context, days int) ([]store.InactiveUser, error)
	ListReactivationCandidates(ctx context.Context, window time.Duration) ([]store.ReactivationCandidate, error)
	ApplyTrustDelta(ctx context.Context, userID uuid.UUID, delta float64, entry store.HistoryEntry) (float64, float64, error)
	UpdateTrustLevel(ctx context.Context, userID uuid.UUID, level string) error
}

type Notifier interface {
	Notify(userID uuid.UUID, kind string, payload map[string]any)
}

type Job struct {
	store    Store
	configs  platformconfig.Provider
	notifier Notifier
	logger   *slog.Logger

	// The three phases are not safe to overlap with themselves; a run that
	// finds the lock held is skipped, not queued.
	mu sync.Mutex
}

func NewJob(st Store, configs platformconfig.Provider, notifier Notifier, logger *slog.Logger) *Job {
	return &Job{store: st, configs: configs, notifier: notifier, logger: logger}
}

// Summary reports one decay run.
type Summary struct {
	Warned  int  `json:"warned"`
	Decayed int  `json:"decayed"`
	Bonused int  `json:"bonused"`
	Failed  int  `json:"failed"`
	Skipped bool `json:"skipped"`
}

// Run executes warnings, decay, and reactivation bonuses sequentially.
// Phase order matters: warnings must land before scores move.
func (j *Job) Run(ctx context.Context) (*Summary, error) {
	if !j.mu.TryLock() {
		j.logger.Warn("decay run already in progress, skipping")
		return &Summary{Skipped: true}, nil
	}
	defer j.mu.Unlock()

	policy, err := j.configs.Decay(ctx)
	if err != nil {
		return nil, fmt.Errorf("load decay policy: %w", err)
	}
	if len(policy.Rules) == 0 {
		j.logger.Warn("no decay rules configured, nothing to do")
		return &Summary{}, nil
	}

	var s Summary
	j.sendWarnings(ctx, policy, &s)
	j.applyDecay(ctx, policy, &s)
	j.grantReactivationBonuses(ctx, policy, &s)

	j.logger.Info("decay run finished",
		"warned", s.Warned, "decayed", s.Decayed, "bonused", s.Bonused, "failed", s.Failed)
	return &s, nil
}

// sendWarnings notifies users sitting exactly warningDays short of the
// minimum inactivity threshold.
func (j *Job) sendWarnings(ctx context.Context, policy platformconfig.DecayPolicy, s *Summary) {
	if policy.WarningDays <= 0 {
		return
	}
	threshold := minInactivityDays(policy.Rules)
	warnAt := threshold - policy.WarningDays
	if warnAt <= 0 {
		return
	}

	users, err := j.store.ListUsersInactiveExactly(ctx, warnAt)
	if err != nil {
		j.logger.Error("warning phase failed", "error", err)
		return
	}
	for _, u := range users {
		j.notifier.Notify(u.ID, notify.KindDecayWarning, map[string]any{
			"inactiveDays":  u.InactiveDays,
			"daysRemaining": policy.WarningDays,
			"currentScore":  u.TrustScore,
		})
		s.Warned++
	}
}

func (j *Job) applyDecay(ctx context.Context, policy platformconfig.DecayPolicy, s *Summary) {
	threshold := minInactivityDays(policy.Rules)
	candidates, err := j.store.ListInactiveUsers(ctx, threshold)
	if err != nil {
		j.logger.Error("decay candidate query failed", "error", err)
		return
	}

	var bands []platformconfig.LevelBand
	if b, err := j.configs.Levels(ctx); err == nil {
		bands = b
	}

	for _, u := range candidates {
		rule, ok := matchRule(policy.Rules, u.InactiveDays)
		if !ok {
			continue
		}
		amount := u.TrustScore * rule.Rate
		if amount <= 0 {
			continue
		}

		_, newScore, err := j.store.ApplyTrustDelta(ctx, u.ID, -amount, store.HistoryEntry{
			Reason:   fmt.Sprintf("trust decay after %d days of inactivity", u.InactiveDays),
			Category: store.HistoryDecay,
			Metadata: map[string]any{
				"inactiveDays":       u.InactiveDays,
				"ruleInactivityDays": rule.InactivityDays,
				"rate":               rule.Rate,
				"lastActivity":       u.LastActivity.UTC().Format(time.RFC3339),
			},
		})
		if err != nil {
			j.logger.Error("decay apply failed", "user_id", u.ID, "error", err)
			s.Failed++
			continue
		}

		if err := j.store.UpdateTrustLevel(ctx, u.ID, trust.LevelFor(bands, newScore)); err != nil {
			j.logger.Warn("trust level refresh failed", "user_id", u.ID, "error", err)
		}

		j.notifier.Notify(u.ID, notify.KindTrustDecay, map[string]any{
			"inactiveDays": u.InactiveDays,
			"decayAmount":  amount,
			"newScore":     newScore,
		})
		s.Decayed++
	}
}

// grantReactivationBonuses rewards users who came back promptly after a
// decay event: a one-time credit of the configured points, never more than
// what the decay took.
func (j *Job) grantReactivationBonuses(ctx context.Context, policy platformconfig.DecayPolicy, s *Summary) {
	if policy.ReactivationBonusPoints <= 0 || policy.ReactivationWindowDays <= 0 {
		return
	}

	window := time.Duration(policy.ReactivationWindowDays) * 24 * time.Hour
	candidates, err := j.store.ListReactivationCandidates(ctx, window)
	if err != nil {
		j.logger.Error("reactivation candidate query failed", "error", err)
		return
	}

	var bands []platformconfig.LevelBand
	if b, err := j.configs.Levels(ctx); err == nil {
		bands = b
	}

	for _, c := range candidates {
		bonus := math.Min(policy.ReactivationBonusPoints, c.DecayAmount)
		if bonus <= 0 {
			continue
		}

		_, newScore, err := j.store.ApplyTrustDelta(ctx, c.UserID, bonus, store.HistoryEntry{
			Reason:   "reactivation bonus",
			Category: store.HistoryActivity,
			Metadata: map[string]any{
				"decayedAt":   c.DecayedAt.UTC().Format(time.RFC3339),
				"decayAmount": c.DecayAmount,
				"bonus":       bonus,
			},
		})
		if err != nil {
			j.logger.Error("reactivation bonus failed", "user_id", c.UserID, "error", err)
			s.Failed++
			continue
		}

		if err := j.store.UpdateTrustLevel(ctx, c.UserID, trust.LevelFor(bands, newScore)); err != nil {
			j.logger.Warn("trust level refresh failed", "user_id", c.UserID, "error", err)
		}

		j.notifier.Notify(c.UserID, notify.KindReactivationBonus, map[string]any{
			"bonus":    bonus,
			"newScore": newScore,
		})
		s.Bonused++
	}
}

// matchRule picks the most severe rule matching the inactivity span: rules
// sorted by inactivityDays descending, first match wins.
func matchRule(rules []platformconfig.DecayRule, inactiveDays int) (platformconfig.DecayRule, bool) {
	sorted := make([]platformconfig.DecayRule, len(rules))
	copy(sorted, rules)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].InactivityDays > sorted[j].InactivityDays })

	for _, r := range sorted {
		if inactiveDays >= r.InactivityDays {
			return r, true
		}
	}
	return platformconfig.DecayRule{}, false
}

func minInactivityDays(rules []platformconfig.DecayRule) int {
	minDays := rules[0].InactivityDays
	for _, r := range rules[1:] {
		if r.InactivityDays < minDays {
			minDays = r.InactivityDays
		}
	}
	return minDays
}
