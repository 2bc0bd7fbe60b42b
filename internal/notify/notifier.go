// Package notify sends fire-and-forget user notifications over the bus.
// Delivery is someone else's problem; failures here are logged and swallowed.
package notify

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/commonstack/trusthub/internal/bus"
)

// Notification kinds emitted by this service.
const (
	KindAccountabilityImpact = "accountability_impact"
	KindDecayWarning         = "decay_warning"
	KindTrustDecay           = "trust_decay"
	KindReactivationBonus    = "reactivation_bonus"
)

type Publisher interface {
	Publish(subject string, data any) error
}

type Notifier struct {
	bus    Publisher
	logger *slog.Logger
}

func New(publisher Publisher, logger *slog.Logger) *Notifier {
	return &Notifier{bus: publisher, logger: logger}
}

// Notify publishes one notification. Errors never propagate to the caller.
func (n *Notifier) Notify(userID uuid.UUID, kind string, payload map[string]any) {
	msg := map[string]any{
		"userId":    userID.String(),
		"kind":      kind,
		"payload":   payload,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if err := n.bus.Publish(bus.SubjectNotify, msg); err != nil {
		n.logger.Warn("notification publish failed", "user_id", userID, "kind", kind, "error", err)
	}
}
