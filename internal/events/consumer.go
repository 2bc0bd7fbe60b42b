// Package events consumes behavioral events from the bus and feeds them
// into counters, score recalculation, and accountability fan-out.
package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/commonstack/trusthub/internal/store"
	"github.com/commonstack/trusthub/internal/trust"
)

// Recalculator recomputes a user's trust score.
type Recalculator interface {
	Calculate(ctx context.Context, userID uuid.UUID) (*trust.Result, error)
}

// Recorder fans a conduct event out across the vouch graph.
type Recorder interface {
	RecordEvent(ctx context.Context, voucheeID uuid.UUID, impact store.ImpactType, impactValue float64, reason string, relatedEntityType, relatedEntityID string, metadata map[string]any) (int, error)
}

// ActivityStore bumps behavioral counters.
type ActivityStore interface {
	RecordActivity(ctx context.Context, userID uuid.UUID, kind string) error
}

type Consumer struct {
	store      ActivityStore
	calculator Recalculator
	propagator Recorder
	logger     *slog.Logger
}

func NewConsumer(st ActivityStore, calc Recalculator, prop Recorder, logger *slog.Logger) *Consumer {
	return &Consumer{store: st, calculator: calc, propagator: prop, logger: logger}
}

// ActivityEvent reports a raw behavioral action by a user.
type ActivityEvent struct {
	UserID string `json:"userId"`
	Kind   string `json:"kind"`
}

// HandleActivityRecorded bumps the matching counter and recomputes the
// user's score. Malformed payloads are logged and dropped.
func (c *Consumer) HandleActivityRecorded(subject string, data []byte) {
	ctx := context.Background()

	var evt ActivityEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger.Warn("malformed activity event", "subject", subject, "error", err)
		return
	}
	userID, err := uuid.Parse(evt.UserID)
	if err != nil {
		c.logger.Warn("invalid user id in activity event", "user_id", evt.UserID, "error", err)
		return
	}

	if err := c.store.RecordActivity(ctx, userID, evt.Kind); err != nil {
		c.logger.Error("activity record failed", "user_id", userID, "kind", evt.Kind, "error", err)
		return
	}
	if _, err := c.calculator.Calculate(ctx, userID); err != nil {
		c.logger.Error("recalculation after activity failed", "user_id", userID, "error", err)
	}
}

// MomentEvent reports a trust moment given between users.
type MomentEvent struct {
	GiverID    string `json:"giverId"`
	ReceiverID string `json:"receiverId"`
	IsPublic   bool   `json:"isPublic"`
}

// HandleMomentReceived recomputes the receiver's score for public moments
// and credits the giver's activity either way.
func (c *Consumer) HandleMomentReceived(subject string, data []byte) {
	ctx := context.Background()

	var evt MomentEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger.Warn("malformed moment event", "subject", subject, "error", err)
		return
	}

	if giverID, err := uuid.Parse(evt.GiverID); err == nil {
		if err := c.store.RecordActivity(ctx, giverID, "moment_given"); err != nil {
			c.logger.Warn("moment giver activity record failed", "user_id", giverID, "error", err)
		}
	}

	if !evt.IsPublic {
		return
	}
	receiverID, err := uuid.Parse(evt.ReceiverID)
	if err != nil {
		c.logger.Warn("invalid receiver id in moment event", "receiver_id", evt.ReceiverID, "error", err)
		return
	}
	if _, err := c.calculator.Calculate(ctx, receiverID); err != nil {
		c.logger.Error("recalculation after moment failed", "user_id", receiverID, "error", err)
	}
}

// VouchEvent reports an approved vouch.
type VouchEvent struct {
	VoucheeID string `json:"voucheeId"`
}

func (c *Consumer) HandleVouchApproved(subject string, data []byte) {
	ctx := context.Background()

	var evt VouchEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger.Warn("malformed vouch event", "subject", subject, "error", err)
		return
	}
	voucheeID, err := uuid.Parse(evt.VoucheeID)
	if err != nil {
		c.logger.Warn("invalid vouchee id in vouch event", "vouchee_id", evt.VoucheeID, "error", err)
		return
	}
	if _, err := c.calculator.Calculate(ctx, voucheeID); err != nil {
		c.logger.Error("recalculation after vouch failed", "user_id", voucheeID, "error", err)
	}
}

// ConductEvent reports vouchee behavior that vouchers answer for.
type ConductEvent struct {
	VoucheeID         string         `json:"voucheeId"`
	ImpactType        string         `json:"impactType"`
	ImpactValue       float64        `json:"impactValue"`
	Reason            string         `json:"reason"`
	RelatedEntityType string         `json:"relatedEntityType,omitempty"`
	RelatedEntityID   string         `json:"relatedEntityId,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

func (c *Consumer) HandleConductReported(subject string, data []byte) {
	ctx := context.Background()

	var evt ConductEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger.Warn("malformed conduct event", "subject", subject, "error", err)
		return
	}
	voucheeID, err := uuid.Parse(evt.VoucheeID)
	if err != nil {
		c.logger.Warn("invalid vouchee id in conduct event", "vouchee_id", evt.VoucheeID, "error", err)
		return
	}

	created, err := c.propagator.RecordEvent(ctx, voucheeID, store.ImpactType(evt.ImpactType),
		evt.ImpactValue, evt.Reason, evt.RelatedEntityType, evt.RelatedEntityID, evt.Metadata)
	if err != nil {
		c.logger.Error("accountability fan-out failed", "vouchee_id", voucheeID, "error", err)
		return
	}
	c.logger.Info("conduct event propagated", "vouchee_id", voucheeID, "vouchers", created)
}
