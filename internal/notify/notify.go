// Package notify delivers lifecycle alerts to external sinks. Delivery is
// fire-and-forget: callers log failures and never roll back because of them.
package notify

import (
	"context"
	"errors"
	"time"

	"equipment_service/internal/models"
)

// Notification types.
const (
	TypeEmergencyProtocol   = "emergency_protocol"
	TypeReorderAlert        = "reorder_alert"
	TypeServiceEventOverdue = "service_event.overdue"
	TypeTicketEscalated     = "ticket.escalated"
)

type Notification struct {
	Type       string            `json:"type"`
	Entity     models.EntityKind `json:"entity"`
	EntityID   string            `json:"entity_id"`
	Message    string            `json:"message"`
	Payload    map[string]any    `json:"payload,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Multi fans a notification out to every sink and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) error { return nil }
