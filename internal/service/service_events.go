package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"equipment_service/internal/cache"
	"equipment_service/internal/metrics"
	"equipment_service/internal/models"
	"equipment_service/internal/policy"
	"equipment_service/internal/repository"

	"github.com/google/uuid"
)

// conflictWindow is how close two open events of the same kind may be.
const conflictWindow = 7 * 24 * time.Hour

type ScheduleInput struct {
	EquipmentID string
	Kind        models.EventKind
	Type        models.EventType // PREVENTIVE when empty
	BaseDate    time.Time        // now when zero
	Notes       string
}

// CompletionOutcome carries what was done during the service.
type CompletionOutcome struct {
	Parts []models.PartUsage
	Notes string
}

type ServiceEventService struct {
	d     *deps
	parts *SparePartsService
}

func (s *ServiceEventService) Schedule(ctx context.Context, in ScheduleInput) (models.ServiceEvent, error) {
	var ev models.ServiceEvent
	err := s.d.inTx(ctx, "schedule service event", func(ctx context.Context, tx *repository.Repository, ob *outbox) error {
		var err error
		ev, err = s.schedule(ctx, tx, ob, in, false)
		return err
	})
	return ev, err
}

// schedule creates the next event at base + frequency. With reuse set, an
// existing open event inside the conflict window is returned instead of a
// ConflictError.
func (s *ServiceEventService) schedule(ctx context.Context, tx *repository.Repository, ob *outbox, in ScheduleInput, reuse bool) (models.ServiceEvent, error) {
	if !in.Kind.Valid() {
		return models.ServiceEvent{}, &ValidationError{Field: "kind", Reason: "must be MAINTENANCE or CALIBRATION"}
	}
	if in.Type == "" {
		in.Type = models.TypePreventive
	}
	if !in.Type.Valid() {
		return models.ServiceEvent{}, &ValidationError{Field: "type", Reason: "must be PREVENTIVE, CORRECTIVE, PREDICTIVE or VERIFICATION"}
	}

	eq, err := loadEquipment(ctx, tx, in.EquipmentID)
	if err != nil {
		return models.ServiceEvent{}, err
	}
	if eq.ServiceState == models.ServiceStateDecommissioned {
		return models.ServiceEvent{}, &InvalidStateError{Entity: models.EntityEquipment, ID: eq.ID, State: string(eq.ServiceState), Op: "schedule service for"}
	}

	now := s.d.clock()
	base := in.BaseDate
	if base.IsZero() {
		base = now
	}
	scheduled := policy.NextServiceDate(eq.RiskClass, base.UTC())

	existing, err := tx.ServiceEvents.FindOpen(ctx, eq.ID, in.Kind, scheduled.Add(-conflictWindow), scheduled.Add(conflictWindow))
	if err != nil {
		return models.ServiceEvent{}, err
	}
	if len(existing) > 0 {
		if reuse {
			return existing[0], nil
		}
		return models.ServiceEvent{}, &ConflictError{
			Reason: "open " + strings.ToLower(string(in.Kind)) + " event " + existing[0].ID +
				" already scheduled on " + existing[0].ScheduledDate.Format(time.DateOnly),
		}
	}

	ev := models.ServiceEvent{
		ID:                uuid.NewString(),
		EquipmentID:       eq.ID,
		Kind:              in.Kind,
		Type:              in.Type,
		ScheduledDate:     scheduled,
		State:             models.EventScheduled,
		Priority:          policy.PriorityFor(eq.RiskClass),
		EstimatedDuration: policy.EstimatedDuration(eq.RiskClass),
		Notes:             in.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := tx.ServiceEvents.Create(ctx, ev); err != nil {
		return models.ServiceEvent{}, err
	}

	// The equipment write also bumps its version, so two concurrent schedules
	// for the same equipment cannot both commit.
	if err := s.d.refreshNextDate(ctx, tx, &eq, ev.Kind); err != nil {
		return models.ServiceEvent{}, err
	}
	if err := s.d.saveEquipment(ctx, tx, ob, &eq); err != nil {
		return models.ServiceEvent{}, err
	}

	if err := s.d.record(ctx, tx, models.EntityServiceEvent, ev.ID, "SCHEDULED", "service event scheduled", map[string]any{
		"equipment_id":   eq.ID,
		"kind":           ev.Kind,
		"type":           ev.Type,
		"scheduled_date": ev.ScheduledDate,
	}); err != nil {
		return models.ServiceEvent{}, err
	}
	ob.metric(func(m *metrics.Collector) { m.EventScheduled(string(ev.Kind)) })
	return ev, nil
}

func (s *ServiceEventService) Start(ctx context.Context, eventID string) (models.ServiceEvent, error) {
	var ev models.ServiceEvent
	err := s.d.inTx(ctx, "start service event", func(ctx context.Context, tx *repository.Repository, ob *outbox) error {
		var err error
		if ev, err = loadEvent(ctx, tx, eventID); err != nil {
			return err
		}
		if ev.State != models.EventScheduled {
			return &InvalidStateError{Entity: models.EntityServiceEvent, ID: ev.ID, State: string(ev.State), Op: "start"}
		}
		eq, err := loadEquipment(ctx, tx, ev.EquipmentID)
		if err != nil {
			return err
		}

		ev.State = models.EventInProgress
		ev.UpdatedAt = s.d.clock()
		if err := tx.ServiceEvents.Update(ctx, &ev); err != nil {
			return err
		}
		if eq.ServiceState == models.ServiceStateActive {
			eq.ServiceState = models.ServiceStateInService
			if err := s.d.saveEquipment(ctx, tx, ob, &eq); err != nil {
				return err
			}
		} else {
			ob.invalidate(cache.OverviewKey(eq.ID))
		}
		return s.d.record(ctx, tx, models.EntityServiceEvent, ev.ID, "STARTED", "service event started", nil)
	})
	return ev, err
}

// Complete closes the event, consumes its parts and, for preventive
// maintenance, schedules the next occurrence. Everything commits together.
func (s *ServiceEventService) Complete(ctx context.Context, eventID string, out CompletionOutcome) (models.ServiceEvent, error) {
	for i, p := range out.Parts {
		if strings.TrimSpace(p.PartID) == "" {
			return models.ServiceEvent{}, &ValidationError{Field: "parts", Reason: "part_id is required"}
		}
		if p.Quantity <= 0 {
			return models.ServiceEvent{}, &ValidationError{Field: "parts", Reason: "quantity must be positive for line " + strconv.Itoa(i+1)}
		}
	}

	var ev models.ServiceEvent
	err := s.d.inTx(ctx, "complete service event", func(ctx context.Context, tx *repository.Repository, ob *outbox) error {
		var err error
		if ev, err = loadEvent(ctx, tx, eventID); err != nil {
			return err
		}
		if !ev.IsOpen() {
			return &InvalidStateError{Entity: models.EntityServiceEvent, ID: ev.ID, State: string(ev.State), Op: "complete"}
		}

		for _, p := range out.Parts {
			if _, err := s.parts.issue(ctx, tx, ob, p.PartID, p.Quantity, "service_event:"+ev.ID); err != nil {
				return err
			}
		}

		now := s.d.clock()
		ev.State = models.EventCompleted
		ev.CompletedDate = &now
		ev.PartsConsumed = append(ev.PartsConsumed, out.Parts...)
		if out.Notes != "" {
			ev.Notes = joinNotes(ev.Notes, out.Notes)
		}
		ev.UpdatedAt = now
		if err := tx.ServiceEvents.Update(ctx, &ev); err != nil {
			return err
		}

		eq, err := loadEquipment(ctx, tx, ev.EquipmentID)
		if err != nil {
			return err
		}
		markServiced(&eq, ev.Kind, now)
		if err := s.d.refreshNextDate(ctx, tx, &eq, ev.Kind); err != nil {
			return err
		}
		if err := s.d.saveEquipment(ctx, tx, ob, &eq); err != nil {
			return err
		}

		if err := s.d.record(ctx, tx, models.EntityServiceEvent, ev.ID, "COMPLETED", "service event completed", map[string]any{
			"parts": len(out.Parts),
		}); err != nil {
			return err
		}
		ob.metric(func(m *metrics.Collector) { m.EventCompleted(string(ev.Kind)) })

		if ev.Kind == models.KindMaintenance && ev.Type == models.TypePreventive {
			_, err := s.schedule(ctx, tx, ob, ScheduleInput{
				EquipmentID: ev.EquipmentID,
				Kind:        models.KindMaintenance,
				Type:        models.TypePreventive,
				BaseDate:    now,
			}, true)
			return err
		}
		return nil
	})
	return ev, err
}

// Cancel stops a non-terminal event. Nothing is rescheduled.
func (s *ServiceEventService) Cancel(ctx context.Context, eventID, reason string) (models.ServiceEvent, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.ServiceEvent{}, &ValidationError{Field: "reason", Reason: "is required"}
	}

	var ev models.ServiceEvent
	err := s.d.inTx(ctx, "cancel service event", func(ctx context.Context, tx *repository.Repository, ob *outbox) error {
		var err error
		if ev, err = loadEvent(ctx, tx, eventID); err != nil {
			return err
		}
		if ev.State.Terminal() {
			return &InvalidStateError{Entity: models.EntityServiceEvent, ID: ev.ID, State: string(ev.State), Op: "cancel"}
		}
		wasRunning := ev.State == models.EventInProgress

		ev.State = models.EventCancelled
		ev.CancelReason = reason
		ev.UpdatedAt = s.d.clock()
		if err := tx.ServiceEvents.Update(ctx, &ev); err != nil {
			return err
		}

		eq, err := loadEquipment(ctx, tx, ev.EquipmentID)
		if err != nil {
			return err
		}
		if wasRunning && eq.ServiceState == models.ServiceStateInService {
			eq.ServiceState = models.ServiceStateActive
		}
		if err := s.d.refreshNextDate(ctx, tx, &eq, ev.Kind); err != nil {
			return err
		}
		if err := s.d.saveEquipment(ctx, tx, ob, &eq); err != nil {
			return err
		}
		return s.d.record(ctx, tx, models.EntityServiceEvent, ev.ID, "CANCELLED", "service event cancelled",
			map[string]any{"reason": reason})
	})
	return ev, err
}

func (s *ServiceEventService) Get(ctx context.Context, id string) (models.ServiceEvent, error) {
	var ev models.ServiceEvent
	err := s.d.read(ctx, "get service event", func(ctx context.Context, tx *repository.Repository) error {
		var err error
		ev, err = loadEvent(ctx, tx, id)
		return err
	})
	return ev, err
}

func (s *ServiceEventService) List(ctx context.Context, f repository.EventFilter) ([]models.ServiceEvent, error) {
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return nil, &ValidationError{Field: "from", Reason: "must be before to"}
	}
	var out []models.ServiceEvent
	err := s.d.read(ctx, "list service events", func(ctx context.Context, tx *repository.Repository) error {
		var err error
		out, err = tx.ServiceEvents.List(ctx, f)
		return err
	})
	return out, err
}

// ListOverdue recomputes overdue events from the store on every call.
func (s *ServiceEventService) ListOverdue(ctx context.Context) ([]models.ServiceEvent, error) {
	now := s.d.clock()
	var out []models.ServiceEvent
	err := s.d.read(ctx, "list overdue service events", func(ctx context.Context, tx *repository.Repository) error {
		var err error
		out, err = tx.ServiceEvents.ListOverdue(ctx, now)
		return err
	})
	return out, err
}

func loadEvent(ctx context.Context, tx *repository.Repository, id string) (models.ServiceEvent, error) {
	ev, err := tx.ServiceEvents.Get(ctx, id)
	if err != nil {
		return models.ServiceEvent{}, notFound(models.EntityServiceEvent, id, err)
	}
	return ev, nil
}

func joinNotes(a, b string) string {
	if a == "" {
		return b
	}
	return a + "\n" + b
}
