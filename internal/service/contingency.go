package service

import (
	"context"
	"strings"

	"equipment_service/internal/cache"
	"equipment_service/internal/metrics"
	"equipment_service/internal/models"
	"equipment_service/internal/notify"
	"equipment_service/internal/policy"
	"equipment_service/internal/repository"

	"github.com/google/uuid"
)

type ReportInput struct {
	EquipmentID string
	FailureType string
	Description string
}

type ResolveInput struct {
	RootCause        string
	Resolution       string
	ScheduleFollowUp bool
}

type ContingencyService struct {
	d      *deps
	events *ServiceEventService
}

func (s *ContingencyService) Report(ctx context.Context, in ReportInput) (models.Contingency, error) {
	failure := strings.ToLower(strings.TrimSpace(in.FailureType))
	if failure == "" {
		return models.Contingency{}, &ValidationError{Field: "failure_type", Reason: "is required"}
	}

	var c models.Contingency
	err := s.d.inTx(ctx, "report contingency", func(ctx context.Context, tx *repository.Repository, ob *outbox) error {
		eq, err := loadEquipment(ctx, tx, in.EquipmentID)
		if err != nil {
			return err
		}
		if eq.ServiceState == models.ServiceStateDecommissioned {
			return &InvalidStateError{Entity: models.EntityEquipment, ID: eq.ID, State: string(eq.ServiceState), Op: "report contingency for"}
		}

		now := s.d.clock()
		severity := policy.DetermineSeverity(eq.IsCritical, failure)
		c = models.Contingency{
			ID:                 uuid.NewString(),
			EquipmentID:        eq.ID,
			FailureType:        failure,
			Description:        strings.TrimSpace(in.Description),
			Severity:           severity,
			State:              models.ContingencyOpen,
			ReportedAt:         now,
			ResolutionDeadline: policy.ResolutionDeadline(severity, now),
		}
		if err := tx.Contingencies.Create(ctx, c); err != nil {
			return err
		}

		eq.HasOpenContingency = true
		if err := s.d.saveEquipment(ctx, tx, ob, &eq); err != nil {
			return err
		}
		if err := s.d.record(ctx, tx, models.EntityContingency, c.ID, "REPORTED", "contingency reported", map[string]any{
			"equipment_id": eq.ID,
			"failure_type": failure,
			"severity":     severity,
		}); err != nil {
			return err
		}

		ob.metric(func(m *metrics.Collector) { m.ContingencyReported(string(severity)) })
		if severity == models.SeverityCritical {
			ob.notify(s.emergency(c, "critical contingency reported"))
		}
		return nil
	})
	return c, err
}

// Escalate raises severity one level and restarts the resolution window from now.
func (s *ContingencyService) Escalate(ctx context.Context, id, reason string) (models.Contingency, error) {
	var c models.Contingency
	err := s.d.inTx(ctx, "escalate contingency", func(ctx context.Context, tx *repository.Repository, ob *outbox) error {
		var err error
		c, err = s.escalate(ctx, tx, ob, id, reason)
		return err
	})
	if err != nil {
		return models.Contingency{}, err
	}
	s.d.log.Infow("contingency_escalated", "contingency_id", c.ID, "severity", c.Severity, "reason", reason)
	return c, nil
}

func (s *ContingencyService) escalate(ctx context.Context, tx *repository.Repository, ob *outbox, id, reason string) (models.Contingency, error) {
	c, err := loadContingency(ctx, tx, id)
	if err != nil {
		return models.Contingency{}, err
	}
	if !c.IsOpen() {
		return models.Contingency{}, &InvalidStateError{Entity: models.EntityContingency, ID: c.ID, State: string(c.State), Op: "escalate"}
	}

	now := s.d.clock()
	from := c.Severity
	c.Severity = policy.EscalateSeverity(c.Severity)
	c.State = models.ContingencyEscalated
	c.EscalatedAt = &now
	c.EscalationCount++
	c.ResolutionDeadline = policy.ResolutionDeadline(c.Severity, now)
	if err := tx.Contingencies.Update(ctx, &c); err != nil {
		return models.Contingency{}, err
	}
	ob.invalidate(cache.OverviewKey(c.EquipmentID))

	if err := s.d.record(ctx, tx, models.EntityContingency, c.ID, "ESCALATED", "contingency escalated", map[string]any{
		"from":   from,
		"to":     c.Severity,
		"reason": reason,
		"count":  c.EscalationCount,
	}); err != nil {
		return models.Contingency{}, err
	}

	severity := c.Severity
	ob.metric(func(m *metrics.Collector) { m.Escalated(string(models.EntityContingency), string(severity)) })
	if c.Severity == models.SeverityCritical {
		ob.notify(s.emergency(c, "contingency escalated to critical"))
	}
	return c, nil
}

// Resolve closes the contingency. A closed contingency is left untouched.
func (s *ContingencyService) Resolve(ctx context.Context, id string, in ResolveInput) (models.Contingency, error) {
	in.Resolution = strings.TrimSpace(in.Resolution)
	in.RootCause = strings.TrimSpace(in.RootCause)
	if in.Resolution == "" {
		return models.Contingency{}, &ValidationError{Field: "resolution", Reason: "is required"}
	}

	var c models.Contingency
	err := s.d.inTx(ctx, "resolve contingency", func(ctx context.Context, tx *repository.Repository, ob *outbox) error {
		var err error
		if c, err = loadContingency(ctx, tx, id); err != nil {
			return err
		}
		if !c.IsOpen() {
			return &InvalidStateError{Entity: models.EntityContingency, ID: c.ID, State: string(c.State), Op: "resolve"}
		}

		now := s.d.clock()
		c.State = models.ContingencyClosed
		c.ClosedAt = &now
		c.RootCause = in.RootCause
		c.Resolution = in.Resolution
		if err := tx.Contingencies.Update(ctx, &c); err != nil {
			return err
		}

		eq, err := loadEquipment(ctx, tx, c.EquipmentID)
		if err != nil {
			return err
		}
		if err := refreshContingencyFlag(ctx, tx, &eq); err != nil {
			return err
		}
		if err := s.d.saveEquipment(ctx, tx, ob, &eq); err != nil {
			return err
		}
		if err := s.d.record(ctx, tx, models.EntityContingency, c.ID, "RESOLVED", "contingency resolved", map[string]any{
			"root_cause": c.RootCause,
			"follow_up":  in.ScheduleFollowUp,
		}); err != nil {
			return err
		}

		if in.ScheduleFollowUp {
			_, err := s.events.schedule(ctx, tx, ob, ScheduleInput{
				EquipmentID: c.EquipmentID,
				Kind:        models.KindMaintenance,
				Type:        models.TypeCorrective,
				BaseDate:    now,
				Notes:       "follow-up of contingency " + c.ID,
			}, true)
			return err
		}
		return nil
	})
	return c, err
}

func (s *ContingencyService) Get(ctx context.Context, id string) (models.Contingency, error) {
	var c models.Contingency
	err := s.d.read(ctx, "get contingency", func(ctx context.Context, tx *repository.Repository) error {
		var err error
		c, err = loadContingency(ctx, tx, id)
		return err
	})
	return c, err
}

func (s *ContingencyService) List(ctx context.Context, f repository.ContingencyFilter) ([]models.Contingency, error) {
	var out []models.Contingency
	err := s.d.read(ctx, "list contingencies", func(ctx context.Context, tx *repository.Repository) error {
		var err error
		out, err = tx.Contingencies.List(ctx, f)
		return err
	})
	return out, err
}

// ListExpired returns open contingencies whose resolution deadline has passed.
func (s *ContingencyService) ListExpired(ctx context.Context) ([]models.Contingency, error) {
	now := s.d.clock()
	var out []models.Contingency
	err := s.d.read(ctx, "list expired contingencies", func(ctx context.Context, tx *repository.Repository) error {
		var err error
		out, err = tx.Contingencies.ListExpired(ctx, now)
		return err
	})
	return out, err
}

func (s *ContingencyService) emergency(c models.Contingency, msg string) notify.Notification {
	return notify.Notification{
		Type:     notify.TypeEmergencyProtocol,
		Entity:   models.EntityContingency,
		EntityID: c.ID,
		Message:  msg,
		Payload: map[string]any{
			"equipment_id":        c.EquipmentID,
			"failure_type":        c.FailureType,
			"severity":            c.Severity,
			"resolution_deadline": c.ResolutionDeadline,
		},
		OccurredAt: s.d.clock(),
	}
}

func loadContingency(ctx context.Context, tx *repository.Repository, id string) (models.Contingency, error) {
	c, err := tx.Contingencies.Get(ctx, id)
	if err != nil {
		return models.Contingency{}, notFound(models.EntityContingency, id, err)
	}
	return c, nil
}
