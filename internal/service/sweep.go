package service

import (
	"context"
	"errors"
	"time"

	"equipment_service/internal/models"
	"equipment_service/internal/notify"
	"equipment_service/internal/repository"
)

const sweepEscalationReason = "resolution deadline expired"

// SweepReport summarizes a single overdue sweep.
type SweepReport struct {
	StartedAt              time.Time `json:"started_at"`
	FinishedAt             time.Time `json:"finished_at"`
	OverdueEvents          int       `json:"overdue_events"`
	EscalatedContingencies int       `json:"escalated_contingencies"`
	EscalatedTickets       int       `json:"escalated_tickets"`
	Failures               int       `json:"failures"`
	Errors                 []string  `json:"errors,omitempty"`
}

func (r *SweepReport) fail(err error) {
	r.Failures++
	r.Errors = append(r.Errors, err.Error())
}

// SweepService applies overdue and escalation rules across open records.
type SweepService struct {
	d             *deps
	events        *ServiceEventService
	contingencies *ContingencyService
	tickets       *TicketService
}

// RunOverdueSweep processes each record in its own transaction. A failing
// record is counted in the report and the sweep moves on; only a failure to
// read the candidate lists is returned as an error.
func (s *SweepService) RunOverdueSweep(ctx context.Context) (SweepReport, error) {
	rep := SweepReport{StartedAt: s.d.clock()}

	overdue, err := s.events.ListOverdue(ctx)
	if err != nil {
		return rep, err
	}
	for _, ev := range overdue {
		n := notify.Notification{
			Type:     notify.TypeServiceEventOverdue,
			Entity:   models.EntityServiceEvent,
			EntityID: ev.ID,
			Message:  string(ev.Kind) + " for equipment " + ev.EquipmentID + " is overdue",
			Payload: map[string]any{
				"equipment_id":   ev.EquipmentID,
				"kind":           ev.Kind,
				"scheduled_date": ev.ScheduledDate,
			},
			OccurredAt: rep.StartedAt,
		}
		if err := s.d.notifier.Notify(ctx, n); err != nil {
			s.d.log.Errorw("notification failed", "type", n.Type, "entity_id", n.EntityID, "err", err)
		}
		rep.OverdueEvents++
	}

	expired, err := s.contingencies.ListExpired(ctx)
	if err != nil {
		return rep, err
	}
	for _, c := range expired {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		if _, err := s.contingencies.Escalate(ctx, c.ID, sweepEscalationReason); err != nil {
			if skippable(err) {
				continue
			}
			rep.fail(err)
			continue
		}
		rep.EscalatedContingencies++
	}

	due, err := s.dueTickets(ctx, rep.StartedAt)
	if err != nil {
		return rep, err
	}
	for _, t := range due {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		if _, err := s.tickets.EscalateIfOverdue(ctx, t.ID); err != nil {
			if skippable(err) {
				continue
			}
			rep.fail(err)
			continue
		}
		rep.EscalatedTickets++
	}

	rep.FinishedAt = s.d.clock()
	s.d.metrics.SweepFinished(rep.FinishedAt.Sub(rep.StartedAt), rep.OverdueEvents,
		rep.EscalatedContingencies, rep.EscalatedTickets, rep.Failures)
	s.d.log.Infow("sweep_finished",
		"overdue_events", rep.OverdueEvents,
		"escalated_contingencies", rep.EscalatedContingencies,
		"escalated_tickets", rep.EscalatedTickets,
		"failures", rep.Failures,
	)
	return rep, nil
}

// dueTickets returns open tickets past their due date that can still move up.
func (s *SweepService) dueTickets(ctx context.Context, now time.Time) ([]models.Ticket, error) {
	open, err := s.tickets.List(ctx, repository.TicketFilter{OpenOnly: true})
	if err != nil {
		return nil, err
	}
	var out []models.Ticket
	for _, t := range open {
		if now.Before(t.DueAt) {
			continue
		}
		if t.Priority == models.TicketUrgent && t.Escalated {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// skippable reports errors caused by a record changing between the listing
// and the escalation.
func skippable(err error) bool {
	var st *InvalidStateError
	return errors.As(err, &st)
}

// Run ticks at the given interval until ctx is canceled.
func (s *SweepService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.RunOverdueSweep(ctx); err != nil && ctx.Err() == nil {
				s.d.log.Errorw("sweep failed", "err", err)
			}
		}
	}
}
