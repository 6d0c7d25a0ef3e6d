package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"equipment_service/internal/cache"
	"equipment_service/internal/metrics"
	"equipment_service/internal/models"
	"equipment_service/internal/notify"
	"equipment_service/internal/policy"
	"equipment_service/internal/repository"

	"github.com/google/uuid"
)

const ticketSequence = "ticket"

var agentRoles = []models.Role{models.RoleAgent, models.RoleSupervisor}

type CreateTicketInput struct {
	Category    string
	Priority    models.TicketPriority
	Description string
	EquipmentID *string
}

type CloseTicketInput struct {
	Solution          string
	SatisfactionScore *int
}

type TicketService struct {
	d *deps
}

func (s *TicketService) Create(ctx context.Context, in CreateTicketInput) (models.Ticket, error) {
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	switch {
	case in.Category == "":
		return models.Ticket{}, &ValidationError{Field: "category", Reason: "is required"}
	case !in.Priority.Valid():
		return models.Ticket{}, &ValidationError{Field: "priority", Reason: "must be LOW, MEDIUM, HIGH or URGENT"}
	case in.Description == "":
		return models.Ticket{}, &ValidationError{Field: "description", Reason: "is required"}
	}

	var t models.Ticket
	err := s.d.inTx(ctx, "create ticket", func(ctx context.Context, tx *repository.Repository, ob *outbox) error {
		if in.EquipmentID != nil {
			if _, err := loadEquipment(ctx, tx, *in.EquipmentID); err != nil {
				return err
			}
			ob.invalidate(cache.OverviewKey(*in.EquipmentID))
		}

		now := s.d.clock()
		seq, err := tx.Sequences.Next(ctx, ticketSequence, now.Year())
		if err != nil {
			return err
		}
		t = models.Ticket{
			ID:          uuid.NewString(),
			Number:      fmt.Sprintf("TK-%d-%04d", now.Year(), seq),
			Category:    in.Category,
			Priority:    in.Priority,
			State:       models.TicketOpen,
			Description: in.Description,
			EquipmentID: in.EquipmentID,
			CreatedAt:   now,
			DueAt:       policy.TicketDueAt(in.Priority, now),
		}
		if err := tx.Tickets.Create(ctx, t); err != nil {
			return err
		}
		priority := t.Priority
		ob.metric(func(m *metrics.Collector) { m.TicketCreated(string(priority)) })
		return s.d.record(ctx, tx, models.EntityTicket, t.ID, "CREATED", "ticket "+t.Number+" created", map[string]any{
			"category": t.Category,
			"priority": t.Priority,
		})
	})
	return t, err
}

// AutoAssign gives an OPEN ticket to the least loaded eligible agent.
func (s *TicketService) AutoAssign(ctx context.Context, id string) (models.Ticket, error) {
	var t models.Ticket
	err := s.d.inTx(ctx, "auto-assign ticket", func(ctx context.Context, tx *repository.Repository, ob *outbox) error {
		var err error
		if t, err = loadTicket(ctx, tx, id); err != nil {
			return err
		}
		if t.State != models.TicketOpen {
			return &InvalidStateError{Entity: models.EntityTicket, ID: t.ID, State: string(t.State), Op: "auto-assign"}
		}

		agents, err := s.candidates(ctx, tx, t, agentRoles)
		if err != nil {
			return err
		}
		if len(agents) == 0 {
			return &NoAgentAvailableError{Category: t.Category}
		}
		return s.assign(ctx, tx, ob, &t, agents[0].User, "AUTO_ASSIGNED")
	})
	return t, err
}

// Assign hands the ticket to a specific agent.
func (s *TicketService) Assign(ctx context.Context, id string, agentID int) (models.Ticket, error) {
	var t models.Ticket
	err := s.d.inTx(ctx, "assign ticket", func(ctx context.Context, tx *repository.Repository, ob *outbox) error {
		var err error
		if t, err = loadTicket(ctx, tx, id); err != nil {
			return err
		}
		if !t.IsOpen() {
			return &InvalidStateError{Entity: models.EntityTicket, ID: t.ID, State: string(t.State), Op: "assign"}
		}
		u, err := tx.Auth.GetByID(ctx, agentID)
		if err != nil {
			return err
		}
		if u == nil {
			return &NotFoundError{Entity: models.EntityUser, ID: strconv.Itoa(agentID)}
		}
		if !u.Active || (u.Role != models.RoleAgent && u.Role != models.RoleSupervisor) {
			return &ValidationError{Field: "agent_id", Reason: "user is not an active agent"}
		}
		return s.assign(ctx, tx, ob, &t, *u, "ASSIGNED")
	})
	return t, err
}

func (s *TicketService) assign(ctx context.Context, tx *repository.Repository, ob *outbox, t *models.Ticket, u models.User, typ string) error {
	agentID := u.ID
	t.AssigneeID = &agentID
	if t.State == models.TicketOpen {
		t.State = models.TicketInProgress
	}
	if err := tx.Tickets.Update(ctx, t); err != nil {
		return err
	}
	s.invalidateEquipment(ob, *t)
	return s.d.record(ctx, tx, models.EntityTicket, t.ID, typ, "ticket assigned to "+u.Username,
		map[string]any{"assignee_id": u.ID})
}

// EscalateIfOverdue raises priority once the SLA window since creation has
// elapsed. CLOSED and RESOLVED tickets are returned unchanged.
func (s *TicketService) EscalateIfOverdue(ctx context.Context, id string) (models.Ticket, error) {
	var (
		t          models.Ticket
		noAssignee bool
	)
	err := s.d.inTx(ctx, "escalate ticket", func(ctx context.Context, tx *repository.Repository, ob *outbox) error {
		var err error
		if t, err = loadTicket(ctx, tx, id); err != nil {
			return err
		}
		if t.State == models.TicketClosed || t.State == models.TicketResolved {
			return nil
		}

		now := s.d.clock()
		if !policy.TicketOverdue(t.Priority, t.CreatedAt, now) {
			return &InvalidStateError{Entity: models.EntityTicket, ID: t.ID, State: string(t.State) + " within SLA window", Op: "escalate"}
		}

		from := t.Priority
		t.Priority = policy.EscalatePriority(t.Priority)
		t.Escalated = true
		t.State = models.TicketEscalated
		t.DueAt = policy.TicketDueAt(t.Priority, now)

		if t.Priority == models.TicketUrgent {
			supervisors, err := s.candidates(ctx, tx, t, []models.Role{models.RoleSupervisor})
			if err != nil {
				return err
			}
			if len(supervisors) > 0 {
				sup := supervisors[0].User.ID
				t.AssigneeID = &sup
			} else {
				noAssignee = true
			}
		}

		if err := tx.Tickets.Update(ctx, &t); err != nil {
			return err
		}
		s.invalidateEquipment(ob, t)
		if err := s.d.record(ctx, tx, models.EntityTicket, t.ID, "ESCALATED", "ticket escalated", map[string]any{
			"from":        from,
			"to":          t.Priority,
			"assignee_id": t.AssigneeID,
		}); err != nil {
			return err
		}

		priority := t.Priority
		ob.metric(func(m *metrics.Collector) { m.Escalated(string(models.EntityTicket), string(priority)) })
		ob.notify(notify.Notification{
			Type:     notify.TypeTicketEscalated,
			Entity:   models.EntityTicket,
			EntityID: t.ID,
			Message:  "ticket " + t.Number + " escalated to " + string(t.Priority),
			Payload: map[string]any{
				"number":   t.Number,
				"category": t.Category,
				"priority": t.Priority,
				"due_at":   t.DueAt,
			},
			OccurredAt: now,
		})
		return nil
	})
	if err != nil {
		return models.Ticket{}, err
	}
	if noAssignee {
		s.d.log.Warnw("no supervisor available for urgent ticket; keeping assignee",
			"ticket_id", t.ID, "category", t.Category)
	}
	return t, nil
}

func (s *TicketService) Resolve(ctx context.Context, id, solution string) (models.Ticket, error) {
	solution = strings.TrimSpace(solution)
	if solution == "" {
		return models.Ticket{}, &ValidationError{Field: "solution", Reason: "is required"}
	}
	var t models.Ticket
	err := s.d.inTx(ctx, "resolve ticket", func(ctx context.Context, tx *repository.Repository, ob *outbox) error {
		var err error
		if t, err = loadTicket(ctx, tx, id); err != nil {
			return err
		}
		if t.State != models.TicketInProgress && t.State != models.TicketEscalated {
			return &InvalidStateError{Entity: models.EntityTicket, ID: t.ID, State: string(t.State), Op: "resolve"}
		}
		now := s.d.clock()
		t.State = models.TicketResolved
		t.Solution = solution
		t.ResolvedAt = &now
		if err := tx.Tickets.Update(ctx, &t); err != nil {
			return err
		}
		s.invalidateEquipment(ob, t)
		return s.d.record(ctx, tx, models.EntityTicket, t.ID, "RESOLVED", "ticket resolved", nil)
	})
	return t, err
}

// Close is terminal. A solution is always required; the score is optional.
func (s *TicketService) Close(ctx context.Context, id string, in CloseTicketInput) (models.Ticket, error) {
	in.Solution = strings.TrimSpace(in.Solution)
	if in.Solution == "" {
		return models.Ticket{}, &ValidationError{Field: "solution", Reason: "is required"}
	}
	if in.SatisfactionScore != nil && (*in.SatisfactionScore < 1 || *in.SatisfactionScore > 5) {
		return models.Ticket{}, &ValidationError{Field: "satisfaction_score", Reason: "must be between 1 and 5"}
	}

	var t models.Ticket
	err := s.d.inTx(ctx, "close ticket", func(ctx context.Context, tx *repository.Repository, ob *outbox) error {
		var err error
		if t, err = loadTicket(ctx, tx, id); err != nil {
			return err
		}
		if t.State == models.TicketClosed {
			return &InvalidStateError{Entity: models.EntityTicket, ID: t.ID, State: string(t.State), Op: "close"}
		}
		now := s.d.clock()
		t.State = models.TicketClosed
		t.Solution = in.Solution
		t.SatisfactionScore = in.SatisfactionScore
		t.ClosedAt = &now
		if t.ResolvedAt == nil {
			t.ResolvedAt = &now
		}
		if err := tx.Tickets.Update(ctx, &t); err != nil {
			return err
		}
		s.invalidateEquipment(ob, t)
		return s.d.record(ctx, tx, models.EntityTicket, t.ID, "CLOSED", "ticket closed",
			map[string]any{"satisfaction_score": in.SatisfactionScore})
	})
	return t, err
}

func (s *TicketService) Get(ctx context.Context, id string) (models.Ticket, error) {
	var t models.Ticket
	err := s.d.read(ctx, "get ticket", func(ctx context.Context, tx *repository.Repository) error {
		var err error
		t, err = loadTicket(ctx, tx, id)
		return err
	})
	return t, err
}

func (s *TicketService) List(ctx context.Context, f repository.TicketFilter) ([]models.Ticket, error) {
	var out []models.Ticket
	err := s.d.read(ctx, "list tickets", func(ctx context.Context, tx *repository.Repository) error {
		var err error
		out, err = tx.Tickets.List(ctx, f)
		return err
	})
	return out, err
}

// candidates lists active users of roles for the ticket category, restricted
// to the department of the linked equipment when there is one.
func (s *TicketService) candidates(ctx context.Context, tx *repository.Repository, t models.Ticket, roles []models.Role) ([]models.AgentLoad, error) {
	q := repository.AgentQuery{Category: t.Category, Roles: roles}
	if t.EquipmentID != nil {
		eq, err := loadEquipment(ctx, tx, *t.EquipmentID)
		if err != nil {
			return nil, err
		}
		q.Department = eq.Department
	}
	return tx.Auth.ListAgents(ctx, q)
}

func (s *TicketService) invalidateEquipment(ob *outbox, t models.Ticket) {
	if t.EquipmentID != nil {
		ob.invalidate(cache.OverviewKey(*t.EquipmentID))
	}
}

func loadTicket(ctx context.Context, tx *repository.Repository, id string) (models.Ticket, error) {
	t, err := tx.Tickets.Get(ctx, id)
	if err != nil {
		return models.Ticket{}, notFound(models.EntityTicket, id, err)
	}
	return t, nil
}
