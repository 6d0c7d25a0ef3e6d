package service

import (
	"context"
	"testing"
	"time"

	"equipment_service/internal/models"
	"equipment_service/internal/notify"

	"github.com/stretchr/testify/require"
)

func TestCreateTicket_NumberAndDueDate(t *testing.T) {
	created := time.Date(2025, 5, 2, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, created)
	ctx := context.Background()

	first, err := f.svc.Tickets.Create(ctx, CreateTicketInput{Category: "biomed", Priority: models.TicketHigh, Description: "alarm keeps beeping"})
	require.NoError(t, err)
	require.Equal(t, "TK-2025-0001", first.Number)
	require.Equal(t, models.TicketOpen, first.State)
	require.Equal(t, created.Add(24*time.Hour), first.DueAt)

	second, err := f.svc.Tickets.Create(ctx, CreateTicketInput{Category: "biomed", Priority: models.TicketLow, Description: "manual missing"})
	require.NoError(t, err)
	require.Equal(t, "TK-2025-0002", second.Number)

	f.clock.Set(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	third, err := f.svc.Tickets.Create(ctx, CreateTicketInput{Category: "biomed", Priority: models.TicketLow, Description: "new year"})
	require.NoError(t, err)
	require.Equal(t, "TK-2026-0001", third.Number)

	var ve *ValidationError
	_, err = f.svc.Tickets.Create(ctx, CreateTicketInput{Category: "biomed", Priority: "CRITICAL", Description: "x"})
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "priority", ve.Field)
}

func TestAutoAssign_FewestOpenTicketsLowestID(t *testing.T) {
	f := newFixture(t, date(2025, 5, 2))
	ctx := context.Background()

	a1 := f.user(t, "ana", models.RoleAgent, "biomed", "ICU")
	a2 := f.user(t, "ben", models.RoleAgent, "biomed", "ICU")
	f.user(t, "cy", models.RoleAgent, "it", "ICU")

	t1, err := f.svc.Tickets.Create(ctx, CreateTicketInput{Category: "biomed", Priority: models.TicketMedium, Description: "one"})
	require.NoError(t, err)
	t1, err = f.svc.Tickets.AutoAssign(ctx, t1.ID)
	require.NoError(t, err)
	require.Equal(t, a1, *t1.AssigneeID, "tie goes to the lowest id")
	require.Equal(t, models.TicketInProgress, t1.State)

	t2, err := f.svc.Tickets.Create(ctx, CreateTicketInput{Category: "biomed", Priority: models.TicketMedium, Description: "two"})
	require.NoError(t, err)
	t2, err = f.svc.Tickets.AutoAssign(ctx, t2.ID)
	require.NoError(t, err)
	require.Equal(t, a2, *t2.AssigneeID)

	var st *InvalidStateError
	_, err = f.svc.Tickets.AutoAssign(ctx, t2.ID)
	require.ErrorAs(t, err, &st)
}

func TestAutoAssign_DepartmentOfLinkedEquipment(t *testing.T) {
	f := newFixture(t, date(2025, 5, 2))
	ctx := context.Background()
	eq := f.equipment(t, models.RiskHigh, false)

	f.user(t, "far", models.RoleAgent, "biomed", "Radiology")
	near := f.user(t, "near", models.RoleAgent, "biomed", "ICU")

	tk, err := f.svc.Tickets.Create(ctx, CreateTicketInput{Category: "biomed", Priority: models.TicketMedium, Description: "pump", EquipmentID: &eq.ID})
	require.NoError(t, err)
	tk, err = f.svc.Tickets.AutoAssign(ctx, tk.ID)
	require.NoError(t, err)
	require.Equal(t, near, *tk.AssigneeID)
}

func TestAutoAssign_NoAgentLeavesTicketOpen(t *testing.T) {
	f := newFixture(t, date(2025, 5, 2))
	ctx := context.Background()
	f.user(t, "viewer", models.RoleViewer, "biomed", "ICU")

	tk, err := f.svc.Tickets.Create(ctx, CreateTicketInput{Category: "biomed", Priority: models.TicketLow, Description: "x"})
	require.NoError(t, err)

	_, err = f.svc.Tickets.AutoAssign(ctx, tk.ID)
	var na *NoAgentAvailableError
	require.ErrorAs(t, err, &na)
	require.Equal(t, "biomed", na.Category)

	got, err := f.svc.Tickets.Get(ctx, tk.ID)
	require.NoError(t, err)
	require.Equal(t, models.TicketOpen, got.State)
	require.Nil(t, got.AssigneeID)
}

func TestEscalateIfOverdue(t *testing.T) {
	created := date(2025, 5, 2)
	f := newFixture(t, created)
	ctx := context.Background()

	agent := f.user(t, "ana", models.RoleAgent, "biomed", "ICU")
	sup := f.user(t, "sue", models.RoleSupervisor, "biomed", "ICU")

	tk, err := f.svc.Tickets.Create(ctx, CreateTicketInput{Category: "biomed", Priority: models.TicketHigh, Description: "x"})
	require.NoError(t, err)
	_, err = f.svc.Tickets.Assign(ctx, tk.ID, agent)
	require.NoError(t, err)

	f.clock.Set(created.Add(23 * time.Hour))
	_, err = f.svc.Tickets.EscalateIfOverdue(ctx, tk.ID)
	var st *InvalidStateError
	require.ErrorAs(t, err, &st)

	now := created.Add(25 * time.Hour)
	f.clock.Set(now)
	tk, err = f.svc.Tickets.EscalateIfOverdue(ctx, tk.ID)
	require.NoError(t, err)
	require.Equal(t, models.TicketUrgent, tk.Priority)
	require.True(t, tk.Escalated)
	require.Equal(t, models.TicketEscalated, tk.State)
	require.Equal(t, now.Add(4*time.Hour), tk.DueAt)
	require.Equal(t, sup, *tk.AssigneeID, "urgent tickets go to a supervisor")

	alerts := f.notifier.ofType(notify.TypeTicketEscalated)
	require.Len(t, alerts, 1)
	require.Equal(t, tk.ID, alerts[0].EntityID)
}

func TestEscalateIfOverdue_NoSupervisorKeepsAssignee(t *testing.T) {
	created := date(2025, 5, 2)
	f := newFixture(t, created)
	ctx := context.Background()
	agent := f.user(t, "ana", models.RoleAgent, "biomed", "ICU")

	tk, err := f.svc.Tickets.Create(ctx, CreateTicketInput{Category: "biomed", Priority: models.TicketHigh, Description: "x"})
	require.NoError(t, err)
	_, err = f.svc.Tickets.Assign(ctx, tk.ID, agent)
	require.NoError(t, err)

	f.clock.Set(created.Add(30 * time.Hour))
	tk, err = f.svc.Tickets.EscalateIfOverdue(ctx, tk.ID)
	require.NoError(t, err)
	require.Equal(t, models.TicketUrgent, tk.Priority)
	require.Equal(t, agent, *tk.AssigneeID)
}

func TestEscalateIfOverdue_ClosedIsNoop(t *testing.T) {
	created := date(2025, 5, 2)
	f := newFixture(t, created)
	ctx := context.Background()

	tk, err := f.svc.Tickets.Create(ctx, CreateTicketInput{Category: "biomed", Priority: models.TicketLow, Description: "x"})
	require.NoError(t, err)
	closed, err := f.svc.Tickets.Close(ctx, tk.ID, CloseTicketInput{Solution: "duplicate"})
	require.NoError(t, err)

	f.clock.Set(created.Add(100 * time.Hour))
	got, err := f.svc.Tickets.EscalateIfOverdue(ctx, tk.ID)
	require.NoError(t, err)
	require.Equal(t, closed, got)
	require.Empty(t, f.notifier.ofType(notify.TypeTicketEscalated))
}

func TestCloseTicket_Validation(t *testing.T) {
	f := newFixture(t, date(2025, 5, 2))
	ctx := context.Background()

	tk, err := f.svc.Tickets.Create(ctx, CreateTicketInput{Category: "biomed", Priority: models.TicketLow, Description: "x"})
	require.NoError(t, err)

	var ve *ValidationError
	_, err = f.svc.Tickets.Close(ctx, tk.ID, CloseTicketInput{Solution: "  "})
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "solution", ve.Field)

	bad := 6
	_, err = f.svc.Tickets.Close(ctx, tk.ID, CloseTicketInput{Solution: "done", SatisfactionScore: &bad})
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "satisfaction_score", ve.Field)

	score := 5
	closed, err := f.svc.Tickets.Close(ctx, tk.ID, CloseTicketInput{Solution: "done", SatisfactionScore: &score})
	require.NoError(t, err)
	require.Equal(t, models.TicketClosed, closed.State)
	require.Equal(t, 5, *closed.SatisfactionScore)
	require.NotNil(t, closed.ClosedAt)

	var st *InvalidStateError
	_, err = f.svc.Tickets.Close(ctx, tk.ID, CloseTicketInput{Solution: "again"})
	require.ErrorAs(t, err, &st)
}
