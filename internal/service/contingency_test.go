package service

import (
	"context"
	"testing"
	"time"

	"equipment_service/internal/models"
	"equipment_service/internal/notify"
	"equipment_service/internal/repository"

	"github.com/stretchr/testify/require"
)

func TestReport_LowSeverityDeadlineAndEscalation(t *testing.T) {
	reported := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	f := newFixture(t, reported)
	ctx := context.Background()
	eq := f.equipment(t, models.RiskMedium, false)

	c, err := f.svc.Contingencies.Report(ctx, ReportInput{EquipmentID: eq.ID, FailureType: "cosmetic_damage"})
	require.NoError(t, err)
	require.Equal(t, models.SeverityLow, c.Severity)
	require.Equal(t, models.ContingencyOpen, c.State)
	require.Equal(t, reported.Add(72*time.Hour), c.ResolutionDeadline)

	got, err := f.svc.Equipment.Get(ctx, eq.ID)
	require.NoError(t, err)
	require.True(t, got.HasOpenContingency)

	escalatedAt := reported.Add(80 * time.Hour)
	f.clock.Set(escalatedAt)
	c, err = f.svc.Contingencies.Escalate(ctx, c.ID, "deadline missed")
	require.NoError(t, err)
	require.Equal(t, models.SeverityMedium, c.Severity)
	require.Equal(t, models.ContingencyEscalated, c.State)
	require.Equal(t, escalatedAt.Add(24*time.Hour), c.ResolutionDeadline)
	require.Equal(t, 1, c.EscalationCount)
	require.Empty(t, f.notifier.ofType(notify.TypeEmergencyProtocol))
}

func TestEscalate_ToCriticalTriggersEmergencyProtocol(t *testing.T) {
	f := newFixture(t, date(2024, 3, 1))
	ctx := context.Background()
	eq := f.equipment(t, models.RiskHigh, false)

	c, err := f.svc.Contingencies.Report(ctx, ReportInput{EquipmentID: eq.ID, FailureType: "fire"})
	require.NoError(t, err)
	require.Equal(t, models.SeverityHigh, c.Severity)

	c, err = f.svc.Contingencies.Escalate(ctx, c.ID, "spreading")
	require.NoError(t, err)
	require.Equal(t, models.SeverityCritical, c.Severity)

	// Ceiling: a further escalation keeps CRITICAL.
	c, err = f.svc.Contingencies.Escalate(ctx, c.ID, "still spreading")
	require.NoError(t, err)
	require.Equal(t, models.SeverityCritical, c.Severity)
	require.Equal(t, 2, c.EscalationCount)

	alerts := f.notifier.ofType(notify.TypeEmergencyProtocol)
	require.Len(t, alerts, 2)
	require.Equal(t, c.ID, alerts[0].EntityID)
}

func TestReport_CriticalEquipmentIsCritical(t *testing.T) {
	f := newFixture(t, date(2024, 3, 1))
	ctx := context.Background()
	eq := f.equipment(t, models.RiskHigh, true)

	c, err := f.svc.Contingencies.Report(ctx, ReportInput{EquipmentID: eq.ID, FailureType: "parameter_deviation"})
	require.NoError(t, err)
	require.Equal(t, models.SeverityCritical, c.Severity)
	require.Equal(t, date(2024, 3, 1).Add(2*time.Hour), c.ResolutionDeadline)
	require.Len(t, f.notifier.ofType(notify.TypeEmergencyProtocol), 1)
}

func TestResolve_TwiceFailsAndLeavesRecordUnchanged(t *testing.T) {
	f := newFixture(t, date(2024, 3, 1))
	ctx := context.Background()
	eq := f.equipment(t, models.RiskHigh, false)

	c, err := f.svc.Contingencies.Report(ctx, ReportInput{EquipmentID: eq.ID, FailureType: "partial_failure"})
	require.NoError(t, err)

	var ve *ValidationError
	_, err = f.svc.Contingencies.Resolve(ctx, c.ID, ResolveInput{})
	require.ErrorAs(t, err, &ve)

	closed, err := f.svc.Contingencies.Resolve(ctx, c.ID, ResolveInput{RootCause: "worn seal", Resolution: "seal replaced"})
	require.NoError(t, err)
	require.Equal(t, models.ContingencyClosed, closed.State)

	got, err := f.svc.Equipment.Get(ctx, eq.ID)
	require.NoError(t, err)
	require.False(t, got.HasOpenContingency)

	f.clock.Advance(time.Hour)
	_, err = f.svc.Contingencies.Resolve(ctx, c.ID, ResolveInput{Resolution: "again"})
	var st *InvalidStateError
	require.ErrorAs(t, err, &st)

	after, err := f.svc.Contingencies.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, closed, after)

	_, err = f.svc.Contingencies.Escalate(ctx, c.ID, "late")
	require.ErrorAs(t, err, &st)
}

func TestResolve_FollowUpSchedulesCorrectiveMaintenance(t *testing.T) {
	f := newFixture(t, date(2024, 3, 1))
	ctx := context.Background()
	eq := f.equipment(t, models.RiskMediumHigh, false)

	first, err := f.svc.Contingencies.Report(ctx, ReportInput{EquipmentID: eq.ID, FailureType: "critical_alarm"})
	require.NoError(t, err)
	second, err := f.svc.Contingencies.Report(ctx, ReportInput{EquipmentID: eq.ID, FailureType: "partial_failure"})
	require.NoError(t, err)

	_, err = f.svc.Contingencies.Resolve(ctx, first.ID, ResolveInput{Resolution: "reset", ScheduleFollowUp: true})
	require.NoError(t, err)

	got, err := f.svc.Equipment.Get(ctx, eq.ID)
	require.NoError(t, err)
	require.True(t, got.HasOpenContingency, "second contingency is still open")
	require.Equal(t, date(2024, 4, 30), *got.NextServiceDate)

	// The second follow-up reuses the open event instead of conflicting.
	_, err = f.svc.Contingencies.Resolve(ctx, second.ID, ResolveInput{Resolution: "fixed", ScheduleFollowUp: true})
	require.NoError(t, err)

	events, err := f.svc.Events.List(ctx, repository.EventFilter{EquipmentID: eq.ID})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, models.TypeCorrective, events[0].Type)
}

func TestListExpired(t *testing.T) {
	f := newFixture(t, date(2024, 3, 1))
	ctx := context.Background()
	eq := f.equipment(t, models.RiskHigh, false)

	c, err := f.svc.Contingencies.Report(ctx, ReportInput{EquipmentID: eq.ID, FailureType: "fire"})
	require.NoError(t, err)

	expired, err := f.svc.Contingencies.ListExpired(ctx)
	require.NoError(t, err)
	require.Empty(t, expired)

	f.clock.Advance(9 * time.Hour)
	expired, err = f.svc.Contingencies.ListExpired(ctx)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.Equal(t, c.ID, expired[0].ID)
}
