package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"equipment_service/internal/models"
	"equipment_service/internal/notify"
	"equipment_service/internal/repository"
	"equipment_service/internal/repository/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingNotifier keeps every notification delivered after commit.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) ofType(typ string) []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Notification
	for _, n := range r.sent {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

type fixture struct {
	svc      *Service
	repo     *repository.Repository
	clock    *testClock
	notifier *recordingNotifier
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newFixture(t *testing.T, start time.Time) *fixture {
	t.Helper()
	f := &fixture{
		repo:     memory.NewRepository(),
		clock:    &testClock{now: start},
		notifier: &recordingNotifier{},
	}
	f.svc = NewService(f.repo,
		WithClock(f.clock.Now),
		WithNotifier(f.notifier),
		WithTokenConfig("test-signing-key", time.Hour),
	)
	return f
}

func (f *fixture) equipment(t *testing.T, risk models.RiskClass, critical bool) models.Equipment {
	t.Helper()
	e, err := f.svc.Equipment.Register(context.Background(), RegisterEquipmentInput{
		Code:       "EQ-" + string(risk),
		Name:       "Infusion pump",
		Department: "ICU",
		RiskClass:  risk,
		IsCritical: critical,
	})
	require.NoError(t, err)
	return e
}

func (f *fixture) user(t *testing.T, name string, role models.Role, category, department string) int {
	t.Helper()
	id, err := f.repo.Auth.Create(context.Background(), models.User{
		Username:   name,
		Role:       role,
		Category:   category,
		Department: department,
		Active:     true,
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) activityTypes(t *testing.T, entity models.EntityKind, id string) []string {
	t.Helper()
	entries, err := f.svc.Activity.List(context.Background(), ActivityFilter{Entity: string(entity), EntityID: id})
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for _, a := range entries {
		out = append(out, a.Type)
	}
	return out
}

func errorAs(err error, target any) bool { return errors.As(err, target) }

// failingNotifier rejects every delivery.
type failingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (f *failingNotifier) Notify(_ context.Context, n notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, n.Type)
	return errors.New("sink unreachable")
}

func TestNotifierFailureDoesNotFailOperation(t *testing.T) {
	sink := &failingNotifier{}
	repo := memory.NewRepository()
	clock := &testClock{now: date(2024, 3, 1)}
	svc := NewService(repo, WithClock(clock.Now), WithNotifier(sink))
	ctx := context.Background()

	eq, err := svc.Equipment.Register(ctx, RegisterEquipmentInput{Code: "VENT-9", Name: "Ventilator", Department: "ICU", RiskClass: models.RiskHigh, IsCritical: true})
	require.NoError(t, err)

	c, err := svc.Contingencies.Report(ctx, ReportInput{EquipmentID: eq.ID, FailureType: "total_failure"})
	require.NoError(t, err)
	require.Equal(t, models.SeverityCritical, c.Severity)

	stored, err := svc.Contingencies.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, c.ID, stored.ID)
	got, err := svc.Equipment.Get(ctx, eq.ID)
	require.NoError(t, err)
	require.True(t, got.HasOpenContingency)

	p, err := svc.Parts.Register(ctx, RegisterPartInput{Code: "O2-1", Name: "O2 cell", ReorderPoint: 1, InitialQuantity: 2, UnitCost: decimal.NewFromInt(40)})
	require.NoError(t, err)
	p, err = svc.Parts.Issue(ctx, p.ID, 2, "WO-9")
	require.NoError(t, err)
	require.Equal(t, models.StockDepleted, p.StockState())

	moves, err := svc.Parts.Movements(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, moves, 2)
	require.Equal(t, models.MovementOut, moves[1].Direction)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Contains(t, sink.calls, notify.TypeEmergencyProtocol)
	require.Contains(t, sink.calls, notify.TypeReorderAlert)
}
