package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"equipment_service/internal/models"
	"equipment_service/internal/repository"
)

func seedEquipment(t *testing.T, repo *repository.Repository) models.Equipment {
	t.Helper()
	e := models.Equipment{
		ID: "eq-1", Code: "VENT-01", Name: "Ventilator", Department: "ICU",
		RiskClass: models.RiskHigh, ServiceState: models.ServiceStateActive,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := repo.Equipment.Create(context.Background(), e); err != nil {
		t.Fatalf("create equipment: %v", err)
	}
	return e
}

func TestWithinTx_RollbackRestoresState(t *testing.T) {
	repo := NewRepository()
	seedEquipment(t, repo)
	boom := errors.New("boom")

	err := repo.WithinTx(context.Background(), func(ctx context.Context, tx *repository.Repository) error {
		e, err := tx.Equipment.Get(ctx, "eq-1")
		if err != nil {
			return err
		}
		e.HasOpenContingency = true
		if err := tx.Equipment.Update(ctx, &e); err != nil {
			return err
		}
		if _, err := tx.Sequences.Next(ctx, "ticket", 2024); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	e, err := repo.Equipment.Get(context.Background(), "eq-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if e.HasOpenContingency || e.Version != 0 {
		t.Fatalf("rolled back update leaked: %+v", e)
	}
	n, _ := repo.Sequences.Next(context.Background(), "ticket", 2024)
	if n != 1 {
		t.Fatalf("sequence should restart at 1 after rollback, got %d", n)
	}
}

func TestWithinTx_NestedCallJoins(t *testing.T) {
	repo := NewRepository()
	seedEquipment(t, repo)

	err := repo.WithinTx(context.Background(), func(ctx context.Context, tx *repository.Repository) error {
		// would deadlock if the nested call tried to take the store lock again
		return tx.WithinTx(ctx, func(ctx context.Context, inner *repository.Repository) error {
			_, err := inner.Equipment.Get(ctx, "eq-1")
			return err
		})
	})
	if err != nil {
		t.Fatalf("nested tx: %v", err)
	}
}

func TestEquipmentUpdate_StaleVersion(t *testing.T) {
	repo := NewRepository()
	seedEquipment(t, repo)
	ctx := context.Background()

	a, _ := repo.Equipment.Get(ctx, "eq-1")
	b, _ := repo.Equipment.Get(ctx, "eq-1")

	if err := repo.Equipment.Update(ctx, &a); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if a.Version != 1 {
		t.Fatalf("want version 1, got %d", a.Version)
	}
	if err := repo.Equipment.Update(ctx, &b); !errors.Is(err, repository.ErrStaleVersion) {
		t.Fatalf("expected ErrStaleVersion, got %v", err)
	}
}

func TestGetReturnsCopies(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	next := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	e := models.Equipment{ID: "eq-2", Code: "MON-01", NextServiceDate: &next}
	if err := repo.Equipment.Create(ctx, e); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, _ := repo.Equipment.Get(ctx, "eq-2")
	*got.NextServiceDate = next.AddDate(1, 0, 0)

	again, _ := repo.Equipment.Get(ctx, "eq-2")
	if !again.NextServiceDate.Equal(next) {
		t.Fatalf("stored value was mutated through a returned pointer: %v", again.NextServiceDate)
	}
}

func TestListAgents_OrdersByLoadThenID(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	mk := func(name string, role models.Role, dept string) int {
		id, err := repo.Auth.Create(ctx, models.User{Username: name, Role: role, Category: "biomedical", Department: dept, Active: true})
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		return id
	}
	a1 := mk("a1", models.RoleAgent, "ICU")
	a2 := mk("a2", models.RoleAgent, "ICU")
	mk("tech", models.RoleTechnician, "ICU")
	mk("er", models.RoleAgent, "ER")

	busy := a1
	if err := repo.Tickets.Create(ctx, models.Ticket{ID: "t-1", Number: "TK-2024-0001", State: models.TicketInProgress, AssigneeID: &busy}); err != nil {
		t.Fatalf("create ticket: %v", err)
	}

	agents, err := repo.Auth.ListAgents(ctx, repository.AgentQuery{
		Category: "biomedical", Department: "ICU",
		Roles: []models.Role{models.RoleAgent, models.RoleSupervisor},
	})
	if err != nil {
		t.Fatalf("ListAgents: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("want 2 candidates, got %d", len(agents))
	}
	if agents[0].ID != a2 || agents[1].ID != a1 || agents[1].OpenTickets != 1 {
		t.Fatalf("unexpected order: %+v", agents)
	}
}

func TestCreate_DuplicateCode(t *testing.T) {
	repo := NewRepository()
	e := seedEquipment(t, repo)
	ctx := context.Background()

	e.ID = "eq-2"
	if err := repo.Equipment.Create(ctx, e); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	p := models.SparePart{ID: "p-1", Code: "FLT-01", Name: "Filter"}
	if err := repo.Parts.Create(ctx, p); err != nil {
		t.Fatalf("create part: %v", err)
	}
	p.ID = "p-2"
	if err := repo.Parts.Create(ctx, p); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for part, got %v", err)
	}
}
