package service

import (
	"context"
	"strings"
	"time"

	"equipment_service/internal/cache"
	"equipment_service/internal/models"
	"equipment_service/internal/repository"

	"github.com/google/uuid"
)

// RegisterEquipmentInput describes a new device. Next service dates are not
// accepted; they are derived when events get scheduled.
type RegisterEquipmentInput struct {
	Code                string
	Name                string
	Department          string
	RiskClass           models.RiskClass
	IsCritical          bool
	LastServiceDate     *time.Time
	LastCalibrationDate *time.Time
}

type EquipmentService struct {
	d *deps
}

func (s *EquipmentService) Register(ctx context.Context, in RegisterEquipmentInput) (models.Equipment, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.Department = strings.TrimSpace(in.Department)
	switch {
	case in.Code == "":
		return models.Equipment{}, &ValidationError{Field: "code", Reason: "is required"}
	case in.Name == "":
		return models.Equipment{}, &ValidationError{Field: "name", Reason: "is required"}
	case in.Department == "":
		return models.Equipment{}, &ValidationError{Field: "department", Reason: "is required"}
	case !in.RiskClass.Valid():
		return models.Equipment{}, &ValidationError{Field: "risk_class", Reason: "must be LOW, MEDIUM, MEDIUM_HIGH or HIGH"}
	}

	now := s.d.clock()
	e := models.Equipment{
		ID:                  uuid.NewString(),
		Code:                in.Code,
		Name:                in.Name,
		Department:          in.Department,
		RiskClass:           in.RiskClass,
		IsCritical:          in.IsCritical,
		LastServiceDate:     utcPtr(in.LastServiceDate),
		LastCalibrationDate: utcPtr(in.LastCalibrationDate),
		ServiceState:        models.ServiceStateActive,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	err := s.d.inTx(ctx, "register equipment", func(ctx context.Context, tx *repository.Repository, ob *outbox) error {
		if err := tx.Equipment.Create(ctx, e); err != nil {
			return err
		}
		return s.d.record(ctx, tx, models.EntityEquipment, e.ID, "REGISTERED", "equipment registered",
			map[string]any{"code": e.Code, "risk_class": e.RiskClass})
	})
	if err != nil {
		return models.Equipment{}, err
	}
	return e, nil
}

func (s *EquipmentService) Get(ctx context.Context, id string) (models.Equipment, error) {
	var e models.Equipment
	err := s.d.read(ctx, "get equipment", func(ctx context.Context, tx *repository.Repository) error {
		var err error
		e, err = loadEquipment(ctx, tx, id)
		return err
	})
	return e, err
}

func (s *EquipmentService) List(ctx context.Context, f repository.EquipmentFilter) ([]models.Equipment, error) {
	var out []models.Equipment
	err := s.d.read(ctx, "list equipment", func(ctx context.Context, tx *repository.Repository) error {
		var err error
		out, err = tx.Equipment.List(ctx, f)
		return err
	})
	return out, err
}

// Decommission retires equipment. It fails while open service events or
// contingencies remain.
func (s *EquipmentService) Decommission(ctx context.Context, id, reason string) (models.Equipment, error) {
	var e models.Equipment
	err := s.d.inTx(ctx, "decommission equipment", func(ctx context.Context, tx *repository.Repository, ob *outbox) error {
		var err error
		e, err = loadEquipment(ctx, tx, id)
		if err != nil {
			return err
		}
		if e.ServiceState == models.ServiceStateDecommissioned {
			return &InvalidStateError{Entity: models.EntityEquipment, ID: id, State: string(e.ServiceState), Op: "decommission"}
		}
		open, err := tx.ServiceEvents.List(ctx, repository.EventFilter{EquipmentID: id})
		if err != nil {
			return err
		}
		for _, ev := range open {
			if ev.IsOpen() {
				return &InvalidStateError{Entity: models.EntityEquipment, ID: id, State: "has open service events", Op: "decommission"}
			}
		}
		if e.HasOpenContingency {
			return &InvalidStateError{Entity: models.EntityEquipment, ID: id, State: "has open contingencies", Op: "decommission"}
		}

		e.ServiceState = models.ServiceStateDecommissioned
		e.NextServiceDate, e.NextCalibrationDate = nil, nil
		if err := s.d.saveEquipment(ctx, tx, ob, &e); err != nil {
			return err
		}
		return s.d.record(ctx, tx, models.EntityEquipment, id, "DECOMMISSIONED", "equipment decommissioned",
			map[string]any{"reason": reason})
	})
	return e, err
}

// Overview returns the derived aggregate, served from cache when possible.
func (s *EquipmentService) Overview(ctx context.Context, id string) (models.EquipmentOverview, error) {
	now := s.d.clock()
	if o, ok, err := s.d.cache.GetOverview(ctx, id); err != nil {
		s.d.log.Warnw("overview cache read failed", "equipment_id", id, "err", err)
	} else if ok {
		// Overdue depends on the clock, not on any write.
		o.OverdueEvents = countOverdue(o.OpenEvents, now)
		return o, nil
	}

	var o models.EquipmentOverview
	err := s.d.read(ctx, "equipment overview", func(ctx context.Context, tx *repository.Repository) error {
		e, err := loadEquipment(ctx, tx, id)
		if err != nil {
			return err
		}
		events, err := tx.ServiceEvents.List(ctx, repository.EventFilter{EquipmentID: id})
		if err != nil {
			return err
		}
		o = models.EquipmentOverview{Equipment: e, OpenEvents: []models.ServiceEvent{}, ComputedAt: now}
		for _, ev := range events {
			if ev.IsOpen() {
				o.OpenEvents = append(o.OpenEvents, ev)
			}
		}
		o.OverdueEvents = countOverdue(o.OpenEvents, now)
		if o.OpenContingencies, err = tx.Contingencies.CountOpen(ctx, id); err != nil {
			return err
		}
		o.OpenTickets, err = tx.Tickets.CountOpen(ctx, id)
		return err
	})
	if err != nil {
		return models.EquipmentOverview{}, err
	}

	if err := s.d.cache.SetOverview(ctx, o); err != nil {
		s.d.log.Warnw("overview cache write failed", "equipment_id", id, "err", err)
	}
	return o, nil
}

func countOverdue(open []models.ServiceEvent, now time.Time) int {
	n := 0
	for _, ev := range open {
		if ev.IsOverdue(now) {
			n++
		}
	}
	return n
}

// The helpers below are the only code that writes equipment records after
// registration. Engines call them instead of updating equipment directly.

func loadEquipment(ctx context.Context, tx *repository.Repository, id string) (models.Equipment, error) {
	e, err := tx.Equipment.Get(ctx, id)
	if err != nil {
		return models.Equipment{}, notFound(models.EntityEquipment, id, err)
	}
	return e, nil
}

func (d *deps) saveEquipment(ctx context.Context, tx *repository.Repository, ob *outbox, e *models.Equipment) error {
	e.UpdatedAt = d.clock()
	if err := tx.Equipment.Update(ctx, e); err != nil {
		return err
	}
	ob.invalidate(cache.OverviewKey(e.ID))
	return nil
}

// refreshNextDate sets the next date of kind to the earliest open event of
// that kind, or clears it when none is open.
func (d *deps) refreshNextDate(ctx context.Context, tx *repository.Repository, e *models.Equipment, kind models.EventKind) error {
	events, err := tx.ServiceEvents.List(ctx, repository.EventFilter{EquipmentID: e.ID, Kind: kind})
	if err != nil {
		return err
	}
	var next *time.Time
	for _, ev := range events {
		if !ev.IsOpen() {
			continue
		}
		if next == nil || ev.ScheduledDate.Before(*next) {
			t := ev.ScheduledDate
			next = &t
		}
	}
	if kind == models.KindCalibration {
		e.NextCalibrationDate = next
	} else {
		e.NextServiceDate = next
	}
	return nil
}

// markServiced records a completion. Any completed event counts as service;
// calibrations also move the calibration date.
func markServiced(e *models.Equipment, kind models.EventKind, at time.Time) {
	e.LastServiceDate = &at
	if kind == models.KindCalibration {
		e.LastCalibrationDate = &at
	}
	if e.ServiceState != models.ServiceStateDecommissioned {
		e.ServiceState = models.ServiceStateActive
	}
}

// refreshContingencyFlag keeps HasOpenContingency true while any contingency
// of the equipment is still open.
func refreshContingencyFlag(ctx context.Context, tx *repository.Repository, e *models.Equipment) error {
	n, err := tx.Contingencies.CountOpen(ctx, e.ID)
	if err != nil {
		return err
	}
	e.HasOpenContingency = n > 0
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
