package memory

import (
	"time"

	"equipment_service/internal/models"
)

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

func cloneEquipment(e models.Equipment) models.Equipment {
	e.LastServiceDate = cloneTime(e.LastServiceDate)
	e.NextServiceDate = cloneTime(e.NextServiceDate)
	e.LastCalibrationDate = cloneTime(e.LastCalibrationDate)
	e.NextCalibrationDate = cloneTime(e.NextCalibrationDate)
	return e
}

func cloneEvent(e models.ServiceEvent) models.ServiceEvent {
	e.CompletedDate = cloneTime(e.CompletedDate)
	if e.PartsConsumed != nil {
		e.PartsConsumed = append([]models.PartUsage(nil), e.PartsConsumed...)
	}
	return e
}

func cloneContingency(c models.Contingency) models.Contingency {
	c.EscalatedAt = cloneTime(c.EscalatedAt)
	c.ClosedAt = cloneTime(c.ClosedAt)
	return c
}

func cloneTicket(t models.Ticket) models.Ticket {
	if t.EquipmentID != nil {
		id := *t.EquipmentID
		t.EquipmentID = &id
	}
	t.AssigneeID = cloneInt(t.AssigneeID)
	t.SatisfactionScore = cloneInt(t.SatisfactionScore)
	t.ResolvedAt = cloneTime(t.ResolvedAt)
	t.ClosedAt = cloneTime(t.ClosedAt)
	return t
}

func clonePart(p models.SparePart) models.SparePart {
	p.ReorderCeiling = cloneInt(p.ReorderCeiling)
	return p
}
