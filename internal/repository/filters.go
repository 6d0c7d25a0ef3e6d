package repository

import (
	"time"

	"equipment_service/internal/models"
)

type EquipmentFilter struct {
	Department string
	RiskClass  models.RiskClass
	State      models.ServiceState
}

type EventFilter struct {
	EquipmentID string
	Kind        models.EventKind
	State       models.EventState
	From        time.Time // scheduled_date lower bound, inclusive
	To          time.Time // scheduled_date upper bound, inclusive
}

type ContingencyFilter struct {
	EquipmentID string
	State       models.ContingencyState
	Severity    models.Severity
}

type TicketFilter struct {
	Category   string
	State      models.TicketState
	AssigneeID *int
	OpenOnly   bool
}

type AgentQuery struct {
	Category   string
	Department string
	Roles      []models.Role
}

// ActivityFilter supports history filtering by time range, type and entity.
type ActivityFilter struct {
	From     time.Time // inclusive; zero means no lower bound
	To       time.Time // inclusive; zero means no upper bound
	Type     string
	Entity   models.EntityKind
	EntityID string
}
