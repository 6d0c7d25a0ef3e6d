package models

import "time"

// EntityKind is the closed set of record kinds tracked by the activity log.
type EntityKind string

const (
	EntityEquipment    EntityKind = "EQUIPMENT"
	EntityServiceEvent EntityKind = "SERVICE_EVENT"
	EntityContingency  EntityKind = "CONTINGENCY"
	EntityTicket       EntityKind = "TICKET"
	EntitySparePart    EntityKind = "SPARE_PART"
	EntityUser         EntityKind = "USER"
)

// Valid reports whether k is a known entity kind.
func (k EntityKind) Valid() bool {
	switch k {
	case EntityEquipment, EntityServiceEvent, EntityContingency, EntityTicket, EntitySparePart, EntityUser:
		return true
	}
	return false
}

// Activity is a single append-only audit entry.
type Activity struct {
	ID         string     `json:"id"`
	OccurredAt time.Time  `json:"occurred_at"`
	Entity     EntityKind `json:"entity"`
	EntityID   string     `json:"entity_id"`
	Type       string     `json:"type"`    // SCHEDULED | COMPLETED | ESCALATED | STOCK_IN ...
	Message    string     `json:"message"` // human-readable
	Metadata   any        `json:"metadata,omitempty"`
}
