package models

import "time"

// EventKind distinguishes the two families of recurring service events.
type EventKind string

const (
	KindMaintenance EventKind = "MAINTENANCE"
	KindCalibration EventKind = "CALIBRATION"
)

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	return k == KindMaintenance || k == KindCalibration
}

// EventType is the nature of the service work.
type EventType string

const (
	TypePreventive   EventType = "PREVENTIVE"
	TypeCorrective   EventType = "CORRECTIVE"
	TypePredictive   EventType = "PREDICTIVE"
	TypeVerification EventType = "VERIFICATION"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case TypePreventive, TypeCorrective, TypePredictive, TypeVerification:
		return true
	}
	return false
}

// EventState is the lifecycle state of a service event.
type EventState string

const (
	EventScheduled  EventState = "SCHEDULED"
	EventInProgress EventState = "IN_PROGRESS"
	EventCompleted  EventState = "COMPLETED"
	EventCancelled  EventState = "CANCELLED"
)

// Terminal reports whether no further transition is allowed from s.
func (s EventState) Terminal() bool {
	return s == EventCompleted || s == EventCancelled
}

// ServicePriority is derived from the equipment risk class.
type ServicePriority string

const (
	PriorityLow    ServicePriority = "low"
	PriorityMedium ServicePriority = "medium"
	PriorityHigh   ServicePriority = "high"
)

// PartUsage is one spare part line consumed by a service event.
type PartUsage struct {
	PartID   string `json:"part_id"`
	Quantity int    `json:"quantity"`
}

// ServiceEvent is a maintenance or calibration action against one piece of equipment.
type ServiceEvent struct {
	ID                string          `json:"id"`
	EquipmentID       string          `json:"equipment_id"`
	Kind              EventKind       `json:"kind"`
	Type              EventType       `json:"type"`
	ScheduledDate     time.Time       `json:"scheduled_date"`
	CompletedDate     *time.Time      `json:"completed_date,omitempty"`
	State             EventState      `json:"state"`
	Priority          ServicePriority `json:"priority"`
	EstimatedDuration time.Duration   `json:"estimated_duration"`
	PartsConsumed     []PartUsage     `json:"parts_consumed,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	CancelReason      string          `json:"cancel_reason,omitempty"`
	Version           int             `json:"version"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// IsOpen reports whether the event still awaits execution.
func (e ServiceEvent) IsOpen() bool {
	return e.State == EventScheduled || e.State == EventInProgress
}

// IsOverdue is computed on every call; it is never persisted.
func (e ServiceEvent) IsOverdue(now time.Time) bool {
	return e.State == EventScheduled && e.ScheduledDate.Before(now)
}
