package models

import "time"

// Severity ranks how urgently a contingency must be resolved.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// ContingencyState is the lifecycle state of a contingency.
type ContingencyState string

const (
	ContingencyOpen      ContingencyState = "OPEN"
	ContingencyEscalated ContingencyState = "ESCALATED"
	ContingencyClosed    ContingencyState = "CLOSED"
)

// Failure types recognised when computing severity. Any other value is accepted
// and treated as a minor failure.
const (
	FailureTotal              = "total_failure"
	FailureFire               = "fire"
	FailureExplosion          = "explosion"
	FailureHazardousLeak      = "hazardous_leak"
	FailurePartial            = "partial_failure"
	FailureCriticalAlarm      = "critical_alarm"
	FailureParameterDeviation = "parameter_deviation"
)

// Contingency is an unplanned equipment failure with a resolution deadline.
type Contingency struct {
	ID                 string           `json:"id"`
	EquipmentID        string           `json:"equipment_id"`
	FailureType        string           `json:"failure_type"`
	Description        string           `json:"description,omitempty"`
	Severity           Severity         `json:"severity"`
	State              ContingencyState `json:"state"`
	ReportedAt         time.Time        `json:"reported_at"`
	ResolutionDeadline time.Time        `json:"resolution_deadline"`
	EscalatedAt        *time.Time       `json:"escalated_at,omitempty"`
	EscalationCount    int              `json:"escalation_count"`
	ClosedAt           *time.Time       `json:"closed_at,omitempty"`
	RootCause          string           `json:"root_cause,omitempty"`
	Resolution         string           `json:"resolution,omitempty"`
	Version            int              `json:"version"`
}

// IsOpen reports whether the contingency still awaits resolution.
func (c Contingency) IsOpen() bool {
	return c.State == ContingencyOpen || c.State == ContingencyEscalated
}

// DeadlineExpired reports whether the resolution deadline has passed.
func (c Contingency) DeadlineExpired(now time.Time) bool {
	return c.IsOpen() && c.ResolutionDeadline.Before(now)
}
