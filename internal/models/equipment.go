package models

import "time"

// RiskClass is the equipment risk classification driving maintenance frequency.
type RiskClass string

const (
	RiskLow        RiskClass = "LOW"
	RiskMedium     RiskClass = "MEDIUM"
	RiskMediumHigh RiskClass = "MEDIUM_HIGH"
	RiskHigh       RiskClass = "HIGH"
)

// Valid reports whether r is one of the known risk classes.
func (r RiskClass) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskMediumHigh, RiskHigh:
		return true
	}
	return false
}

// ServiceState is the operational state of a piece of equipment.
type ServiceState string

const (
	ServiceStateActive         ServiceState = "ACTIVE"
	ServiceStateInService      ServiceState = "IN_SERVICE"
	ServiceStateDecommissioned ServiceState = "DECOMMISSIONED"
)

// Equipment is the scheduling-relevant view of a registered device.
// Next* dates are derived by the service event engine and never set by callers.
type Equipment struct {
	ID                  string       `json:"id"`
	Code                string       `json:"code"`
	Name                string       `json:"name"`
	Department          string       `json:"department"`
	RiskClass           RiskClass    `json:"risk_class"`
	IsCritical          bool         `json:"is_critical"`
	LastServiceDate     *time.Time   `json:"last_service_date,omitempty"`
	NextServiceDate     *time.Time   `json:"next_service_date,omitempty"`
	LastCalibrationDate *time.Time   `json:"last_calibration_date,omitempty"`
	NextCalibrationDate *time.Time   `json:"next_calibration_date,omitempty"`
	ServiceState        ServiceState `json:"service_state"`
	HasOpenContingency  bool         `json:"has_open_contingency"`
	Version             int          `json:"version"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// EquipmentOverview is a derived aggregate recomputed from the record store.
type EquipmentOverview struct {
	Equipment         Equipment      `json:"equipment"`
	OpenEvents        []ServiceEvent `json:"open_events"`
	OverdueEvents     int            `json:"overdue_events"`
	OpenContingencies int            `json:"open_contingencies"`
	OpenTickets       int            `json:"open_tickets"`
	ComputedAt        time.Time      `json:"computed_at"`
}
