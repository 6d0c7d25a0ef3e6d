package policy

import (
	"time"

	"equipment_service/internal/models"
)

// DefaultFrequencyDays applies to unknown risk classes.
const DefaultFrequencyDays = 90

var frequencyDays = map[models.RiskClass]int{
	models.RiskHigh:       30,
	models.RiskMediumHigh: 60,
	models.RiskMedium:     90,
	models.RiskLow:        180,
}

var estimatedDuration = map[models.RiskClass]time.Duration{
	models.RiskHigh:       4 * time.Hour,
	models.RiskMediumHigh: 3 * time.Hour,
	models.RiskMedium:     2 * time.Hour,
	models.RiskLow:        1 * time.Hour,
}

// FrequencyDays returns the service interval in days for a risk class.
func FrequencyDays(r models.RiskClass) int {
	if d, ok := frequencyDays[r]; ok {
		return d
	}
	return DefaultFrequencyDays
}

// NextServiceDate adds one service interval to base.
func NextServiceDate(r models.RiskClass, base time.Time) time.Time {
	return base.AddDate(0, 0, FrequencyDays(r))
}

// PriorityFor maps a risk class to the priority of its scheduled events.
func PriorityFor(r models.RiskClass) models.ServicePriority {
	switch r {
	case models.RiskHigh:
		return models.PriorityHigh
	case models.RiskMediumHigh, models.RiskMedium:
		return models.PriorityMedium
	case models.RiskLow:
		return models.PriorityLow
	default:
		return models.PriorityMedium
	}
}

// EstimatedDuration is the planned technician time for one service event.
func EstimatedDuration(r models.RiskClass) time.Duration {
	if d, ok := estimatedDuration[r]; ok {
		return d
	}
	return estimatedDuration[models.RiskMedium]
}
