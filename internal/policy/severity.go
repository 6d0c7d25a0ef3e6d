package policy

import (
	"strings"
	"time"

	"equipment_service/internal/models"
)

var resolutionWindowHours = map[models.Severity]int{
	models.SeverityCritical: 2,
	models.SeverityHigh:     8,
	models.SeverityMedium:   24,
	models.SeverityLow:      72,
}

var nextSeverity = map[models.Severity]models.Severity{
	models.SeverityLow:      models.SeverityMedium,
	models.SeverityMedium:   models.SeverityHigh,
	models.SeverityHigh:     models.SeverityCritical,
	models.SeverityCritical: models.SeverityCritical,
}

var highFailures = map[string]struct{}{
	models.FailureTotal:         {},
	models.FailureFire:          {},
	models.FailureExplosion:     {},
	models.FailureHazardousLeak: {},
}

var mediumFailures = map[string]struct{}{
	models.FailurePartial:            {},
	models.FailureCriticalAlarm:      {},
	models.FailureParameterDeviation: {},
}

// ResolutionWindowHours returns the contingency resolution window. Unknown
// severities get the LOW window.
func ResolutionWindowHours(s models.Severity) int {
	if h, ok := resolutionWindowHours[s]; ok {
		return h
	}
	return resolutionWindowHours[models.SeverityLow]
}

// ResolutionDeadline is from + the window for s.
func ResolutionDeadline(s models.Severity, from time.Time) time.Time {
	return from.Add(time.Duration(ResolutionWindowHours(s)) * time.Hour)
}

// EscalateSeverity raises s by one tier; CRITICAL is a fixed point.
func EscalateSeverity(s models.Severity) models.Severity {
	if n, ok := nextSeverity[s]; ok {
		return n
	}
	return models.SeverityMedium
}

// DetermineSeverity computes the severity of a newly reported failure.
func DetermineSeverity(isCritical bool, failureType string) models.Severity {
	if isCritical {
		return models.SeverityCritical
	}
	ft := strings.ToLower(strings.TrimSpace(failureType))
	if _, ok := highFailures[ft]; ok {
		return models.SeverityHigh
	}
	if _, ok := mediumFailures[ft]; ok {
		return models.SeverityMedium
	}
	return models.SeverityLow
}
