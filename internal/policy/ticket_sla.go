package policy

import (
	"time"

	"equipment_service/internal/models"
)

var ticketWindowHours = map[models.TicketPriority]int{
	models.TicketLow:    72,
	models.TicketMedium: 48,
	models.TicketHigh:   24,
	models.TicketUrgent: 4,
}

var nextPriority = map[models.TicketPriority]models.TicketPriority{
	models.TicketLow:    models.TicketMedium,
	models.TicketMedium: models.TicketHigh,
	models.TicketHigh:   models.TicketUrgent,
	models.TicketUrgent: models.TicketUrgent,
}

// TicketWindowHours returns the SLA window of a ticket priority.
func TicketWindowHours(p models.TicketPriority) int {
	if h, ok := ticketWindowHours[p]; ok {
		return h
	}
	return ticketWindowHours[models.TicketLow]
}

// TicketDueAt is from + the SLA window for p.
func TicketDueAt(p models.TicketPriority, from time.Time) time.Time {
	return from.Add(time.Duration(TicketWindowHours(p)) * time.Hour)
}

// EscalatePriority raises p by one tier; URGENT is a fixed point.
func EscalatePriority(p models.TicketPriority) models.TicketPriority {
	if n, ok := nextPriority[p]; ok {
		return n
	}
	return models.TicketMedium
}

// TicketOverdue reports whether at least one full SLA window has elapsed since creation.
func TicketOverdue(p models.TicketPriority, createdAt, now time.Time) bool {
	return now.Sub(createdAt) >= time.Duration(TicketWindowHours(p))*time.Hour
}
