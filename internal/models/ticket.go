package models

import "time"

// TicketPriority is the SLA tier of a support ticket.
type TicketPriority string

const (
	TicketLow    TicketPriority = "LOW"
	TicketMedium TicketPriority = "MEDIUM"
	TicketHigh   TicketPriority = "HIGH"
	TicketUrgent TicketPriority = "URGENT"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketLow, TicketMedium, TicketHigh, TicketUrgent:
		return true
	}
	return false
}

// TicketState is the lifecycle state of a ticket.
type TicketState string

const (
	TicketOpen       TicketState = "OPEN"
	TicketInProgress TicketState = "IN_PROGRESS"
	TicketEscalated  TicketState = "ESCALATED"
	TicketResolved   TicketState = "RESOLVED"
	TicketClosed     TicketState = "CLOSED"
)

// OpenTicketStates are the states counted as an agent's workload.
var OpenTicketStates = []TicketState{TicketOpen, TicketInProgress, TicketEscalated}

// Ticket is a support request, optionally linked to a piece of equipment.
type Ticket struct {
	ID                string         `json:"id"`
	Number            string         `json:"number"`
	Category          string         `json:"category"`
	Priority          TicketPriority `json:"priority"`
	State             TicketState    `json:"state"`
	Description       string         `json:"description"`
	EquipmentID       *string        `json:"equipment_id,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	DueAt             time.Time      `json:"due_at"`
	AssigneeID        *int           `json:"assignee_id,omitempty"`
	Escalated         bool           `json:"escalated"`
	Solution          string         `json:"solution,omitempty"`
	SatisfactionScore *int           `json:"satisfaction_score,omitempty"`
	ResolvedAt        *time.Time     `json:"resolved_at,omitempty"`
	ClosedAt          *time.Time     `json:"closed_at,omitempty"`
	Version           int            `json:"version"`
}

// IsOpen reports whether the ticket counts toward its assignee's workload.
func (t Ticket) IsOpen() bool {
	for _, s := range OpenTicketStates {
		if t.State == s {
			return true
		}
	}
	return false
}
