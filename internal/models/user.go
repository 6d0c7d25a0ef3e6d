package models

// Role drives both the capability check and agent selection.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleAgent      Role = "agent"
	RoleTechnician Role = "technician"
	RoleViewer     Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleAgent, RoleTechnician, RoleViewer:
		return true
	}
	return false
}

type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // don’t expose hash
	Role         Role   `json:"role"`
	Category     string `json:"category,omitempty"`
	Department   string `json:"department,omitempty"`
	Active       bool   `json:"active"`
}

// AgentLoad is an assignable user together with its current open ticket count.
type AgentLoad struct {
	User
	OpenTickets int `json:"open_tickets"`
}
