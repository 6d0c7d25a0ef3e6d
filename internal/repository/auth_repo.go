package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"equipment_service/internal/models"
)

type UserRepository struct {
	c conn
}

func NewUserRepository(c conn) *UserRepository {
	return &UserRepository{c: c}
}

// Ensure implementation of Authorization interface at compile time.
var _ Authorization = (*UserRepository)(nil)

const userColumns = `id, username, password_hash, role, category, department, active`

const (
	insertUserSQL = `INSERT INTO users (username, password_hash, role, category, department, active)
	VALUES (?, ?, ?, ?, ?, ?) RETURNING id`
	selectUserByUsernameSQL = `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	selectUserByIDSQL       = `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	selectAgentsSQL         = `SELECT u.id, u.username, u.password_hash, u.role, u.category, u.department, u.active,
	COUNT(t.id) AS open_tickets
	FROM users u
	LEFT JOIN tickets t ON t.assignee_id = u.id AND t.state IN ` + openTicketStatesSQL + `
	WHERE u.active = TRUE AND u.category = ?`
)

// Create inserts a new user and returns its ID.
func (r *UserRepository) Create(ctx context.Context, u models.User) (int, error) {
	var id int
	err := r.c.queryRow(ctx, insertUserSQL,
		u.Username, u.PasswordHash, string(u.Role), u.Category, u.Department, u.Active,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert user %q: %w", u.Username, err)
	}
	return id, nil
}

// GetByUsername fetches a user by username. Returns (nil, nil) if not found.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := scanUser(r.c.queryRow(ctx, selectUserByUsernameSQL, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select user %q: %w", username, err)
	}
	return &u, nil
}

// GetByID fetches a user by ID. Returns (nil, nil) if not found.
func (r *UserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	u, err := scanUser(r.c.queryRow(ctx, selectUserByIDSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select user %d: %w", id, err)
	}
	return &u, nil
}

// ListAgents orders candidates by open ticket count, then by ID.
func (r *UserRepository) ListAgents(ctx context.Context, q AgentQuery) ([]models.AgentLoad, error) {
	query := selectAgentsSQL
	args := []any{q.Category}
	if len(q.Roles) > 0 {
		marks := make([]string, len(q.Roles))
		for i, role := range q.Roles {
			marks[i] = "?"
			args = append(args, string(role))
		}
		query += " AND u.role IN (" + strings.Join(marks, ", ") + ")"
	}
	if q.Department != "" {
		query += " AND u.department = ?"
		args = append(args, q.Department)
	}
	query += ` GROUP BY u.id, u.username, u.password_hash, u.role, u.category, u.department, u.active
	ORDER BY open_tickets ASC, u.id ASC`

	rows, err := r.c.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list agents for %q: %w", q.Category, err)
	}
	defer rows.Close()

	var out []models.AgentLoad
	for rows.Next() {
		var (
			a    models.AgentLoad
			role string
		)
		if err := rows.Scan(&a.ID, &a.Username, &a.PasswordHash, &role, &a.Category, &a.Department, &a.Active,
			&a.OpenTickets); err != nil {
			return nil, err
		}
		a.Role = models.Role(role)
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanUser(s rowScanner) (models.User, error) {
	var (
		u    models.User
		role string
	)
	if err := s.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.Category, &u.Department, &u.Active); err != nil {
		return models.User{}, err
	}
	u.Role = models.Role(role)
	return u, nil
}
