package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"equipment_service/internal/models"
)

type TicketSQL struct {
	c conn
}

func NewTicketSQL(c conn) *TicketSQL { return &TicketSQL{c: c} }

var _ TicketRepo = (*TicketSQL)(nil)

const ticketColumns = `id, number, category, priority, state, description, equipment_id, created_at, due_at,
	assignee_id, escalated, solution, satisfaction_score, resolved_at, closed_at, version`

const openTicketStatesSQL = `('OPEN', 'IN_PROGRESS', 'ESCALATED')`

const (
	insertTicketSQL = `INSERT INTO tickets (` + ticketColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	selectTicketSQL = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ?`
	updateTicketSQL = `UPDATE tickets SET priority = ?, state = ?, due_at = ?, assignee_id = ?, escalated = ?,
	solution = ?, satisfaction_score = ?, resolved_at = ?, closed_at = ?, version = version + 1
	WHERE id = ? AND version = ?`
	countOpenTicketsSQL = `SELECT COUNT(*) FROM tickets WHERE equipment_id = ? AND state IN ` + openTicketStatesSQL
)

func (r *TicketSQL) Create(ctx context.Context, t models.Ticket) error {
	_, err := r.c.exec(ctx, insertTicketSQL,
		t.ID, t.Number, t.Category, string(t.Priority), string(t.State), t.Description,
		nullString(t.EquipmentID), ts(t.CreatedAt), ts(t.DueAt), nullInt(t.AssigneeID), t.Escalated,
		t.Solution, nullInt(t.SatisfactionScore), nullTS(t.ResolvedAt), nullTS(t.ClosedAt), t.Version,
	)
	if err != nil {
		return fmt.Errorf("insert ticket %q: %w", t.Number, err)
	}
	return nil
}

func (r *TicketSQL) Get(ctx context.Context, id string) (models.Ticket, error) {
	t, err := scanTicket(r.c.queryRow(ctx, selectTicketSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Ticket{}, ErrNotFound
		}
		return models.Ticket{}, fmt.Errorf("select ticket %q: %w", id, err)
	}
	return t, nil
}

func (r *TicketSQL) Update(ctx context.Context, t *models.Ticket) error {
	err := r.c.execVersioned(ctx, updateTicketSQL,
		string(t.Priority), string(t.State), ts(t.DueAt), nullInt(t.AssigneeID), t.Escalated,
		t.Solution, nullInt(t.SatisfactionScore), nullTS(t.ResolvedAt), nullTS(t.ClosedAt),
		t.ID, t.Version,
	)
	if err != nil {
		if errors.Is(err, ErrStaleVersion) {
			return err
		}
		return fmt.Errorf("update ticket %q: %w", t.ID, err)
	}
	t.Version++
	return nil
}

func (r *TicketSQL) List(ctx context.Context, f TicketFilter) ([]models.Ticket, error) {
	var (
		conds []string
		args  []any
	)
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if f.State != "" {
		conds = append(conds, "state = ?")
		args = append(args, string(f.State))
	}
	if f.AssigneeID != nil {
		conds = append(conds, "assignee_id = ?")
		args = append(args, *f.AssigneeID)
	}
	if f.OpenOnly {
		conds = append(conds, "state IN "+openTicketStatesSQL)
	}
	q := `SELECT ` + ticketColumns + ` FROM tickets` + whereClause(conds) + ` ORDER BY created_at ASC`

	rows, err := r.c.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var out []models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TicketSQL) CountOpen(ctx context.Context, equipmentID string) (int, error) {
	var n int
	if err := r.c.queryRow(ctx, countOpenTicketsSQL, equipmentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count open tickets of %q: %w", equipmentID, err)
	}
	return n, nil
}

func scanTicket(s rowScanner) (models.Ticket, error) {
	var (
		t                models.Ticket
		priority, state  string
		equipmentID      sql.NullString
		assignee, score  sql.NullInt64
		resolved, closed sql.NullTime
	)
	if err := s.Scan(&t.ID, &t.Number, &t.Category, &priority, &state, &t.Description, &equipmentID,
		&t.CreatedAt, &t.DueAt, &assignee, &t.Escalated, &t.Solution, &score, &resolved, &closed, &t.Version,
	); err != nil {
		return models.Ticket{}, err
	}
	t.Priority = models.TicketPriority(priority)
	t.State = models.TicketState(state)
	t.EquipmentID = fromNullString(equipmentID)
	t.AssigneeID = fromNullInt(assignee)
	t.SatisfactionScore = fromNullInt(score)
	t.ResolvedAt = fromNullTime(resolved)
	t.ClosedAt = fromNullTime(closed)
	t.CreatedAt = t.CreatedAt.UTC()
	t.DueAt = t.DueAt.UTC()
	return t, nil
}

type SequenceSQL struct {
	c conn
}

func NewSequenceSQL(c conn) *SequenceSQL { return &SequenceSQL{c: c} }

var _ SequenceRepo = (*SequenceSQL)(nil)

const nextSequenceSQL = `INSERT INTO sequences (name, year, last_value) VALUES (?, ?, 1)
	ON CONFLICT (name, year) DO UPDATE SET last_value = sequences.last_value + 1
	RETURNING last_value`

// Next increments and returns the counter for (name, year); the first call yields 1.
func (r *SequenceSQL) Next(ctx context.Context, name string, year int) (int, error) {
	var v int
	if err := r.c.queryRow(ctx, nextSequenceSQL, name, year).Scan(&v); err != nil {
		return 0, fmt.Errorf("next %s sequence for %d: %w", name, year, err)
	}
	return v, nil
}
