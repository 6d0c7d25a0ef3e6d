package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"equipment_service/internal/models"
)

type ContingencySQL struct {
	c conn
}

func NewContingencySQL(c conn) *ContingencySQL { return &ContingencySQL{c: c} }

var _ ContingencyRepo = (*ContingencySQL)(nil)

const contingencyColumns = `id, equipment_id, failure_type, description, severity, state, reported_at,
	resolution_deadline, escalated_at, escalation_count, closed_at, root_cause, resolution, version`

const (
	insertContingencySQL = `INSERT INTO contingencies (` + contingencyColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	selectContingencySQL = `SELECT ` + contingencyColumns + ` FROM contingencies WHERE id = ?`
	updateContingencySQL = `UPDATE contingencies SET severity = ?, state = ?, resolution_deadline = ?,
	escalated_at = ?, escalation_count = ?, closed_at = ?, root_cause = ?, resolution = ?, version = version + 1
	WHERE id = ? AND version = ?`
	selectExpiredContingenciesSQL = `SELECT ` + contingencyColumns + ` FROM contingencies
	WHERE state IN ('OPEN', 'ESCALATED') AND resolution_deadline < ?
	ORDER BY resolution_deadline ASC`
	countOpenContingenciesSQL = `SELECT COUNT(*) FROM contingencies
	WHERE equipment_id = ? AND state IN ('OPEN', 'ESCALATED')`
)

func (r *ContingencySQL) Create(ctx context.Context, c models.Contingency) error {
	_, err := r.c.exec(ctx, insertContingencySQL,
		c.ID, c.EquipmentID, c.FailureType, c.Description, string(c.Severity), string(c.State),
		ts(c.ReportedAt), ts(c.ResolutionDeadline), nullTS(c.EscalatedAt), c.EscalationCount,
		nullTS(c.ClosedAt), c.RootCause, c.Resolution, c.Version,
	)
	if err != nil {
		return fmt.Errorf("insert contingency for %q: %w", c.EquipmentID, err)
	}
	return nil
}

func (r *ContingencySQL) Get(ctx context.Context, id string) (models.Contingency, error) {
	c, err := scanContingency(r.c.queryRow(ctx, selectContingencySQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Contingency{}, ErrNotFound
		}
		return models.Contingency{}, fmt.Errorf("select contingency %q: %w", id, err)
	}
	return c, nil
}

func (r *ContingencySQL) Update(ctx context.Context, c *models.Contingency) error {
	err := r.c.execVersioned(ctx, updateContingencySQL,
		string(c.Severity), string(c.State), ts(c.ResolutionDeadline),
		nullTS(c.EscalatedAt), c.EscalationCount, nullTS(c.ClosedAt), c.RootCause, c.Resolution,
		c.ID, c.Version,
	)
	if err != nil {
		if errors.Is(err, ErrStaleVersion) {
			return err
		}
		return fmt.Errorf("update contingency %q: %w", c.ID, err)
	}
	c.Version++
	return nil
}

func (r *ContingencySQL) List(ctx context.Context, f ContingencyFilter) ([]models.Contingency, error) {
	var (
		conds []string
		args  []any
	)
	if f.EquipmentID != "" {
		conds = append(conds, "equipment_id = ?")
		args = append(args, f.EquipmentID)
	}
	if f.State != "" {
		conds = append(conds, "state = ?")
		args = append(args, string(f.State))
	}
	if f.Severity != "" {
		conds = append(conds, "severity = ?")
		args = append(args, string(f.Severity))
	}
	q := `SELECT ` + contingencyColumns + ` FROM contingencies` + whereClause(conds) + ` ORDER BY reported_at DESC`
	return r.queryContingencies(ctx, q, args...)
}

func (r *ContingencySQL) ListExpired(ctx context.Context, now time.Time) ([]models.Contingency, error) {
	return r.queryContingencies(ctx, selectExpiredContingenciesSQL, ts(now))
}

func (r *ContingencySQL) CountOpen(ctx context.Context, equipmentID string) (int, error) {
	var n int
	if err := r.c.queryRow(ctx, countOpenContingenciesSQL, equipmentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count open contingencies of %q: %w", equipmentID, err)
	}
	return n, nil
}

func (r *ContingencySQL) queryContingencies(ctx context.Context, q string, args ...any) ([]models.Contingency, error) {
	rows, err := r.c.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query contingencies: %w", err)
	}
	defer rows.Close()

	var out []models.Contingency
	for rows.Next() {
		c, err := scanContingency(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanContingency(s rowScanner) (models.Contingency, error) {
	var (
		c               models.Contingency
		severity, state string
		escalated       sql.NullTime
		closed          sql.NullTime
	)
	if err := s.Scan(&c.ID, &c.EquipmentID, &c.FailureType, &c.Description, &severity, &state, &c.ReportedAt,
		&c.ResolutionDeadline, &escalated, &c.EscalationCount, &closed, &c.RootCause, &c.Resolution, &c.Version,
	); err != nil {
		return models.Contingency{}, err
	}
	c.Severity = models.Severity(severity)
	c.State = models.ContingencyState(state)
	c.ReportedAt = c.ReportedAt.UTC()
	c.ResolutionDeadline = c.ResolutionDeadline.UTC()
	c.EscalatedAt = fromNullTime(escalated)
	c.ClosedAt = fromNullTime(closed)
	return c, nil
}
