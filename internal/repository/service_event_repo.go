package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"equipment_service/internal/models"
)

type ServiceEventSQL struct {
	c conn
}

func NewServiceEventSQL(c conn) *ServiceEventSQL { return &ServiceEventSQL{c: c} }

var _ ServiceEventRepo = (*ServiceEventSQL)(nil)

const serviceEventColumns = `id, equipment_id, kind, type, scheduled_date, completed_date, state, priority,
	estimated_duration_s, parts_consumed, notes, cancel_reason, version, created_at, updated_at`

const (
	insertServiceEventSQL = `INSERT INTO service_events (` + serviceEventColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	selectServiceEventSQL = `SELECT ` + serviceEventColumns + ` FROM service_events WHERE id = ?`
	updateServiceEventSQL = `UPDATE service_events SET scheduled_date = ?, completed_date = ?, state = ?,
	parts_consumed = ?, notes = ?, cancel_reason = ?, version = version + 1, updated_at = ?
	WHERE id = ? AND version = ?`
	selectOpenServiceEventsSQL = `SELECT ` + serviceEventColumns + ` FROM service_events
	WHERE equipment_id = ? AND kind = ? AND state IN ('SCHEDULED', 'IN_PROGRESS')
	AND scheduled_date >= ? AND scheduled_date <= ?
	ORDER BY scheduled_date ASC`
	selectOverdueServiceEventsSQL = `SELECT ` + serviceEventColumns + ` FROM service_events
	WHERE state = 'SCHEDULED' AND scheduled_date < ?
	ORDER BY scheduled_date ASC`
)

func (r *ServiceEventSQL) Create(ctx context.Context, e models.ServiceEvent) error {
	parts, err := marshalJSON(e.PartsConsumed)
	if err != nil {
		return fmt.Errorf("marshal parts consumed: %w", err)
	}
	_, err = r.c.exec(ctx, insertServiceEventSQL,
		e.ID, e.EquipmentID, string(e.Kind), string(e.Type),
		ts(e.ScheduledDate), nullTS(e.CompletedDate), string(e.State), string(e.Priority),
		int64(e.EstimatedDuration/time.Second), parts, e.Notes, e.CancelReason,
		e.Version, ts(e.CreatedAt), ts(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert service event for %q: %w", e.EquipmentID, err)
	}
	return nil
}

func (r *ServiceEventSQL) Get(ctx context.Context, id string) (models.ServiceEvent, error) {
	e, err := scanServiceEvent(r.c.queryRow(ctx, selectServiceEventSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ServiceEvent{}, ErrNotFound
		}
		return models.ServiceEvent{}, fmt.Errorf("select service event %q: %w", id, err)
	}
	return e, nil
}

func (r *ServiceEventSQL) Update(ctx context.Context, e *models.ServiceEvent) error {
	parts, err := marshalJSON(e.PartsConsumed)
	if err != nil {
		return fmt.Errorf("marshal parts consumed: %w", err)
	}
	err = r.c.execVersioned(ctx, updateServiceEventSQL,
		ts(e.ScheduledDate), nullTS(e.CompletedDate), string(e.State),
		parts, e.Notes, e.CancelReason, ts(e.UpdatedAt),
		e.ID, e.Version,
	)
	if err != nil {
		if errors.Is(err, ErrStaleVersion) {
			return err
		}
		return fmt.Errorf("update service event %q: %w", e.ID, err)
	}
	e.Version++
	return nil
}

func (r *ServiceEventSQL) List(ctx context.Context, f EventFilter) ([]models.ServiceEvent, error) {
	var (
		conds []string
		args  []any
	)
	if f.EquipmentID != "" {
		conds = append(conds, "equipment_id = ?")
		args = append(args, f.EquipmentID)
	}
	if f.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.State != "" {
		conds = append(conds, "state = ?")
		args = append(args, string(f.State))
	}
	if !f.From.IsZero() {
		conds = append(conds, "scheduled_date >= ?")
		args = append(args, ts(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "scheduled_date <= ?")
		args = append(args, ts(f.To))
	}
	q := `SELECT ` + serviceEventColumns + ` FROM service_events` + whereClause(conds) + ` ORDER BY scheduled_date ASC`
	return r.queryEvents(ctx, q, args...)
}

func (r *ServiceEventSQL) FindOpen(ctx context.Context, equipmentID string, kind models.EventKind, from, to time.Time) ([]models.ServiceEvent, error) {
	return r.queryEvents(ctx, selectOpenServiceEventsSQL, equipmentID, string(kind), ts(from), ts(to))
}

func (r *ServiceEventSQL) ListOverdue(ctx context.Context, now time.Time) ([]models.ServiceEvent, error) {
	return r.queryEvents(ctx, selectOverdueServiceEventsSQL, ts(now))
}

func (r *ServiceEventSQL) queryEvents(ctx context.Context, q string, args ...any) ([]models.ServiceEvent, error) {
	rows, err := r.c.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query service events: %w", err)
	}
	defer rows.Close()

	out := make([]models.ServiceEvent, 0, 16)
	for rows.Next() {
		e, err := scanServiceEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanServiceEvent(s rowScanner) (models.ServiceEvent, error) {
	var (
		e                          models.ServiceEvent
		kind, typ, state, priority string
		completed                  sql.NullTime
		durationS                  int64
		parts                      sql.NullString
	)
	if err := s.Scan(&e.ID, &e.EquipmentID, &kind, &typ, &e.ScheduledDate, &completed, &state, &priority,
		&durationS, &parts, &e.Notes, &e.CancelReason, &e.Version, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return models.ServiceEvent{}, err
	}
	e.Kind = models.EventKind(kind)
	e.Type = models.EventType(typ)
	e.State = models.EventState(state)
	e.Priority = models.ServicePriority(priority)
	e.EstimatedDuration = time.Duration(durationS) * time.Second
	e.ScheduledDate = e.ScheduledDate.UTC()
	e.CompletedDate = fromNullTime(completed)
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	if parts.Valid && parts.String != "" && parts.String != "null" {
		if err := json.Unmarshal([]byte(parts.String), &e.PartsConsumed); err != nil {
			return models.ServiceEvent{}, fmt.Errorf("decode parts consumed of %q: %w", e.ID, err)
		}
	}
	return e, nil
}
