package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"equipment_service/internal/models"

	"github.com/google/uuid"
)

type ActivitySQL struct {
	c conn
}

func NewActivitySQL(c conn) *ActivitySQL { return &ActivitySQL{c: c} }

var _ ActivityRepo = (*ActivitySQL)(nil)

const insertActivitySQL = `
		INSERT INTO activity_log (id, occurred_at, entity, entity_id, type, message, meta)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

// Append inserts a new entry. If ID or OccurredAt are empty, they’re set.
func (r *ActivitySQL) Append(ctx context.Context, a models.Activity) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.OccurredAt.IsZero() {
		a.OccurredAt = time.Now().UTC()
	}

	// marshal metadata if present
	var metaPtr *string
	if a.Metadata != nil {
		if b, err := json.Marshal(a.Metadata); err == nil {
			s := string(b)
			metaPtr = &s
		}
	}

	_, err := r.c.exec(ctx, insertActivitySQL,
		a.ID,
		ts(a.OccurredAt),
		string(a.Entity),
		a.EntityID,
		strings.ToUpper(strings.TrimSpace(a.Type)),
		a.Message,
		metaPtr,
	)
	if err != nil {
		return fmt.Errorf("insert activity %s/%s: %w", a.Entity, a.EntityID, err)
	}
	return nil
}

// List returns entries filtered by [from, to] (inclusive), type and entity, ordered ASC.
func (r *ActivitySQL) List(ctx context.Context, f ActivityFilter) ([]models.Activity, error) {
	var (
		conds []string
		args  []any
	)

	if !f.From.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, ts(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, ts(f.To))
	}
	if typ := strings.ToUpper(strings.TrimSpace(f.Type)); typ != "" {
		conds = append(conds, "type = ?")
		args = append(args, typ)
	}
	if f.Entity != "" {
		conds = append(conds, "entity = ?")
		args = append(args, string(f.Entity))
	}
	if f.EntityID != "" {
		conds = append(conds, "entity_id = ?")
		args = append(args, f.EntityID)
	}

	q := `SELECT id, occurred_at, entity, entity_id, type, message, meta FROM activity_log` +
		whereClause(conds) + " ORDER BY occurred_at ASC"

	rows, err := r.c.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Activity, 0, 64)
	for rows.Next() {
		var (
			a       models.Activity
			entity  string
			metaStr sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.OccurredAt, &entity, &a.EntityID, &a.Type, &a.Message, &metaStr); err != nil {
			return nil, err
		}
		a.OccurredAt = a.OccurredAt.UTC()
		a.Entity = models.EntityKind(entity)

		if metaStr.Valid && metaStr.String != "" {
			var v any
			if err := json.Unmarshal([]byte(metaStr.String), &v); err == nil {
				a.Metadata = v
			} else {
				a.Metadata = metaStr.String // keep raw if malformed
			}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
