package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"equipment_service/internal/models"
)

type EquipmentSQL struct {
	c conn
}

func NewEquipmentSQL(c conn) *EquipmentSQL { return &EquipmentSQL{c: c} }

var _ EquipmentRepo = (*EquipmentSQL)(nil)

const equipmentColumns = `id, code, name, department, risk_class, is_critical,
	last_service_date, next_service_date, last_calibration_date, next_calibration_date,
	service_state, has_open_contingency, version, created_at, updated_at`

const (
	insertEquipmentSQL = `INSERT INTO equipment (` + equipmentColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	selectEquipmentSQL = `SELECT ` + equipmentColumns + ` FROM equipment WHERE id = ?`
	updateEquipmentSQL = `UPDATE equipment SET name = ?, department = ?, risk_class = ?, is_critical = ?,
	last_service_date = ?, next_service_date = ?, last_calibration_date = ?, next_calibration_date = ?,
	service_state = ?, has_open_contingency = ?, version = version + 1, updated_at = ?
	WHERE id = ? AND version = ?`
)

func (r *EquipmentSQL) Create(ctx context.Context, e models.Equipment) error {
	_, err := r.c.exec(ctx, insertEquipmentSQL,
		e.ID, e.Code, e.Name, e.Department, string(e.RiskClass), e.IsCritical,
		nullTS(e.LastServiceDate), nullTS(e.NextServiceDate),
		nullTS(e.LastCalibrationDate), nullTS(e.NextCalibrationDate),
		string(e.ServiceState), e.HasOpenContingency, e.Version,
		ts(e.CreatedAt), ts(e.UpdatedAt),
	)
	if err != nil {
		return insertErr("equipment", e.Code, err)
	}
	return nil
}

func (r *EquipmentSQL) Get(ctx context.Context, id string) (models.Equipment, error) {
	e, err := scanEquipment(r.c.queryRow(ctx, selectEquipmentSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Equipment{}, ErrNotFound
		}
		return models.Equipment{}, fmt.Errorf("select equipment %q: %w", id, err)
	}
	return e, nil
}

func (r *EquipmentSQL) List(ctx context.Context, f EquipmentFilter) ([]models.Equipment, error) {
	var (
		conds []string
		args  []any
	)
	if f.Department != "" {
		conds = append(conds, "department = ?")
		args = append(args, f.Department)
	}
	if f.RiskClass != "" {
		conds = append(conds, "risk_class = ?")
		args = append(args, string(f.RiskClass))
	}
	if f.State != "" {
		conds = append(conds, "service_state = ?")
		args = append(args, string(f.State))
	}
	q := `SELECT ` + equipmentColumns + ` FROM equipment` + whereClause(conds) + ` ORDER BY code ASC`

	rows, err := r.c.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list equipment: %w", err)
	}
	defer rows.Close()

	out := make([]models.Equipment, 0, 16)
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *EquipmentSQL) Update(ctx context.Context, e *models.Equipment) error {
	err := r.c.execVersioned(ctx, updateEquipmentSQL,
		e.Name, e.Department, string(e.RiskClass), e.IsCritical,
		nullTS(e.LastServiceDate), nullTS(e.NextServiceDate),
		nullTS(e.LastCalibrationDate), nullTS(e.NextCalibrationDate),
		string(e.ServiceState), e.HasOpenContingency, ts(e.UpdatedAt),
		e.ID, e.Version,
	)
	if err != nil {
		if errors.Is(err, ErrStaleVersion) {
			return err
		}
		return fmt.Errorf("update equipment %q: %w", e.ID, err)
	}
	e.Version++
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEquipment(s rowScanner) (models.Equipment, error) {
	var (
		e                models.Equipment
		risk, state      string
		lastSvc, nextSvc sql.NullTime
		lastCal, nextCal sql.NullTime
	)
	if err := s.Scan(&e.ID, &e.Code, &e.Name, &e.Department, &risk, &e.IsCritical,
		&lastSvc, &nextSvc, &lastCal, &nextCal,
		&state, &e.HasOpenContingency, &e.Version, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return models.Equipment{}, err
	}
	e.RiskClass = models.RiskClass(risk)
	e.ServiceState = models.ServiceState(state)
	e.LastServiceDate = fromNullTime(lastSvc)
	e.NextServiceDate = fromNullTime(nextSvc)
	e.LastCalibrationDate = fromNullTime(lastCal)
	e.NextCalibrationDate = fromNullTime(nextCal)
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return e, nil
}
