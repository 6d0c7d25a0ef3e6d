package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"equipment_service/internal/models"
)

type SparePartSQL struct {
	c conn
}

func NewSparePartSQL(c conn) *SparePartSQL { return &SparePartSQL{c: c} }

var _ SparePartRepo = (*SparePartSQL)(nil)

const sparePartColumns = `id, code, name, quantity_on_hand, reorder_point, reorder_ceiling,
	weighted_average_cost, version, updated_at`

const (
	insertSparePartSQL = `INSERT INTO spare_parts (` + sparePartColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	selectSparePartSQL = `SELECT ` + sparePartColumns + ` FROM spare_parts WHERE id = ?`
	listSparePartsSQL  = `SELECT ` + sparePartColumns + ` FROM spare_parts ORDER BY code ASC`
	updateSparePartSQL = `UPDATE spare_parts SET name = ?, quantity_on_hand = ?, reorder_point = ?, reorder_ceiling = ?,
	weighted_average_cost = ?, version = version + 1, updated_at = ?
	WHERE id = ? AND version = ?`
)

func (r *SparePartSQL) Create(ctx context.Context, p models.SparePart) error {
	_, err := r.c.exec(ctx, insertSparePartSQL,
		p.ID, p.Code, p.Name, p.QuantityOnHand, p.ReorderPoint, nullInt(p.ReorderCeiling),
		p.WeightedAverageCost.String(), p.Version, ts(p.UpdatedAt),
	)
	if err != nil {
		return insertErr("spare part", p.Code, err)
	}
	return nil
}

func (r *SparePartSQL) Get(ctx context.Context, id string) (models.SparePart, error) {
	p, err := scanSparePart(r.c.queryRow(ctx, selectSparePartSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SparePart{}, ErrNotFound
		}
		return models.SparePart{}, fmt.Errorf("select spare part %q: %w", id, err)
	}
	return p, nil
}

func (r *SparePartSQL) Update(ctx context.Context, p *models.SparePart) error {
	err := r.c.execVersioned(ctx, updateSparePartSQL,
		p.Name, p.QuantityOnHand, p.ReorderPoint, nullInt(p.ReorderCeiling),
		p.WeightedAverageCost.String(), ts(p.UpdatedAt),
		p.ID, p.Version,
	)
	if err != nil {
		if errors.Is(err, ErrStaleVersion) {
			return err
		}
		return fmt.Errorf("update spare part %q: %w", p.ID, err)
	}
	p.Version++
	return nil
}

func (r *SparePartSQL) List(ctx context.Context) ([]models.SparePart, error) {
	rows, err := r.c.query(ctx, listSparePartsSQL)
	if err != nil {
		return nil, fmt.Errorf("list spare parts: %w", err)
	}
	defer rows.Close()

	var out []models.SparePart
	for rows.Next() {
		p, err := scanSparePart(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanSparePart(s rowScanner) (models.SparePart, error) {
	var (
		p       models.SparePart
		ceiling sql.NullInt64
	)
	if err := s.Scan(&p.ID, &p.Code, &p.Name, &p.QuantityOnHand, &p.ReorderPoint, &ceiling,
		&p.WeightedAverageCost, &p.Version, &p.UpdatedAt,
	); err != nil {
		return models.SparePart{}, err
	}
	p.ReorderCeiling = fromNullInt(ceiling)
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

type StockMovementSQL struct {
	c conn
}

func NewStockMovementSQL(c conn) *StockMovementSQL { return &StockMovementSQL{c: c} }

var _ StockMovementRepo = (*StockMovementSQL)(nil)

const (
	insertStockMovementSQL = `INSERT INTO stock_movements
	(id, part_id, direction, quantity, unit_cost, resulting_quantity, resulting_avg_cost, reference, occurred_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	selectStockMovementsSQL = `SELECT id, part_id, direction, quantity, unit_cost, resulting_quantity,
	resulting_avg_cost, reference, occurred_at
	FROM stock_movements WHERE part_id = ? ORDER BY occurred_at ASC, id ASC`
)

func (r *StockMovementSQL) Append(ctx context.Context, m models.StockMovement) error {
	_, err := r.c.exec(ctx, insertStockMovementSQL,
		m.ID, m.PartID, string(m.Direction), m.Quantity, m.UnitCost.String(),
		m.ResultingQuantity, m.ResultingAvgCost.String(), m.Reference, ts(m.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("insert stock movement for %q: %w", m.PartID, err)
	}
	return nil
}

func (r *StockMovementSQL) ListByPart(ctx context.Context, partID string) ([]models.StockMovement, error) {
	rows, err := r.c.query(ctx, selectStockMovementsSQL, partID)
	if err != nil {
		return nil, fmt.Errorf("list stock movements of %q: %w", partID, err)
	}
	defer rows.Close()

	var out []models.StockMovement
	for rows.Next() {
		var (
			m   models.StockMovement
			dir string
		)
		if err := rows.Scan(&m.ID, &m.PartID, &dir, &m.Quantity, &m.UnitCost, &m.ResultingQuantity,
			&m.ResultingAvgCost, &m.Reference, &m.OccurredAt); err != nil {
			return nil, err
		}
		m.Direction = models.MovementDirection(dir)
		m.OccurredAt = m.OccurredAt.UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}
