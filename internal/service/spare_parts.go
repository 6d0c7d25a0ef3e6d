package service

import (
	"context"
	"strings"

	"equipment_service/internal/metrics"
	"equipment_service/internal/models"
	"equipment_service/internal/notify"
	"equipment_service/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// costPlaces is the precision kept for weighted average costs.
const costPlaces = 4

type RegisterPartInput struct {
	Code            string
	Name            string
	ReorderPoint    int
	ReorderCeiling  *int
	InitialQuantity int
	UnitCost        decimal.Decimal
}

type SparePartsService struct {
	d *deps
}

func (s *SparePartsService) Register(ctx context.Context, in RegisterPartInput) (models.SparePart, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Code == "":
		return models.SparePart{}, &ValidationError{Field: "code", Reason: "is required"}
	case in.Name == "":
		return models.SparePart{}, &ValidationError{Field: "name", Reason: "is required"}
	case in.ReorderPoint < 0:
		return models.SparePart{}, &ValidationError{Field: "reorder_point", Reason: "must not be negative"}
	case in.ReorderCeiling != nil && *in.ReorderCeiling <= in.ReorderPoint:
		return models.SparePart{}, &ValidationError{Field: "reorder_ceiling", Reason: "must be greater than reorder_point"}
	case in.InitialQuantity < 0:
		return models.SparePart{}, &ValidationError{Field: "initial_quantity", Reason: "must not be negative"}
	case in.UnitCost.IsNegative():
		return models.SparePart{}, &ValidationError{Field: "unit_cost", Reason: "must not be negative"}
	}

	p := models.SparePart{
		ID:                  uuid.NewString(),
		Code:                in.Code,
		Name:                in.Name,
		ReorderPoint:        in.ReorderPoint,
		ReorderCeiling:      in.ReorderCeiling,
		WeightedAverageCost: decimal.Zero,
		UpdatedAt:           s.d.clock(),
	}
	err := s.d.inTx(ctx, "register spare part", func(ctx context.Context, tx *repository.Repository, ob *outbox) error {
		if err := tx.Parts.Create(ctx, p); err != nil {
			return err
		}
		if err := s.d.record(ctx, tx, models.EntitySparePart, p.ID, "REGISTERED", "spare part registered",
			map[string]any{"code": p.Code}); err != nil {
			return err
		}
		if in.InitialQuantity > 0 {
			var err error
			p, err = s.receive(ctx, tx, ob, p.ID, in.InitialQuantity, in.UnitCost, "initial stock")
			return err
		}
		return nil
	})
	return p, err
}

func (s *SparePartsService) Receive(ctx context.Context, partID string, qty int, unitCost decimal.Decimal, reference string) (models.SparePart, error) {
	if qty <= 0 {
		return models.SparePart{}, &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if unitCost.IsNegative() {
		return models.SparePart{}, &ValidationError{Field: "unit_cost", Reason: "must not be negative"}
	}
	var p models.SparePart
	err := s.d.inTx(ctx, "receive stock", func(ctx context.Context, tx *repository.Repository, ob *outbox) error {
		var err error
		p, err = s.receive(ctx, tx, ob, partID, qty, unitCost, reference)
		return err
	})
	return p, err
}

// receive recomputes the weighted average cost:
// (onHand*avg + qty*unitCost) / (onHand + qty).
func (s *SparePartsService) receive(ctx context.Context, tx *repository.Repository, ob *outbox, partID string, qty int, unitCost decimal.Decimal, reference string) (models.SparePart, error) {
	p, err := loadPart(ctx, tx, partID)
	if err != nil {
		return models.SparePart{}, err
	}

	newQty := p.QuantityOnHand + qty
	if newQty == 0 {
		p.WeightedAverageCost = unitCost
	} else {
		total := p.WeightedAverageCost.Mul(decimal.NewFromInt(int64(p.QuantityOnHand))).
			Add(unitCost.Mul(decimal.NewFromInt(int64(qty))))
		p.WeightedAverageCost = total.Div(decimal.NewFromInt(int64(newQty))).Round(costPlaces)
	}
	p.QuantityOnHand = newQty

	return p, s.apply(ctx, tx, ob, &p, models.MovementIn, qty, unitCost, reference)
}

func (s *SparePartsService) Issue(ctx context.Context, partID string, qty int, reference string) (models.SparePart, error) {
	if qty <= 0 {
		return models.SparePart{}, &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	var p models.SparePart
	err := s.d.inTx(ctx, "issue stock", func(ctx context.Context, tx *repository.Repository, ob *outbox) error {
		var err error
		p, err = s.issue(ctx, tx, ob, partID, qty, reference)
		return err
	})
	return p, err
}

// issue takes stock out at the current average cost, which stays unchanged.
func (s *SparePartsService) issue(ctx context.Context, tx *repository.Repository, ob *outbox, partID string, qty int, reference string) (models.SparePart, error) {
	p, err := loadPart(ctx, tx, partID)
	if err != nil {
		return models.SparePart{}, err
	}
	if qty > p.QuantityOnHand {
		return models.SparePart{}, &InsufficientStockError{PartID: p.ID, Requested: qty, OnHand: p.QuantityOnHand}
	}
	p.QuantityOnHand -= qty

	if err := s.apply(ctx, tx, ob, &p, models.MovementOut, qty, p.WeightedAverageCost, reference); err != nil {
		return models.SparePart{}, err
	}
	s.reorderAlert(ob, p)
	return p, nil
}

// Reconcile sets on-hand quantity to a physical count. The average cost is kept.
func (s *SparePartsService) Reconcile(ctx context.Context, partID string, physicalCount int, reference string) (models.SparePart, error) {
	if physicalCount < 0 {
		return models.SparePart{}, &ValidationError{Field: "physical_count", Reason: "must not be negative"}
	}
	var p models.SparePart
	err := s.d.inTx(ctx, "reconcile stock", func(ctx context.Context, tx *repository.Repository, ob *outbox) error {
		var err error
		if p, err = loadPart(ctx, tx, partID); err != nil {
			return err
		}
		delta := physicalCount - p.QuantityOnHand
		p.QuantityOnHand = physicalCount

		qty := delta
		if qty < 0 {
			qty = -qty
		}
		if err := s.apply(ctx, tx, ob, &p, models.MovementAdjustment, qty, p.WeightedAverageCost, reference); err != nil {
			return err
		}
		if delta < 0 {
			s.reorderAlert(ob, p)
		}
		return nil
	})
	return p, err
}

func (s *SparePartsService) Get(ctx context.Context, id string) (models.SparePart, error) {
	var p models.SparePart
	err := s.d.read(ctx, "get spare part", func(ctx context.Context, tx *repository.Repository) error {
		var err error
		p, err = loadPart(ctx, tx, id)
		return err
	})
	return p, err
}

func (s *SparePartsService) List(ctx context.Context) ([]models.SparePart, error) {
	var out []models.SparePart
	err := s.d.read(ctx, "list spare parts", func(ctx context.Context, tx *repository.Repository) error {
		var err error
		out, err = tx.Parts.List(ctx)
		return err
	})
	return out, err
}

func (s *SparePartsService) Movements(ctx context.Context, partID string) ([]models.StockMovement, error) {
	var out []models.StockMovement
	err := s.d.read(ctx, "list stock movements", func(ctx context.Context, tx *repository.Repository) error {
		if _, err := loadPart(ctx, tx, partID); err != nil {
			return err
		}
		var err error
		out, err = tx.Movements.ListByPart(ctx, partID)
		return err
	})
	return out, err
}

// apply persists p and appends the matching ledger entry.
func (s *SparePartsService) apply(ctx context.Context, tx *repository.Repository, ob *outbox, p *models.SparePart, dir models.MovementDirection, qty int, unitCost decimal.Decimal, reference string) error {
	now := s.d.clock()
	p.UpdatedAt = now
	if err := tx.Parts.Update(ctx, p); err != nil {
		return err
	}
	m := models.StockMovement{
		ID:                uuid.NewString(),
		PartID:            p.ID,
		Direction:         dir,
		Quantity:          qty,
		UnitCost:          unitCost,
		ResultingQuantity: p.QuantityOnHand,
		ResultingAvgCost:  p.WeightedAverageCost,
		Reference:         reference,
		OccurredAt:        now,
	}
	if err := tx.Movements.Append(ctx, m); err != nil {
		return err
	}
	if err := s.d.record(ctx, tx, models.EntitySparePart, p.ID, "STOCK_"+string(dir), "stock movement", map[string]any{
		"quantity":           qty,
		"resulting_quantity": p.QuantityOnHand,
		"reference":          reference,
	}); err != nil {
		return err
	}
	ob.metric(func(c *metrics.Collector) { c.StockMoved(string(dir)) })
	return nil
}

func (s *SparePartsService) reorderAlert(ob *outbox, p models.SparePart) {
	state := p.StockState()
	if state != models.StockLow && state != models.StockDepleted {
		return
	}
	ob.notify(notify.Notification{
		Type:     notify.TypeReorderAlert,
		Entity:   models.EntitySparePart,
		EntityID: p.ID,
		Message:  "spare part " + p.Code + " is " + strings.ToLower(string(state)),
		Payload: map[string]any{
			"code":             p.Code,
			"quantity_on_hand": p.QuantityOnHand,
			"reorder_point":    p.ReorderPoint,
			"stock_state":      state,
		},
		OccurredAt: s.d.clock(),
	})
}

func loadPart(ctx context.Context, tx *repository.Repository, id string) (models.SparePart, error) {
	p, err := tx.Parts.Get(ctx, id)
	if err != nil {
		return models.SparePart{}, notFound(models.EntitySparePart, id, err)
	}
	return p, nil
}
