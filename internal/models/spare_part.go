package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockState is derived from the on-hand quantity and the reorder thresholds.
type StockState string

const (
	StockNormal   StockState = "NORMAL"
	StockLow      StockState = "LOW"
	StockDepleted StockState = "DEPLETED"
	StockExcess   StockState = "EXCESS"
)

// SparePart is an inventory item consumed by service events.
type SparePart struct {
	ID                  string          `json:"id"`
	Code                string          `json:"code"`
	Name                string          `json:"name"`
	QuantityOnHand      int             `json:"quantity_on_hand"`
	ReorderPoint        int             `json:"reorder_point"`
	ReorderCeiling      *int            `json:"reorder_ceiling,omitempty"`
	WeightedAverageCost decimal.Decimal `json:"weighted_average_cost"`
	Version             int             `json:"version"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// StockState recomputes the reorder state; it is never read from storage.
func (p SparePart) StockState() StockState {
	switch {
	case p.QuantityOnHand == 0:
		return StockDepleted
	case p.QuantityOnHand <= p.ReorderPoint:
		return StockLow
	case p.ReorderCeiling != nil && p.QuantityOnHand >= *p.ReorderCeiling:
		return StockExcess
	default:
		return StockNormal
	}
}

// MovementDirection tells whether stock entered, left or was corrected.
type MovementDirection string

const (
	MovementIn         MovementDirection = "IN"
	MovementOut        MovementDirection = "OUT"
	MovementAdjustment MovementDirection = "ADJUSTMENT"
)

// StockMovement is an immutable ledger entry.
type StockMovement struct {
	ID                string            `json:"id"`
	PartID            string            `json:"part_id"`
	Direction         MovementDirection `json:"direction"`
	Quantity          int               `json:"quantity"`
	UnitCost          decimal.Decimal   `json:"unit_cost"`
	ResultingQuantity int               `json:"resulting_quantity"`
	ResultingAvgCost  decimal.Decimal   `json:"resulting_avg_cost"`
	Reference         string            `json:"reference,omitempty"`
	OccurredAt        time.Time         `json:"occurred_at"`
}
