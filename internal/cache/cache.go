// Package cache stores derived read models. Entries are invalidated by exact
// key when the entity they were computed from changes.
package cache

import (
	"context"

	"equipment_service/internal/models"
)

const overviewPrefix = "equipment:overview:"

// OverviewKey is the cache key of an equipment overview.
func OverviewKey(equipmentID string) string {
	return overviewPrefix + equipmentID
}

// Cache implementations must not let a SetOverview racing an Invalidate of
// the same key restore the older aggregate.
type Cache interface {
	GetOverview(ctx context.Context, equipmentID string) (models.EquipmentOverview, bool, error)
	SetOverview(ctx context.Context, o models.EquipmentOverview) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Nop never hits.
type Nop struct{}

func (Nop) GetOverview(context.Context, string) (models.EquipmentOverview, bool, error) {
	return models.EquipmentOverview{}, false, nil
}
func (Nop) SetOverview(context.Context, models.EquipmentOverview) error { return nil }
func (Nop) Invalidate(context.Context, ...string) error                 { return nil }
