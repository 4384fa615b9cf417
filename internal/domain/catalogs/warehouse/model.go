// Package warehouse provides the Warehouse catalog.
// Warehouses represent physical or virtual locations for storing stock.
package warehouse

import (
	"context"

	"cellhub/internal/core/apperror"
	"cellhub/internal/core/entity"
)

// WarehouseType defines the type of warehouse.
type WarehouseType string

const (
	TypeStore   WarehouseType = "store"   // sales floor of a retail store
	TypeCentral WarehouseType = "central" // central distribution depot
	TypeTransit WarehouseType = "transit" // goods in transit between locations
	TypeVirtual WarehouseType = "virtual" // non-physical (demo units, write-offs)
)

// Warehouse represents a storage location for goods.
type Warehouse struct {
	entity.Catalog

	// Type defines the warehouse category
	Type WarehouseType `db:"type" json:"type"`

	// IsActive indicates if warehouse is operational
	IsActive bool `db:"is_active" json:"isActive"`

	// AllowNegativeStock permits exits below current on-hand quantity
	AllowNegativeStock bool `db:"allow_negative_stock" json:"allowNegativeStock"`

	// IsDefault indicates if this is the default warehouse
	IsDefault bool `db:"is_default" json:"isDefault"`
}

// NewWarehouse creates a new Warehouse with required fields.
func NewWarehouse(code, name string, whType WarehouseType) *Warehouse {
	return &Warehouse{
		Catalog:  entity.NewCatalog(code, name),
		Type:     whType,
		IsActive: true,
	}
}

// Validate implements entity.Validatable interface.
func (w *Warehouse) Validate(ctx context.Context) error {
	if err := w.Catalog.Validate(ctx); err != nil {
		return err
	}

	if !isValidWarehouseType(w.Type) {
		return apperror.NewValidation("invalid warehouse type").
			WithDetail("field", "type").
			WithDetail("value", string(w.Type))
	}

	return nil
}

// CanAcceptStock returns true if warehouse can accept stock.
func (w *Warehouse) CanAcceptStock() bool {
	return w.IsActive && !w.DeletionMark
}

// CanIssueStock returns true if warehouse can issue stock.
func (w *Warehouse) CanIssueStock() bool {
	return w.IsActive && !w.DeletionMark
}

func isValidWarehouseType(t WarehouseType) bool {
	switch t {
	case TypeStore, TypeCentral, TypeTransit, TypeVirtual:
		return true
	}
	return false
}
