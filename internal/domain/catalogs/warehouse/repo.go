package warehouse

import (
	"context"

	"cellhub/internal/core/id"
)

// Repository defines the interface for Warehouse persistence.
type Repository interface {
	// Create inserts a new warehouse
	Create(ctx context.Context, wh *Warehouse) error

	// GetByID retrieves warehouse by ID
	GetByID(ctx context.Context, id id.ID) (*Warehouse, error)

	// GetByCode retrieves warehouse by unique code
	GetByCode(ctx context.Context, code string) (*Warehouse, error)

	// GetDefault retrieves the default warehouse, if any
	GetDefault(ctx context.Context) (*Warehouse, error)

	// Update modifies existing warehouse (with optimistic locking)
	Update(ctx context.Context, wh *Warehouse) error

	// List retrieves all warehouses, optionally including inactive ones
	List(ctx context.Context, includeInactive bool) ([]*Warehouse, error)

	// ClearDefault clears the default flag on all warehouses (before setting new default)
	ClearDefault(ctx context.Context) error

	// HasMovements reports whether any stock movement references the warehouse
	HasMovements(ctx context.Context, id id.ID) (bool, error)
}
