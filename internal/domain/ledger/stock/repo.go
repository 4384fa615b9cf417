package stock

import (
	"context"
	"time"

	"cellhub/internal/core/id"
	"cellhub/internal/core/types"
)

// MovementFilter narrows movement history queries.
type MovementFilter struct {
	WarehouseID   *id.ID
	ProductID     *id.ID
	MovementType  *MovementType
	OperationType *OperationType
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}

// Repository persists the movement journal, the balance projection and
// transfer documents. Implementations must honor the transaction carried in
// the context.
type Repository interface {
	// CreateMovement appends one journal line. Movements are never updated
	// or deleted.
	CreateMovement(ctx context.Context, m *Movement) error

	// ListMovements returns journal lines matching the filter, newest first.
	ListMovements(ctx context.Context, filter MovementFilter) ([]*Movement, error)

	// GetStock returns the balance projection row, or a zero-quantity row
	// when the product never moved at the warehouse.
	GetStock(ctx context.Context, warehouseID, productID id.ID) (*WarehouseStock, error)

	// GetStockForUpdate locks the projection row for the duration of the
	// transaction, creating it at zero if absent. Serializes concurrent
	// postings against the same (warehouse, product).
	GetStockForUpdate(ctx context.Context, warehouseID, productID id.ID) (*WarehouseStock, error)

	// SaveStock writes the projection row back.
	SaveStock(ctx context.Context, s *WarehouseStock) error

	// ListStockByWarehouse returns all non-zero projection rows for a warehouse.
	ListStockByWarehouse(ctx context.Context, warehouseID id.ID) ([]*WarehouseStock, error)

	// FoldMovements replays the journal for one (warehouse, product) and
	// returns the signed sum. Used by Reconcile.
	FoldMovements(ctx context.Context, warehouseID, productID id.ID) (types.Quantity, error)

	// CreateTransfer persists a transfer document with its items.
	CreateTransfer(ctx context.Context, t *Transfer) error

	// GetTransfer loads a transfer with its items.
	GetTransfer(ctx context.Context, transferID id.ID) (*Transfer, error)

	// GetTransferForUpdate loads and locks a transfer document row.
	GetTransferForUpdate(ctx context.Context, transferID id.ID) (*Transfer, error)

	// UpdateTransfer writes back the transfer header (status, completion).
	UpdateTransfer(ctx context.Context, t *Transfer) error

	// ListTransfers returns transfers touching the warehouse as source or
	// destination, newest first.
	ListTransfers(ctx context.Context, warehouseID id.ID, status *TransferStatus) ([]*Transfer, error)
}
