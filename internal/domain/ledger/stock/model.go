// Package stock implements the stock ledger: an append-only journal of
// inventory movements plus a materialized per-warehouse balance projection.
package stock

import (
	"context"
	"time"

	"cellhub/internal/core/apperror"
	"cellhub/internal/core/entity"
	"cellhub/internal/core/id"
	"cellhub/internal/core/types"
)

// MovementType determines the direction a movement applies to the balance.
type MovementType string

const (
	MovementEntry       MovementType = "entry"
	MovementExit        MovementType = "exit"
	MovementTransferIn  MovementType = "transfer_in"
	MovementTransferOut MovementType = "transfer_out"
	MovementAdjustment  MovementType = "adjustment"
)

// Sign returns +1 for movements that increase on-hand quantity and -1 for
// movements that decrease it. Adjustments are write-offs; positive
// corrections are recorded as entries with OperationAdjustment.
func (t MovementType) Sign() int64 {
	switch t {
	case MovementEntry, MovementTransferIn:
		return 1
	default:
		return -1
	}
}

// IsValid reports whether t is a known movement type.
func (t MovementType) IsValid() bool {
	switch t {
	case MovementEntry, MovementExit, MovementTransferIn, MovementTransferOut, MovementAdjustment:
		return true
	}
	return false
}

// OperationType records the business reason behind a movement.
type OperationType string

const (
	OperationPurchase   OperationType = "purchase"
	OperationSale       OperationType = "sale"
	OperationTradeIn    OperationType = "trade_in"
	OperationReturn     OperationType = "return"
	OperationManual     OperationType = "manual_entry"
	OperationAdjustment OperationType = "inventory_adjustment"
	OperationTransfer   OperationType = "transfer"
)

// IsValid reports whether t is a known operation type.
func (t OperationType) IsValid() bool {
	switch t {
	case OperationPurchase, OperationSale, OperationTradeIn, OperationReturn,
		OperationManual, OperationAdjustment, OperationTransfer:
		return true
	}
	return false
}

// Serial identifies one physical unit inside a serialized movement.
type Serial struct {
	IMEI         string `json:"imei"`
	IMEI2        string `json:"imei2,omitempty"`
	SerialNumber string `json:"serialNumber,omitempty"`
}

// Movement is a single immutable journal line. PreviousQuantity and
// NewQuantity snapshot the warehouse balance around the posting so the
// journal can be audited without replaying it.
type Movement struct {
	ID               id.ID          `db:"id" json:"id"`
	WarehouseID      id.ID          `db:"warehouse_id" json:"warehouseId"`
	ProductID        id.ID          `db:"product_id" json:"productId"`
	MovementType     MovementType   `db:"movement_type" json:"movementType"`
	OperationType    OperationType  `db:"operation_type" json:"operationType"`
	Quantity         types.Quantity `db:"quantity" json:"quantity"`
	PreviousQuantity types.Quantity `db:"previous_quantity" json:"previousQuantity"`
	NewQuantity      types.Quantity `db:"new_quantity" json:"newQuantity"`
	UnitCost         *types.Money   `db:"unit_cost" json:"unitCost,omitempty"`
	Serials          []Serial       `db:"serials" json:"serials,omitempty"`
	ReferenceID      *id.ID         `db:"reference_id" json:"referenceId,omitempty"`
	ReferenceNumber  string         `db:"reference_number" json:"referenceNumber,omitempty"`
	Notes            string         `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"createdAt"`
}

// SignedQuantity returns the quantity with the movement's direction applied.
func (m *Movement) SignedQuantity() types.Quantity {
	return types.Quantity(m.MovementType.Sign() * int64(m.Quantity))
}

// Validate checks movement fields that do not require repository access.
func (m *Movement) Validate(ctx context.Context) error {
	if id.IsNil(m.WarehouseID) {
		return apperror.NewValidation("warehouse is required").
			WithDetail("field", "warehouseId")
	}
	if id.IsNil(m.ProductID) {
		return apperror.NewValidation("product is required").
			WithDetail("field", "productId")
	}
	if !m.MovementType.IsValid() {
		return apperror.NewValidation("unknown movement type").
			WithDetail("movementType", string(m.MovementType))
	}
	if !m.OperationType.IsValid() {
		return apperror.NewValidation("unknown operation type").
			WithDetail("operationType", string(m.OperationType))
	}
	if m.Quantity <= 0 {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("quantity", m.Quantity.String())
	}
	return nil
}

// WarehouseStock is the materialized balance for one product at one
// warehouse. It is derivable from the movement journal; Reconcile verifies
// the two agree.
type WarehouseStock struct {
	ID                id.ID          `db:"id" json:"id"`
	WarehouseID       id.ID          `db:"warehouse_id" json:"warehouseId"`
	ProductID         id.ID          `db:"product_id" json:"productId"`
	Quantity          types.Quantity `db:"quantity" json:"quantity"`
	ReservedQuantity  types.Quantity `db:"reserved_quantity" json:"reservedQuantity"`
	AvailableQuantity types.Quantity `db:"available_quantity" json:"availableQuantity"`
	LastMovementAt    *time.Time     `db:"last_movement_at" json:"lastMovementAt,omitempty"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updatedAt"`
}

// Recompute refreshes the derived available quantity.
func (s *WarehouseStock) Recompute() {
	s.AvailableQuantity = s.Quantity - s.ReservedQuantity
}

// TransferStatus is the lifecycle state of a stock transfer document.
type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferInTransit TransferStatus = "in_transit"
	TransferCompleted TransferStatus = "completed"
	TransferCancelled TransferStatus = "cancelled"
)

// CanTransitionTo reports whether the status change is allowed.
func (s TransferStatus) CanTransitionTo(next TransferStatus) bool {
	switch s {
	case TransferPending:
		return next == TransferInTransit || next == TransferCompleted || next == TransferCancelled
	case TransferInTransit:
		return next == TransferCompleted || next == TransferCancelled
	default:
		return false
	}
}

// TransferItem is one product line on a transfer document.
type TransferItem struct {
	ID         id.ID          `db:"id" json:"id"`
	TransferID id.ID          `db:"transfer_id" json:"transferId"`
	ProductID  id.ID          `db:"product_id" json:"productId"`
	Quantity   types.Quantity `db:"quantity" json:"quantity"`
	Serials    []Serial       `db:"serials" json:"serials,omitempty"`
}

// Transfer moves stock between two warehouses. Movements are posted only
// when the transfer completes, all lines or none.
type Transfer struct {
	entity.Document
	SourceWarehouseID id.ID          `db:"source_warehouse_id" json:"sourceWarehouseId"`
	DestWarehouseID   id.ID          `db:"dest_warehouse_id" json:"destWarehouseId"`
	Status            TransferStatus `db:"status" json:"status"`
	Notes             string         `db:"notes" json:"notes,omitempty"`
	CompletedAt       *time.Time     `db:"completed_at" json:"completedAt,omitempty"`
	Items             []TransferItem `db:"-" json:"items"`
}

// NewTransfer creates a pending transfer document.
func NewTransfer(source, dest id.ID) *Transfer {
	return &Transfer{
		Document:          entity.NewDocument(),
		SourceWarehouseID: source,
		DestWarehouseID:   dest,
		Status:            TransferPending,
	}
}

// Validate checks the transfer document and its lines.
func (t *Transfer) Validate(ctx context.Context) error {
	if err := t.Document.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(t.SourceWarehouseID) || id.IsNil(t.DestWarehouseID) {
		return apperror.NewValidation("source and destination warehouses are required")
	}
	if t.SourceWarehouseID == t.DestWarehouseID {
		return apperror.NewValidation("source and destination warehouses must differ")
	}
	if len(t.Items) == 0 {
		return apperror.NewValidation("transfer requires at least one item")
	}
	for i := range t.Items {
		if id.IsNil(t.Items[i].ProductID) {
			return apperror.NewValidation("transfer item product is required").
				WithDetail("line", i)
		}
		if t.Items[i].Quantity <= 0 {
			return apperror.NewValidation("transfer item quantity must be positive").
				WithDetail("line", i)
		}
	}
	return nil
}
