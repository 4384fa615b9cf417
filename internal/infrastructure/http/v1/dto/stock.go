package dto

import (
	"cellhub/internal/core/apperror"
	"cellhub/internal/core/id"
	"cellhub/internal/core/types"
	"cellhub/internal/domain/ledger/stock"
)

// --- Request DTOs for the Stock Ledger ---

// SerialRequest identifies one serialized unit in a movement.
type SerialRequest struct {
	IMEI         string `json:"imei" binding:"required"`
	IMEI2        string `json:"imei2"`
	SerialNumber string `json:"serialNumber"`
}

func toSerials(reqs []SerialRequest) []stock.Serial {
	if len(reqs) == 0 {
		return nil
	}
	serials := make([]stock.Serial, len(reqs))
	for i, r := range reqs {
		serials[i] = stock.Serial{IMEI: r.IMEI, IMEI2: r.IMEI2, SerialNumber: r.SerialNumber}
	}
	return serials
}

// RecordMovementRequest is the request body for posting a movement.
type RecordMovementRequest struct {
	WarehouseID     string              `json:"warehouseId" binding:"required"`
	ProductID       string              `json:"productId" binding:"required"`
	MovementType    stock.MovementType  `json:"movementType" binding:"required"`
	OperationType   stock.OperationType `json:"operationType" binding:"required"`
	Quantity        types.Quantity      `json:"quantity" binding:"required"`
	UnitCost        *types.Money        `json:"unitCost"`
	Serials         []SerialRequest     `json:"serials"`
	ReferenceNumber string              `json:"referenceNumber"`
	Notes           string              `json:"notes"`
}

// ToInput converts DTO to service input.
func (r *RecordMovementRequest) ToInput() (stock.MovementInput, error) {
	warehouseID, err := id.Parse(r.WarehouseID)
	if err != nil {
		return stock.MovementInput{}, apperror.NewValidation("invalid warehouseId format")
	}
	productID, err := id.Parse(r.ProductID)
	if err != nil {
		return stock.MovementInput{}, apperror.NewValidation("invalid productId format")
	}

	return stock.MovementInput{
		WarehouseID:     warehouseID,
		ProductID:       productID,
		MovementType:    r.MovementType,
		OperationType:   r.OperationType,
		Quantity:        r.Quantity,
		UnitCost:        r.UnitCost,
		Serials:         toSerials(r.Serials),
		ReferenceNumber: r.ReferenceNumber,
		Notes:           r.Notes,
	}, nil
}

// ReservationRequest is the request body for reserving or releasing stock.
type ReservationRequest struct {
	WarehouseID string         `json:"warehouseId" binding:"required"`
	ProductID   string         `json:"productId" binding:"required"`
	Quantity    types.Quantity `json:"quantity" binding:"required"`
}

// Parse extracts the identifiers.
func (r *ReservationRequest) Parse() (warehouseID, productID id.ID, err error) {
	warehouseID, err = id.Parse(r.WarehouseID)
	if err != nil {
		return id.ID{}, id.ID{}, apperror.NewValidation("invalid warehouseId format")
	}
	productID, err = id.Parse(r.ProductID)
	if err != nil {
		return id.ID{}, id.ID{}, apperror.NewValidation("invalid productId format")
	}
	return warehouseID, productID, nil
}

// ReconcileRequest is the request body for a journal-vs-projection check.
type ReconcileRequest struct {
	WarehouseID string `json:"warehouseId" binding:"required"`
	ProductID   string `json:"productId" binding:"required"`
}

// --- Transfer Requests ---

// TransferItemRequest is one line of a transfer request.
type TransferItemRequest struct {
	ProductID string          `json:"productId" binding:"required"`
	Quantity  types.Quantity  `json:"quantity" binding:"required"`
	Serials   []SerialRequest `json:"serials"`
}

// CreateTransferRequest is the request body for creating a transfer.
type CreateTransferRequest struct {
	SourceWarehouseID string                `json:"sourceWarehouseId" binding:"required"`
	DestWarehouseID   string                `json:"destWarehouseId" binding:"required"`
	Notes             string                `json:"notes"`
	Items             []TransferItemRequest `json:"items" binding:"required"`
}

// ToInput converts DTO to service input.
func (r *CreateTransferRequest) ToInput() (stock.TransferInput, error) {
	sourceID, err := id.Parse(r.SourceWarehouseID)
	if err != nil {
		return stock.TransferInput{}, apperror.NewValidation("invalid sourceWarehouseId format")
	}
	destID, err := id.Parse(r.DestWarehouseID)
	if err != nil {
		return stock.TransferInput{}, apperror.NewValidation("invalid destWarehouseId format")
	}

	items := make([]stock.TransferItemInput, len(r.Items))
	for i, item := range r.Items {
		productID, err := id.Parse(item.ProductID)
		if err != nil {
			return stock.TransferInput{}, apperror.NewValidation("invalid productId format").
				WithDetail("line", i)
		}
		items[i] = stock.TransferItemInput{
			ProductID: productID,
			Quantity:  item.Quantity,
			Serials:   toSerials(item.Serials),
		}
	}

	return stock.TransferInput{
		SourceWarehouseID: sourceID,
		DestWarehouseID:   destID,
		Notes:             r.Notes,
		Items:             items,
	}, nil
}
