// Package devices provides the MobileDevice registry: serialized sellable
// units tracked by IMEI through their whole lifecycle.
package devices

import (
	"context"

	"cellhub/internal/core/apperror"
	"cellhub/internal/core/entity"
	"cellhub/internal/core/id"
	"cellhub/internal/core/types"
)

// Status is the device lifecycle state.
type Status string

const (
	// StatusPendingPreparation: accepted via trade-in, waiting for the
	// internal preparation order to complete. Not sellable.
	StatusPendingPreparation Status = "pending_preparation"
	StatusInStock            Status = "in_stock"
	StatusSold               Status = "sold"
	StatusInService          Status = "in_service"
	StatusLeased             Status = "leased"
)

// AcquisitionType records how the device entered the business.
type AcquisitionType string

const (
	AcquisitionNew     AcquisitionType = "new"
	AcquisitionUsed    AcquisitionType = "used"
	AcquisitionTradeIn AcquisitionType = "trade_in"
)

// Device represents a single serialized unit.
type Device struct {
	entity.BaseEntity

	IMEI         string `db:"imei" json:"imei"`
	IMEI2        string `db:"imei2" json:"imei2,omitempty"`
	SerialNumber string `db:"serial_number" json:"serialNumber,omitempty"`

	Brand string `db:"brand" json:"brand"`
	Model string `db:"model" json:"model"`
	Color string `db:"color" json:"color,omitempty"`

	// ProductID links the unit to its serialized product type.
	ProductID   id.ID `db:"product_id" json:"productId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	Status Status `db:"status" json:"status"`

	SellingPrice  types.Money `db:"selling_price" json:"sellingPrice"`
	PurchasePrice types.Money `db:"purchase_price" json:"purchasePrice"`

	AcquisitionType AcquisitionType `db:"acquisition_type" json:"acquisitionType"`
	AcquisitionCost types.Money     `db:"acquisition_cost" json:"acquisitionCost"`

	// SourceEvaluationID links trade-in devices to their originating evaluation.
	SourceEvaluationID *id.ID `db:"source_evaluation_id" json:"sourceEvaluationId,omitempty"`
}

// NewDevice creates a device record.
func NewDevice(imei, brand, model string, productID, warehouseID id.ID) *Device {
	return &Device{
		BaseEntity:      entity.NewBaseEntity(),
		IMEI:            imei,
		Brand:           brand,
		Model:           model,
		ProductID:       productID,
		WarehouseID:     warehouseID,
		Status:          StatusInStock,
		AcquisitionType: AcquisitionNew,
	}
}

// Validate implements entity.Validatable.
func (d *Device) Validate(ctx context.Context) error {
	if d.IMEI == "" {
		return apperror.NewValidation("imei is required").WithDetail("field", "imei")
	}
	if id.IsNil(d.ProductID) {
		return apperror.NewValidation("product is required").WithDetail("field", "productId")
	}
	if id.IsNil(d.WarehouseID) {
		return apperror.NewValidation("warehouse is required").WithDetail("field", "warehouseId")
	}
	if d.SellingPrice.IsNegative() {
		return apperror.NewValidation("selling price cannot be negative").
			WithDetail("field", "sellingPrice")
	}
	return nil
}

// IsSellable reports whether the device can go on a sale cart.
func (d *Device) IsSellable() bool {
	return d.Status == StatusInStock
}
