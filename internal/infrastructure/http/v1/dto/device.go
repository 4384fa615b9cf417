package dto

import (
	"cellhub/internal/core/apperror"
	"cellhub/internal/core/id"
	"cellhub/internal/core/types"
	"cellhub/internal/domain/devices"
)

// --- Request DTOs ---

// RegisterDeviceRequest is the request body for registering a device.
type RegisterDeviceRequest struct {
	IMEI         string `json:"imei" binding:"required"`
	IMEI2        string `json:"imei2"`
	SerialNumber string `json:"serialNumber"`

	Brand string `json:"brand" binding:"required"`
	Model string `json:"model" binding:"required"`
	Color string `json:"color"`

	ProductID   string `json:"productId" binding:"required"`
	WarehouseID string `json:"warehouseId" binding:"required"`

	SellingPrice  types.Money `json:"sellingPrice"`
	PurchasePrice types.Money `json:"purchasePrice"`

	AcquisitionType devices.AcquisitionType `json:"acquisitionType"`
	AcquisitionCost types.Money             `json:"acquisitionCost"`
}

// ToEntity converts DTO to domain entity.
func (r *RegisterDeviceRequest) ToEntity() (*devices.Device, error) {
	productID, err := id.Parse(r.ProductID)
	if err != nil {
		return nil, apperror.NewValidation("invalid productId format")
	}
	warehouseID, err := id.Parse(r.WarehouseID)
	if err != nil {
		return nil, apperror.NewValidation("invalid warehouseId format")
	}

	d := devices.NewDevice(r.IMEI, r.Brand, r.Model, productID, warehouseID)
	d.IMEI2 = r.IMEI2
	d.SerialNumber = r.SerialNumber
	d.Color = r.Color
	d.SellingPrice = r.SellingPrice
	d.PurchasePrice = r.PurchasePrice
	if r.AcquisitionType != "" {
		d.AcquisitionType = r.AcquisitionType
	}
	d.AcquisitionCost = r.AcquisitionCost
	return d, nil
}

// UpdateDeviceRequest is the request body for updating device details.
// Status and warehouse are owned by the ledger flows and cannot be set here.
type UpdateDeviceRequest struct {
	IMEI2        string `json:"imei2"`
	SerialNumber string `json:"serialNumber"`
	Color        string `json:"color"`

	SellingPrice  types.Money `json:"sellingPrice"`
	PurchasePrice types.Money `json:"purchasePrice"`

	Version int `json:"version" binding:"required"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateDeviceRequest) ApplyTo(d *devices.Device) {
	d.IMEI2 = r.IMEI2
	d.SerialNumber = r.SerialNumber
	d.Color = r.Color
	d.SellingPrice = r.SellingPrice
	d.PurchasePrice = r.PurchasePrice
	d.Version = r.Version
}

// --- Response DTOs ---

// DeviceResponse is the response body for a device.
type DeviceResponse struct {
	ID           string `json:"id"`
	IMEI         string `json:"imei"`
	IMEI2        string `json:"imei2,omitempty"`
	SerialNumber string `json:"serialNumber,omitempty"`

	Brand string `json:"brand"`
	Model string `json:"model"`
	Color string `json:"color,omitempty"`

	ProductID   string `json:"productId"`
	WarehouseID string `json:"warehouseId"`

	Status devices.Status `json:"status"`

	SellingPrice  types.Money `json:"sellingPrice"`
	PurchasePrice types.Money `json:"purchasePrice"`

	AcquisitionType    devices.AcquisitionType `json:"acquisitionType"`
	AcquisitionCost    types.Money             `json:"acquisitionCost"`
	SourceEvaluationID *string                 `json:"sourceEvaluationId,omitempty"`

	DeletionMark bool `json:"deletionMark"`
	Version      int  `json:"version"`
}

// FromDevice creates response DTO from domain entity.
func FromDevice(d *devices.Device) *DeviceResponse {
	resp := &DeviceResponse{
		ID:              d.ID.String(),
		IMEI:            d.IMEI,
		IMEI2:           d.IMEI2,
		SerialNumber:    d.SerialNumber,
		Brand:           d.Brand,
		Model:           d.Model,
		Color:           d.Color,
		ProductID:       d.ProductID.String(),
		WarehouseID:     d.WarehouseID.String(),
		Status:          d.Status,
		SellingPrice:    d.SellingPrice,
		PurchasePrice:   d.PurchasePrice,
		AcquisitionType: d.AcquisitionType,
		AcquisitionCost: d.AcquisitionCost,
		DeletionMark:    d.DeletionMark,
		Version:         d.Version,
	}
	if d.SourceEvaluationID != nil {
		val := d.SourceEvaluationID.String()
		resp.SourceEvaluationID = &val
	}
	return resp
}
