package dto

import (
	"cellhub/internal/domain/catalogs/warehouse"
)

// --- Request DTOs ---

// CreateWarehouseRequest is the request body for creating a warehouse.
type CreateWarehouseRequest struct {
	Code               string                  `json:"code"`
	Name               string                  `json:"name" binding:"required"`
	Type               warehouse.WarehouseType `json:"type" binding:"required"`
	AllowNegativeStock bool                    `json:"allowNegativeStock"`
	IsDefault          bool                    `json:"isDefault"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateWarehouseRequest) ToEntity() *warehouse.Warehouse {
	wh := warehouse.NewWarehouse(r.Code, r.Name, r.Type)
	wh.AllowNegativeStock = r.AllowNegativeStock
	wh.IsDefault = r.IsDefault
	return wh
}

// UpdateWarehouseRequest is the request body for updating a warehouse.
type UpdateWarehouseRequest struct {
	Code               string                  `json:"code"`
	Name               string                  `json:"name" binding:"required"`
	Type               warehouse.WarehouseType `json:"type" binding:"required"`
	IsActive           bool                    `json:"isActive"`
	AllowNegativeStock bool                    `json:"allowNegativeStock"`
	IsDefault          bool                    `json:"isDefault"`
	Version            int                     `json:"version" binding:"required"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateWarehouseRequest) ApplyTo(wh *warehouse.Warehouse) {
	wh.Code = r.Code
	wh.Name = r.Name
	wh.Type = r.Type
	wh.IsActive = r.IsActive
	wh.AllowNegativeStock = r.AllowNegativeStock
	wh.IsDefault = r.IsDefault
	wh.Version = r.Version
}

// --- Response DTOs ---

// WarehouseResponse is the response body for a warehouse.
type WarehouseResponse struct {
	ID                 string                  `json:"id"`
	Code               string                  `json:"code"`
	Name               string                  `json:"name"`
	Type               warehouse.WarehouseType `json:"type"`
	IsActive           bool                    `json:"isActive"`
	AllowNegativeStock bool                    `json:"allowNegativeStock"`
	IsDefault          bool                    `json:"isDefault"`
	DeletionMark       bool                    `json:"deletionMark"`
	Version            int                     `json:"version"`
}

// FromWarehouse creates response DTO from domain entity.
func FromWarehouse(wh *warehouse.Warehouse) *WarehouseResponse {
	return &WarehouseResponse{
		ID:                 wh.ID.String(),
		Code:               wh.Code,
		Name:               wh.Name,
		Type:               wh.Type,
		IsActive:           wh.IsActive,
		AllowNegativeStock: wh.AllowNegativeStock,
		IsDefault:          wh.IsDefault,
		DeletionMark:       wh.DeletionMark,
		Version:            wh.Version,
	}
}
