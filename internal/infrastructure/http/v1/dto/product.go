package dto

import (
	"cellhub/internal/core/types"
	"cellhub/internal/domain/catalogs/product"
)

// --- Request DTOs ---

// CreateProductRequest is the request body for creating a product.
type CreateProductRequest struct {
	Code         string           `json:"code"`
	Name         string           `json:"name" binding:"required"`
	Category     product.Category `json:"category" binding:"required"`
	RequiresIMEI bool             `json:"requiresImei"`
	UnitPrice    types.Money      `json:"unitPrice"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateProductRequest) ToEntity() *product.Product {
	p := product.NewProduct(r.Code, r.Name, r.Category)
	p.RequiresIMEI = r.RequiresIMEI
	p.UnitPrice = r.UnitPrice
	return p
}

// UpdateProductRequest is the request body for updating a product.
type UpdateProductRequest struct {
	Code         string           `json:"code"`
	Name         string           `json:"name" binding:"required"`
	Category     product.Category `json:"category" binding:"required"`
	RequiresIMEI bool             `json:"requiresImei"`
	UnitPrice    types.Money      `json:"unitPrice"`
	IsActive     bool             `json:"isActive"`
	Version      int              `json:"version" binding:"required"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateProductRequest) ApplyTo(p *product.Product) {
	p.Code = r.Code
	p.Name = r.Name
	p.Category = r.Category
	p.RequiresIMEI = r.RequiresIMEI
	p.UnitPrice = r.UnitPrice
	p.IsActive = r.IsActive
	p.Version = r.Version
}

// --- Response DTOs ---

// ProductResponse is the response body for a product.
type ProductResponse struct {
	ID           string           `json:"id"`
	Code         string           `json:"code"`
	Name         string           `json:"name"`
	Category     product.Category `json:"category"`
	RequiresIMEI bool             `json:"requiresImei"`
	UnitPrice    types.Money      `json:"unitPrice"`
	IsActive     bool             `json:"isActive"`
	DeletionMark bool             `json:"deletionMark"`
	Version      int              `json:"version"`
}

// FromProduct creates response DTO from domain entity.
func FromProduct(p *product.Product) *ProductResponse {
	return &ProductResponse{
		ID:           p.ID.String(),
		Code:         p.Code,
		Name:         p.Name,
		Category:     p.Category,
		RequiresIMEI: p.RequiresIMEI,
		UnitPrice:    p.UnitPrice,
		IsActive:     p.IsActive,
		DeletionMark: p.DeletionMark,
		Version:      p.Version,
	}
}
