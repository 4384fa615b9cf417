// Package product provides the Product catalog.
// Products are either fungible accessories tracked by quantity alone or
// serialized types (phones) tracked unit by unit through IMEI.
package product

import (
	"context"

	"cellhub/internal/core/apperror"
	"cellhub/internal/core/entity"
	"cellhub/internal/core/types"
)

// Category groups products for reporting; free-form in the registry.
type Category string

const (
	CategoryPhone     Category = "phone"
	CategoryAccessory Category = "accessory"
	CategoryPart      Category = "part"
)

// Product represents a sellable or stockable item.
type Product struct {
	entity.Catalog

	Category Category `db:"category" json:"category"`

	// RequiresIMEI marks a serialized product type: every stock movement for
	// it must carry exactly one serial entry per unit.
	RequiresIMEI bool `db:"requires_imei" json:"requiresImei"`

	// UnitPrice is the default selling price; the sale engine recomputes
	// line totals from it unless the cart overrides.
	UnitPrice types.Money `db:"unit_price" json:"unitPrice"`

	IsActive bool `db:"is_active" json:"isActive"`
}

// NewProduct creates a new Product.
func NewProduct(code, name string, category Category) *Product {
	return &Product{
		Catalog:  entity.NewCatalog(code, name),
		Category: category,
		IsActive: true,
	}
}

// Validate implements entity.Validatable.
func (p *Product) Validate(ctx context.Context) error {
	if err := p.Catalog.Validate(ctx); err != nil {
		return err
	}

	if p.UnitPrice.IsNegative() {
		return apperror.NewValidation("unit price cannot be negative").
			WithDetail("field", "unitPrice")
	}

	return nil
}
