package sales

import (
	"context"
	"time"

	"cellhub/internal/core/id"
)

// SaleFilter narrows sale listings.
type SaleFilter struct {
	CustomerID  *id.ID
	WarehouseID *id.ID
	Status      *Status
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

// Repository persists sales, their lines and payments, and returns.
type Repository interface {
	// CreateSale persists the sale with all items and payments.
	CreateSale(ctx context.Context, s *Sale) error

	// GetSale loads a sale with items and payments.
	GetSale(ctx context.Context, saleID id.ID) (*Sale, error)

	// GetSaleForUpdate loads and locks the sale document row.
	GetSaleForUpdate(ctx context.Context, saleID id.ID) (*Sale, error)

	// UpdateSale writes back the sale header.
	UpdateSale(ctx context.Context, s *Sale) error

	// UpdateSaleItem writes back one line (returned flag).
	UpdateSaleItem(ctx context.Context, item *SaleItem) error

	// ListSales returns sales matching the filter, newest first.
	ListSales(ctx context.Context, filter SaleFilter) ([]*Sale, error)

	// CreateReturn persists a return document.
	CreateReturn(ctx context.Context, r *Return) error

	// ListReturnsBySale returns a sale's return documents, newest first.
	ListReturnsBySale(ctx context.Context, saleID id.ID) ([]*Return, error)
}
