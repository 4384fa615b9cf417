package serviceorder

import (
	"context"

	"cellhub/internal/core/id"
)

// Repository persists service orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error

	GetByID(ctx context.Context, orderID id.ID) (*Order, error)

	// GetForUpdate locks the order row for the transaction.
	GetForUpdate(ctx context.Context, orderID id.ID) (*Order, error)

	Update(ctx context.Context, o *Order) error

	// List returns orders, optionally filtered by status and internal flag,
	// newest first.
	List(ctx context.Context, status *Status, internal *bool) ([]*Order, error)

	// ListByCustomer returns a customer's orders, newest first.
	ListByCustomer(ctx context.Context, customerID id.ID) ([]*Order, error)
}
