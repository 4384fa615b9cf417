package devices

import (
	"context"

	"cellhub/internal/core/id"
)

// Repository defines the interface for Device persistence.
type Repository interface {
	Create(ctx context.Context, d *Device) error

	GetByID(ctx context.Context, id id.ID) (*Device, error)

	// GetForUpdate retrieves the device with a row lock. Used by the sale
	// engine so two concurrent sales cannot both mark the same unit sold.
	GetForUpdate(ctx context.Context, id id.ID) (*Device, error)

	GetByIMEI(ctx context.Context, imei string) (*Device, error)

	Update(ctx context.Context, d *Device) error

	// ListByWarehouse returns devices in a warehouse, optionally filtered by status.
	ListByWarehouse(ctx context.Context, warehouseID id.ID, status *Status) ([]*Device, error)

	// IMEIInStock reports whether any device with this IMEI is currently in stock.
	IMEIInStock(ctx context.Context, imei string) (bool, error)

	// RelocateByIMEI moves an in-stock device to another warehouse.
	// Used when a completed transfer carries serialized units.
	RelocateByIMEI(ctx context.Context, imei string, warehouseID id.ID) error
}
