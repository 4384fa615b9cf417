package devices

import (
	"context"
	"fmt"

	"cellhub/internal/core/apperror"
	"cellhub/internal/core/id"
	"cellhub/internal/core/tx"
	"cellhub/pkg/logger"
)

// Service provides business logic for the device registry.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a device service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{repo: repo, txManager: txManager}
}

// Register persists a new device record. The IMEI must not already be in
// stock; sold or serviced history under the same IMEI is allowed because a
// unit can legitimately re-enter the business.
func (s *Service) Register(ctx context.Context, d *Device) error {
	if err := d.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		inStock, err := s.repo.IMEIInStock(ctx, d.IMEI)
		if err != nil {
			return err
		}
		if inStock {
			return apperror.NewDuplicateIMEI(d.IMEI)
		}

		if err := s.repo.Create(ctx, d); err != nil {
			return fmt.Errorf("create device: %w", err)
		}

		logger.Info(ctx, "device registered",
			"deviceId", d.ID, "imei", d.IMEI, "status", d.Status, "acquisition", d.AcquisitionType)
		return nil
	})
}

// Update writes back editable device attributes (prices, cosmetic fields).
// Status is owned by the ledger flows and is not touched here.
func (s *Service) Update(ctx context.Context, d *Device) error {
	if err := d.Validate(ctx); err != nil {
		return err
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, d.ID)
		if err != nil {
			return err
		}
		if current.Version != d.Version {
			return apperror.NewConcurrentModification("device", d.ID)
		}
		d.Status = current.Status
		d.WarehouseID = current.WarehouseID
		d.Touch()
		return s.repo.Update(ctx, d)
	})
}

// GetByID retrieves a device.
func (s *Service) GetByID(ctx context.Context, deviceID id.ID) (*Device, error) {
	return s.repo.GetByID(ctx, deviceID)
}

// GetByIMEI retrieves a device by its primary IMEI.
func (s *Service) GetByIMEI(ctx context.Context, imei string) (*Device, error) {
	if imei == "" {
		return nil, apperror.NewValidation("imei is required")
	}
	return s.repo.GetByIMEI(ctx, imei)
}

// ListByWarehouse returns devices in a warehouse, optionally by status.
func (s *Service) ListByWarehouse(ctx context.Context, warehouseID id.ID, status *Status) ([]*Device, error) {
	return s.repo.ListByWarehouse(ctx, warehouseID, status)
}
