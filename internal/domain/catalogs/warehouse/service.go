package warehouse

import (
	"context"
	"fmt"
	"time"

	"cellhub/internal/core/apperror"
	"cellhub/internal/core/id"
	"cellhub/internal/core/numerator"
	"cellhub/internal/core/tx"
	"cellhub/pkg/logger"
)

// Service provides business logic for the Warehouse catalog.
type Service struct {
	repo      Repository
	numerator numerator.Generator
	txManager tx.Manager
}

// NewService creates a new Warehouse service.
func NewService(repo Repository, gen numerator.Generator, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		numerator: gen,
		txManager: txManager,
	}
}

// Create validates and persists a new warehouse.
func (s *Service) Create(ctx context.Context, wh *Warehouse) error {
	if err := wh.Validate(ctx); err != nil {
		return err
	}

	if wh.Code == "" {
		code, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numerator.PrefixWarehouse), time.Now())
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		wh.Code = code
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if existing, err := s.repo.GetByCode(ctx, wh.Code); err == nil && existing != nil {
			return apperror.NewDuplicate("warehouse", "code", wh.Code)
		}

		// Only one warehouse may carry the default flag.
		if wh.IsDefault {
			if err := s.repo.ClearDefault(ctx); err != nil {
				return fmt.Errorf("clear default: %w", err)
			}
		}

		if err := s.repo.Create(ctx, wh); err != nil {
			return fmt.Errorf("create warehouse: %w", err)
		}

		logger.Info(ctx, "warehouse created", "id", wh.ID, "code", wh.Code, "type", wh.Type)
		return nil
	})
}

// Update modifies an existing warehouse.
func (s *Service) Update(ctx context.Context, wh *Warehouse) error {
	if err := wh.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if wh.IsDefault {
			if err := s.repo.ClearDefault(ctx); err != nil {
				return fmt.Errorf("clear default: %w", err)
			}
		}
		return s.repo.Update(ctx, wh)
	})
}

// Deactivate soft-deactivates a warehouse. Warehouses that already carry
// movements are never hard-deleted; records remain for ledger audit.
func (s *Service) Deactivate(ctx context.Context, whID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		wh, err := s.repo.GetByID(ctx, whID)
		if err != nil {
			return err
		}

		wh.IsActive = false
		wh.IsDefault = false
		wh.Touch()

		if err := s.repo.Update(ctx, wh); err != nil {
			return fmt.Errorf("deactivate warehouse: %w", err)
		}

		logger.Info(ctx, "warehouse deactivated", "id", wh.ID, "code", wh.Code)
		return nil
	})
}

// GetByID retrieves a warehouse by ID.
func (s *Service) GetByID(ctx context.Context, whID id.ID) (*Warehouse, error) {
	return s.repo.GetByID(ctx, whID)
}

// List retrieves warehouses.
func (s *Service) List(ctx context.Context, includeInactive bool) ([]*Warehouse, error) {
	return s.repo.List(ctx, includeInactive)
}
