package product

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

// Service provides business logic for the Product catalog.
type Service struct {
	repo      Repository
	numerator numerator.Generator
	txManager tx.Manager
}

// NewService creates a new Product service.
func NewService(repo Repository, gen numerator.Generator, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		numerator: gen,
		txManager: txManager,
	}
}

// Create validates and persists a new product.
func (s *Service) Create(ctx context.Context, p *Product) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}

	if p.Code == "" {
		code, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numerator.PrefixProduct), time.Now())
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		p.Code = code
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if existing, err := s.repo.GetByCode(ctx, p.Code); err == nil && existing != nil {
			return apperror.NewDuplicate("product", "code", p.Code)
		}

		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create product: %w", err)
		}

		logger.Info(ctx, "product created", "id", p.ID, "code", p.Code, "serialized", p.RequiresIMEI)
		return nil
	})
}

// Update modifies an existing product.
func (s *Service) Update(ctx context.Context, p *Product) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}
	return s.repo.Update(ctx, p)
}

// GetByID retrieves a product by ID.
func (s *Service) GetByID(ctx context.Context, pID id.ID) (*Product, error) {
	return s.repo.GetByID(ctx, pID)
}

// List retrieves products.
func (s *Service) List(ctx context.Context, includeInactive bool) ([]*Product, error) {
	return s.repo.List(ctx, includeInactive)
}
