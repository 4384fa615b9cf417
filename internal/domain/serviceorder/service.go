package serviceorder

import (
	"context"
	"fmt"
	"time"

	"cellhub/internal/core/apperror"
	"cellhub/internal/core/id"
	"cellhub/internal/core/numerator"
	"cellhub/internal/core/tx"
	"cellhub/internal/core/types"
	"cellhub/internal/domain/audit"
	"cellhub/internal/domain/devices"
	"cellhub/internal/domain/ledger/stock"
	"cellhub/pkg/logger"
)

// StockPoster is the slice of the stock ledger the preparation flow needs.
type StockPoster interface {
	RecordMovement(ctx context.Context, in stock.MovementInput) (*stock.Movement, error)
}

// CreateInput describes an external repair order.
type CreateInput struct {
	CustomerID     id.ID
	DeviceID       *id.ID
	Description    string
	EstimatedValue types.Money
}

// InternalInput describes a preparation order for a trade-in device.
type InternalInput struct {
	DeviceID           id.ID
	SourceEvaluationID id.ID
	Description        string
	EstimatedValue     types.Money
}

// CompleteInput carries the final costs of a finished order.
type CompleteInput struct {
	LaborCost types.Money
	PartsCost types.Money
}

// PreparationInput carries the costs and sale price of a finished
// preparation order.
type PreparationInput struct {
	LaborCost    types.Money
	PartsCost    types.Money
	SellingPrice types.Money
}

// Service provides business logic for service orders.
type Service struct {
	repo      Repository
	devices   devices.Repository
	stock     StockPoster
	numerator numerator.Generator
	auditor   audit.Recorder
	txManager tx.Manager
}

// NewService creates a service order service.
func NewService(
	repo Repository,
	deviceRepo devices.Repository,
	stockPoster StockPoster,
	gen numerator.Generator,
	auditor audit.Recorder,
	txManager tx.Manager,
) *Service {
	return &Service{
		repo:      repo,
		devices:   deviceRepo,
		stock:     stockPoster,
		numerator: gen,
		auditor:   auditor,
		txManager: txManager,
	}
}

// Create registers an external repair order.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Order, error) {
	o := NewOrder()
	o.CustomerID = &in.CustomerID
	o.DeviceID = in.DeviceID
	o.Description = in.Description
	o.EstimatedValue = in.EstimatedValue
	if err := o.Validate(ctx); err != nil {
		return nil, err
	}

	number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numerator.PrefixServiceOrder), o.Date)
	if err != nil {
		return nil, fmt.Errorf("generate order number: %w", err)
	}
	o.Number = number

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		logger.Info(ctx, "service order created", "orderId", o.ID, "number", o.Number)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// CreateInternal registers a preparation order for a trade-in device. Runs
// inside the caller's transaction when one is active, so evaluation approval
// stays atomic.
func (s *Service) CreateInternal(ctx context.Context, in InternalInput) (*Order, error) {
	o := NewOrder()
	o.IsInternal = true
	o.DeviceID = &in.DeviceID
	o.SourceEvaluationID = &in.SourceEvaluationID
	o.Description = in.Description
	o.EstimatedValue = in.EstimatedValue
	if err := o.Validate(ctx); err != nil {
		return nil, err
	}

	number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numerator.PrefixInternalOS), o.Date)
	if err != nil {
		return nil, fmt.Errorf("generate order number: %w", err)
	}
	o.Number = number

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, o); err != nil {
			return fmt.Errorf("create internal order: %w", err)
		}
		logger.Info(ctx, "preparation order created",
			"orderId", o.ID, "number", o.Number, "deviceId", in.DeviceID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateStatus applies a workflow transition (start, waiting parts, cancel).
// Completion and billing have dedicated operations.
func (s *Service) UpdateStatus(ctx context.Context, orderID id.ID, next Status) (*Order, error) {
	if next == StatusCompleted || next == StatusBilled {
		return nil, apperror.NewValidation("use the completion operation for this status").
			WithDetail("status", string(next))
	}
	var out *Order
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.Status.CanTransitionTo(next) {
			return apperror.NewInvalidTransition("service order", string(o.Status), string(next))
		}
		o.Status = next
		o.Touch()
		if err := s.repo.Update(ctx, o); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		logger.Info(ctx, "service order status changed", "orderId", o.ID, "status", o.Status)
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Complete finishes an external order with its final costs. The order then
// becomes billable on a sale.
func (s *Service) Complete(ctx context.Context, orderID id.ID, in CompleteInput) (*Order, error) {
	if in.LaborCost.IsNegative() || in.PartsCost.IsNegative() {
		return nil, apperror.NewValidation("costs cannot be negative")
	}
	var out *Order
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.IsInternal {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"internal orders complete via preparation").WithDetail("orderId", orderID)
		}
		if !o.Status.CanTransitionTo(StatusCompleted) {
			return apperror.NewInvalidTransition("service order", string(o.Status), string(StatusCompleted))
		}

		now := time.Now().UTC()
		o.LaborCost = in.LaborCost
		o.PartsCost = in.PartsCost
		o.TotalCost = in.LaborCost.Add(in.PartsCost)
		o.Status = StatusCompleted
		o.CompletedAt = &now
		o.Touch()
		if err := s.repo.Update(ctx, o); err != nil {
			return fmt.Errorf("complete order: %w", err)
		}
		logger.Info(ctx, "service order completed",
			"orderId", o.ID, "number", o.Number, "total", o.TotalCost.String())
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CompletePreparation finishes an internal preparation order and releases
// the trade-in device for sale. This is the only path from
// pending_preparation to in_stock: it posts exactly one entry movement
// carrying the device's serial, sets the selling price, and folds the
// preparation costs into the device's total cost.
func (s *Service) CompletePreparation(ctx context.Context, orderID id.ID, in PreparationInput) (*Order, error) {
	if in.LaborCost.IsNegative() || in.PartsCost.IsNegative() {
		return nil, apperror.NewValidation("costs cannot be negative")
	}
	if !in.SellingPrice.IsPositive() {
		return nil, apperror.NewValidation("selling price must be positive").
			WithDetail("sellingPrice", in.SellingPrice.String())
	}

	var out *Order
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.IsInternal {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"order is not a preparation order").WithDetail("orderId", orderID)
		}
		if !o.Status.CanTransitionTo(StatusCompleted) {
			return apperror.NewInvalidTransition("service order", string(o.Status), string(StatusCompleted))
		}

		d, err := s.devices.GetForUpdate(ctx, *o.DeviceID)
		if err != nil {
			return err
		}
		if d.Status != devices.StatusPendingPreparation {
			return apperror.NewInvalidTransition("device", string(d.Status), string(devices.StatusInStock))
		}

		now := time.Now().UTC()
		totalCost := d.AcquisitionCost.Add(in.LaborCost).Add(in.PartsCost)

		d.SellingPrice = in.SellingPrice
		d.PurchasePrice = totalCost
		d.Status = devices.StatusInStock
		d.Touch()
		if err := s.devices.Update(ctx, d); err != nil {
			return fmt.Errorf("release device: %w", err)
		}

		unitCost := totalCost
		if _, err := s.stock.RecordMovement(ctx, stock.MovementInput{
			WarehouseID:   d.WarehouseID,
			ProductID:     d.ProductID,
			MovementType:  stock.MovementEntry,
			OperationType: stock.OperationTradeIn,
			Quantity:      types.One,
			UnitCost:      &unitCost,
			Serials: []stock.Serial{{
				IMEI:         d.IMEI,
				IMEI2:        d.IMEI2,
				SerialNumber: d.SerialNumber,
			}},
			ReferenceID:     &o.ID,
			ReferenceNumber: o.Number,
		}); err != nil {
			return err
		}

		o.LaborCost = in.LaborCost
		o.PartsCost = in.PartsCost
		o.TotalCost = totalCost
		o.Status = StatusCompleted
		o.CompletedAt = &now
		o.Touch()
		if err := s.repo.Update(ctx, o); err != nil {
			return fmt.Errorf("complete preparation order: %w", err)
		}

		if err := s.auditor.Record(ctx, audit.Entry{
			EntityType: "service_order",
			EntityID:   o.ID,
			Action:     "complete_preparation",
			Changes:    o,
		}); err != nil {
			return fmt.Errorf("audit preparation: %w", err)
		}

		logger.Info(ctx, "preparation completed",
			"orderId", o.ID, "number", o.Number, "deviceId", d.ID, "totalCost", totalCost.String())
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkBilled links a completed external order to the sale that billed it.
// Called by the sale engine inside the finalization transaction.
func (s *Service) MarkBilled(ctx context.Context, orderID id.ID) (*Order, error) {
	var out *Order
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.IsBillable() {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "service order is not billable").
				WithDetail("orderId", orderID).
				WithDetail("status", string(o.Status))
		}
		now := time.Now().UTC()
		o.Status = StatusBilled
		o.BilledAt = &now
		o.Touch()
		if err := s.repo.Update(ctx, o); err != nil {
			return fmt.Errorf("mark order billed: %w", err)
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReopenBilled returns a billed order to completed. Called by the sale
// engine when the billing sale is cancelled.
func (s *Service) ReopenBilled(ctx context.Context, orderID id.ID) (*Order, error) {
	var out *Order
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != StatusBilled {
			return apperror.NewInvalidTransition("service order", string(o.Status), string(StatusCompleted))
		}
		o.Status = StatusCompleted
		o.BilledAt = nil
		o.Touch()
		if err := s.repo.Update(ctx, o); err != nil {
			return fmt.Errorf("reopen billed order: %w", err)
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID retrieves an order.
func (s *Service) GetByID(ctx context.Context, orderID id.ID) (*Order, error) {
	return s.repo.GetByID(ctx, orderID)
}

// List returns orders filtered by status and internal flag.
func (s *Service) List(ctx context.Context, status *Status, internal *bool) ([]*Order, error) {
	return s.repo.List(ctx, status, internal)
}
