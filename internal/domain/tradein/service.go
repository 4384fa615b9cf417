package tradein

import (
	"context"
	"fmt"

	"cellhub/internal/core/apperror"
	"cellhub/internal/core/id"
	"cellhub/internal/core/numerator"
	"cellhub/internal/core/tx"
	"cellhub/internal/core/types"
	"cellhub/internal/domain/audit"
	"cellhub/internal/domain/devices"
	"cellhub/internal/domain/ledger/credit"
	"cellhub/internal/domain/serviceorder"
	"cellhub/pkg/logger"
)

// CreditGranter is the slice of the credit ledger approval needs.
type CreditGranter interface {
	Grant(ctx context.Context, in credit.GrantInput) (*credit.CustomerCredit, error)
}

// PreparationOrders creates internal preparation orders.
type PreparationOrders interface {
	CreateInternal(ctx context.Context, in serviceorder.InternalInput) (*serviceorder.Order, error)
}

// CreateInput describes a new evaluation request.
type CreateInput struct {
	CustomerID   id.ID
	IMEI         string
	IMEI2        string
	SerialNumber string
	Brand        string
	Model        string
	Color        string
	Notes        string
}

// AnalysisInput carries the inspection results.
type AnalysisInput struct {
	Checklist      []ChecklistItem
	EstimatedValue types.Money
	Notes          string
}

// ApproveInput links the approved device to a serialized product and the
// warehouse where preparation happens.
type ApproveInput struct {
	ProductID   id.ID
	WarehouseID id.ID

	// EstimatedValue overrides the analysis estimate when set.
	EstimatedValue *types.Money
}

// Service provides business logic for the trade-in workflow.
type Service struct {
	repo      Repository
	devices   devices.Repository
	orders    PreparationOrders
	credits   CreditGranter
	numerator numerator.Generator
	auditor   audit.Recorder
	txManager tx.Manager
}

// NewService creates a trade-in service.
func NewService(
	repo Repository,
	deviceRepo devices.Repository,
	orders PreparationOrders,
	credits CreditGranter,
	gen numerator.Generator,
	auditor audit.Recorder,
	txManager tx.Manager,
) *Service {
	return &Service{
		repo:      repo,
		devices:   deviceRepo,
		orders:    orders,
		credits:   credits,
		numerator: gen,
		auditor:   auditor,
		txManager: txManager,
	}
}

// Create registers a pending evaluation. The IMEI must not already be in
// stock: a unit the store owns cannot be traded in again.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Evaluation, error) {
	e := NewEvaluation(in.CustomerID, in.IMEI, in.Brand, in.Model)
	e.IMEI2 = in.IMEI2
	e.SerialNumber = in.SerialNumber
	e.Color = in.Color
	e.Notes = in.Notes
	if err := e.Validate(ctx); err != nil {
		return nil, err
	}

	number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numerator.PrefixEvaluation), e.Date)
	if err != nil {
		return nil, fmt.Errorf("generate evaluation number: %w", err)
	}
	e.Number = number

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		inStock, err := s.devices.IMEIInStock(ctx, e.IMEI)
		if err != nil {
			return err
		}
		if inStock {
			return apperror.NewDuplicateIMEI(e.IMEI)
		}
		if err := s.repo.Create(ctx, e); err != nil {
			return fmt.Errorf("create evaluation: %w", err)
		}
		logger.Info(ctx, "evaluation created",
			"evaluationId", e.ID, "number", e.Number, "imei", e.IMEI)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// StartAnalysis moves a pending evaluation into analysis, recording the
// inspection checklist and the value estimate.
func (s *Service) StartAnalysis(ctx context.Context, evalID id.ID, in AnalysisInput) (*Evaluation, error) {
	if in.EstimatedValue.IsNegative() {
		return nil, apperror.NewValidation("estimated value cannot be negative")
	}
	var out *Evaluation
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		e, err := s.repo.GetForUpdate(ctx, evalID)
		if err != nil {
			return err
		}
		if !e.Status.CanTransitionTo(StatusInAnalysis) {
			return apperror.NewInvalidTransition("evaluation", string(e.Status), string(StatusInAnalysis))
		}
		e.Status = StatusInAnalysis
		e.Checklist = in.Checklist
		e.EstimatedValue = in.EstimatedValue
		if in.Notes != "" {
			e.Notes = in.Notes
		}
		e.Touch()
		if err := s.repo.Update(ctx, e); err != nil {
			return fmt.Errorf("update evaluation: %w", err)
		}
		logger.Info(ctx, "evaluation analysis started",
			"evaluationId", e.ID, "number", e.Number, "estimate", e.EstimatedValue.String())
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Approve accepts the trade-in. In one transaction it creates the device in
// pending_preparation, opens an internal preparation order, grants the
// customer a trade-in credit for the estimated value (skipped when the
// value is zero), and marks the evaluation approved. Any failure rolls the
// whole approval back.
func (s *Service) Approve(ctx context.Context, evalID id.ID, in ApproveInput) (*Evaluation, error) {
	if id.IsNil(in.ProductID) || id.IsNil(in.WarehouseID) {
		return nil, apperror.NewValidation("product and warehouse are required")
	}

	var out *Evaluation
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		e, err := s.repo.GetForUpdate(ctx, evalID)
		if err != nil {
			return err
		}
		if !e.Status.CanTransitionTo(StatusApproved) {
			return apperror.NewInvalidTransition("evaluation", string(e.Status), string(StatusApproved))
		}

		value := e.EstimatedValue
		if in.EstimatedValue != nil {
			value = *in.EstimatedValue
		}
		if value.IsNegative() {
			return apperror.NewValidation("estimated value cannot be negative").
				WithDetail("estimatedValue", value.String())
		}

		inStock, err := s.devices.IMEIInStock(ctx, e.IMEI)
		if err != nil {
			return err
		}
		if inStock {
			return apperror.NewDuplicateIMEI(e.IMEI)
		}

		d := devices.NewDevice(e.IMEI, e.Brand, e.Model, in.ProductID, in.WarehouseID)
		d.IMEI2 = e.IMEI2
		d.SerialNumber = e.SerialNumber
		d.Color = e.Color
		d.Status = devices.StatusPendingPreparation
		d.AcquisitionType = devices.AcquisitionTradeIn
		d.AcquisitionCost = value
		d.SourceEvaluationID = &e.ID
		if err := d.Validate(ctx); err != nil {
			return err
		}
		if err := s.devices.Create(ctx, d); err != nil {
			return fmt.Errorf("create trade-in device: %w", err)
		}

		order, err := s.orders.CreateInternal(ctx, serviceorder.InternalInput{
			DeviceID:           d.ID,
			SourceEvaluationID: e.ID,
			Description:        fmt.Sprintf("Preparation of %s %s (%s)", e.Brand, e.Model, e.IMEI),
			EstimatedValue:     value,
		})
		if err != nil {
			return err
		}

		// A zero-value approval still takes the device in, it just grants
		// no credit.
		var creditID *id.ID
		if value.IsPositive() {
			grant, err := s.credits.Grant(ctx, credit.GrantInput{
				PersonID:     e.CustomerID,
				Origin:       credit.OriginTradeIn,
				Amount:       value,
				SourceID:     &e.ID,
				SourceNumber: e.Number,
			})
			if err != nil {
				return err
			}
			creditID = &grant.ID
		}

		e.Status = StatusApproved
		e.EstimatedValue = value
		e.DeviceID = &d.ID
		e.PreparationOrderID = &order.ID
		e.CreditID = creditID
		e.Touch()
		if err := s.repo.Update(ctx, e); err != nil {
			return fmt.Errorf("update evaluation: %w", err)
		}

		if err := s.auditor.Record(ctx, audit.Entry{
			EntityType: "evaluation",
			EntityID:   e.ID,
			Action:     "approve",
			Changes:    e,
		}); err != nil {
			return fmt.Errorf("audit approval: %w", err)
		}

		logger.Info(ctx, "evaluation approved",
			"evaluationId", e.ID, "number", e.Number,
			"deviceId", d.ID, "orderId", order.ID,
			"value", value.String())
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Reject declines the trade-in. A reason is mandatory; the customer gets it
// back verbatim.
func (s *Service) Reject(ctx context.Context, evalID id.ID, reason string) (*Evaluation, error) {
	if reason == "" {
		return nil, apperror.NewValidation("rejection reason is required").
			WithDetail("field", "reason")
	}
	var out *Evaluation
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		e, err := s.repo.GetForUpdate(ctx, evalID)
		if err != nil {
			return err
		}
		if !e.Status.CanTransitionTo(StatusRejected) {
			return apperror.NewInvalidTransition("evaluation", string(e.Status), string(StatusRejected))
		}
		e.Status = StatusRejected
		e.RejectionReason = reason
		e.Touch()
		if err := s.repo.Update(ctx, e); err != nil {
			return fmt.Errorf("update evaluation: %w", err)
		}
		logger.Info(ctx, "evaluation rejected", "evaluationId", e.ID, "number", e.Number)
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID retrieves an evaluation.
func (s *Service) GetByID(ctx context.Context, evalID id.ID) (*Evaluation, error) {
	return s.repo.GetByID(ctx, evalID)
}

// List returns evaluations, optionally filtered by status.
func (s *Service) List(ctx context.Context, status *Status) ([]*Evaluation, error) {
	return s.repo.List(ctx, status)
}

// ListByCustomer returns a customer's evaluations.
func (s *Service) ListByCustomer(ctx context.Context, customerID id.ID) ([]*Evaluation, error) {
	return s.repo.ListByCustomer(ctx, customerID)
}
