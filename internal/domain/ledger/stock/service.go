package stock

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
	"cellhub/internal/domain/catalogs/product"
	"cellhub/internal/domain/catalogs/warehouse"
	"cellhub/pkg/logger"
)

// SerialRegistry is the slice of the device registry the ledger needs:
// duplicate detection on entry and relocation on transfer completion.
type SerialRegistry interface {
	IMEIInStock(ctx context.Context, imei string) (bool, error)
	RelocateByIMEI(ctx context.Context, imei string, warehouseID id.ID) error
}

// MovementInput describes one movement to post.
type MovementInput struct {
	WarehouseID     id.ID
	ProductID       id.ID
	MovementType    MovementType
	OperationType   OperationType
	Quantity        types.Quantity
	UnitCost        *types.Money
	Serials         []Serial
	ReferenceID     *id.ID
	ReferenceNumber string
	Notes           string
}

// TransferItemInput is one line of a transfer request.
type TransferItemInput struct {
	ProductID id.ID
	Quantity  types.Quantity
	Serials   []Serial
}

// TransferInput describes a transfer between warehouses.
type TransferInput struct {
	SourceWarehouseID id.ID
	DestWarehouseID   id.ID
	Notes             string
	Items             []TransferItemInput
}

// ReconcileResult reports the outcome of a journal-vs-projection check.
type ReconcileResult struct {
	WarehouseID       id.ID          `json:"warehouseId"`
	ProductID         id.ID          `json:"productId"`
	ProjectedQuantity types.Quantity `json:"projectedQuantity"`
	JournalQuantity   types.Quantity `json:"journalQuantity"`
	Drift             types.Quantity `json:"drift"`
	Repaired          bool           `json:"repaired"`
}

// Service posts movements and maintains the balance projection.
// Every posting locks the projection row first, so concurrent movements
// against the same (warehouse, product) serialize and the balance guard
// cannot be raced past.
type Service struct {
	repo       Repository
	warehouses warehouse.Repository
	products   product.Repository
	serials    SerialRegistry
	numerator  numerator.Generator
	auditor    audit.Recorder
	txManager  tx.Manager
}

// NewService creates a stock ledger service.
func NewService(
	repo Repository,
	warehouses warehouse.Repository,
	products product.Repository,
	serials SerialRegistry,
	gen numerator.Generator,
	auditor audit.Recorder,
	txManager tx.Manager,
) *Service {
	return &Service{
		repo:       repo,
		warehouses: warehouses,
		products:   products,
		serials:    serials,
		numerator:  gen,
		auditor:    auditor,
		txManager:  txManager,
	}
}

// RecordMovement validates and posts a single movement, updating the
// projection atomically. Returns the persisted movement with its balance
// snapshots filled in.
func (s *Service) RecordMovement(ctx context.Context, in MovementInput) (*Movement, error) {
	var out *Movement
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		m, err := s.post(ctx, in)
		if err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// post does the actual posting. It must run inside a transaction; transfer
// completion calls it once per direction per line within the same tx.
func (s *Service) post(ctx context.Context, in MovementInput) (*Movement, error) {
	m := &Movement{
		ID:              id.New(),
		WarehouseID:     in.WarehouseID,
		ProductID:       in.ProductID,
		MovementType:    in.MovementType,
		OperationType:   in.OperationType,
		Quantity:        in.Quantity,
		UnitCost:        in.UnitCost,
		Serials:         in.Serials,
		ReferenceID:     in.ReferenceID,
		ReferenceNumber: in.ReferenceNumber,
		Notes:           in.Notes,
		CreatedAt:       time.Now().UTC(),
	}
	if err := m.Validate(ctx); err != nil {
		return nil, err
	}

	wh, err := s.warehouses.GetByID(ctx, m.WarehouseID)
	if err != nil {
		return nil, err
	}
	if m.MovementType.Sign() > 0 && !wh.CanAcceptStock() {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "warehouse cannot accept stock").
			WithDetail("warehouseId", wh.ID)
	}
	if m.MovementType.Sign() < 0 && !wh.CanIssueStock() {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "warehouse cannot issue stock").
			WithDetail("warehouseId", wh.ID)
	}

	p, err := s.products.GetByID(ctx, m.ProductID)
	if err != nil {
		return nil, err
	}
	if p.RequiresIMEI {
		if err := s.validateSerials(ctx, m); err != nil {
			return nil, err
		}
	} else if len(m.Serials) > 0 {
		return nil, apperror.NewValidation("product is not serialized, serials not allowed").
			WithDetail("productId", p.ID)
	}

	stk, err := s.repo.GetStockForUpdate(ctx, m.WarehouseID, m.ProductID)
	if err != nil {
		return nil, err
	}

	newQty := stk.Quantity + m.SignedQuantity()
	if newQty < 0 && !wh.AllowNegativeStock {
		return nil, apperror.NewInsufficientStock(m.ProductID.String(), m.Quantity.Float64(), stk.Quantity.Float64())
	}

	m.PreviousQuantity = stk.Quantity
	m.NewQuantity = newQty

	if err := s.repo.CreateMovement(ctx, m); err != nil {
		return nil, fmt.Errorf("append movement: %w", err)
	}

	stk.Quantity = newQty
	stk.Recompute()
	stk.LastMovementAt = &m.CreatedAt
	stk.UpdatedAt = m.CreatedAt
	if err := s.repo.SaveStock(ctx, stk); err != nil {
		return nil, fmt.Errorf("save stock projection: %w", err)
	}

	if err := s.auditor.Record(ctx, audit.Entry{
		EntityType: "stock_movement",
		EntityID:   m.ID,
		Action:     string(m.MovementType),
		Changes:    m,
	}); err != nil {
		return nil, fmt.Errorf("audit movement: %w", err)
	}

	logger.Info(ctx, "stock movement posted",
		"movementId", m.ID,
		"warehouseId", m.WarehouseID,
		"productId", m.ProductID,
		"type", m.MovementType,
		"operation", m.OperationType,
		"quantity", m.Quantity.String(),
		"newQuantity", m.NewQuantity.String(),
	)
	return m, nil
}

// validateSerials enforces serialized-product rules: whole units, one serial
// per unit, no blank or repeated IMEIs, and no IMEI that is already in stock
// when new stock enters the system. Transfer receipts skip the in-stock check
// because the unit is legitimately in stock at the source side.
func (s *Service) validateSerials(ctx context.Context, m *Movement) error {
	if !m.Quantity.IsWholeUnits() {
		return apperror.NewValidation("serialized products move in whole units").
			WithDetail("quantity", m.Quantity.String())
	}
	units := m.Quantity.Units()
	if int64(len(m.Serials)) != units {
		return apperror.NewValidation("serial count must match quantity").
			WithDetail("expected", units).
			WithDetail("got", len(m.Serials))
	}

	seen := make(map[string]struct{}, len(m.Serials))
	for _, sn := range m.Serials {
		if sn.IMEI == "" {
			return apperror.NewValidation("serial imei is required")
		}
		if _, dup := seen[sn.IMEI]; dup {
			return apperror.NewDuplicateIMEI(sn.IMEI)
		}
		seen[sn.IMEI] = struct{}{}
	}

	if m.MovementType == MovementEntry {
		for _, sn := range m.Serials {
			inStock, err := s.serials.IMEIInStock(ctx, sn.IMEI)
			if err != nil {
				return err
			}
			if inStock {
				return apperror.NewDuplicateIMEI(sn.IMEI)
			}
		}
	}
	return nil
}

// Available returns the projection row for one (warehouse, product).
func (s *Service) Available(ctx context.Context, warehouseID, productID id.ID) (*WarehouseStock, error) {
	return s.repo.GetStock(ctx, warehouseID, productID)
}

// ListByWarehouse returns all projection rows for a warehouse.
func (s *Service) ListByWarehouse(ctx context.Context, warehouseID id.ID) ([]*WarehouseStock, error) {
	return s.repo.ListStockByWarehouse(ctx, warehouseID)
}

// MovementHistory returns journal lines matching the filter, newest first.
func (s *Service) MovementHistory(ctx context.Context, filter MovementFilter) ([]*Movement, error) {
	return s.repo.ListMovements(ctx, filter)
}

// Reserve holds quantity against future issue. Reservations reduce available
// quantity but not on-hand quantity; they never appear in the journal.
func (s *Service) Reserve(ctx context.Context, warehouseID, productID id.ID, qty types.Quantity) error {
	if qty <= 0 {
		return apperror.NewValidation("reserve quantity must be positive")
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		stk, err := s.repo.GetStockForUpdate(ctx, warehouseID, productID)
		if err != nil {
			return err
		}
		if stk.AvailableQuantity < qty {
			return apperror.NewInsufficientStock(productID.String(), qty.Float64(), stk.AvailableQuantity.Float64())
		}
		stk.ReservedQuantity += qty
		stk.Recompute()
		stk.UpdatedAt = time.Now().UTC()
		return s.repo.SaveStock(ctx, stk)
	})
}

// Release returns previously reserved quantity to available.
func (s *Service) Release(ctx context.Context, warehouseID, productID id.ID, qty types.Quantity) error {
	if qty <= 0 {
		return apperror.NewValidation("release quantity must be positive")
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		stk, err := s.repo.GetStockForUpdate(ctx, warehouseID, productID)
		if err != nil {
			return err
		}
		if stk.ReservedQuantity < qty {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "release exceeds reserved quantity").
				WithDetail("reserved", stk.ReservedQuantity.String()).
				WithDetail("requested", qty.String())
		}
		stk.ReservedQuantity -= qty
		stk.Recompute()
		stk.UpdatedAt = time.Now().UTC()
		return s.repo.SaveStock(ctx, stk)
	})
}

// Reconcile replays the journal for one (warehouse, product) and compares it
// with the projection. The journal is the source of truth: on drift the
// projection is repaired from the folded sum.
func (s *Service) Reconcile(ctx context.Context, warehouseID, productID id.ID) (*ReconcileResult, error) {
	var result *ReconcileResult
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		stk, err := s.repo.GetStockForUpdate(ctx, warehouseID, productID)
		if err != nil {
			return err
		}
		folded, err := s.repo.FoldMovements(ctx, warehouseID, productID)
		if err != nil {
			return fmt.Errorf("fold movements: %w", err)
		}

		result = &ReconcileResult{
			WarehouseID:       warehouseID,
			ProductID:         productID,
			ProjectedQuantity: stk.Quantity,
			JournalQuantity:   folded,
			Drift:             stk.Quantity - folded,
		}
		if result.Drift == 0 {
			return nil
		}

		logger.Warn(ctx, "stock projection drift detected",
			"warehouseId", warehouseID,
			"productId", productID,
			"projected", stk.Quantity.String(),
			"journal", folded.String(),
		)

		stk.Quantity = folded
		stk.Recompute()
		stk.UpdatedAt = time.Now().UTC()
		if err := s.repo.SaveStock(ctx, stk); err != nil {
			return fmt.Errorf("repair stock projection: %w", err)
		}
		result.Repaired = true

		return s.auditor.Record(ctx, audit.Entry{
			EntityType: "warehouse_stock",
			EntityID:   stk.ID,
			Action:     "reconcile",
			Changes:    result,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateTransfer registers a pending transfer document. Stock availability is
// checked at completion, not creation, so a pending transfer never holds stock.
func (s *Service) CreateTransfer(ctx context.Context, in TransferInput) (*Transfer, error) {
	t := NewTransfer(in.SourceWarehouseID, in.DestWarehouseID)
	t.Notes = in.Notes
	for _, item := range in.Items {
		t.Items = append(t.Items, TransferItem{
			ID:         id.New(),
			TransferID: t.ID,
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			Serials:    item.Serials,
		})
	}
	if err := t.Validate(ctx); err != nil {
		return nil, err
	}

	if _, err := s.warehouses.GetByID(ctx, t.SourceWarehouseID); err != nil {
		return nil, err
	}
	if _, err := s.warehouses.GetByID(ctx, t.DestWarehouseID); err != nil {
		return nil, err
	}

	number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numerator.PrefixTransfer), t.Date)
	if err != nil {
		return nil, fmt.Errorf("generate transfer number: %w", err)
	}
	t.Number = number

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateTransfer(ctx, t); err != nil {
			return fmt.Errorf("create transfer: %w", err)
		}
		logger.Info(ctx, "transfer created", "transferId", t.ID, "number", t.Number)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// MarkInTransit moves a pending transfer to in_transit.
func (s *Service) MarkInTransit(ctx context.Context, transferID id.ID) (*Transfer, error) {
	return s.transition(ctx, transferID, TransferInTransit)
}

// CancelTransfer cancels a transfer that has not completed. No movements are
// posted, so there is nothing to undo.
func (s *Service) CancelTransfer(ctx context.Context, transferID id.ID) (*Transfer, error) {
	return s.transition(ctx, transferID, TransferCancelled)
}

func (s *Service) transition(ctx context.Context, transferID id.ID, next TransferStatus) (*Transfer, error) {
	var out *Transfer
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		t, err := s.repo.GetTransferForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if !t.Status.CanTransitionTo(next) {
			return apperror.NewInvalidTransition("transfer", string(t.Status), string(next))
		}
		t.Status = next
		t.Touch()
		if err := s.repo.UpdateTransfer(ctx, t); err != nil {
			return fmt.Errorf("update transfer: %w", err)
		}
		logger.Info(ctx, "transfer status changed", "transferId", t.ID, "number", t.Number, "status", t.Status)
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CompleteTransfer posts the paired movements for every line and marks the
// document completed, all inside one transaction: if any line lacks stock at
// the source, nothing moves.
func (s *Service) CompleteTransfer(ctx context.Context, transferID id.ID) (*Transfer, error) {
	var out *Transfer
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		t, err := s.repo.GetTransferForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if !t.Status.CanTransitionTo(TransferCompleted) {
			return apperror.NewInvalidTransition("transfer", string(t.Status), string(TransferCompleted))
		}

		// Availability check across all lines before any posting. The
		// projection rows stay locked until commit, so the check cannot
		// go stale.
		for _, item := range t.Items {
			stk, err := s.repo.GetStockForUpdate(ctx, t.SourceWarehouseID, item.ProductID)
			if err != nil {
				return err
			}
			if stk.AvailableQuantity < item.Quantity {
				return apperror.NewInsufficientStock(item.ProductID.String(), item.Quantity.Float64(), stk.AvailableQuantity.Float64())
			}
		}

		for _, item := range t.Items {
			refID := t.ID
			outMove := MovementInput{
				WarehouseID:     t.SourceWarehouseID,
				ProductID:       item.ProductID,
				MovementType:    MovementTransferOut,
				OperationType:   OperationTransfer,
				Quantity:        item.Quantity,
				Serials:         item.Serials,
				ReferenceID:     &refID,
				ReferenceNumber: t.Number,
			}
			if _, err := s.post(ctx, outMove); err != nil {
				return err
			}

			inMove := outMove
			inMove.WarehouseID = t.DestWarehouseID
			inMove.MovementType = MovementTransferIn
			if _, err := s.post(ctx, inMove); err != nil {
				return err
			}

			for _, sn := range item.Serials {
				if err := s.serials.RelocateByIMEI(ctx, sn.IMEI, t.DestWarehouseID); err != nil {
					return fmt.Errorf("relocate device %s: %w", sn.IMEI, err)
				}
			}
		}

		now := time.Now().UTC()
		t.Status = TransferCompleted
		t.CompletedAt = &now
		t.Touch()
		if err := s.repo.UpdateTransfer(ctx, t); err != nil {
			return fmt.Errorf("update transfer: %w", err)
		}

		if err := s.auditor.Record(ctx, audit.Entry{
			EntityType: "stock_transfer",
			EntityID:   t.ID,
			Action:     "complete",
			Changes:    t,
		}); err != nil {
			return fmt.Errorf("audit transfer: %w", err)
		}

		logger.Info(ctx, "transfer completed", "transferId", t.ID, "number", t.Number, "items", len(t.Items))
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetTransfer loads a transfer with its items.
func (s *Service) GetTransfer(ctx context.Context, transferID id.ID) (*Transfer, error) {
	return s.repo.GetTransfer(ctx, transferID)
}

// ListTransfers returns transfers for a warehouse.
func (s *Service) ListTransfers(ctx context.Context, warehouseID id.ID, status *TransferStatus) ([]*Transfer, error) {
	return s.repo.ListTransfers(ctx, warehouseID, status)
}
