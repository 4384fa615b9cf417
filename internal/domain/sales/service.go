package sales

import (
	"context"
	"fmt"
	"time"

	"cellhub/internal/core/apperror"
	"cellhub/internal/core/entity"
	"cellhub/internal/core/id"
	"cellhub/internal/core/numerator"
	"cellhub/internal/core/tx"
	"cellhub/internal/core/types"
	"cellhub/internal/domain/audit"
	"cellhub/internal/domain/catalogs/product"
	"cellhub/internal/domain/devices"
	"cellhub/internal/domain/ledger/credit"
	"cellhub/internal/domain/ledger/stock"
	"cellhub/internal/domain/serviceorder"
	"cellhub/pkg/logger"
)

// defaultRefundValidityDays bounds how long a refund credit stays spendable.
const defaultRefundValidityDays = 90

// StockPoster is the slice of the stock ledger the sale engine needs.
type StockPoster interface {
	RecordMovement(ctx context.Context, in stock.MovementInput) (*stock.Movement, error)
}

// CreditLedger covers consuming credit at finalization, reversing it on
// cancellation, and granting refund credits on return.
type CreditLedger interface {
	Consume(ctx context.Context, personID, saleID id.ID, amount types.Money) ([]*credit.Consumption, error)
	ReverseConsumption(ctx context.Context, saleID id.ID) error
	Grant(ctx context.Context, in credit.GrantInput) (*credit.CustomerCredit, error)
}

// OrderBilling covers billing completed service orders on a sale.
type OrderBilling interface {
	GetByID(ctx context.Context, orderID id.ID) (*serviceorder.Order, error)
	MarkBilled(ctx context.Context, orderID id.ID) (*serviceorder.Order, error)
	ReopenBilled(ctx context.Context, orderID id.ID) (*serviceorder.Order, error)
}

// ItemInput is one requested cart line.
type ItemInput struct {
	Type ItemType

	DeviceID      *id.ID
	ConfirmedIMEI string

	ProductID *id.ID
	Quantity  types.Quantity

	ServiceOrderID *id.ID

	// UnitPrice overrides the catalog or device price when set.
	UnitPrice *types.Money
	Discount  types.Money
}

// PaymentInput is one requested settlement line.
type PaymentInput struct {
	Method PaymentMethod
	Amount types.Money
}

// FinalizeInput is a complete sale request. All totals are recomputed
// server-side; the client never sends them.
type FinalizeInput struct {
	CustomerID     *id.ID
	WarehouseID    id.ID
	Items          []ItemInput
	Payments       []PaymentInput
	DiscountAmount types.Money
	Notes          string
}

// ReturnInput requests a post-sale return of specific lines.
type ReturnInput struct {
	SaleID  id.ID
	ItemIDs []id.ID
	Reason  string

	// CreditValidityDays bounds the refund credit's life; zero means the
	// default validity.
	CreditValidityDays int
}

// Service is the sale transaction engine.
type Service struct {
	repo      Repository
	devices   devices.Repository
	products  product.Repository
	stock     StockPoster
	credits   CreditLedger
	orders    OrderBilling
	numerator numerator.Generator
	auditor   audit.Recorder
	txManager tx.Manager
}

// NewService creates a sale engine.
func NewService(
	repo Repository,
	deviceRepo devices.Repository,
	productRepo product.Repository,
	stockPoster StockPoster,
	credits CreditLedger,
	orders OrderBilling,
	gen numerator.Generator,
	auditor audit.Recorder,
	txManager tx.Manager,
) *Service {
	return &Service{
		repo:      repo,
		devices:   deviceRepo,
		products:  productRepo,
		stock:     stockPoster,
		credits:   credits,
		orders:    orders,
		numerator: gen,
		auditor:   auditor,
		txManager: txManager,
	}
}

// FinalizeSale validates, prices and settles a sale in one transaction.
// Devices are locked and flipped to sold, products leave the stock ledger,
// billed orders flip to billed, and customer credit is consumed, with every
// guard re-checked against current state. Any failure rolls everything back.
func (s *Service) FinalizeSale(ctx context.Context, in FinalizeInput) (*Sale, error) {
	if err := validateFinalizeInput(in); err != nil {
		return nil, err
	}

	sale := &Sale{
		Document:       entity.NewDocument(),
		CustomerID:     in.CustomerID,
		WarehouseID:    in.WarehouseID,
		Status:         StatusCompleted,
		DiscountAmount: in.DiscountAmount,
		Notes:          in.Notes,
	}

	number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numerator.PrefixSale), sale.Date)
	if err != nil {
		return nil, fmt.Errorf("generate sale number: %w", err)
	}
	sale.Number = number

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		baseTotal := types.Zero()
		for _, item := range in.Items {
			line, err := s.processItem(ctx, sale, item)
			if err != nil {
				return err
			}
			sale.Items = append(sale.Items, *line)
			baseTotal = baseTotal.Add(line.LineTotal)
		}

		if in.DiscountAmount.GreaterThan(baseTotal) {
			return apperror.NewValidation("discount exceeds sale total").
				WithDetail("discount", in.DiscountAmount.String()).
				WithDetail("baseTotal", baseTotal.String())
		}
		sale.BaseTotal = baseTotal
		payable := baseTotal.Sub(in.DiscountAmount)

		creditRequested := types.Zero()
		tendered := types.Zero()
		cashTendered := types.Zero()
		for _, p := range in.Payments {
			sale.Payments = append(sale.Payments, Payment{
				ID:     id.New(),
				SaleID: sale.ID,
				Method: p.Method,
				Amount: p.Amount,
			})
			if p.Method == PaymentCustomerCredit {
				creditRequested = creditRequested.Add(p.Amount)
				continue
			}
			tendered = tendered.Add(p.Amount)
			if p.Method == PaymentCash {
				cashTendered = cashTendered.Add(p.Amount)
			}
		}

		if creditRequested.IsPositive() {
			if sale.CustomerID == nil {
				return apperror.NewValidation("customer credit requires an identified customer")
			}
			if creditRequested.GreaterThan(payable) {
				return apperror.NewBusinessRule(apperror.CodeBusinessRule,
					"credit payment exceeds amount payable").
					WithDetail("credit", creditRequested.String()).
					WithDetail("payable", payable.String())
			}
			consumed, err := s.credits.Consume(ctx, *sale.CustomerID, sale.ID, creditRequested)
			if err != nil {
				return err
			}
			// Split the settled credit by origin: trade-in value is its own
			// line on the fiscal record.
			for _, cons := range consumed {
				if cons.Origin == credit.OriginTradeIn {
					sale.TradeInValue = sale.TradeInValue.Add(cons.Amount)
					continue
				}
				sale.CreditApplied = sale.CreditApplied.Add(cons.Amount)
			}
		}

		totalDue := payable.Sub(sale.TradeInValue).Sub(sale.CreditApplied)
		sale.TotalAmount = totalDue

		if tendered.LessThan(totalDue) {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"payments do not cover sale total").
				WithDetail("tendered", tendered.String()).
				WithDetail("due", totalDue.String())
		}
		change := tendered.Sub(totalDue)
		if change.IsPositive() && change.GreaterThan(cashTendered) {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"change exceeds cash tendered").
				WithDetail("change", change.String()).
				WithDetail("cash", cashTendered.String())
		}
		sale.ChangeAmount = change

		if err := s.repo.CreateSale(ctx, sale); err != nil {
			return fmt.Errorf("create sale: %w", err)
		}

		if err := s.auditor.Record(ctx, audit.Entry{
			EntityType: "sale",
			EntityID:   sale.ID,
			Action:     "finalize",
			Changes:    sale,
		}); err != nil {
			return fmt.Errorf("audit sale: %w", err)
		}

		logger.Info(ctx, "sale finalized",
			"saleId", sale.ID, "number", sale.Number,
			"items", len(sale.Items),
			"total", sale.TotalAmount.String(),
			"tradeInValue", sale.TradeInValue.String(),
			"creditApplied", sale.CreditApplied.String(),
			"change", sale.ChangeAmount.String())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

func validateFinalizeInput(in FinalizeInput) error {
	if id.IsNil(in.WarehouseID) {
		return apperror.NewValidation("warehouse is required").WithDetail("field", "warehouseId")
	}
	if len(in.Items) == 0 {
		return apperror.NewValidation("sale requires at least one item")
	}
	if len(in.Payments) == 0 {
		return apperror.NewValidation("sale requires at least one payment")
	}
	if in.DiscountAmount.IsNegative() {
		return apperror.NewValidation("discount cannot be negative")
	}
	for i, item := range in.Items {
		if !item.Type.IsValid() {
			return apperror.NewValidation("unknown item type").WithDetail("line", i)
		}
		if item.Discount.IsNegative() {
			return apperror.NewValidation("line discount cannot be negative").WithDetail("line", i)
		}
		switch item.Type {
		case ItemDevice:
			if item.DeviceID == nil {
				return apperror.NewValidation("device item requires deviceId").WithDetail("line", i)
			}
			if item.ConfirmedIMEI == "" {
				return apperror.NewValidation("device item requires confirmed imei").WithDetail("line", i)
			}
		case ItemProduct:
			if item.ProductID == nil {
				return apperror.NewValidation("product item requires productId").WithDetail("line", i)
			}
			if item.Quantity <= 0 {
				return apperror.NewValidation("product item requires positive quantity").WithDetail("line", i)
			}
		case ItemServiceOrder:
			if item.ServiceOrderID == nil {
				return apperror.NewValidation("service order item requires serviceOrderId").WithDetail("line", i)
			}
		}
	}
	for i, p := range in.Payments {
		if !p.Method.IsValid() {
			return apperror.NewValidation("unknown payment method").WithDetail("line", i)
		}
		if !p.Amount.IsPositive() {
			return apperror.NewValidation("payment amount must be positive").WithDetail("line", i)
		}
	}
	return nil
}

// processItem resolves, guards and posts one cart line. Must run inside the
// finalization transaction.
func (s *Service) processItem(ctx context.Context, sale *Sale, in ItemInput) (*SaleItem, error) {
	line := &SaleItem{
		ID:       id.New(),
		SaleID:   sale.ID,
		Type:     in.Type,
		Discount: in.Discount,
	}

	switch in.Type {
	case ItemDevice:
		d, err := s.devices.GetForUpdate(ctx, *in.DeviceID)
		if err != nil {
			return nil, err
		}
		if !d.IsSellable() {
			return nil, apperror.NewConflict("device is not available for sale").
				WithDetail("deviceId", d.ID).
				WithDetail("status", string(d.Status))
		}
		if in.ConfirmedIMEI != d.IMEI && in.ConfirmedIMEI != d.IMEI2 {
			return nil, apperror.NewIMEIMismatch(d.ID.String(), d.IMEI, in.ConfirmedIMEI)
		}

		price := d.SellingPrice
		if in.UnitPrice != nil {
			price = *in.UnitPrice
		}
		line.DeviceID = &d.ID
		line.ConfirmedIMEI = in.ConfirmedIMEI
		line.Description = fmt.Sprintf("%s %s (%s)", d.Brand, d.Model, d.IMEI)
		line.Quantity = types.One
		line.UnitPrice = price
		line.LineTotal = price.Sub(in.Discount)

		d.Status = devices.StatusSold
		d.Touch()
		if err := s.devices.Update(ctx, d); err != nil {
			return nil, fmt.Errorf("mark device sold: %w", err)
		}

		if _, err := s.stock.RecordMovement(ctx, stock.MovementInput{
			WarehouseID:   d.WarehouseID,
			ProductID:     d.ProductID,
			MovementType:  stock.MovementExit,
			OperationType: stock.OperationSale,
			Quantity:      types.One,
			Serials: []stock.Serial{{
				IMEI:         d.IMEI,
				IMEI2:        d.IMEI2,
				SerialNumber: d.SerialNumber,
			}},
			ReferenceID:     &sale.ID,
			ReferenceNumber: sale.Number,
		}); err != nil {
			return nil, err
		}

	case ItemProduct:
		p, err := s.products.GetByID(ctx, *in.ProductID)
		if err != nil {
			return nil, err
		}
		if !p.IsActive || p.DeletionMark {
			return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "product is not sellable").
				WithDetail("productId", p.ID)
		}
		if p.RequiresIMEI {
			return nil, apperror.NewValidation("serialized products sell as device items").
				WithDetail("productId", p.ID)
		}

		price := p.UnitPrice
		if in.UnitPrice != nil {
			price = *in.UnitPrice
		}
		line.ProductID = &p.ID
		line.Description = p.Name
		line.Quantity = in.Quantity
		line.UnitPrice = price
		line.LineTotal = price.Mul(in.Quantity.Decimal()).Sub(in.Discount)

		if _, err := s.stock.RecordMovement(ctx, stock.MovementInput{
			WarehouseID:     sale.WarehouseID,
			ProductID:       p.ID,
			MovementType:    stock.MovementExit,
			OperationType:   stock.OperationSale,
			Quantity:        in.Quantity,
			ReferenceID:     &sale.ID,
			ReferenceNumber: sale.Number,
		}); err != nil {
			return nil, err
		}

	case ItemServiceOrder:
		o, err := s.orders.MarkBilled(ctx, *in.ServiceOrderID)
		if err != nil {
			return nil, err
		}

		price := o.TotalCost
		if in.UnitPrice != nil {
			price = *in.UnitPrice
		}
		line.ServiceOrderID = &o.ID
		line.Description = fmt.Sprintf("Service order %s", o.Number)
		line.Quantity = types.One
		line.UnitPrice = price
		line.LineTotal = price.Sub(in.Discount)
	}

	if line.LineTotal.IsNegative() {
		return nil, apperror.NewValidation("line discount exceeds line price").
			WithDetail("discount", in.Discount.String())
	}
	return line, nil
}

// CancelSale reverses a completed sale: devices come back in stock, product
// exits are compensated with entries, billed orders reopen, and consumed
// credit is restored. Idempotent: cancelling a cancelled sale is a no-op.
func (s *Service) CancelSale(ctx context.Context, saleID id.ID) (*Sale, error) {
	var out *Sale
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sale, err := s.repo.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Status == StatusCancelled {
			out = sale
			return nil
		}

		for i := range sale.Items {
			item := &sale.Items[i]
			// Lines already returned have their stock back; skip them.
			if item.Returned {
				continue
			}
			if err := s.restockItem(ctx, sale, item, "sale cancellation"); err != nil {
				return err
			}
			if item.Type == ItemServiceOrder {
				if _, err := s.orders.ReopenBilled(ctx, *item.ServiceOrderID); err != nil {
					return err
				}
			}
		}

		if sale.TradeInValue.IsPositive() || sale.CreditApplied.IsPositive() {
			if err := s.credits.ReverseConsumption(ctx, sale.ID); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		sale.Status = StatusCancelled
		sale.CancelledAt = &now
		sale.Touch()
		if err := s.repo.UpdateSale(ctx, sale); err != nil {
			return fmt.Errorf("cancel sale: %w", err)
		}

		if err := s.auditor.Record(ctx, audit.Entry{
			EntityType: "sale",
			EntityID:   sale.ID,
			Action:     "cancel",
			Changes:    sale,
		}); err != nil {
			return fmt.Errorf("audit cancellation: %w", err)
		}

		logger.Info(ctx, "sale cancelled", "saleId", sale.ID, "number", sale.Number)
		out = sale
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// restockItem puts one sold line back into stock.
func (s *Service) restockItem(ctx context.Context, sale *Sale, item *SaleItem, note string) error {
	switch item.Type {
	case ItemDevice:
		d, err := s.devices.GetForUpdate(ctx, *item.DeviceID)
		if err != nil {
			return err
		}
		if d.Status != devices.StatusSold {
			return apperror.NewInvalidTransition("device", string(d.Status), string(devices.StatusInStock))
		}
		d.Status = devices.StatusInStock
		d.Touch()
		if err := s.devices.Update(ctx, d); err != nil {
			return fmt.Errorf("restock device: %w", err)
		}

		if _, err := s.stock.RecordMovement(ctx, stock.MovementInput{
			WarehouseID:   d.WarehouseID,
			ProductID:     d.ProductID,
			MovementType:  stock.MovementEntry,
			OperationType: stock.OperationReturn,
			Quantity:      types.One,
			Serials: []stock.Serial{{
				IMEI:         d.IMEI,
				IMEI2:        d.IMEI2,
				SerialNumber: d.SerialNumber,
			}},
			ReferenceID:     &sale.ID,
			ReferenceNumber: sale.Number,
			Notes:           note,
		}); err != nil {
			return err
		}

	case ItemProduct:
		if _, err := s.stock.RecordMovement(ctx, stock.MovementInput{
			WarehouseID:     sale.WarehouseID,
			ProductID:       *item.ProductID,
			MovementType:    stock.MovementEntry,
			OperationType:   stock.OperationReturn,
			Quantity:        item.Quantity,
			ReferenceID:     &sale.ID,
			ReferenceNumber: sale.Number,
			Notes:           note,
		}); err != nil {
			return err
		}
	}
	return nil
}

// ProcessReturn takes back specific lines of a completed sale. Units
// re-enter stock and the refund is granted as an expiring customer credit.
// Service order lines are not returnable.
func (s *Service) ProcessReturn(ctx context.Context, in ReturnInput) (*Return, error) {
	if in.Reason == "" {
		return nil, apperror.NewValidation("return reason is required").WithDetail("field", "reason")
	}
	if len(in.ItemIDs) == 0 {
		return nil, apperror.NewValidation("return requires at least one item")
	}

	validityDays := in.CreditValidityDays
	if validityDays <= 0 {
		validityDays = defaultRefundValidityDays
	}

	var out *Return
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sale, err := s.repo.GetSaleForUpdate(ctx, in.SaleID)
		if err != nil {
			return err
		}
		if sale.Status != StatusCompleted {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "only completed sales accept returns").
				WithDetail("saleId", sale.ID).
				WithDetail("status", string(sale.Status))
		}
		if sale.CustomerID == nil {
			return apperror.NewValidation("sale has no customer to receive the refund credit")
		}

		byID := make(map[id.ID]*SaleItem, len(sale.Items))
		for i := range sale.Items {
			byID[sale.Items[i].ID] = &sale.Items[i]
		}

		now := time.Now().UTC()
		refund := types.Zero()
		for _, itemID := range in.ItemIDs {
			item, ok := byID[itemID]
			if !ok {
				return apperror.NewNotFound("sale item", itemID)
			}
			if item.Returned {
				return apperror.NewConflict("item already returned").
					WithDetail("itemId", itemID)
			}
			if item.Type == ItemServiceOrder {
				return apperror.NewValidation("service order lines are not returnable").
					WithDetail("itemId", itemID)
			}

			if err := s.restockItem(ctx, sale, item, "customer return"); err != nil {
				return err
			}

			item.Returned = true
			item.ReturnedAt = &now
			if err := s.repo.UpdateSaleItem(ctx, item); err != nil {
				return fmt.Errorf("mark item returned: %w", err)
			}
			refund = refund.Add(item.LineTotal)
		}

		ret := &Return{
			Document:     entity.NewDocument(),
			SaleID:       sale.ID,
			Reason:       in.Reason,
			RefundAmount: refund,
			ItemIDs:      in.ItemIDs,
		}
		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numerator.PrefixReturn), ret.Date)
		if err != nil {
			return fmt.Errorf("generate return number: %w", err)
		}
		ret.Number = number

		if refund.IsPositive() {
			expires := now.AddDate(0, 0, validityDays)
			grant, err := s.credits.Grant(ctx, credit.GrantInput{
				PersonID:     *sale.CustomerID,
				Origin:       credit.OriginRefund,
				Amount:       refund,
				ExpiresAt:    &expires,
				SourceID:     &ret.ID,
				SourceNumber: ret.Number,
				Notes:        in.Reason,
			})
			if err != nil {
				return err
			}
			ret.CreditID = &grant.ID
		}

		if err := s.repo.CreateReturn(ctx, ret); err != nil {
			return fmt.Errorf("create return: %w", err)
		}

		if err := s.auditor.Record(ctx, audit.Entry{
			EntityType: "sale_return",
			EntityID:   ret.ID,
			Action:     "return",
			Changes:    ret,
		}); err != nil {
			return fmt.Errorf("audit return: %w", err)
		}

		logger.Info(ctx, "sale return processed",
			"returnId", ret.ID, "number", ret.Number,
			"saleId", sale.ID, "refund", refund.String())
		out = ret
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetSale loads a sale with items and payments.
func (s *Service) GetSale(ctx context.Context, saleID id.ID) (*Sale, error) {
	return s.repo.GetSale(ctx, saleID)
}

// ListSales returns sales matching the filter.
func (s *Service) ListSales(ctx context.Context, filter SaleFilter) ([]*Sale, error) {
	return s.repo.ListSales(ctx, filter)
}

// ListReturns returns a sale's return documents.
func (s *Service) ListReturns(ctx context.Context, saleID id.ID) ([]*Return, error) {
	return s.repo.ListReturnsBySale(ctx, saleID)
}
