// Package sales implements the sale transaction engine: carts of devices,
// fungible products and completed service orders, paid by mixed methods
// including customer credit, finalized atomically.
package sales

import (
	"context"
	"time"

	"cellhub/internal/core/apperror"
	"cellhub/internal/core/entity"
	"cellhub/internal/core/id"
	"cellhub/internal/core/types"
)

// Status is the sale lifecycle state. A sale is born completed; there is no
// draft stage, finalization either fully succeeds or leaves nothing.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ItemType discriminates what a sale line sells.
type ItemType string

const (
	ItemDevice       ItemType = "device"
	ItemProduct      ItemType = "product"
	ItemServiceOrder ItemType = "service_order"
)

// IsValid reports whether t is a known item type.
func (t ItemType) IsValid() bool {
	switch t {
	case ItemDevice, ItemProduct, ItemServiceOrder:
		return true
	}
	return false
}

// PaymentMethod is how a payment line settles.
type PaymentMethod string

const (
	PaymentCash           PaymentMethod = "cash"
	PaymentCreditCard     PaymentMethod = "credit_card"
	PaymentDebitCard      PaymentMethod = "debit_card"
	PaymentPix            PaymentMethod = "pix"
	PaymentCustomerCredit PaymentMethod = "customer_credit"
)

// IsValid reports whether m is a known payment method.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCash, PaymentCreditCard, PaymentDebitCard, PaymentPix, PaymentCustomerCredit:
		return true
	}
	return false
}

// SaleItem is one line on a sale. Exactly one of DeviceID, ProductID,
// ServiceOrderID is set according to ItemType.
type SaleItem struct {
	ID     id.ID    `db:"id" json:"id"`
	SaleID id.ID    `db:"sale_id" json:"saleId"`
	Type   ItemType `db:"item_type" json:"itemType"`

	DeviceID       *id.ID `db:"device_id" json:"deviceId,omitempty"`
	ProductID      *id.ID `db:"product_id" json:"productId,omitempty"`
	ServiceOrderID *id.ID `db:"service_order_id" json:"serviceOrderId,omitempty"`

	// ConfirmedIMEI is the operator's scan at checkout; it must match the
	// device on the line.
	ConfirmedIMEI string `db:"confirmed_imei" json:"confirmedImei,omitempty"`

	Description string         `db:"description" json:"description"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	UnitPrice   types.Money    `db:"unit_price" json:"unitPrice"`
	Discount    types.Money    `db:"discount" json:"discount"`
	LineTotal   types.Money    `db:"line_total" json:"lineTotal"`

	Returned   bool       `db:"returned" json:"returned"`
	ReturnedAt *time.Time `db:"returned_at" json:"returnedAt,omitempty"`
}

// Payment is one settlement line on a sale.
type Payment struct {
	ID     id.ID         `db:"id" json:"id"`
	SaleID id.ID         `db:"sale_id" json:"saleId"`
	Method PaymentMethod `db:"method" json:"method"`
	Amount types.Money   `db:"amount" json:"amount"`
}

// Sale is a finalized sale document. Monetary fields are recomputed
// server-side at finalization; client-sent totals are never trusted.
type Sale struct {
	entity.Document

	CustomerID  *id.ID `db:"customer_id" json:"customerId,omitempty"`
	WarehouseID id.ID  `db:"warehouse_id" json:"warehouseId"`
	Status      Status `db:"status" json:"status"`

	// BaseTotal is the sum of line totals before the order-level discount.
	BaseTotal      types.Money `db:"base_total" json:"baseTotal"`
	DiscountAmount types.Money `db:"discount_amount" json:"discountAmount"`

	// TradeInValue is the trade-in-origin portion of the consumed credit;
	// CreditApplied is the rest. Persisted separately so the receipt and
	// the fiscal record show how much of the price a traded device covered.
	TradeInValue  types.Money `db:"trade_in_value" json:"tradeInValue"`
	CreditApplied types.Money `db:"credit_applied" json:"creditApplied"`

	// TotalAmount is what the customer owed after discount, trade-in
	// value and credit.
	TotalAmount  types.Money `db:"total_amount" json:"totalAmount"`
	ChangeAmount types.Money `db:"change_amount" json:"changeAmount"`

	Notes       string     `db:"notes" json:"notes,omitempty"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelledAt,omitempty"`

	Items    []SaleItem `db:"-" json:"items"`
	Payments []Payment  `db:"-" json:"payments"`
}

// Validate implements entity.Validatable.
func (s *Sale) Validate(ctx context.Context) error {
	if err := s.Document.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(s.WarehouseID) {
		return apperror.NewValidation("warehouse is required").WithDetail("field", "warehouseId")
	}
	if len(s.Items) == 0 {
		return apperror.NewValidation("sale requires at least one item")
	}
	if s.DiscountAmount.IsNegative() {
		return apperror.NewValidation("discount cannot be negative")
	}
	return nil
}

// Return is a post-sale return document. Returned units re-enter stock and
// the refund is granted as an expiring customer credit.
type Return struct {
	entity.Document

	SaleID       id.ID       `db:"sale_id" json:"saleId"`
	Reason       string      `db:"reason" json:"reason"`
	RefundAmount types.Money `db:"refund_amount" json:"refundAmount"`
	CreditID     *id.ID      `db:"credit_id" json:"creditId,omitempty"`
	ItemIDs      []id.ID     `db:"item_ids" json:"itemIds"`
}
