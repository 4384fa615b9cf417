package dto

import (
	"cellhub/internal/core/apperror"
	"cellhub/internal/core/id"
	"cellhub/internal/core/types"
	"cellhub/internal/domain/sales"
)

// --- Request DTOs for the Sale Engine ---

// SaleItemRequest is one requested cart line.
type SaleItemRequest struct {
	Type sales.ItemType `json:"type" binding:"required"`

	DeviceID      *string `json:"deviceId"`
	ConfirmedIMEI string  `json:"confirmedImei"`

	ProductID *string        `json:"productId"`
	Quantity  types.Quantity `json:"quantity"`

	ServiceOrderID *string `json:"serviceOrderId"`

	UnitPrice *types.Money `json:"unitPrice"`
	Discount  types.Money  `json:"discount"`
}

func (r *SaleItemRequest) toInput(line int) (sales.ItemInput, error) {
	in := sales.ItemInput{
		Type:          r.Type,
		ConfirmedIMEI: r.ConfirmedIMEI,
		Quantity:      r.Quantity,
		UnitPrice:     r.UnitPrice,
		Discount:      r.Discount,
	}

	parse := func(field string, raw *string) (*id.ID, error) {
		if raw == nil || *raw == "" {
			return nil, nil
		}
		parsed, err := id.Parse(*raw)
		if err != nil {
			return nil, apperror.NewValidation("invalid "+field+" format").WithDetail("line", line)
		}
		return &parsed, nil
	}

	var err error
	if in.DeviceID, err = parse("deviceId", r.DeviceID); err != nil {
		return sales.ItemInput{}, err
	}
	if in.ProductID, err = parse("productId", r.ProductID); err != nil {
		return sales.ItemInput{}, err
	}
	if in.ServiceOrderID, err = parse("serviceOrderId", r.ServiceOrderID); err != nil {
		return sales.ItemInput{}, err
	}
	return in, nil
}

// SalePaymentRequest is one requested settlement line.
type SalePaymentRequest struct {
	Method sales.PaymentMethod `json:"method" binding:"required"`
	Amount types.Money         `json:"amount" binding:"required"`
}

// FinalizeSaleRequest is a complete sale request. Totals are recomputed
// server-side; any totals sent by the client are ignored.
type FinalizeSaleRequest struct {
	CustomerID     *string              `json:"customerId"`
	WarehouseID    string               `json:"warehouseId" binding:"required"`
	Items          []SaleItemRequest    `json:"items" binding:"required"`
	Payments       []SalePaymentRequest `json:"payments" binding:"required"`
	DiscountAmount types.Money          `json:"discountAmount"`
	Notes          string               `json:"notes"`
}

// ToInput converts DTO to service input.
func (r *FinalizeSaleRequest) ToInput() (sales.FinalizeInput, error) {
	warehouseID, err := id.Parse(r.WarehouseID)
	if err != nil {
		return sales.FinalizeInput{}, apperror.NewValidation("invalid warehouseId format")
	}

	in := sales.FinalizeInput{
		WarehouseID:    warehouseID,
		DiscountAmount: r.DiscountAmount,
		Notes:          r.Notes,
	}

	if r.CustomerID != nil && *r.CustomerID != "" {
		customerID, err := id.Parse(*r.CustomerID)
		if err != nil {
			return sales.FinalizeInput{}, apperror.NewValidation("invalid customerId format")
		}
		in.CustomerID = &customerID
	}

	in.Items = make([]sales.ItemInput, len(r.Items))
	for i, item := range r.Items {
		parsed, err := item.toInput(i)
		if err != nil {
			return sales.FinalizeInput{}, err
		}
		in.Items[i] = parsed
	}

	in.Payments = make([]sales.PaymentInput, len(r.Payments))
	for i, p := range r.Payments {
		in.Payments[i] = sales.PaymentInput{Method: p.Method, Amount: p.Amount}
	}

	return in, nil
}

// ProcessReturnRequest requests a post-sale return of specific lines.
type ProcessReturnRequest struct {
	ItemIDs []string `json:"itemIds" binding:"required"`
	Reason  string   `json:"reason" binding:"required"`

	// CreditValidityDays bounds the refund credit's life; zero means the
	// default validity.
	CreditValidityDays int `json:"creditValidityDays"`
}

// ToInput converts DTO to service input.
func (r *ProcessReturnRequest) ToInput(saleID id.ID) (sales.ReturnInput, error) {
	itemIDs := make([]id.ID, len(r.ItemIDs))
	for i, raw := range r.ItemIDs {
		parsed, err := id.Parse(raw)
		if err != nil {
			return sales.ReturnInput{}, apperror.NewValidation("invalid itemId format").
				WithDetail("index", i)
		}
		itemIDs[i] = parsed
	}

	return sales.ReturnInput{
		SaleID:             saleID,
		ItemIDs:            itemIDs,
		Reason:             r.Reason,
		CreditValidityDays: r.CreditValidityDays,
	}, nil
}
