// Package tradein provides the device evaluation workflow: a customer's used
// device is assessed, approved into a preparation pipeline, or rejected.
package tradein

import (
	"context"

	"cellhub/internal/core/apperror"
	"cellhub/internal/core/entity"
	"cellhub/internal/core/id"
	"cellhub/internal/core/types"
)

// Status is the evaluation state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInAnalysis Status = "in_analysis"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
)

// CanTransitionTo reports whether the status change is allowed. Approved and
// rejected are terminal.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusInAnalysis
	case StatusInAnalysis:
		return next == StatusApproved || next == StatusRejected
	default:
		return false
	}
}

// ChecklistItem is one inspection point on the evaluation checklist.
type ChecklistItem struct {
	Item   string `json:"item"`
	Passed bool   `json:"passed"`
	Notes  string `json:"notes,omitempty"`
}

// Evaluation is one trade-in assessment document.
type Evaluation struct {
	entity.Document

	CustomerID id.ID `db:"customer_id" json:"customerId"`

	// Device identity as presented by the customer.
	IMEI         string `db:"imei" json:"imei"`
	IMEI2        string `db:"imei2" json:"imei2,omitempty"`
	SerialNumber string `db:"serial_number" json:"serialNumber,omitempty"`
	Brand        string `db:"brand" json:"brand"`
	Model        string `db:"model" json:"model"`
	Color        string `db:"color" json:"color,omitempty"`

	Status    Status          `db:"status" json:"status"`
	Checklist []ChecklistItem `db:"checklist" json:"checklist,omitempty"`
	Notes     string          `db:"notes" json:"notes,omitempty"`

	// EstimatedValue is the credit offered to the customer on approval.
	EstimatedValue  types.Money `db:"estimated_value" json:"estimatedValue"`
	RejectionReason string      `db:"rejection_reason" json:"rejectionReason,omitempty"`

	// Links filled by approval.
	DeviceID           *id.ID `db:"device_id" json:"deviceId,omitempty"`
	PreparationOrderID *id.ID `db:"preparation_order_id" json:"preparationOrderId,omitempty"`
	CreditID           *id.ID `db:"credit_id" json:"creditId,omitempty"`
}

// NewEvaluation creates a pending evaluation.
func NewEvaluation(customerID id.ID, imei, brand, model string) *Evaluation {
	return &Evaluation{
		Document:   entity.NewDocument(),
		CustomerID: customerID,
		IMEI:       imei,
		Brand:      brand,
		Model:      model,
		Status:     StatusPending,
	}
}

// Validate implements entity.Validatable.
func (e *Evaluation) Validate(ctx context.Context) error {
	if err := e.Document.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(e.CustomerID) {
		return apperror.NewValidation("customer is required").WithDetail("field", "customerId")
	}
	if e.IMEI == "" {
		return apperror.NewValidation("imei is required").WithDetail("field", "imei")
	}
	if e.Brand == "" || e.Model == "" {
		return apperror.NewValidation("brand and model are required")
	}
	if e.EstimatedValue.IsNegative() {
		return apperror.NewValidation("estimated value cannot be negative")
	}
	return nil
}
