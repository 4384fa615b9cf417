// Package serviceorder provides repair and preparation orders. External
// orders bill a customer; internal orders prepare trade-in devices for sale.
package serviceorder

import (
	"context"
	"time"

	"cellhub/internal/core/apperror"
	"cellhub/internal/core/entity"
	"cellhub/internal/core/id"
	"cellhub/internal/core/types"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusOpen         Status = "open"
	StatusInProgress   Status = "in_progress"
	StatusWaitingParts Status = "waiting_parts"
	StatusCompleted    Status = "completed"
	StatusCancelled    Status = "cancelled"
	StatusBilled       Status = "billed"
)

// CanTransitionTo reports whether the status change is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusOpen:
		return next == StatusInProgress || next == StatusWaitingParts ||
			next == StatusCompleted || next == StatusCancelled
	case StatusInProgress:
		return next == StatusWaitingParts || next == StatusCompleted || next == StatusCancelled
	case StatusWaitingParts:
		return next == StatusInProgress || next == StatusCompleted || next == StatusCancelled
	case StatusCompleted:
		return next == StatusBilled
	default:
		return false
	}
}

// IsWorkable reports whether labor can still be applied to the order.
func (s Status) IsWorkable() bool {
	return s == StatusOpen || s == StatusInProgress || s == StatusWaitingParts
}

// Order is a repair or preparation job.
type Order struct {
	entity.Document

	// CustomerID is nil for internal preparation orders.
	CustomerID *id.ID `db:"customer_id" json:"customerId,omitempty"`
	DeviceID   *id.ID `db:"device_id" json:"deviceId,omitempty"`

	// IsInternal marks preparation orders created by trade-in approval.
	// Internal orders are never billed to a customer.
	IsInternal         bool   `db:"is_internal" json:"isInternal"`
	SourceEvaluationID *id.ID `db:"source_evaluation_id" json:"sourceEvaluationId,omitempty"`

	Description string `db:"description" json:"description"`
	Status      Status `db:"status" json:"status"`

	EstimatedValue types.Money `db:"estimated_value" json:"estimatedValue"`
	LaborCost      types.Money `db:"labor_cost" json:"laborCost"`
	PartsCost      types.Money `db:"parts_cost" json:"partsCost"`
	TotalCost      types.Money `db:"total_cost" json:"totalCost"`

	CompletedAt *time.Time `db:"completed_at" json:"completedAt,omitempty"`
	BilledAt    *time.Time `db:"billed_at" json:"billedAt,omitempty"`
}

// NewOrder creates an open order.
func NewOrder() *Order {
	return &Order{
		Document: entity.NewDocument(),
		Status:   StatusOpen,
	}
}

// Validate implements entity.Validatable.
func (o *Order) Validate(ctx context.Context) error {
	if err := o.Document.Validate(ctx); err != nil {
		return err
	}
	if o.IsInternal {
		if o.CustomerID != nil {
			return apperror.NewValidation("internal orders have no customer")
		}
		if o.DeviceID == nil {
			return apperror.NewValidation("internal orders require a device")
		}
	} else if o.CustomerID == nil {
		return apperror.NewValidation("customer is required").WithDetail("field", "customerId")
	}
	if o.Description == "" {
		return apperror.NewValidation("description is required").WithDetail("field", "description")
	}
	return nil
}

// IsBillable reports whether the order can appear on a sale cart.
func (o *Order) IsBillable() bool {
	return !o.IsInternal && o.Status == StatusCompleted
}
