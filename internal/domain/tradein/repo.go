package tradein

import (
	"context"

	"cellhub/internal/core/id"
)

// Repository persists evaluations.
type Repository interface {
	Create(ctx context.Context, e *Evaluation) error

	GetByID(ctx context.Context, evalID id.ID) (*Evaluation, error)

	// GetForUpdate locks the evaluation row for the transaction.
	GetForUpdate(ctx context.Context, evalID id.ID) (*Evaluation, error)

	Update(ctx context.Context, e *Evaluation) error

	// List returns evaluations, optionally by status, newest first.
	List(ctx context.Context, status *Status) ([]*Evaluation, error)

	// ListByCustomer returns a customer's evaluations, newest first.
	ListByCustomer(ctx context.Context, customerID id.ID) ([]*Evaluation, error)
}
