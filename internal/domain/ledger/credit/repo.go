package credit

import (
	"context"

	"cellhub/internal/core/id"
)

// Repository persists credits and consumption rows. Implementations must
// honor the transaction carried in the context.
type Repository interface {
	CreateCredit(ctx context.Context, c *CustomerCredit) error

	GetCredit(ctx context.Context, creditID id.ID) (*CustomerCredit, error)

	// GetCreditForUpdate locks one credit row for the transaction.
	GetCreditForUpdate(ctx context.Context, creditID id.ID) (*CustomerCredit, error)

	// ListActiveForUpdate locks and returns the person's active credits in
	// consumption order: soonest expiry first (credits without expiry last),
	// then oldest grant first.
	ListActiveForUpdate(ctx context.Context, personID id.ID) ([]*CustomerCredit, error)

	// ListByPerson returns the person's credits, optionally by status,
	// newest grant first.
	ListByPerson(ctx context.Context, personID id.ID, status *Status) ([]*CustomerCredit, error)

	UpdateCredit(ctx context.Context, c *CustomerCredit) error

	CreateConsumption(ctx context.Context, cons *Consumption) error

	// ListConsumptionsBySale returns all consumption rows for a sale,
	// newest first, reversed ones included.
	ListConsumptionsBySale(ctx context.Context, saleID id.ID) ([]*Consumption, error)

	UpdateConsumption(ctx context.Context, cons *Consumption) error
}
