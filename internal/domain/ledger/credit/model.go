// Package credit implements the customer credit ledger: grants with optional
// expiry, balance reads, and consumption applied soonest-expiring-first.
package credit

import (
	"context"
	"time"

	"cellhub/internal/core/apperror"
	"cellhub/internal/core/entity"
	"cellhub/internal/core/id"
	"cellhub/internal/core/types"
)

// Origin records why a credit was granted.
type Origin string

const (
	OriginTradeIn   Origin = "trade_in"
	OriginRefund    Origin = "refund"
	OriginBonus     Origin = "bonus"
	OriginPromotion Origin = "promotion"
	OriginCashback  Origin = "cashback"
)

// IsValid reports whether o is a known origin.
func (o Origin) IsValid() bool {
	switch o {
	case OriginTradeIn, OriginRefund, OriginBonus, OriginPromotion, OriginCashback:
		return true
	}
	return false
}

// Status is the lifecycle state of a credit.
type Status string

const (
	StatusActive  Status = "active"
	StatusUsed    Status = "used"
	StatusExpired Status = "expired"
)

// CustomerCredit is one granted credit. Amount never changes after grant;
// RemainingAmount tracks what consumption has not yet taken.
type CustomerCredit struct {
	entity.BaseDocument

	PersonID        id.ID       `db:"person_id" json:"personId"`
	Origin          Origin      `db:"origin" json:"origin"`
	Amount          types.Money `db:"amount" json:"amount"`
	RemainingAmount types.Money `db:"remaining_amount" json:"remainingAmount"`
	Status          Status      `db:"status" json:"status"`
	ExpiresAt       *time.Time  `db:"expires_at" json:"expiresAt,omitempty"`

	// SourceID links to the originating document (evaluation, return).
	SourceID     *id.ID `db:"source_id" json:"sourceId,omitempty"`
	SourceNumber string `db:"source_number" json:"sourceNumber,omitempty"`
	Notes        string `db:"notes" json:"notes,omitempty"`
}

// NewCustomerCredit creates an active credit for the full amount.
func NewCustomerCredit(personID id.ID, origin Origin, amount types.Money) *CustomerCredit {
	return &CustomerCredit{
		BaseDocument:    entity.NewBaseDocument(),
		PersonID:        personID,
		Origin:          origin,
		Amount:          amount,
		RemainingAmount: amount,
		Status:          StatusActive,
	}
}

// Validate implements entity.Validatable.
func (c *CustomerCredit) Validate(ctx context.Context) error {
	if id.IsNil(c.PersonID) {
		return apperror.NewValidation("person is required").WithDetail("field", "personId")
	}
	if !c.Origin.IsValid() {
		return apperror.NewValidation("unknown credit origin").
			WithDetail("origin", string(c.Origin))
	}
	if !c.Amount.IsPositive() {
		return apperror.NewValidation("credit amount must be positive").
			WithDetail("amount", c.Amount.String())
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(c.CreatedAt) {
		return apperror.NewValidation("expiry must be in the future")
	}
	return nil
}

// IsExpiredAt reports whether the credit is past its expiry at the given time.
// Credits without expiry never expire.
func (c *CustomerCredit) IsExpiredAt(t time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(t)
}

// IsSpendableAt reports whether the credit can fund a consumption at the
// given time.
func (c *CustomerCredit) IsSpendableAt(t time.Time) bool {
	return c.Status == StatusActive && !c.IsExpiredAt(t) && c.RemainingAmount.IsPositive()
}

// Consumption records one credit being applied to one sale. Reversal flips
// the flag instead of deleting the row, so the trail survives cancellation.
type Consumption struct {
	ID       id.ID       `db:"id" json:"id"`
	CreditID id.ID       `db:"credit_id" json:"creditId"`
	SaleID   id.ID       `db:"sale_id" json:"saleId"`
	Amount   types.Money `db:"amount" json:"amount"`

	// Origin is copied from the credit at consumption time so a sale can
	// split what it settled with trade-in value from other credit.
	Origin     Origin      `db:"origin" json:"origin"`
	Reversed   bool        `db:"reversed" json:"reversed"`
	CreatedAt  time.Time   `db:"created_at" json:"createdAt"`
	ReversedAt *time.Time  `db:"reversed_at" json:"reversedAt,omitempty"`
}
