package dto

import (
	"time"

	"cellhub/internal/core/apperror"
	"cellhub/internal/core/id"
	"cellhub/internal/core/types"
	"cellhub/internal/domain/ledger/credit"
)

// --- Request DTOs for the Credit Ledger ---

// GrantCreditRequest is the request body for granting customer credit.
type GrantCreditRequest struct {
	PersonID     string        `json:"personId" binding:"required"`
	Origin       credit.Origin `json:"origin" binding:"required"`
	Amount       types.Money   `json:"amount" binding:"required"`
	ExpiresAt    *time.Time    `json:"expiresAt"`
	SourceNumber string        `json:"sourceNumber"`
	Notes        string        `json:"notes"`
}

// ToInput converts DTO to service input.
func (r *GrantCreditRequest) ToInput() (credit.GrantInput, error) {
	personID, err := id.Parse(r.PersonID)
	if err != nil {
		return credit.GrantInput{}, apperror.NewValidation("invalid personId format")
	}

	return credit.GrantInput{
		PersonID:     personID,
		Origin:       r.Origin,
		Amount:       r.Amount,
		ExpiresAt:    r.ExpiresAt,
		SourceNumber: r.SourceNumber,
		Notes:        r.Notes,
	}, nil
}

// --- Response DTOs ---

// CreditBalanceResponse reports a customer's spendable credit.
type CreditBalanceResponse struct {
	PersonID string      `json:"personId"`
	Balance  types.Money `json:"balance"`
}
