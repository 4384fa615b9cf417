package credit

import (
	"context"
	"fmt"
	"time"

	"cellhub/internal/core/apperror"
	"cellhub/internal/core/id"
	"cellhub/internal/core/tx"
	"cellhub/internal/core/types"
	"cellhub/internal/domain/audit"
	"cellhub/pkg/logger"
)

// GrantInput describes a credit to grant.
type GrantInput struct {
	PersonID     id.ID
	Origin       Origin
	Amount       types.Money
	ExpiresAt    *time.Time
	SourceID     *id.ID
	SourceNumber string
	Notes        string
}

// Service provides business logic for the customer credit ledger.
type Service struct {
	repo      Repository
	auditor   audit.Recorder
	txManager tx.Manager
}

// NewService creates a credit ledger service.
func NewService(repo Repository, auditor audit.Recorder, txManager tx.Manager) *Service {
	return &Service{repo: repo, auditor: auditor, txManager: txManager}
}

// Grant creates an active credit.
func (s *Service) Grant(ctx context.Context, in GrantInput) (*CustomerCredit, error) {
	c := NewCustomerCredit(in.PersonID, in.Origin, in.Amount)
	c.ExpiresAt = in.ExpiresAt
	c.SourceID = in.SourceID
	c.SourceNumber = in.SourceNumber
	c.Notes = in.Notes
	if err := c.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateCredit(ctx, c); err != nil {
			return fmt.Errorf("create credit: %w", err)
		}
		if err := s.auditor.Record(ctx, audit.Entry{
			EntityType: "customer_credit",
			EntityID:   c.ID,
			Action:     "grant",
			Changes:    c,
		}); err != nil {
			return fmt.Errorf("audit credit: %w", err)
		}
		logger.Info(ctx, "credit granted",
			"creditId", c.ID, "personId", c.PersonID, "origin", c.Origin, "amount", c.Amount.String())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// AvailableBalance sums the person's spendable credit. Expiry is applied at
// read time: a credit past its expiry contributes nothing even if its status
// row has not been flipped yet.
func (s *Service) AvailableBalance(ctx context.Context, personID id.ID) (types.Money, error) {
	active := StatusActive
	credits, err := s.repo.ListByPerson(ctx, personID, &active)
	if err != nil {
		return types.Zero(), err
	}

	now := time.Now().UTC()
	total := types.Zero()
	for _, c := range credits {
		if !c.IsSpendableAt(now) {
			continue
		}
		total = total.Add(c.RemainingAmount)
	}
	return total, nil
}

// ListByPerson returns the person's credits, optionally filtered by status.
func (s *Service) ListByPerson(ctx context.Context, personID id.ID, status *Status) ([]*CustomerCredit, error) {
	return s.repo.ListByPerson(ctx, personID, status)
}

// GetByID retrieves one credit.
func (s *Service) GetByID(ctx context.Context, creditID id.ID) (*CustomerCredit, error) {
	return s.repo.GetCredit(ctx, creditID)
}

// Consume takes amount from the person's credits, soonest-expiring-first,
// then oldest-granted-first. All-or-nothing: if the spendable total falls
// short, no credit is touched and the caller's transaction rolls back.
// A sale can consume only once; repeated calls for the same sale are
// rejected so retries cannot double-spend.
func (s *Service) Consume(ctx context.Context, personID, saleID id.ID, amount types.Money) ([]*Consumption, error) {
	if !amount.IsPositive() {
		return nil, apperror.NewValidation("consumption amount must be positive").
			WithDetail("amount", amount.String())
	}

	var out []*Consumption
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.ListConsumptionsBySale(ctx, saleID)
		if err != nil {
			return err
		}
		for _, cons := range existing {
			if !cons.Reversed {
				return apperror.NewConflict("credit already consumed for this sale").
					WithDetail("saleId", saleID)
			}
		}

		credits, err := s.repo.ListActiveForUpdate(ctx, personID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		available := types.Zero()
		spendable := credits[:0]
		for _, c := range credits {
			if c.IsExpiredAt(now) {
				// Lazy expiry: the row is already locked, flip it now.
				c.Status = StatusExpired
				c.Touch()
				if err := s.repo.UpdateCredit(ctx, c); err != nil {
					return fmt.Errorf("expire credit: %w", err)
				}
				continue
			}
			available = available.Add(c.RemainingAmount)
			spendable = append(spendable, c)
		}

		if available.LessThan(amount) {
			return apperror.NewInsufficientCredit(personID.String(), amount.String(), available.String())
		}

		remaining := amount
		for _, c := range spendable {
			if !remaining.IsPositive() {
				break
			}
			take := c.RemainingAmount
			if take.GreaterThan(remaining) {
				take = remaining
			}

			cons := &Consumption{
				ID:        id.New(),
				CreditID:  c.ID,
				SaleID:    saleID,
				Amount:    take,
				Origin:    c.Origin,
				CreatedAt: now,
			}
			if err := s.repo.CreateConsumption(ctx, cons); err != nil {
				return fmt.Errorf("create consumption: %w", err)
			}

			c.RemainingAmount = c.RemainingAmount.Sub(take)
			if c.RemainingAmount.IsZero() {
				c.Status = StatusUsed
			}
			c.Touch()
			if err := s.repo.UpdateCredit(ctx, c); err != nil {
				return fmt.Errorf("update credit: %w", err)
			}

			remaining = remaining.Sub(take)
			out = append(out, cons)
		}

		if err := s.auditor.Record(ctx, audit.Entry{
			EntityType: "customer_credit",
			EntityID:   personID,
			Action:     "consume",
			Changes:    out,
		}); err != nil {
			return fmt.Errorf("audit consumption: %w", err)
		}

		logger.Info(ctx, "credit consumed",
			"personId", personID, "saleId", saleID, "amount", amount.String(), "parts", len(out))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReverseConsumption undoes all consumption for a sale, restoring each
// credit's remaining amount. Idempotent: already-reversed rows are skipped,
// so retrying a cancellation never over-restores.
func (s *Service) ReverseConsumption(ctx context.Context, saleID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		consumptions, err := s.repo.ListConsumptionsBySale(ctx, saleID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		reversed := 0
		for _, cons := range consumptions {
			if cons.Reversed {
				continue
			}

			c, err := s.repo.GetCreditForUpdate(ctx, cons.CreditID)
			if err != nil {
				return err
			}

			c.RemainingAmount = c.RemainingAmount.Add(cons.Amount)
			if c.Status == StatusUsed {
				c.Status = StatusActive
			}
			// A credit that expired while consumed stays expired; the
			// restored remainder is unspendable but preserved for audit.
			if c.IsExpiredAt(now) {
				c.Status = StatusExpired
			}
			c.Touch()
			if err := s.repo.UpdateCredit(ctx, c); err != nil {
				return fmt.Errorf("restore credit: %w", err)
			}

			cons.Reversed = true
			cons.ReversedAt = &now
			if err := s.repo.UpdateConsumption(ctx, cons); err != nil {
				return fmt.Errorf("mark consumption reversed: %w", err)
			}
			reversed++
		}

		if reversed > 0 {
			if err := s.auditor.Record(ctx, audit.Entry{
				EntityType: "customer_credit",
				EntityID:   saleID,
				Action:     "reverse_consumption",
				Changes:    map[string]any{"saleId": saleID, "reversed": reversed},
			}); err != nil {
				return fmt.Errorf("audit reversal: %w", err)
			}
			logger.Info(ctx, "credit consumption reversed", "saleId", saleID, "rows", reversed)
		}
		return nil
	})
}
