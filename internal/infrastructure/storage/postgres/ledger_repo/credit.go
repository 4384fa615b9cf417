package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"cellhub/internal/core/apperror"
	"cellhub/internal/core/id"
	"cellhub/internal/domain/ledger/credit"
	"cellhub/internal/infrastructure/storage/postgres"
)

const (
	creditTable      = "reg_customer_credits"
	consumptionTable = "reg_credit_consumptions"
)

// CreditRepo implements credit.Repository.
type CreditRepo struct {
	txManager       *postgres.TxManager
	creditCols      []string
	consumptionCols []string
}

var _ credit.Repository = (*CreditRepo)(nil)

// NewCreditRepo creates a credit ledger repository.
func NewCreditRepo(txManager *postgres.TxManager) *CreditRepo {
	return &CreditRepo{
		txManager:       txManager,
		creditCols:      postgres.ExtractDBColumns[credit.CustomerCredit](),
		consumptionCols: postgres.ExtractDBColumns[credit.Consumption](),
	}
}

func (r *CreditRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *CreditRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// CreateCredit inserts a credit.
func (r *CreditRepo) CreateCredit(ctx context.Context, c *credit.CustomerCredit) error {
	sql, args, err := r.builder().
		Insert(creditTable).
		SetMap(postgres.StructToMap(c)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert credit: %w", err)
	}
	return nil
}

func (r *CreditRepo) getCredit(ctx context.Context, q squirrel.SelectBuilder, creditID id.ID) (*credit.CustomerCredit, error) {
	sql, args, err := q.Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	c := &credit.CustomerCredit{}
	if err := pgxscan.Get(ctx, r.querier(ctx), c, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("credit", creditID.String())
		}
		return nil, fmt.Errorf("get credit: %w", err)
	}
	return c, nil
}

// GetCredit retrieves one credit.
func (r *CreditRepo) GetCredit(ctx context.Context, creditID id.ID) (*credit.CustomerCredit, error) {
	return r.getCredit(ctx, r.builder().
		Select(r.creditCols...).
		From(creditTable).
		Where(squirrel.Eq{"id": creditID}), creditID)
}

// GetCreditForUpdate locks one credit row for the transaction.
func (r *CreditRepo) GetCreditForUpdate(ctx context.Context, creditID id.ID) (*credit.CustomerCredit, error) {
	return r.getCredit(ctx, r.builder().
		Select(r.creditCols...).
		From(creditTable).
		Where(squirrel.Eq{"id": creditID}).
		Suffix("FOR UPDATE"), creditID)
}

// ListActiveForUpdate locks the person's active credits in consumption
// order: soonest expiry first, no-expiry credits last, then oldest grant.
// The ordering is the consumption policy; it lives here so concurrent
// consumers always lock rows in the same order.
func (r *CreditRepo) ListActiveForUpdate(ctx context.Context, personID id.ID) ([]*credit.CustomerCredit, error) {
	sql, args, err := r.builder().
		Select(r.creditCols...).
		From(creditTable).
		Where(squirrel.Eq{"person_id": personID, "status": credit.StatusActive}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("expires_at ASC NULLS LAST", "created_at ASC").
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []*credit.CustomerCredit
	if err := pgxscan.Select(ctx, r.querier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("lock active credits: %w", err)
	}
	return out, nil
}

// ListByPerson returns the person's credits, newest grant first.
func (r *CreditRepo) ListByPerson(ctx context.Context, personID id.ID, status *credit.Status) ([]*credit.CustomerCredit, error) {
	q := r.builder().
		Select(r.creditCols...).
		From(creditTable).
		Where(squirrel.Eq{"person_id": personID}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("created_at DESC")
	if status != nil {
		q = q.Where(squirrel.Eq{"status": *status})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []*credit.CustomerCredit
	if err := pgxscan.Select(ctx, r.querier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	return out, nil
}

// UpdateCredit writes back a credit with optimistic locking.
func (r *CreditRepo) UpdateCredit(ctx context.Context, c *credit.CustomerCredit) error {
	data := postgres.StructToMap(c)
	version := data["version"].(int)
	delete(data, "id")
	delete(data, "version")

	sql, args, err := r.builder().
		Update(creditTable).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": c.ID}).
		Where(squirrel.Eq{"version": version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update credit: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("credit", c.ID)
	}
	return nil
}

// CreateConsumption inserts a consumption row.
func (r *CreditRepo) CreateConsumption(ctx context.Context, cons *credit.Consumption) error {
	sql, args, err := r.builder().
		Insert(consumptionTable).
		SetMap(postgres.StructToMap(cons)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert consumption: %w", err)
	}
	return nil
}

// ListConsumptionsBySale returns all consumption rows for a sale, newest
// first, reversed ones included.
func (r *CreditRepo) ListConsumptionsBySale(ctx context.Context, saleID id.ID) ([]*credit.Consumption, error) {
	sql, args, err := r.builder().
		Select(r.consumptionCols...).
		From(consumptionTable).
		Where(squirrel.Eq{"sale_id": saleID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []*credit.Consumption
	if err := pgxscan.Select(ctx, r.querier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list consumptions: %w", err)
	}
	return out, nil
}

// UpdateConsumption writes back a consumption row (reversal flag).
func (r *CreditRepo) UpdateConsumption(ctx context.Context, cons *credit.Consumption) error {
	data := postgres.StructToMap(cons)
	delete(data, "id")

	sql, args, err := r.builder().
		Update(consumptionTable).
		SetMap(data).
		Where(squirrel.Eq{"id": cons.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update consumption: %w", err)
	}
	return nil
}
