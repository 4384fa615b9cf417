package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"cellhub/internal/core/id"
	"cellhub/internal/domain/sales"
	"cellhub/internal/infrastructure/storage/postgres"
)

const (
	saleTable        = "doc_sales"
	saleLinesTable   = "doc_sale_lines"
	salePaymentTable = "doc_sale_payments"
	saleReturnTable  = "doc_sale_returns"
)

// SaleRepo implements sales.Repository.
type SaleRepo struct {
	*BaseDocumentRepo[*sales.Sale]
	lineCols    []string
	paymentCols []string
	returnCols  []string
}

var _ sales.Repository = (*SaleRepo)(nil)

// NewSaleRepo creates a sale repository.
func NewSaleRepo(txManager *postgres.TxManager) *SaleRepo {
	return &SaleRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			saleTable,
			postgres.ExtractDBColumns[sales.Sale](),
			func() *sales.Sale { return &sales.Sale{} },
		),
		lineCols:    postgres.ExtractDBColumns[sales.SaleItem](),
		paymentCols: postgres.ExtractDBColumns[sales.Payment](),
		returnCols:  postgres.ExtractDBColumns[sales.Return](),
	}
}

// CreateSale persists the sale with all lines and payments.
func (r *SaleRepo) CreateSale(ctx context.Context, s *sales.Sale) error {
	if err := r.Create(ctx, s); err != nil {
		return err
	}

	for i := range s.Items {
		sql, args, err := r.Builder().
			Insert(saleLinesTable).
			SetMap(postgres.StructToMap(&s.Items[i])).
			ToSql()
		if err != nil {
			return fmt.Errorf("build line insert: %w", err)
		}
		if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert sale line: %w", err)
		}
	}

	for i := range s.Payments {
		sql, args, err := r.Builder().
			Insert(salePaymentTable).
			SetMap(postgres.StructToMap(&s.Payments[i])).
			ToSql()
		if err != nil {
			return fmt.Errorf("build payment insert: %w", err)
		}
		if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert sale payment: %w", err)
		}
	}
	return nil
}

// loadChildren fills a sale's lines and payments.
func (r *SaleRepo) loadChildren(ctx context.Context, s *sales.Sale) error {
	lineSQL, lineArgs, err := r.Builder().
		Select(r.lineCols...).
		From(saleLinesTable).
		Where(squirrel.Eq{"sale_id": s.ID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build lines query: %w", err)
	}
	var items []sales.SaleItem
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, lineSQL, lineArgs...); err != nil {
		return fmt.Errorf("get sale lines: %w", err)
	}
	s.Items = items

	paySQL, payArgs, err := r.Builder().
		Select(r.paymentCols...).
		From(salePaymentTable).
		Where(squirrel.Eq{"sale_id": s.ID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build payments query: %w", err)
	}
	var payments []sales.Payment
	if err := pgxscan.Select(ctx, r.querier(ctx), &payments, paySQL, payArgs...); err != nil {
		return fmt.Errorf("get sale payments: %w", err)
	}
	s.Payments = payments
	return nil
}

// GetSale loads a sale with lines and payments.
func (r *SaleRepo) GetSale(ctx context.Context, saleID id.ID) (*sales.Sale, error) {
	s, err := r.GetByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// GetSaleForUpdate loads a sale with lines and payments, locking the
// document row.
func (r *SaleRepo) GetSaleForUpdate(ctx context.Context, saleID id.ID) (*sales.Sale, error) {
	s, err := r.GetForUpdate(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// UpdateSale writes back the sale header.
func (r *SaleRepo) UpdateSale(ctx context.Context, s *sales.Sale) error {
	return r.Update(ctx, s)
}

// UpdateSaleItem writes back one line (returned flag).
func (r *SaleRepo) UpdateSaleItem(ctx context.Context, item *sales.SaleItem) error {
	data := postgres.StructToMap(item)
	delete(data, "id")

	sql, args, err := r.Builder().
		Update(saleLinesTable).
		SetMap(data).
		Where(squirrel.Eq{"id": item.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update sale line: %w", err)
	}
	return nil
}

// ListSales returns sale headers matching the filter, newest first.
func (r *SaleRepo) ListSales(ctx context.Context, filter sales.SaleFilter) ([]*sales.Sale, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("created_at DESC")

	if filter.CustomerID != nil {
		q = q.Where(squirrel.Eq{"customer_id": *filter.CustomerID})
	}
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.Lt{"date": *filter.To})
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	q = q.Limit(uint64(limit))
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	return selectList(ctx, r.BaseDocumentRepo, q)
}

// CreateReturn persists a return document.
func (r *SaleRepo) CreateReturn(ctx context.Context, ret *sales.Return) error {
	sql, args, err := r.Builder().
		Insert(saleReturnTable).
		SetMap(postgres.StructToMap(ret)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert return: %w", err)
	}
	return nil
}

// ListReturnsBySale returns a sale's return documents, newest first.
func (r *SaleRepo) ListReturnsBySale(ctx context.Context, saleID id.ID) ([]*sales.Return, error) {
	sql, args, err := r.Builder().
		Select(r.returnCols...).
		From(saleReturnTable).
		Where(squirrel.Eq{"sale_id": saleID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []*sales.Return
	if err := pgxscan.Select(ctx, r.querier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list returns: %w", err)
	}
	return out, nil
}
