// Package ledger_repo provides PostgreSQL implementations for the stock and
// credit ledger repositories.
package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"cellhub/internal/core/apperror"
	"cellhub/internal/core/id"
	"cellhub/internal/core/types"
	"cellhub/internal/domain/ledger/stock"
	"cellhub/internal/infrastructure/storage/postgres"
)

const (
	movementTable      = "reg_stock_movements"
	balanceTable       = "reg_stock_balances"
	transferTable      = "doc_stock_transfers"
	transferLinesTable = "doc_stock_transfer_lines"
)

// StockRepo implements stock.Repository.
type StockRepo struct {
	txManager    *postgres.TxManager
	movementCols []string
	balanceCols  []string
	transferCols []string
	lineCols     []string
}

var _ stock.Repository = (*StockRepo)(nil)

// NewStockRepo creates a stock ledger repository.
func NewStockRepo(txManager *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txManager:    txManager,
		movementCols: postgres.ExtractDBColumns[stock.Movement](),
		balanceCols:  postgres.ExtractDBColumns[stock.WarehouseStock](),
		transferCols: postgres.ExtractDBColumns[stock.Transfer](),
		lineCols:     postgres.ExtractDBColumns[stock.TransferItem](),
	}
}

func (r *StockRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *StockRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// CreateMovement appends one journal line. The table has no UPDATE or
// DELETE path anywhere in the codebase.
func (r *StockRepo) CreateMovement(ctx context.Context, m *stock.Movement) error {
	sql, args, err := r.builder().
		Insert(movementTable).
		SetMap(postgres.StructToMap(m)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

// ListMovements returns journal lines matching the filter, newest first.
func (r *StockRepo) ListMovements(ctx context.Context, filter stock.MovementFilter) ([]*stock.Movement, error) {
	q := r.builder().
		Select(r.movementCols...).
		From(movementTable).
		OrderBy("created_at DESC")

	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.MovementType != nil {
		q = q.Where(squirrel.Eq{"movement_type": *filter.MovementType})
	}
	if filter.OperationType != nil {
		q = q.Where(squirrel.Eq{"operation_type": *filter.OperationType})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.Lt{"created_at": *filter.To})
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	q = q.Limit(uint64(limit))
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []*stock.Movement
	if err := pgxscan.Select(ctx, r.querier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return out, nil
}

// GetStock returns the balance row, or a zero row when the product never
// moved at the warehouse.
func (r *StockRepo) GetStock(ctx context.Context, warehouseID, productID id.ID) (*stock.WarehouseStock, error) {
	sql, args, err := r.builder().
		Select(r.balanceCols...).
		From(balanceTable).
		Where(squirrel.Eq{"warehouse_id": warehouseID, "product_id": productID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	s := &stock.WarehouseStock{}
	if err := pgxscan.Get(ctx, r.querier(ctx), s, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return &stock.WarehouseStock{
				WarehouseID: warehouseID,
				ProductID:   productID,
			}, nil
		}
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return s, nil
}

// GetStockForUpdate locks the balance row, inserting it at zero first if the
// pair never moved. Concurrent inserts race on the unique
// (warehouse_id, product_id) index; ON CONFLICT DO NOTHING makes the loser
// fall through to the lock.
func (r *StockRepo) GetStockForUpdate(ctx context.Context, warehouseID, productID id.ID) (*stock.WarehouseStock, error) {
	insertSQL := `
		INSERT INTO reg_stock_balances (
			id, warehouse_id, product_id,
			quantity, reserved_quantity, available_quantity, updated_at
		) VALUES ($1, $2, $3, 0, 0, 0, $4)
		ON CONFLICT (warehouse_id, product_id) DO NOTHING
	`
	if _, err := r.querier(ctx).Exec(ctx, insertSQL,
		id.New(), warehouseID, productID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("ensure stock row: %w", err)
	}

	sql, args, err := r.builder().
		Select(r.balanceCols...).
		From(balanceTable).
		Where(squirrel.Eq{"warehouse_id": warehouseID, "product_id": productID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	s := &stock.WarehouseStock{}
	if err := pgxscan.Get(ctx, r.querier(ctx), s, sql, args...); err != nil {
		return nil, fmt.Errorf("lock stock row: %w", err)
	}
	return s, nil
}

// SaveStock writes the balance row back. Callers hold the row lock, so a
// plain UPDATE by id is safe.
func (r *StockRepo) SaveStock(ctx context.Context, s *stock.WarehouseStock) error {
	data := postgres.StructToMap(s)
	delete(data, "id")

	sql, args, err := r.builder().
		Update(balanceTable).
		SetMap(data).
		Where(squirrel.Eq{"id": s.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("save stock: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("stock balance", s.ID.String())
	}
	return nil
}

// ListStockByWarehouse returns all non-zero balance rows for a warehouse.
func (r *StockRepo) ListStockByWarehouse(ctx context.Context, warehouseID id.ID) ([]*stock.WarehouseStock, error) {
	sql, args, err := r.builder().
		Select(r.balanceCols...).
		From(balanceTable).
		Where(squirrel.Eq{"warehouse_id": warehouseID}).
		Where(squirrel.Or{
			squirrel.NotEq{"quantity": 0},
			squirrel.NotEq{"reserved_quantity": 0},
		}).
		OrderBy("product_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []*stock.WarehouseStock
	if err := pgxscan.Select(ctx, r.querier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	return out, nil
}

// FoldMovements replays the journal for one pair and returns the signed sum.
func (r *StockRepo) FoldMovements(ctx context.Context, warehouseID, productID id.ID) (types.Quantity, error) {
	sql := `
		SELECT COALESCE(SUM(
			CASE WHEN movement_type IN ('entry', 'transfer_in')
			     THEN quantity ELSE -quantity END
		), 0)
		FROM reg_stock_movements
		WHERE warehouse_id = $1 AND product_id = $2
	`
	var folded int64
	if err := r.querier(ctx).QueryRow(ctx, sql, warehouseID, productID).Scan(&folded); err != nil {
		return 0, fmt.Errorf("fold movements: %w", err)
	}
	return types.NewQuantityFromInt64Scaled(folded), nil
}

// CreateTransfer persists a transfer document with its lines.
func (r *StockRepo) CreateTransfer(ctx context.Context, t *stock.Transfer) error {
	sql, args, err := r.builder().
		Insert(transferTable).
		SetMap(postgres.StructToMap(t)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}

	for i := range t.Items {
		sql, args, err := r.builder().
			Insert(transferLinesTable).
			SetMap(postgres.StructToMap(&t.Items[i])).
			ToSql()
		if err != nil {
			return fmt.Errorf("build line insert: %w", err)
		}
		if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert transfer line: %w", err)
		}
	}
	return nil
}

func (r *StockRepo) loadTransfer(ctx context.Context, q squirrel.SelectBuilder, transferID id.ID) (*stock.Transfer, error) {
	sql, args, err := q.Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	t := &stock.Transfer{}
	if err := pgxscan.Get(ctx, r.querier(ctx), t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("transfer", transferID.String())
		}
		return nil, fmt.Errorf("get transfer: %w", err)
	}

	lineSQL, lineArgs, err := r.builder().
		Select(r.lineCols...).
		From(transferLinesTable).
		Where(squirrel.Eq{"transfer_id": t.ID}).
		OrderBy("product_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}
	var items []stock.TransferItem
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, lineSQL, lineArgs...); err != nil {
		return nil, fmt.Errorf("get transfer lines: %w", err)
	}
	t.Items = items
	return t, nil
}

// GetTransfer loads a transfer with its lines.
func (r *StockRepo) GetTransfer(ctx context.Context, transferID id.ID) (*stock.Transfer, error) {
	return r.loadTransfer(ctx, r.builder().
		Select(r.transferCols...).
		From(transferTable).
		Where(squirrel.Eq{"id": transferID}), transferID)
}

// GetTransferForUpdate loads a transfer, locking the document row.
func (r *StockRepo) GetTransferForUpdate(ctx context.Context, transferID id.ID) (*stock.Transfer, error) {
	return r.loadTransfer(ctx, r.builder().
		Select(r.transferCols...).
		From(transferTable).
		Where(squirrel.Eq{"id": transferID}).
		Suffix("FOR UPDATE"), transferID)
}

// UpdateTransfer writes back the transfer header with optimistic locking.
func (r *StockRepo) UpdateTransfer(ctx context.Context, t *stock.Transfer) error {
	data := postgres.StructToMap(t)
	version := data["version"].(int)
	delete(data, "id")
	delete(data, "version")

	sql, args, err := r.builder().
		Update(transferTable).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": t.ID}).
		Where(squirrel.Eq{"version": version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("transfer", t.ID)
	}
	return nil
}

// ListTransfers returns transfers touching the warehouse, newest first.
func (r *StockRepo) ListTransfers(ctx context.Context, warehouseID id.ID, status *stock.TransferStatus) ([]*stock.Transfer, error) {
	q := r.builder().
		Select(r.transferCols...).
		From(transferTable).
		Where(squirrel.Or{
			squirrel.Eq{"source_warehouse_id": warehouseID},
			squirrel.Eq{"dest_warehouse_id": warehouseID},
		}).
		OrderBy("created_at DESC")
	if status != nil {
		q = q.Where(squirrel.Eq{"status": *status})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []*stock.Transfer
	if err := pgxscan.Select(ctx, r.querier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return out, nil
}
