package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"cellhub/internal/core/apperror"
	"cellhub/internal/core/id"
	"cellhub/internal/domain/devices"
	"cellhub/internal/infrastructure/storage/postgres"
)

const deviceTable = "reg_devices"

// DeviceRepo implements devices.Repository. Devices are not catalogs (no
// code column), so this one does not embed the base repo.
type DeviceRepo struct {
	txManager  *postgres.TxManager
	selectCols []string
}

var _ devices.Repository = (*DeviceRepo)(nil)

// NewDeviceRepo creates a device repository.
func NewDeviceRepo(txManager *postgres.TxManager) *DeviceRepo {
	return &DeviceRepo{
		txManager:  txManager,
		selectCols: postgres.ExtractDBColumns[devices.Device](),
	}
}

func (r *DeviceRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *DeviceRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder().Select(r.selectCols...).From(deviceTable)
}

// Create inserts a device record.
func (r *DeviceRepo) Create(ctx context.Context, d *devices.Device) error {
	data := postgres.StructToMap(d)
	sql, args, err := r.builder().
		Insert(deviceTable).
		SetMap(data).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert device: %w", err)
	}
	return nil
}

func (r *DeviceRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key any) (*devices.Device, error) {
	sql, args, err := q.Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	d := &devices.Device{}
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), d, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("device", key)
		}
		return nil, fmt.Errorf("get device: %w", err)
	}
	return d, nil
}

// GetByID retrieves a device.
func (r *DeviceRepo) GetByID(ctx context.Context, deviceID id.ID) (*devices.Device, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": deviceID}), deviceID)
}

// GetForUpdate retrieves a device with a row lock.
func (r *DeviceRepo) GetForUpdate(ctx context.Context, deviceID id.ID) (*devices.Device, error) {
	return r.getOne(ctx, r.baseSelect().
		Where(squirrel.Eq{"id": deviceID}).
		Suffix("FOR UPDATE"), deviceID)
}

// GetByIMEI retrieves a device by primary IMEI, preferring the in-stock
// record when the IMEI has history.
func (r *DeviceRepo) GetByIMEI(ctx context.Context, imei string) (*devices.Device, error) {
	return r.getOne(ctx, r.baseSelect().
		Where(squirrel.Eq{"imei": imei}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy(fmt.Sprintf("status = '%s' DESC", devices.StatusInStock), "version DESC"), imei)
}

// Update writes back a device with optimistic locking.
func (r *DeviceRepo) Update(ctx context.Context, d *devices.Device) error {
	data := postgres.StructToMap(d)
	version := data["version"].(int)
	delete(data, "id")
	delete(data, "version")

	sql, args, err := r.builder().
		Update(deviceTable).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": d.ID}).
		Where(squirrel.Eq{"version": version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update device: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("device", d.ID)
	}
	return nil
}

// ListByWarehouse returns devices in a warehouse, optionally by status.
func (r *DeviceRepo) ListByWarehouse(ctx context.Context, warehouseID id.ID, status *devices.Status) ([]*devices.Device, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"warehouse_id": warehouseID}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("brand", "model", "imei")
	if status != nil {
		q = q.Where(squirrel.Eq{"status": *status})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []*devices.Device
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return out, nil
}

// IMEIInStock reports whether any device with this IMEI is currently held
// by the business (in stock or awaiting preparation).
func (r *DeviceRepo) IMEIInStock(ctx context.Context, imei string) (bool, error) {
	sql, args, err := r.builder().
		Select("1").
		From(deviceTable).
		Where(squirrel.Or{
			squirrel.Eq{"imei": imei},
			squirrel.Eq{"imei2": imei},
		}).
		Where(squirrel.Eq{"status": []devices.Status{
			devices.StatusInStock,
			devices.StatusPendingPreparation,
		}}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &one, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("check imei: %w", err)
	}
	return true, nil
}

// RelocateByIMEI moves an in-stock device to another warehouse.
func (r *DeviceRepo) RelocateByIMEI(ctx context.Context, imei string, warehouseID id.ID) error {
	sql, args, err := r.builder().
		Update(deviceTable).
		Set("warehouse_id", warehouseID).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"imei": imei}).
		Where(squirrel.Eq{"status": devices.StatusInStock}).
		Where(squirrel.Eq{"deletion_mark": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("relocate device: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("device in stock", imei)
	}
	return nil
}
