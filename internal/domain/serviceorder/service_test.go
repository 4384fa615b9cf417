package serviceorder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cellhub/internal/core/apperror"
	"cellhub/internal/core/id"
	"cellhub/internal/core/numerator"
	"cellhub/internal/core/types"
	"cellhub/internal/domain/audit"
	"cellhub/internal/domain/devices"
	"cellhub/internal/domain/ledger/stock"
)

type txStub struct{}

func (txStub) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeOrderRepo struct {
	items map[id.ID]*Order
}

func (r *fakeOrderRepo) Create(ctx context.Context, o *Order) error {
	r.items[o.ID] = o
	return nil
}

func (r *fakeOrderRepo) GetByID(ctx context.Context, orderID id.ID) (*Order, error) {
	o, ok := r.items[orderID]
	if !ok {
		return nil, apperror.NewNotFound("service order", orderID.String())
	}
	return o, nil
}

func (r *fakeOrderRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*Order, error) {
	return r.GetByID(ctx, orderID)
}

func (r *fakeOrderRepo) Update(ctx context.Context, o *Order) error {
	r.items[o.ID] = o
	return nil
}

func (r *fakeOrderRepo) List(ctx context.Context, status *Status, internal *bool) ([]*Order, error) {
	var out []*Order
	for _, o := range r.items {
		if status != nil && o.Status != *status {
			continue
		}
		if internal != nil && o.IsInternal != *internal {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *fakeOrderRepo) ListByCustomer(ctx context.Context, customerID id.ID) ([]*Order, error) {
	var out []*Order
	for _, o := range r.items {
		if o.CustomerID != nil && *o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, nil
}

type fakeDeviceRepo struct {
	devices map[id.ID]*devices.Device
}

func (r *fakeDeviceRepo) Create(ctx context.Context, d *devices.Device) error {
	r.devices[d.ID] = d
	return nil
}

func (r *fakeDeviceRepo) GetByID(ctx context.Context, deviceID id.ID) (*devices.Device, error) {
	d, ok := r.devices[deviceID]
	if !ok {
		return nil, apperror.NewNotFound("device", deviceID.String())
	}
	return d, nil
}

func (r *fakeDeviceRepo) GetForUpdate(ctx context.Context, deviceID id.ID) (*devices.Device, error) {
	return r.GetByID(ctx, deviceID)
}

func (r *fakeDeviceRepo) GetByIMEI(ctx context.Context, imei string) (*devices.Device, error) {
	for _, d := range r.devices {
		if d.IMEI == imei {
			return d, nil
		}
	}
	return nil, apperror.NewNotFound("device", imei)
}

func (r *fakeDeviceRepo) Update(ctx context.Context, d *devices.Device) error {
	r.devices[d.ID] = d
	return nil
}

func (r *fakeDeviceRepo) ListByWarehouse(ctx context.Context, warehouseID id.ID, status *devices.Status) ([]*devices.Device, error) {
	return nil, nil
}

func (r *fakeDeviceRepo) IMEIInStock(ctx context.Context, imei string) (bool, error) {
	for _, d := range r.devices {
		if d.IMEI == imei && d.Status == devices.StatusInStock {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeDeviceRepo) RelocateByIMEI(ctx context.Context, imei string, warehouseID id.ID) error {
	return nil
}

type fakeStockPoster struct {
	movements []stock.MovementInput
}

func (f *fakeStockPoster) RecordMovement(ctx context.Context, in stock.MovementInput) (*stock.Movement, error) {
	f.movements = append(f.movements, in)
	return &stock.Movement{ID: id.New()}, nil
}

type orderFixture struct {
	service *Service
	repo    *fakeOrderRepo
	devices *fakeDeviceRepo
	stock   *fakeStockPoster
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	repo := &fakeOrderRepo{items: make(map[id.ID]*Order)}
	deviceRepo := &fakeDeviceRepo{devices: make(map[id.ID]*devices.Device)}
	poster := &fakeStockPoster{}
	svc := NewService(repo, deviceRepo, poster, &numerator.MockGenerator{}, audit.Nop{}, txStub{})
	return &orderFixture{service: svc, repo: repo, devices: deviceRepo, stock: poster}
}

func (f *orderFixture) tradeInDevice(t *testing.T) *devices.Device {
	t.Helper()
	d := devices.NewDevice("350000000000001", "Samsung", "Galaxy S21", id.New(), id.New())
	d.Status = devices.StatusPendingPreparation
	d.AcquisitionType = devices.AcquisitionTradeIn
	d.AcquisitionCost = types.MustMoney("200.00")
	require.NoError(t, f.devices.Create(context.Background(), d))
	return d
}

func TestCreate_External(t *testing.T) {
	f := newOrderFixture(t)

	o, err := f.service.Create(context.Background(), CreateInput{
		CustomerID:     id.New(),
		Description:    "screen replacement",
		EstimatedValue: types.MustMoney("120.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, o.Status)
	assert.False(t, o.IsInternal)
	assert.Contains(t, o.Number, "SO-")
	require.NotNil(t, o.CustomerID)
}

func TestCreateInternal(t *testing.T) {
	f := newOrderFixture(t)
	d := f.tradeInDevice(t)
	evalID := id.New()

	o, err := f.service.CreateInternal(context.Background(), InternalInput{
		DeviceID:           d.ID,
		SourceEvaluationID: evalID,
		Description:        "Preparation of Samsung Galaxy S21",
		EstimatedValue:     types.MustMoney("200.00"),
	})
	require.NoError(t, err)
	assert.True(t, o.IsInternal)
	assert.Contains(t, o.Number, "OSI-")
	require.NotNil(t, o.SourceEvaluationID)
	assert.Equal(t, evalID, *o.SourceEvaluationID)
}

func TestUpdateStatus(t *testing.T) {
	f := newOrderFixture(t)

	o, err := f.service.Create(context.Background(), CreateInput{
		CustomerID:  id.New(),
		Description: "battery swap",
	})
	require.NoError(t, err)

	updated, err := f.service.UpdateStatus(context.Background(), o.ID, StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, updated.Status)

	// Completion goes through its own operation.
	_, err = f.service.UpdateStatus(context.Background(), o.ID, StatusCompleted)
	assertOrderCode(t, err, apperror.CodeValidation)

	_, err = f.service.UpdateStatus(context.Background(), o.ID, StatusBilled)
	assertOrderCode(t, err, apperror.CodeValidation)
}

func TestComplete_External(t *testing.T) {
	f := newOrderFixture(t)

	o, err := f.service.Create(context.Background(), CreateInput{
		CustomerID:  id.New(),
		Description: "screen replacement",
	})
	require.NoError(t, err)

	completed, err := f.service.Complete(context.Background(), o.ID, CompleteInput{
		LaborCost: types.MustMoney("50.00"),
		PartsCost: types.MustMoney("80.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)
	assert.True(t, completed.TotalCost.Equal(types.MustMoney("130.00")))
	require.NotNil(t, completed.CompletedAt)
}

func TestComplete_RejectsInternalOrder(t *testing.T) {
	f := newOrderFixture(t)
	d := f.tradeInDevice(t)

	o, err := f.service.CreateInternal(context.Background(), InternalInput{
		DeviceID:           d.ID,
		SourceEvaluationID: id.New(),
		Description:        "preparation",
	})
	require.NoError(t, err)

	_, err = f.service.Complete(context.Background(), o.ID, CompleteInput{})
	assertOrderCode(t, err, apperror.CodeBusinessRule)
}

func TestCompletePreparation(t *testing.T) {
	f := newOrderFixture(t)
	d := f.tradeInDevice(t)

	o, err := f.service.CreateInternal(context.Background(), InternalInput{
		DeviceID:           d.ID,
		SourceEvaluationID: id.New(),
		Description:        "preparation",
		EstimatedValue:     types.MustMoney("200.00"),
	})
	require.NoError(t, err)

	completed, err := f.service.CompletePreparation(context.Background(), o.ID, PreparationInput{
		LaborCost:    types.MustMoney("30.00"),
		PartsCost:    types.MustMoney("45.00"),
		SellingPrice: types.MustMoney("399.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)

	// Total cost folds acquisition plus preparation.
	assert.True(t, completed.TotalCost.Equal(types.MustMoney("275.00")))

	released := f.devices.devices[d.ID]
	assert.Equal(t, devices.StatusInStock, released.Status)
	assert.True(t, released.SellingPrice.Equal(types.MustMoney("399.00")))
	assert.True(t, released.PurchasePrice.Equal(types.MustMoney("275.00")))

	// Exactly one entry movement carrying the device serial.
	require.Len(t, f.stock.movements, 1)
	mv := f.stock.movements[0]
	assert.Equal(t, stock.MovementEntry, mv.MovementType)
	assert.Equal(t, stock.OperationTradeIn, mv.OperationType)
	assert.Equal(t, types.One, mv.Quantity)
	require.Len(t, mv.Serials, 1)
	assert.Equal(t, "350000000000001", mv.Serials[0].IMEI)
	require.NotNil(t, mv.UnitCost)
	assert.True(t, mv.UnitCost.Equal(types.MustMoney("275.00")))
	assert.Equal(t, o.Number, mv.ReferenceNumber)
}

func TestCompletePreparation_Guards(t *testing.T) {
	f := newOrderFixture(t)
	d := f.tradeInDevice(t)

	o, err := f.service.CreateInternal(context.Background(), InternalInput{
		DeviceID:           d.ID,
		SourceEvaluationID: id.New(),
		Description:        "preparation",
	})
	require.NoError(t, err)

	in := PreparationInput{
		LaborCost:    types.MustMoney("10.00"),
		PartsCost:    types.MustMoney("10.00"),
		SellingPrice: types.MustMoney("100.00"),
	}

	t.Run("selling price must be positive", func(t *testing.T) {
		bad := in
		bad.SellingPrice = types.MustMoney("0")
		_, err := f.service.CompletePreparation(context.Background(), o.ID, bad)
		assertOrderCode(t, err, apperror.CodeValidation)
	})

	t.Run("external order rejected", func(t *testing.T) {
		ext, err := f.service.Create(context.Background(), CreateInput{
			CustomerID:  id.New(),
			Description: "repair",
		})
		require.NoError(t, err)
		_, err = f.service.CompletePreparation(context.Background(), ext.ID, in)
		assertOrderCode(t, err, apperror.CodeBusinessRule)
	})

	t.Run("device must be pending preparation", func(t *testing.T) {
		f.devices.devices[d.ID].Status = devices.StatusInStock
		_, err := f.service.CompletePreparation(context.Background(), o.ID, in)
		assertOrderCode(t, err, apperror.CodeInvalidTransition)
		f.devices.devices[d.ID].Status = devices.StatusPendingPreparation
	})

	t.Run("completes once", func(t *testing.T) {
		_, err := f.service.CompletePreparation(context.Background(), o.ID, in)
		require.NoError(t, err)
		_, err = f.service.CompletePreparation(context.Background(), o.ID, in)
		assertOrderCode(t, err, apperror.CodeInvalidTransition)
	})
}

func TestMarkBilledAndReopen(t *testing.T) {
	f := newOrderFixture(t)

	o, err := f.service.Create(context.Background(), CreateInput{
		CustomerID:  id.New(),
		Description: "repair",
	})
	require.NoError(t, err)

	// An open order is not billable.
	_, err = f.service.MarkBilled(context.Background(), o.ID)
	assertOrderCode(t, err, apperror.CodeBusinessRule)

	_, err = f.service.Complete(context.Background(), o.ID, CompleteInput{
		LaborCost: types.MustMoney("40.00"),
	})
	require.NoError(t, err)

	billed, err := f.service.MarkBilled(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusBilled, billed.Status)
	require.NotNil(t, billed.BilledAt)

	// Billing twice fails.
	_, err = f.service.MarkBilled(context.Background(), o.ID)
	assertOrderCode(t, err, apperror.CodeBusinessRule)

	reopened, err := f.service.ReopenBilled(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, reopened.Status)
	assert.Nil(t, reopened.BilledAt)

	// Reopening a non-billed order fails.
	_, err = f.service.ReopenBilled(context.Background(), o.ID)
	assertOrderCode(t, err, apperror.CodeInvalidTransition)
}

func assertOrderCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}
