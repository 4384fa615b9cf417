package devices

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cellhub/internal/core/apperror"
	"cellhub/internal/core/id"
	"cellhub/internal/core/types"
)

type txStub struct{}

func (txStub) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeRepo struct {
	devices map[id.ID]*Device
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{devices: make(map[id.ID]*Device)}
}

func (r *fakeRepo) Create(ctx context.Context, d *Device) error {
	r.devices[d.ID] = d
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, deviceID id.ID) (*Device, error) {
	d, ok := r.devices[deviceID]
	if !ok {
		return nil, apperror.NewNotFound("device", deviceID.String())
	}
	return d, nil
}

func (r *fakeRepo) GetForUpdate(ctx context.Context, deviceID id.ID) (*Device, error) {
	return r.GetByID(ctx, deviceID)
}

func (r *fakeRepo) GetByIMEI(ctx context.Context, imei string) (*Device, error) {
	for _, d := range r.devices {
		if d.IMEI == imei {
			return d, nil
		}
	}
	return nil, apperror.NewNotFound("device", imei)
}

func (r *fakeRepo) Update(ctx context.Context, d *Device) error {
	r.devices[d.ID] = d
	return nil
}

func (r *fakeRepo) ListByWarehouse(ctx context.Context, warehouseID id.ID, status *Status) ([]*Device, error) {
	var out []*Device
	for _, d := range r.devices {
		if d.WarehouseID != warehouseID {
			continue
		}
		if status != nil && d.Status != *status {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *fakeRepo) IMEIInStock(ctx context.Context, imei string) (bool, error) {
	for _, d := range r.devices {
		if d.IMEI == imei && d.Status == StatusInStock {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) RelocateByIMEI(ctx context.Context, imei string, warehouseID id.ID) error {
	for _, d := range r.devices {
		if d.IMEI == imei && d.Status == StatusInStock {
			d.WarehouseID = warehouseID
			return nil
		}
	}
	return apperror.NewNotFound("device", imei)
}

func TestRegister(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, txStub{})

	d := NewDevice("350000000000001", "Apple", "iPhone 13", id.New(), id.New())
	d.SellingPrice = types.MustMoney("899.00")

	require.NoError(t, svc.Register(context.Background(), d))
	assert.Equal(t, StatusInStock, repo.devices[d.ID].Status)
}

func TestRegister_RejectsInStockIMEI(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, txStub{})

	first := NewDevice("350000000000002", "Apple", "iPhone 13", id.New(), id.New())
	require.NoError(t, svc.Register(context.Background(), first))

	second := NewDevice("350000000000002", "Apple", "iPhone 13", id.New(), id.New())
	err := svc.Register(context.Background(), second)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeDuplicateIMEI, appErr.Code)
}

func TestRegister_AllowsSoldHistory(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, txStub{})

	sold := NewDevice("350000000000003", "Samsung", "Galaxy S21", id.New(), id.New())
	sold.Status = StatusSold
	repo.devices[sold.ID] = sold

	// The unit was sold and bought back; registering it again is legal.
	again := NewDevice("350000000000003", "Samsung", "Galaxy S21", id.New(), id.New())
	again.AcquisitionType = AcquisitionUsed
	require.NoError(t, svc.Register(context.Background(), again))
}

func TestRegister_Validation(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, txStub{})

	d := NewDevice("", "Apple", "iPhone 13", id.New(), id.New())
	err := svc.Register(context.Background(), d)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestUpdate_PreservesLedgerOwnedFields(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, txStub{})

	warehouseID := id.New()
	d := NewDevice("350000000000004", "Apple", "iPhone 13", id.New(), warehouseID)
	require.NoError(t, svc.Register(context.Background(), d))

	edited := *d
	edited.Color = "midnight"
	edited.SellingPrice = types.MustMoney("849.00")
	// A stale client may also send status and warehouse; both are ignored.
	edited.Status = StatusSold
	edited.WarehouseID = id.New()

	require.NoError(t, svc.Update(context.Background(), &edited))
	assert.Equal(t, StatusInStock, edited.Status)
	assert.Equal(t, warehouseID, edited.WarehouseID)
	assert.Equal(t, "midnight", repo.devices[d.ID].Color)
}

func TestUpdate_ConcurrentModification(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, txStub{})

	d := NewDevice("350000000000005", "Apple", "iPhone 13", id.New(), id.New())
	require.NoError(t, svc.Register(context.Background(), d))

	stale := *d
	stale.Version = d.Version - 1

	err := svc.Update(context.Background(), &stale)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeConcurrentModification, appErr.Code)
}

func TestGetByIMEI(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, txStub{})

	d := NewDevice("350000000000006", "Apple", "iPhone 13", id.New(), id.New())
	require.NoError(t, svc.Register(context.Background(), d))

	found, err := svc.GetByIMEI(context.Background(), "350000000000006")
	require.NoError(t, err)
	assert.Equal(t, d.ID, found.ID)

	_, err = svc.GetByIMEI(context.Background(), "")
	require.Error(t, err)
}
