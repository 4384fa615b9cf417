package warehouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cellhub/internal/core/apperror"
	"cellhub/internal/core/id"
	"cellhub/internal/core/numerator"
)

type txStub struct{}

func (txStub) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeRepo struct {
	items        map[id.ID]*Warehouse
	hasMovements map[id.ID]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		items:        make(map[id.ID]*Warehouse),
		hasMovements: make(map[id.ID]bool),
	}
}

func (r *fakeRepo) Create(ctx context.Context, wh *Warehouse) error {
	r.items[wh.ID] = wh
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, whID id.ID) (*Warehouse, error) {
	wh, ok := r.items[whID]
	if !ok {
		return nil, apperror.NewNotFound("warehouse", whID.String())
	}
	return wh, nil
}

func (r *fakeRepo) GetByCode(ctx context.Context, code string) (*Warehouse, error) {
	for _, wh := range r.items {
		if wh.Code == code {
			return wh, nil
		}
	}
	return nil, apperror.NewNotFound("warehouse", code)
}

func (r *fakeRepo) GetDefault(ctx context.Context) (*Warehouse, error) {
	for _, wh := range r.items {
		if wh.IsDefault {
			return wh, nil
		}
	}
	return nil, apperror.NewNotFound("warehouse", "default")
}

func (r *fakeRepo) Update(ctx context.Context, wh *Warehouse) error {
	r.items[wh.ID] = wh
	return nil
}

func (r *fakeRepo) List(ctx context.Context, includeInactive bool) ([]*Warehouse, error) {
	var out []*Warehouse
	for _, wh := range r.items {
		if !includeInactive && !wh.IsActive {
			continue
		}
		out = append(out, wh)
	}
	return out, nil
}

func (r *fakeRepo) ClearDefault(ctx context.Context) error {
	for _, wh := range r.items {
		wh.IsDefault = false
	}
	return nil
}

func (r *fakeRepo) HasMovements(ctx context.Context, whID id.ID) (bool, error) {
	return r.hasMovements[whID], nil
}

func newTestService() (*Service, *fakeRepo) {
	repo := newFakeRepo()
	return NewService(repo, &numerator.MockGenerator{}, txStub{}), repo
}

func TestCreate(t *testing.T) {
	svc, repo := newTestService()

	wh := NewWarehouse("WH-001", "Main store", TypeStore)
	require.NoError(t, svc.Create(context.Background(), wh))
	assert.Contains(t, repo.items, wh.ID)
	assert.True(t, wh.IsActive)
}

func TestCreate_GeneratesCode(t *testing.T) {
	svc, _ := newTestService()

	wh := NewWarehouse("", "Depot", TypeCentral)
	require.NoError(t, svc.Create(context.Background(), wh))
	assert.Contains(t, wh.Code, "WH-")
}

func TestCreate_DuplicateCode(t *testing.T) {
	svc, _ := newTestService()

	first := NewWarehouse("WH-001", "Main store", TypeStore)
	require.NoError(t, svc.Create(context.Background(), first))

	dup := NewWarehouse("WH-001", "Second store", TypeStore)
	err := svc.Create(context.Background(), dup)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeDuplicate, appErr.Code)
}

func TestCreate_SingleDefault(t *testing.T) {
	svc, repo := newTestService()

	first := NewWarehouse("WH-001", "Main store", TypeStore)
	first.IsDefault = true
	require.NoError(t, svc.Create(context.Background(), first))

	second := NewWarehouse("WH-002", "Depot", TypeCentral)
	second.IsDefault = true
	require.NoError(t, svc.Create(context.Background(), second))

	assert.False(t, repo.items[first.ID].IsDefault)
	assert.True(t, repo.items[second.ID].IsDefault)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService()

	err := svc.Create(context.Background(), NewWarehouse("WH-003", "", TypeStore))
	require.Error(t, err)

	err = svc.Create(context.Background(), NewWarehouse("WH-003", "Odd", WarehouseType("floating")))
	require.Error(t, err)
}

func TestDeactivate(t *testing.T) {
	svc, repo := newTestService()

	wh := NewWarehouse("WH-001", "Main store", TypeStore)
	wh.IsDefault = true
	require.NoError(t, svc.Create(context.Background(), wh))

	require.NoError(t, svc.Deactivate(context.Background(), wh.ID))
	stored := repo.items[wh.ID]
	assert.False(t, stored.IsActive)
	assert.False(t, stored.IsDefault)

	// Deactivated warehouses cannot move stock.
	assert.False(t, stored.CanAcceptStock())
	assert.False(t, stored.CanIssueStock())

	list, err := svc.List(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, list)
}
