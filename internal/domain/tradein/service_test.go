package tradein

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
	"cellhub/internal/domain/ledger/credit"
	"cellhub/internal/domain/serviceorder"
)

type txStub struct{}

func (txStub) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeEvaluationRepo struct {
	items map[id.ID]*Evaluation
}

func (r *fakeEvaluationRepo) Create(ctx context.Context, e *Evaluation) error {
	r.items[e.ID] = e
	return nil
}

func (r *fakeEvaluationRepo) GetByID(ctx context.Context, evalID id.ID) (*Evaluation, error) {
	e, ok := r.items[evalID]
	if !ok {
		return nil, apperror.NewNotFound("evaluation", evalID.String())
	}
	return e, nil
}

func (r *fakeEvaluationRepo) GetForUpdate(ctx context.Context, evalID id.ID) (*Evaluation, error) {
	return r.GetByID(ctx, evalID)
}

func (r *fakeEvaluationRepo) Update(ctx context.Context, e *Evaluation) error {
	r.items[e.ID] = e
	return nil
}

func (r *fakeEvaluationRepo) List(ctx context.Context, status *Status) ([]*Evaluation, error) {
	var out []*Evaluation
	for _, e := range r.items {
		if status != nil && e.Status != *status {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *fakeEvaluationRepo) ListByCustomer(ctx context.Context, customerID id.ID) ([]*Evaluation, error) {
	var out []*Evaluation
	for _, e := range r.items {
		if e.CustomerID == customerID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeDeviceRepo struct {
	devices map[id.ID]*devices.Device
	inStock map[string]bool
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
	return r.inStock[imei], nil
}

func (r *fakeDeviceRepo) RelocateByIMEI(ctx context.Context, imei string, warehouseID id.ID) error {
	return nil
}

type fakeOrders struct {
	created []*serviceorder.Order
	failErr error
}

func (f *fakeOrders) CreateInternal(ctx context.Context, in serviceorder.InternalInput) (*serviceorder.Order, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	o := serviceorder.NewOrder()
	o.DeviceID = &in.DeviceID
	o.SourceEvaluationID = &in.SourceEvaluationID
	o.IsInternal = true
	o.Description = in.Description
	o.EstimatedValue = in.EstimatedValue
	f.created = append(f.created, o)
	return o, nil
}

type fakeCredits struct {
	granted []*credit.CustomerCredit
}

func (f *fakeCredits) Grant(ctx context.Context, in credit.GrantInput) (*credit.CustomerCredit, error) {
	c := credit.NewCustomerCredit(in.PersonID, in.Origin, in.Amount)
	c.SourceID = in.SourceID
	c.SourceNumber = in.SourceNumber
	f.granted = append(f.granted, c)
	return c, nil
}

type tradeinFixture struct {
	service *Service
	repo    *fakeEvaluationRepo
	devices *fakeDeviceRepo
	orders  *fakeOrders
	credits *fakeCredits
}

func newTradeinFixture(t *testing.T) *tradeinFixture {
	t.Helper()
	repo := &fakeEvaluationRepo{items: make(map[id.ID]*Evaluation)}
	deviceRepo := &fakeDeviceRepo{
		devices: make(map[id.ID]*devices.Device),
		inStock: make(map[string]bool),
	}
	orders := &fakeOrders{}
	credits := &fakeCredits{}
	svc := NewService(repo, deviceRepo, orders, credits, &numerator.MockGenerator{}, audit.Nop{}, txStub{})
	return &tradeinFixture{service: svc, repo: repo, devices: deviceRepo, orders: orders, credits: credits}
}

func (f *tradeinFixture) createPending(t *testing.T, imei string) *Evaluation {
	t.Helper()
	e, err := f.service.Create(context.Background(), CreateInput{
		CustomerID: id.New(),
		IMEI:       imei,
		Brand:      "Samsung",
		Model:      "Galaxy S21",
	})
	require.NoError(t, err)
	return e
}

func (f *tradeinFixture) analyzed(t *testing.T, imei, estimate string) *Evaluation {
	t.Helper()
	e := f.createPending(t, imei)
	e, err := f.service.StartAnalysis(context.Background(), e.ID, AnalysisInput{
		Checklist: []ChecklistItem{
			{Item: "screen", Passed: true},
			{Item: "battery", Passed: true},
		},
		EstimatedValue: types.MustMoney(estimate),
	})
	require.NoError(t, err)
	return e
}

func TestCreate(t *testing.T) {
	f := newTradeinFixture(t)

	e := f.createPending(t, "350000000000001")
	assert.Equal(t, StatusPending, e.Status)
	assert.Contains(t, e.Number, "AV-")
}

func TestCreate_RejectsInStockIMEI(t *testing.T) {
	f := newTradeinFixture(t)
	f.devices.inStock["350000000000002"] = true

	_, err := f.service.Create(context.Background(), CreateInput{
		CustomerID: id.New(),
		IMEI:       "350000000000002",
		Brand:      "Apple",
		Model:      "iPhone 13",
	})
	assertTradeinCode(t, err, apperror.CodeDuplicateIMEI)
}

func TestCreate_Validation(t *testing.T) {
	f := newTradeinFixture(t)

	_, err := f.service.Create(context.Background(), CreateInput{
		CustomerID: id.New(),
		IMEI:       "350000000000003",
		Brand:      "Apple",
	})
	assertTradeinCode(t, err, apperror.CodeValidation)
}

func TestStartAnalysis(t *testing.T) {
	f := newTradeinFixture(t)
	e := f.createPending(t, "350000000000004")

	updated, err := f.service.StartAnalysis(context.Background(), e.ID, AnalysisInput{
		Checklist:      []ChecklistItem{{Item: "screen", Passed: false, Notes: "cracked corner"}},
		EstimatedValue: types.MustMoney("180.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusInAnalysis, updated.Status)
	require.Len(t, updated.Checklist, 1)
	assert.True(t, updated.EstimatedValue.Equal(types.MustMoney("180.00")))

	// Repeating the transition is rejected.
	_, err = f.service.StartAnalysis(context.Background(), e.ID, AnalysisInput{
		EstimatedValue: types.MustMoney("200.00"),
	})
	assertTradeinCode(t, err, apperror.CodeInvalidTransition)
}

func TestApprove(t *testing.T) {
	f := newTradeinFixture(t)
	e := f.analyzed(t, "350000000000005", "250.00")

	productID := id.New()
	warehouseID := id.New()
	approved, err := f.service.Approve(context.Background(), e.ID, ApproveInput{
		ProductID:   productID,
		WarehouseID: warehouseID,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)

	// Device created in pending_preparation, not sellable yet.
	require.NotNil(t, approved.DeviceID)
	d := f.devices.devices[*approved.DeviceID]
	require.NotNil(t, d)
	assert.Equal(t, devices.StatusPendingPreparation, d.Status)
	assert.Equal(t, devices.AcquisitionTradeIn, d.AcquisitionType)
	assert.Equal(t, "350000000000005", d.IMEI)
	assert.Equal(t, warehouseID, d.WarehouseID)
	assert.True(t, d.AcquisitionCost.Equal(types.MustMoney("250.00")))
	require.NotNil(t, d.SourceEvaluationID)
	assert.Equal(t, e.ID, *d.SourceEvaluationID)

	// Internal preparation order opened for the device.
	require.Len(t, f.orders.created, 1)
	order := f.orders.created[0]
	assert.True(t, order.IsInternal)
	require.NotNil(t, approved.PreparationOrderID)
	assert.Equal(t, order.ID, *approved.PreparationOrderID)

	// Customer got a trade-in credit for the estimate.
	require.Len(t, f.credits.granted, 1)
	granted := f.credits.granted[0]
	assert.Equal(t, credit.OriginTradeIn, granted.Origin)
	assert.True(t, granted.Amount.Equal(types.MustMoney("250.00")))
	assert.Equal(t, e.CustomerID, granted.PersonID)
	require.NotNil(t, approved.CreditID)
	assert.Equal(t, granted.ID, *approved.CreditID)
}

func TestApprove_ValueOverride(t *testing.T) {
	f := newTradeinFixture(t)
	e := f.analyzed(t, "350000000000006", "250.00")

	override := types.MustMoney("199.90")
	approved, err := f.service.Approve(context.Background(), e.ID, ApproveInput{
		ProductID:      id.New(),
		WarehouseID:    id.New(),
		EstimatedValue: &override,
	})
	require.NoError(t, err)
	assert.True(t, approved.EstimatedValue.Equal(override))
	assert.True(t, f.credits.granted[0].Amount.Equal(override))
}

func TestApprove_RequiresAnalysis(t *testing.T) {
	f := newTradeinFixture(t)
	e := f.createPending(t, "350000000000007")

	_, err := f.service.Approve(context.Background(), e.ID, ApproveInput{
		ProductID:   id.New(),
		WarehouseID: id.New(),
	})
	assertTradeinCode(t, err, apperror.CodeInvalidTransition)
}

func TestApprove_ZeroValueSkipsCredit(t *testing.T) {
	f := newTradeinFixture(t)
	e := f.analyzed(t, "350000000000008", "0")

	approved, err := f.service.Approve(context.Background(), e.ID, ApproveInput{
		ProductID:   id.New(),
		WarehouseID: id.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)

	// The device still comes in and gets prepared; only the credit is skipped.
	require.NotNil(t, approved.DeviceID)
	require.NotNil(t, approved.PreparationOrderID)
	assert.Nil(t, approved.CreditID)
	assert.Empty(t, f.credits.granted)
}

func TestApprove_RejectsNegativeValue(t *testing.T) {
	f := newTradeinFixture(t)
	e := f.analyzed(t, "350000000000012", "50.00")

	override := types.MustMoney("-10.00")
	_, err := f.service.Approve(context.Background(), e.ID, ApproveInput{
		ProductID:      id.New(),
		WarehouseID:    id.New(),
		EstimatedValue: &override,
	})
	assertTradeinCode(t, err, apperror.CodeValidation)
}

func TestApprove_OrderFailureGrantsNothing(t *testing.T) {
	f := newTradeinFixture(t)
	e := f.analyzed(t, "350000000000013", "150.00")
	f.orders.failErr = apperror.NewBusinessRule(apperror.CodeBusinessRule, "order numbering unavailable")

	_, err := f.service.Approve(context.Background(), e.ID, ApproveInput{
		ProductID:   id.New(),
		WarehouseID: id.New(),
	})
	require.Error(t, err)

	current, getErr := f.repo.GetByID(context.Background(), e.ID)
	require.NoError(t, getErr)
	assert.Equal(t, StatusInAnalysis, current.Status)
	assert.Nil(t, current.DeviceID)
	assert.Empty(t, f.credits.granted)
}

func TestApprove_RejectsIMEINowInStock(t *testing.T) {
	f := newTradeinFixture(t)
	e := f.analyzed(t, "350000000000009", "100.00")

	// The same IMEI entered stock between analysis and approval.
	f.devices.inStock["350000000000009"] = true

	_, err := f.service.Approve(context.Background(), e.ID, ApproveInput{
		ProductID:   id.New(),
		WarehouseID: id.New(),
	})
	assertTradeinCode(t, err, apperror.CodeDuplicateIMEI)
	assert.Empty(t, f.credits.granted)
	assert.Empty(t, f.orders.created)
}

func TestReject(t *testing.T) {
	f := newTradeinFixture(t)
	e := f.analyzed(t, "350000000000010", "90.00")

	rejected, err := f.service.Reject(context.Background(), e.ID, "motherboard damage")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Equal(t, "motherboard damage", rejected.RejectionReason)

	// Terminal: cannot approve a rejected evaluation.
	_, err = f.service.Approve(context.Background(), e.ID, ApproveInput{
		ProductID:   id.New(),
		WarehouseID: id.New(),
	})
	assertTradeinCode(t, err, apperror.CodeInvalidTransition)
}

func TestReject_RequiresReason(t *testing.T) {
	f := newTradeinFixture(t)
	e := f.analyzed(t, "350000000000011", "90.00")

	_, err := f.service.Reject(context.Background(), e.ID, "")
	assertTradeinCode(t, err, apperror.CodeValidation)
}

func assertTradeinCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}
