package sales

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cellhub/internal/core/apperror"
	"cellhub/internal/core/id"
	"cellhub/internal/core/numerator"
	"cellhub/internal/core/types"
	"cellhub/internal/domain/audit"
	"cellhub/internal/domain/catalogs/product"
	"cellhub/internal/domain/devices"
	"cellhub/internal/domain/ledger/credit"
	"cellhub/internal/domain/ledger/stock"
	"cellhub/internal/domain/serviceorder"
)

type txStub struct{}

func (txStub) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeSaleRepo struct {
	sales   map[id.ID]*Sale
	returns []*Return
}

func (r *fakeSaleRepo) CreateSale(ctx context.Context, sale *Sale) error {
	r.sales[sale.ID] = sale
	return nil
}

func (r *fakeSaleRepo) GetSale(ctx context.Context, saleID id.ID) (*Sale, error) {
	sale, ok := r.sales[saleID]
	if !ok {
		return nil, apperror.NewNotFound("sale", saleID.String())
	}
	return sale, nil
}

func (r *fakeSaleRepo) GetSaleForUpdate(ctx context.Context, saleID id.ID) (*Sale, error) {
	return r.GetSale(ctx, saleID)
}

func (r *fakeSaleRepo) UpdateSale(ctx context.Context, sale *Sale) error {
	r.sales[sale.ID] = sale
	return nil
}

func (r *fakeSaleRepo) UpdateSaleItem(ctx context.Context, item *SaleItem) error {
	return nil
}

func (r *fakeSaleRepo) ListSales(ctx context.Context, filter SaleFilter) ([]*Sale, error) {
	var out []*Sale
	for _, sale := range r.sales {
		out = append(out, sale)
	}
	return out, nil
}

func (r *fakeSaleRepo) CreateReturn(ctx context.Context, ret *Return) error {
	r.returns = append(r.returns, ret)
	return nil
}

func (r *fakeSaleRepo) ListReturnsBySale(ctx context.Context, saleID id.ID) ([]*Return, error) {
	var out []*Return
	for _, ret := range r.returns {
		if ret.SaleID == saleID {
			out = append(out, ret)
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

type fakeProductRepo struct {
	items map[id.ID]*product.Product
}

func (r *fakeProductRepo) Create(ctx context.Context, p *product.Product) error {
	r.items[p.ID] = p
	return nil
}

func (r *fakeProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	p, ok := r.items[productID]
	if !ok {
		return nil, apperror.NewNotFound("product", productID.String())
	}
	return p, nil
}

func (r *fakeProductRepo) GetByCode(ctx context.Context, code string) (*product.Product, error) {
	for _, p := range r.items {
		if p.Code == code {
			return p, nil
		}
	}
	return nil, apperror.NewNotFound("product", code)
}

func (r *fakeProductRepo) Update(ctx context.Context, p *product.Product) error {
	r.items[p.ID] = p
	return nil
}

func (r *fakeProductRepo) List(ctx context.Context, includeInactive bool) ([]*product.Product, error) {
	return nil, nil
}

type fakeStockPoster struct {
	movements []stock.MovementInput
	failErr   error
}

func (f *fakeStockPoster) RecordMovement(ctx context.Context, in stock.MovementInput) (*stock.Movement, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	f.movements = append(f.movements, in)
	return &stock.Movement{ID: id.New()}, nil
}

type fakeCreditLedger struct {
	consumed map[id.ID]types.Money
	reversed map[id.ID]bool
	granted  []*credit.CustomerCredit

	// available caps what Consume will allow; nil means unlimited.
	available *types.Money

	// tradeInPortion reports that much of a consumption as trade-in-origin
	// credit; the rest reports as refund credit.
	tradeInPortion types.Money
}

func newFakeCreditLedger() *fakeCreditLedger {
	return &fakeCreditLedger{
		consumed: make(map[id.ID]types.Money),
		reversed: make(map[id.ID]bool),
	}
}

func (f *fakeCreditLedger) Consume(ctx context.Context, personID, saleID id.ID, amount types.Money) ([]*credit.Consumption, error) {
	if f.available != nil && amount.GreaterThan(*f.available) {
		return nil, apperror.NewInsufficientCredit(personID.String(), amount.String(), f.available.String())
	}
	f.consumed[saleID] = amount

	tradeIn := f.tradeInPortion
	if tradeIn.GreaterThan(amount) {
		tradeIn = amount
	}
	var rows []*credit.Consumption
	if tradeIn.IsPositive() {
		rows = append(rows, &credit.Consumption{
			ID: id.New(), SaleID: saleID, Amount: tradeIn, Origin: credit.OriginTradeIn,
		})
	}
	if rest := amount.Sub(tradeIn); rest.IsPositive() {
		rows = append(rows, &credit.Consumption{
			ID: id.New(), SaleID: saleID, Amount: rest, Origin: credit.OriginRefund,
		})
	}
	return rows, nil
}

func (f *fakeCreditLedger) ReverseConsumption(ctx context.Context, saleID id.ID) error {
	f.reversed[saleID] = true
	return nil
}

func (f *fakeCreditLedger) Grant(ctx context.Context, in credit.GrantInput) (*credit.CustomerCredit, error) {
	c := credit.NewCustomerCredit(in.PersonID, in.Origin, in.Amount)
	c.ExpiresAt = in.ExpiresAt
	c.SourceID = in.SourceID
	c.SourceNumber = in.SourceNumber
	f.granted = append(f.granted, c)
	return c, nil
}

type fakeOrderBilling struct {
	orders map[id.ID]*serviceorder.Order
}

func (f *fakeOrderBilling) GetByID(ctx context.Context, orderID id.ID) (*serviceorder.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, apperror.NewNotFound("service order", orderID.String())
	}
	return o, nil
}

func (f *fakeOrderBilling) MarkBilled(ctx context.Context, orderID id.ID) (*serviceorder.Order, error) {
	o, err := f.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.IsBillable() {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "service order is not billable").
			WithDetail("orderId", orderID)
	}
	o.Status = serviceorder.StatusBilled
	return o, nil
}

func (f *fakeOrderBilling) ReopenBilled(ctx context.Context, orderID id.ID) (*serviceorder.Order, error) {
	o, err := f.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != serviceorder.StatusBilled {
		return nil, apperror.NewInvalidTransition("service order", string(o.Status), string(serviceorder.StatusCompleted))
	}
	o.Status = serviceorder.StatusCompleted
	return o, nil
}

type saleFixture struct {
	service *Service
	repo    *fakeSaleRepo
	devices *fakeDeviceRepo
	stock   *fakeStockPoster
	credits *fakeCreditLedger
	orders  *fakeOrderBilling

	warehouseID id.ID
	customerID  id.ID
	device      *devices.Device
	accessory   *product.Product
}

func newSaleFixture(t *testing.T) *saleFixture {
	t.Helper()

	warehouseID := id.New()

	d := devices.NewDevice("350000000000001", "Samsung", "Galaxy S21", id.New(), warehouseID)
	d.SellingPrice = types.MustMoney("399.00")

	accessory := product.NewProduct("PRD-001", "USB-C cable", product.CategoryAccessory)
	accessory.UnitPrice = types.MustMoney("25.00")

	repo := &fakeSaleRepo{sales: make(map[id.ID]*Sale)}
	deviceRepo := &fakeDeviceRepo{devices: map[id.ID]*devices.Device{d.ID: d}}
	productRepo := &fakeProductRepo{items: map[id.ID]*product.Product{accessory.ID: accessory}}
	poster := &fakeStockPoster{}
	credits := newFakeCreditLedger()
	orders := &fakeOrderBilling{orders: make(map[id.ID]*serviceorder.Order)}

	svc := NewService(repo, deviceRepo, productRepo, poster, credits, orders,
		&numerator.MockGenerator{}, audit.Nop{}, txStub{})

	return &saleFixture{
		service:     svc,
		repo:        repo,
		devices:     deviceRepo,
		stock:       poster,
		credits:     credits,
		orders:      orders,
		warehouseID: warehouseID,
		customerID:  id.New(),
		device:      d,
		accessory:   accessory,
	}
}

func (f *saleFixture) billableOrder(total string) *serviceorder.Order {
	o := serviceorder.NewOrder()
	o.Status = serviceorder.StatusCompleted
	o.TotalCost = types.MustMoney(total)
	o.Number = "SO-2026-00001"
	f.orders.orders[o.ID] = o
	return o
}

func TestFinalizeSale_MixedCart(t *testing.T) {
	f := newSaleFixture(t)

	sale, err := f.service.FinalizeSale(context.Background(), FinalizeInput{
		CustomerID:  &f.customerID,
		WarehouseID: f.warehouseID,
		Items: []ItemInput{
			{Type: ItemDevice, DeviceID: &f.device.ID, ConfirmedIMEI: "350000000000001"},
			{Type: ItemProduct, ProductID: &f.accessory.ID, Quantity: types.NewQuantityFromUnits(2)},
		},
		DiscountAmount: types.MustMoney("9.00"),
		Payments: []PaymentInput{
			{Method: PaymentCash, Amount: types.MustMoney("400.00")},
			{Method: PaymentDebitCard, Amount: types.MustMoney("50.00")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, sale.Status)
	assert.Contains(t, sale.Number, "VD-")

	// Totals recomputed server-side: 399 + 2x25 = 449, minus 9 discount.
	assert.True(t, sale.BaseTotal.Equal(types.MustMoney("449.00")), "base %s", sale.BaseTotal)
	assert.True(t, sale.TotalAmount.Equal(types.MustMoney("440.00")), "total %s", sale.TotalAmount)
	assert.True(t, sale.ChangeAmount.Equal(types.MustMoney("10.00")), "change %s", sale.ChangeAmount)

	// Device flipped to sold and both lines left the stock ledger.
	assert.Equal(t, devices.StatusSold, f.devices.devices[f.device.ID].Status)
	require.Len(t, f.stock.movements, 2)
	assert.Equal(t, stock.MovementExit, f.stock.movements[0].MovementType)
	assert.Equal(t, stock.OperationSale, f.stock.movements[0].OperationType)
	require.Len(t, f.stock.movements[0].Serials, 1)
	assert.Equal(t, "350000000000001", f.stock.movements[0].Serials[0].IMEI)
	assert.Equal(t, types.NewQuantityFromUnits(2), f.stock.movements[1].Quantity)

	require.Len(t, sale.Items, 2)
	assert.True(t, sale.Items[0].LineTotal.Equal(types.MustMoney("399.00")))
	assert.True(t, sale.Items[1].LineTotal.Equal(types.MustMoney("50.00")))
}

func TestFinalizeSale_Underpayment(t *testing.T) {
	f := newSaleFixture(t)

	_, err := f.service.FinalizeSale(context.Background(), FinalizeInput{
		WarehouseID: f.warehouseID,
		Items: []ItemInput{
			{Type: ItemProduct, ProductID: &f.accessory.ID, Quantity: types.One},
		},
		Payments: []PaymentInput{
			{Method: PaymentCash, Amount: types.MustMoney("10.00")},
		},
	})
	assertSaleCode(t, err, apperror.CodeBusinessRule)
}

func TestFinalizeSale_CreditPayment(t *testing.T) {
	f := newSaleFixture(t)

	sale, err := f.service.FinalizeSale(context.Background(), FinalizeInput{
		CustomerID:  &f.customerID,
		WarehouseID: f.warehouseID,
		Items: []ItemInput{
			{Type: ItemDevice, DeviceID: &f.device.ID, ConfirmedIMEI: "350000000000001"},
		},
		Payments: []PaymentInput{
			{Method: PaymentCustomerCredit, Amount: types.MustMoney("100.00")},
			{Method: PaymentCash, Amount: types.MustMoney("299.00")},
		},
	})
	require.NoError(t, err)
	assert.True(t, sale.CreditApplied.Equal(types.MustMoney("100.00")))
	assert.True(t, sale.TotalAmount.Equal(types.MustMoney("299.00")))
	assert.True(t, f.credits.consumed[sale.ID].Equal(types.MustMoney("100.00")))
}

func TestFinalizeSale_SplitsTradeInValueFromCredit(t *testing.T) {
	f := newSaleFixture(t)
	f.credits.tradeInPortion = types.MustMoney("100.00")

	sale, err := f.service.FinalizeSale(context.Background(), FinalizeInput{
		CustomerID:  &f.customerID,
		WarehouseID: f.warehouseID,
		Items: []ItemInput{
			{Type: ItemDevice, DeviceID: &f.device.ID, ConfirmedIMEI: "350000000000001"},
		},
		Payments: []PaymentInput{
			{Method: PaymentCustomerCredit, Amount: types.MustMoney("150.00")},
			{Method: PaymentCash, Amount: types.MustMoney("249.00")},
		},
	})
	require.NoError(t, err)

	// 150 consumed: 100 came from a trade-in grant, 50 from other credit.
	assert.True(t, sale.TradeInValue.Equal(types.MustMoney("100.00")), "tradeIn %s", sale.TradeInValue)
	assert.True(t, sale.CreditApplied.Equal(types.MustMoney("50.00")), "credit %s", sale.CreditApplied)
	assert.True(t, sale.TotalAmount.Equal(types.MustMoney("249.00")), "total %s", sale.TotalAmount)

	// The persisted total recomputes from the stored split.
	recomputed := sale.BaseTotal.Sub(sale.DiscountAmount).Sub(sale.TradeInValue).Sub(sale.CreditApplied)
	assert.True(t, sale.TotalAmount.Equal(recomputed))
}

func TestFinalizeSale_StockFailurePostsNoSale(t *testing.T) {
	f := newSaleFixture(t)
	f.stock.failErr = apperror.NewInsufficientStock(f.accessory.ID.String(), 2, 1)

	_, err := f.service.FinalizeSale(context.Background(), FinalizeInput{
		CustomerID:  &f.customerID,
		WarehouseID: f.warehouseID,
		Items: []ItemInput{
			{Type: ItemProduct, ProductID: &f.accessory.ID, Quantity: types.NewQuantityFromUnits(2)},
		},
		Payments: []PaymentInput{
			{Method: PaymentCash, Amount: types.MustMoney("50.00")},
		},
	})
	assertSaleCode(t, err, apperror.CodeInsufficientStock)

	assert.Empty(t, f.repo.sales)
	assert.Empty(t, f.credits.consumed)
	assert.Empty(t, f.stock.movements)
}

func TestFinalizeSale_CreditGuards(t *testing.T) {
	f := newSaleFixture(t)

	t.Run("credit requires a customer", func(t *testing.T) {
		_, err := f.service.FinalizeSale(context.Background(), FinalizeInput{
			WarehouseID: f.warehouseID,
			Items: []ItemInput{
				{Type: ItemProduct, ProductID: &f.accessory.ID, Quantity: types.One},
			},
			Payments: []PaymentInput{
				{Method: PaymentCustomerCredit, Amount: types.MustMoney("25.00")},
			},
		})
		assertSaleCode(t, err, apperror.CodeValidation)
	})

	t.Run("credit cannot exceed payable", func(t *testing.T) {
		_, err := f.service.FinalizeSale(context.Background(), FinalizeInput{
			CustomerID:  &f.customerID,
			WarehouseID: f.warehouseID,
			Items: []ItemInput{
				{Type: ItemProduct, ProductID: &f.accessory.ID, Quantity: types.One},
			},
			Payments: []PaymentInput{
				{Method: PaymentCustomerCredit, Amount: types.MustMoney("30.00")},
			},
		})
		assertSaleCode(t, err, apperror.CodeBusinessRule)
	})

	t.Run("insufficient balance rolls the sale back", func(t *testing.T) {
		limit := types.MustMoney("5.00")
		f.credits.available = &limit
		_, err := f.service.FinalizeSale(context.Background(), FinalizeInput{
			CustomerID:  &f.customerID,
			WarehouseID: f.warehouseID,
			Items: []ItemInput{
				{Type: ItemProduct, ProductID: &f.accessory.ID, Quantity: types.One},
			},
			Payments: []PaymentInput{
				{Method: PaymentCustomerCredit, Amount: types.MustMoney("25.00")},
			},
		})
		assertSaleCode(t, err, apperror.CodeInsufficientCredit)
		assert.Empty(t, f.repo.sales)
	})
}

func TestFinalizeSale_IMEIMismatch(t *testing.T) {
	f := newSaleFixture(t)

	_, err := f.service.FinalizeSale(context.Background(), FinalizeInput{
		WarehouseID: f.warehouseID,
		Items: []ItemInput{
			{Type: ItemDevice, DeviceID: &f.device.ID, ConfirmedIMEI: "359999999999999"},
		},
		Payments: []PaymentInput{
			{Method: PaymentCash, Amount: types.MustMoney("399.00")},
		},
	})
	assertSaleCode(t, err, apperror.CodeIMEIMismatch)

	// The device is untouched after the rollback check.
	assert.Equal(t, devices.StatusInStock, f.devices.devices[f.device.ID].Status)
}

func TestFinalizeSale_DeviceNotSellable(t *testing.T) {
	f := newSaleFixture(t)
	f.device.Status = devices.StatusSold

	_, err := f.service.FinalizeSale(context.Background(), FinalizeInput{
		WarehouseID: f.warehouseID,
		Items: []ItemInput{
			{Type: ItemDevice, DeviceID: &f.device.ID, ConfirmedIMEI: "350000000000001"},
		},
		Payments: []PaymentInput{
			{Method: PaymentCash, Amount: types.MustMoney("399.00")},
		},
	})
	assertSaleCode(t, err, apperror.CodeConflict)
}

func TestFinalizeSale_SerializedProductRejectedAsProductLine(t *testing.T) {
	f := newSaleFixture(t)
	phone := product.NewProduct("PRD-002", "Used smartphone", product.CategoryPhone)
	phone.RequiresIMEI = true
	f.service.products.(*fakeProductRepo).items[phone.ID] = phone

	_, err := f.service.FinalizeSale(context.Background(), FinalizeInput{
		WarehouseID: f.warehouseID,
		Items: []ItemInput{
			{Type: ItemProduct, ProductID: &phone.ID, Quantity: types.One},
		},
		Payments: []PaymentInput{
			{Method: PaymentCash, Amount: types.MustMoney("100.00")},
		},
	})
	assertSaleCode(t, err, apperror.CodeValidation)
}

func TestFinalizeSale_ChangeRequiresCash(t *testing.T) {
	f := newSaleFixture(t)

	_, err := f.service.FinalizeSale(context.Background(), FinalizeInput{
		WarehouseID: f.warehouseID,
		Items: []ItemInput{
			{Type: ItemProduct, ProductID: &f.accessory.ID, Quantity: types.One},
		},
		Payments: []PaymentInput{
			{Method: PaymentDebitCard, Amount: types.MustMoney("40.00")},
		},
	})
	assertSaleCode(t, err, apperror.CodeBusinessRule)
}

func TestFinalizeSale_DiscountExceedsTotal(t *testing.T) {
	f := newSaleFixture(t)

	_, err := f.service.FinalizeSale(context.Background(), FinalizeInput{
		WarehouseID: f.warehouseID,
		Items: []ItemInput{
			{Type: ItemProduct, ProductID: &f.accessory.ID, Quantity: types.One},
		},
		DiscountAmount: types.MustMoney("30.00"),
		Payments: []PaymentInput{
			{Method: PaymentCash, Amount: types.MustMoney("1.00")},
		},
	})
	assertSaleCode(t, err, apperror.CodeValidation)
}

func TestFinalizeSale_ServiceOrderLine(t *testing.T) {
	f := newSaleFixture(t)
	o := f.billableOrder("130.00")

	sale, err := f.service.FinalizeSale(context.Background(), FinalizeInput{
		CustomerID:  &f.customerID,
		WarehouseID: f.warehouseID,
		Items: []ItemInput{
			{Type: ItemServiceOrder, ServiceOrderID: &o.ID},
		},
		Payments: []PaymentInput{
			{Method: PaymentPix, Amount: types.MustMoney("130.00")},
		},
	})
	require.NoError(t, err)
	assert.True(t, sale.TotalAmount.Equal(types.MustMoney("130.00")))
	assert.Equal(t, serviceorder.StatusBilled, f.orders.orders[o.ID].Status)

	// The same order cannot be billed on a second sale.
	_, err = f.service.FinalizeSale(context.Background(), FinalizeInput{
		WarehouseID: f.warehouseID,
		Items: []ItemInput{
			{Type: ItemServiceOrder, ServiceOrderID: &o.ID},
		},
		Payments: []PaymentInput{
			{Method: PaymentCash, Amount: types.MustMoney("130.00")},
		},
	})
	assertSaleCode(t, err, apperror.CodeBusinessRule)
}

func TestCancelSale(t *testing.T) {
	f := newSaleFixture(t)
	o := f.billableOrder("130.00")

	sale, err := f.service.FinalizeSale(context.Background(), FinalizeInput{
		CustomerID:  &f.customerID,
		WarehouseID: f.warehouseID,
		Items: []ItemInput{
			{Type: ItemDevice, DeviceID: &f.device.ID, ConfirmedIMEI: "350000000000001"},
			{Type: ItemServiceOrder, ServiceOrderID: &o.ID},
		},
		Payments: []PaymentInput{
			{Method: PaymentCustomerCredit, Amount: types.MustMoney("50.00")},
			{Method: PaymentCash, Amount: types.MustMoney("479.00")},
		},
	})
	require.NoError(t, err)
	f.stock.movements = nil

	cancelled, err := f.service.CancelSale(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	// Device back in stock via a compensating entry.
	assert.Equal(t, devices.StatusInStock, f.devices.devices[f.device.ID].Status)
	require.Len(t, f.stock.movements, 1)
	assert.Equal(t, stock.MovementEntry, f.stock.movements[0].MovementType)
	assert.Equal(t, stock.OperationReturn, f.stock.movements[0].OperationType)

	// Billed order reopened, consumed credit restored.
	assert.Equal(t, serviceorder.StatusCompleted, f.orders.orders[o.ID].Status)
	assert.True(t, f.credits.reversed[sale.ID])

	// Idempotent: a second cancel changes nothing.
	f.stock.movements = nil
	again, err := f.service.CancelSale(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, again.Status)
	assert.Empty(t, f.stock.movements)
}

func TestProcessReturn(t *testing.T) {
	f := newSaleFixture(t)

	sale, err := f.service.FinalizeSale(context.Background(), FinalizeInput{
		CustomerID:  &f.customerID,
		WarehouseID: f.warehouseID,
		Items: []ItemInput{
			{Type: ItemDevice, DeviceID: &f.device.ID, ConfirmedIMEI: "350000000000001"},
			{Type: ItemProduct, ProductID: &f.accessory.ID, Quantity: types.One},
		},
		Payments: []PaymentInput{
			{Method: PaymentCash, Amount: types.MustMoney("424.00")},
		},
	})
	require.NoError(t, err)
	f.stock.movements = nil

	deviceLine := sale.Items[0].ID
	ret, err := f.service.ProcessReturn(context.Background(), ReturnInput{
		SaleID:             sale.ID,
		ItemIDs:            []id.ID{deviceLine},
		Reason:             "defective screen",
		CreditValidityDays: 30,
	})
	require.NoError(t, err)
	assert.Contains(t, ret.Number, "DEV-")
	assert.True(t, ret.RefundAmount.Equal(types.MustMoney("399.00")))
	require.NotNil(t, ret.CreditID)

	// Device restocked.
	assert.Equal(t, devices.StatusInStock, f.devices.devices[f.device.ID].Status)
	require.Len(t, f.stock.movements, 1)
	assert.Equal(t, stock.OperationReturn, f.stock.movements[0].OperationType)

	// Refund granted as an expiring credit.
	require.Len(t, f.credits.granted, 1)
	granted := f.credits.granted[0]
	assert.Equal(t, credit.OriginRefund, granted.Origin)
	assert.True(t, granted.Amount.Equal(types.MustMoney("399.00")))
	require.NotNil(t, granted.ExpiresAt)
	expectedExpiry := time.Now().UTC().AddDate(0, 0, 30)
	assert.WithinDuration(t, expectedExpiry, *granted.ExpiresAt, time.Minute)

	// The same line cannot come back twice.
	_, err = f.service.ProcessReturn(context.Background(), ReturnInput{
		SaleID:  sale.ID,
		ItemIDs: []id.ID{deviceLine},
		Reason:  "again",
	})
	assertSaleCode(t, err, apperror.CodeConflict)
}

func TestProcessReturn_Guards(t *testing.T) {
	f := newSaleFixture(t)
	o := f.billableOrder("130.00")

	sale, err := f.service.FinalizeSale(context.Background(), FinalizeInput{
		CustomerID:  &f.customerID,
		WarehouseID: f.warehouseID,
		Items: []ItemInput{
			{Type: ItemServiceOrder, ServiceOrderID: &o.ID},
		},
		Payments: []PaymentInput{
			{Method: PaymentCash, Amount: types.MustMoney("130.00")},
		},
	})
	require.NoError(t, err)

	_, err = f.service.ProcessReturn(context.Background(), ReturnInput{
		SaleID:  sale.ID,
		ItemIDs: []id.ID{sale.Items[0].ID},
		Reason:  "changed my mind",
	})
	assertSaleCode(t, err, apperror.CodeValidation)

	_, err = f.service.ProcessReturn(context.Background(), ReturnInput{
		SaleID:  sale.ID,
		ItemIDs: []id.ID{sale.Items[0].ID},
	})
	assertSaleCode(t, err, apperror.CodeValidation)

	_, err = f.service.ProcessReturn(context.Background(), ReturnInput{
		SaleID: sale.ID,
		Reason: "nothing listed",
	})
	assertSaleCode(t, err, apperror.CodeValidation)

	// Returns only apply to completed sales.
	_, err = f.service.CancelSale(context.Background(), sale.ID)
	require.NoError(t, err)
	_, err = f.service.ProcessReturn(context.Background(), ReturnInput{
		SaleID:  sale.ID,
		ItemIDs: []id.ID{sale.Items[0].ID},
		Reason:  "too late",
	})
	assertSaleCode(t, err, apperror.CodeBusinessRule)
}

func TestCancelSale_SkipsReturnedLines(t *testing.T) {
	f := newSaleFixture(t)

	sale, err := f.service.FinalizeSale(context.Background(), FinalizeInput{
		CustomerID:  &f.customerID,
		WarehouseID: f.warehouseID,
		Items: []ItemInput{
			{Type: ItemDevice, DeviceID: &f.device.ID, ConfirmedIMEI: "350000000000001"},
			{Type: ItemProduct, ProductID: &f.accessory.ID, Quantity: types.One},
		},
		Payments: []PaymentInput{
			{Method: PaymentCash, Amount: types.MustMoney("424.00")},
		},
	})
	require.NoError(t, err)

	_, err = f.service.ProcessReturn(context.Background(), ReturnInput{
		SaleID:  sale.ID,
		ItemIDs: []id.ID{sale.Items[0].ID},
		Reason:  "defective",
	})
	require.NoError(t, err)
	f.stock.movements = nil

	_, err = f.service.CancelSale(context.Background(), sale.ID)
	require.NoError(t, err)

	// Only the product line is restocked; the device already came back.
	require.Len(t, f.stock.movements, 1)
	assert.Equal(t, f.accessory.ID, f.stock.movements[0].ProductID)
}

func assertSaleCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}
