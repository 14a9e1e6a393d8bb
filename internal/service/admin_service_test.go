package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminActor = "owner@woodcraft.in"

// admin-only store methods used by these tests

func (f *fakeStore) CreateProduct(_ context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p.ID = 100 + f.nextID
	cp := *p
	f.products[p.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteProduct(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.products, id)
	return nil
}

func (f *fakeStore) DeleteProducts(_ context.Context, ids []int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := f.products[id]; ok {
			delete(f.products, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) GetCouponByID(_ context.Context, id int64) (*models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.coupons {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) UpdateCoupon(_ context.Context, c *models.Coupon) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for code, existing := range f.coupons {
		if existing.ID == c.ID {
			delete(f.coupons, code)
		}
	}
	cp := *c
	f.coupons[c.Code] = &cp
	return nil
}

func (f *fakeStore) Analytics(_ context.Context, since time.Time, lowStock int) (*models.Analytics, error) {
	return &models.Analytics{DailyRevenue: []models.DailyRevenue{{Day: since}}, OrderCount: lowStock}, nil
}

type settingsStore struct {
	*fakeStore
	values map[string]json.RawMessage
}

func (s *settingsStore) GetSettings(context.Context) (map[string]json.RawMessage, error) {
	return s.values, nil
}

func (s *settingsStore) UpsertSettings(_ context.Context, values map[string]json.RawMessage) error {
	for k, v := range values {
		s.values[k] = v
	}
	return nil
}

type adminFixture struct {
	store     *fakeStore
	inventory *fakeInventory
	catalog   *fakeInvalidator
	events    *fakeEvents
	svc       *AdminService
}

func newAdminFixture() *adminFixture {
	st := newFakeStore()
	st.addProduct(models.Product{ID: 1, Title: "Sheesham Sofa", Price: 45000, StockQuantity: 6, StockStatus: "In Stock", Active: true})
	st.addProduct(models.Product{ID: 2, Title: "Teak Bench", Price: 12000, StockQuantity: 2, Active: true})
	st.addProduct(models.Product{ID: 3, Title: "Cane Chair", Price: 6000, StockQuantity: 9, Active: false})

	f := &adminFixture{
		store:     st,
		inventory: newFakeInventory(nil),
		catalog:   &fakeInvalidator{},
		events:    &fakeEvents{},
	}
	f.svc = NewAdminService(st, f.inventory, f.catalog, f.events, 3)
	return f
}

func (f *adminFixture) seedOrder(status, paymentStatus string) *models.Order {
	order := &models.Order{OrderNumber: "FW261015ABCDEF", Status: status, PaymentStatus: paymentStatus}
	_ = f.store.CreateOrder(context.Background(), order, []models.OrderItem{
		{ProductID: 1, Quantity: 2, UnitPrice: 45000, TotalPrice: 90000},
	})
	return order
}

func TestAdminCreateProductDerivesStockLabel(t *testing.T) {
	f := newAdminFixture()

	product := &models.Product{Title: "  Rosewood Desk ", Price: 22000, StockQuantity: 2}
	require.NoError(t, f.svc.CreateProduct(context.Background(), adminActor, product))

	assert.Equal(t, "Rosewood Desk", product.Title)
	assert.Equal(t, "Only 2 Left", product.StockStatus)
	assert.Equal(t, []int64{product.ID}, f.inventory.resynced)
	assert.Equal(t, 1, f.catalog.calls)
	require.Len(t, f.events.admin, 1)
	assert.Equal(t, adminActor, f.events.admin[0].Actor)
	assert.Equal(t, "product", f.events.admin[0].EntityType)
}

func TestAdminCreateProductValidation(t *testing.T) {
	f := newAdminFixture()

	err := f.svc.CreateProduct(context.Background(), adminActor, &models.Product{Title: "Desk", Price: -1})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	err = f.svc.CreateProduct(context.Background(), adminActor, &models.Product{Title: "   "})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, f.events.admin)
}

func TestAdminUpdateProductPatch(t *testing.T) {
	f := newAdminFixture()
	price := int64(42000)
	stock := 0

	product, err := f.svc.UpdateProduct(context.Background(), adminActor, 1, ProductPatch{
		Price:         &price,
		StockQuantity: &stock,
	})
	require.NoError(t, err)

	assert.Equal(t, "Sheesham Sofa", product.Title)
	assert.Equal(t, int64(42000), product.Price)
	assert.Equal(t, "Out of Stock", product.StockStatus)
	assert.Equal(t, int64(42000), f.store.products[1].Price)
	assert.Equal(t, 1, f.catalog.calls)

	_, err = f.svc.UpdateProduct(context.Background(), adminActor, 404, ProductPatch{Price: &price})
	assert.ErrorIs(t, err, ErrNotFound)
}

// reservingStore simulates a checkout reserving units between the admin
// console reading a product and writing it back
type reservingStore struct {
	*fakeStore
	reserve int
}

func (r *reservingStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	p, err := r.fakeStore.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.products[id].StockQuantity -= r.reserve
	r.products[id].ReservedQuantity += r.reserve
	r.mu.Unlock()
	return p, nil
}

func TestAdminUpdateProductKeepsConcurrentReservation(t *testing.T) {
	f := newAdminFixture()
	st := &reservingStore{fakeStore: f.store, reserve: 2}
	svc := NewAdminService(st, f.inventory, f.catalog, f.events, 3)
	title := "Sheesham Sofa, 3 seater"

	product, err := svc.UpdateProduct(context.Background(), adminActor, 1, ProductPatch{Title: &title})
	require.NoError(t, err)

	assert.Equal(t, 4, f.store.products[1].StockQuantity)
	assert.Equal(t, 2, f.store.products[1].ReservedQuantity)
	assert.Equal(t, 4, product.StockQuantity)
	assert.Equal(t, 4, f.inventory.synced[1].StockQuantity)
	assert.Equal(t, 2, f.inventory.synced[1].ReservedQuantity)
}

func TestAdminUpdateProductSetsStockExplicitly(t *testing.T) {
	f := newAdminFixture()
	stock := 10

	product, err := f.svc.UpdateProduct(context.Background(), adminActor, 2, ProductPatch{StockQuantity: &stock})
	require.NoError(t, err)

	assert.Equal(t, 10, f.store.products[2].StockQuantity)
	assert.Equal(t, 10, product.StockQuantity)
	assert.Equal(t, 10, f.inventory.synced[2].StockQuantity)
}

func TestAdminUpdateProductKeepsExplicitLabel(t *testing.T) {
	f := newAdminFixture()
	stock := 1
	label := "Made to Order"

	product, err := f.svc.UpdateProduct(context.Background(), adminActor, 1, ProductPatch{
		StockQuantity: &stock,
		StockStatus:   &label,
	})
	require.NoError(t, err)
	assert.Equal(t, "Made to Order", product.StockStatus)
}

func TestAdminBulkProducts(t *testing.T) {
	tests := []struct {
		name       string
		action     string
		ids        []int64
		want       int64
		wantErr    error
		wantActive map[int64]bool
	}{
		{name: "publish", action: BulkPublish, ids: []int64{2, 3}, want: 2, wantActive: map[int64]bool{2: true, 3: true}},
		{name: "hide", action: BulkHide, ids: []int64{1}, want: 1, wantActive: map[int64]bool{1: false, 2: true}},
		{name: "delete", action: BulkDelete, ids: []int64{1, 99}, want: 1},
		{name: "unknown action", action: "archive", ids: []int64{1}, wantErr: ErrInvalidRequest},
		{name: "nothing selected", action: BulkHide, wantErr: ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAdminFixture()
			n, err := f.svc.BulkProducts(context.Background(), adminActor, tt.action, tt.ids)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, f.catalog.calls)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
			assert.Equal(t, 1, f.catalog.calls)
			for id, active := range tt.wantActive {
				assert.Equal(t, active, f.store.products[id].Active, "product %d", id)
			}
			require.Len(t, f.events.admin, 1)
			assert.Equal(t, "bulk_"+tt.action, f.events.admin[0].Action)
		})
	}
}

func TestAdminBulkDeleteForgetsCachedStock(t *testing.T) {
	f := newAdminFixture()

	_, err := f.svc.BulkProducts(context.Background(), adminActor, BulkDelete, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, f.inventory.forgotten)
	_, exists := f.store.products[1]
	assert.False(t, exists)
}

func TestAdminUpdateOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		wantErr error
	}{
		{name: "processing to packed", from: models.OrderStatusProcessing, to: models.OrderStatusPacked},
		{name: "packed to shipped", from: models.OrderStatusPacked, to: models.OrderStatusShipped},
		{name: "out for delivery to delivered", from: models.OrderStatusOutForDelivery, to: models.OrderStatusDelivered},
		{name: "skip ahead", from: models.OrderStatusProcessing, to: models.OrderStatusDelivered, wantErr: ErrInvalidTransition},
		{name: "reopen delivered", from: models.OrderStatusDelivered, to: models.OrderStatusProcessing, wantErr: ErrInvalidTransition},
		{name: "pending to packed", from: models.OrderStatusPending, to: models.OrderStatusPacked, wantErr: ErrInvalidTransition},
		{name: "unknown status", from: models.OrderStatusProcessing, to: "lost", wantErr: ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAdminFixture()
			order := f.seedOrder(tt.from, models.PaymentStatusPaid)

			updated, err := f.svc.UpdateOrderStatus(context.Background(), adminActor, order.ID, tt.to)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, f.events.changed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, updated.Status)
			assert.Equal(t, tt.to, f.store.orders[order.ID].Status)
			require.Len(t, f.events.changed, 1)
			assert.Equal(t, tt.from, f.events.changed[0].From)
			assert.Equal(t, adminActor, f.events.changed[0].Actor)
		})
	}
}

func TestAdminCancelPaidOrderRestocks(t *testing.T) {
	f := newAdminFixture()
	order := f.seedOrder(models.OrderStatusPacked, models.PaymentStatusAdvancePaid)

	updated, err := f.svc.UpdateOrderStatus(context.Background(), adminActor, order.ID, models.OrderStatusCancelled)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusCancelled, updated.Status)
	assert.Equal(t, models.PaymentStatusAdvancePaid, updated.PaymentStatus)
	assert.Equal(t, 2, f.inventory.restocked[1])
	assert.Zero(t, f.inventory.released[1], "committed units have no reservation to release")
	assert.Equal(t, 1, f.catalog.calls)
}

func TestAdminCancelKeepsOrderWhenItemsUnreadable(t *testing.T) {
	f := newAdminFixture()
	order := f.seedOrder(models.OrderStatusProcessing, models.PaymentStatusPaid)
	f.store.itemsErr = errors.New("connection reset")

	_, err := f.svc.UpdateOrderStatus(context.Background(), adminActor, order.ID, models.OrderStatusCancelled)
	require.Error(t, err)

	assert.Equal(t, models.OrderStatusProcessing, f.store.orders[order.ID].Status)
	assert.Empty(t, f.inventory.restocked)
	assert.Empty(t, f.events.changed)
}

func TestAdminCancelPendingOrderExpiresIt(t *testing.T) {
	f := newAdminFixture()
	order := f.seedOrder(models.OrderStatusPending, models.PaymentStatusPending)

	updated, err := f.svc.UpdateOrderStatus(context.Background(), adminActor, order.ID, models.OrderStatusCancelled)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusExpired, updated.PaymentStatus)
	assert.Equal(t, models.PaymentStatusExpired, f.store.orders[order.ID].PaymentStatus)
	assert.Equal(t, 0, f.store.statusCalls)
	assert.Equal(t, 2, f.inventory.released[1])
	assert.Empty(t, f.inventory.restocked)
}

func TestAdminUpdateOrderStatusStale(t *testing.T) {
	f := newAdminFixture()
	order := f.seedOrder(models.OrderStatusProcessing, models.PaymentStatusPaid)

	// another admin packs the order between our read and write
	stale := &staleOrders{fakeStore: f.store}
	svc := NewAdminService(stale, f.inventory, f.catalog, f.events, 3)

	_, err := svc.UpdateOrderStatus(context.Background(), adminActor, order.ID, models.OrderStatusPacked)
	assert.ErrorIs(t, err, store.ErrStaleState)
}

type staleOrders struct {
	*fakeStore
}

func (s *staleOrders) UpdateOrderStatus(context.Context, int64, string, string) error {
	return store.ErrStaleState
}

func TestAdminCoupons(t *testing.T) {
	f := newAdminFixture()
	ctx := context.Background()

	coupon := &models.Coupon{Code: " monsoon20 ", DiscountType: models.DiscountPercentage, Value: 20, Active: true}
	require.NoError(t, f.svc.CreateCoupon(ctx, adminActor, coupon))
	assert.Equal(t, "MONSOON20", coupon.Code)

	value := int64(25)
	updated, err := f.svc.UpdateCoupon(ctx, adminActor, coupon.ID, CouponPatch{Value: &value})
	require.NoError(t, err)
	assert.Equal(t, int64(25), updated.Value)

	tooMuch := int64(120)
	_, err = f.svc.UpdateCoupon(ctx, adminActor, coupon.ID, CouponPatch{Value: &tooMuch})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	err = f.svc.CreateCoupon(ctx, adminActor, &models.Coupon{Code: "BAD", DiscountType: "bogo", Value: 1})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	assert.Len(t, f.events.admin, 2)
}

func TestAdminUpdateSettings(t *testing.T) {
	f := newAdminFixture()
	st := &settingsStore{fakeStore: f.store, values: map[string]json.RawMessage{
		"store_name": json.RawMessage(`"Woodcraft"`),
	}}
	svc := NewAdminService(st, f.inventory, f.catalog, f.events, 3)

	out, err := svc.UpdateSettings(context.Background(), adminActor, map[string]json.RawMessage{
		"free_shipping_above": json.RawMessage(`25000`),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `25000`, string(out["free_shipping_above"]))
	assert.JSONEq(t, `"Woodcraft"`, string(out["store_name"]))

	_, err = svc.UpdateSettings(context.Background(), adminActor, map[string]json.RawMessage{
		"banner": json.RawMessage(`{not json`),
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestAdminAnalyticsClampsWindow(t *testing.T) {
	f := newAdminFixture()
	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	a, err := f.svc.Analytics(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -30), a.DailyRevenue[0].Day)
	assert.Equal(t, 3, a.OrderCount, "low stock threshold is passed through")

	a, err = f.svc.Analytics(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -7), a.DailyRevenue[0].Day)
}

func TestAdminEnquiryStatusValidation(t *testing.T) {
	f := newAdminFixture()

	err := f.svc.UpdateEnquiry(context.Background(), adminActor, 1, "spam")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.svc.Enquiries(context.Background(), "archived")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
