package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront/internal/gateway"
	"storefront/internal/models"
	"storefront/internal/store"
)

// fakeStore is an in-memory stand-in for the PostgreSQL store
type fakeStore struct {
	AdminRepository

	mu          sync.Mutex
	products    map[int64]*models.Product
	orders      map[int64]*models.Order
	items       map[int64][]models.OrderItem
	payments    map[string]*models.Payment
	coupons     map[string]*models.Coupon
	activity    []models.ActivityLogEntry
	processed   map[string]bool
	enquiries   []models.Enquiry
	messages    []models.Message
	nextID      int64
	createCalls int
	couponUses  map[string]int
	statusCalls int
	itemsErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:   map[int64]*models.Product{},
		orders:     map[int64]*models.Order{},
		items:      map[int64][]models.OrderItem{},
		payments:   map[string]*models.Payment{},
		coupons:    map[string]*models.Coupon{},
		processed:  map[string]bool{},
		couponUses: map[string]int{},
	}
}

func (f *fakeStore) addProduct(p models.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := p
	f.products[p.ID] = &cp
}

func (f *fakeStore) ListProducts(_ context.Context, activeOnly bool) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Product{}
	for _, p := range f.products {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, store.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetProductsByIDs(_ context.Context, ids []int64) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

// UpdateProduct keeps the stored stock counts and reads them back into p,
// as the SQL store does
func (f *fakeStore) UpdateProduct(_ context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.products[p.ID]
	if !ok {
		return store.ErrNotFound
	}
	p.StockQuantity = cur.StockQuantity
	p.ReservedQuantity = cur.ReservedQuantity
	cp := *p
	f.products[p.ID] = &cp
	return nil
}

func (f *fakeStore) SetStockQuantity(_ context.Context, productID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return store.ErrNotFound
	}
	p.StockQuantity = quantity
	return nil
}

func (f *fakeStore) SetProductsActive(_ context.Context, ids []int64, active bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			p.Active = active
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateOrder(_ context.Context, order *models.Order, items []models.OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.nextID++
	order.ID = f.nextID
	order.CreatedAt = time.Now()
	for i := range items {
		items[i].OrderID = order.ID
		items[i].ID = int64(i + 1)
	}
	cp := *order
	f.orders[order.ID] = &cp
	f.items[order.ID] = append([]models.OrderItem(nil), items...)
	return nil
}

func (f *fakeStore) AttachPayment(_ context.Context, payment *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *payment
	f.payments[payment.GatewayOrderID] = &cp
	f.orders[payment.OrderID].GatewayOrderID = payment.GatewayOrderID
	return nil
}

func (f *fakeStore) findOrder(match func(*models.Order) bool, what string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if match(o) {
			cp := *o
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("order %s: %w", what, store.ErrNotFound)
}

func (f *fakeStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	return f.findOrder(func(o *models.Order) bool { return o.ID == id }, fmt.Sprint(id))
}

func (f *fakeStore) GetOrderByNumber(_ context.Context, number string) (*models.Order, error) {
	return f.findOrder(func(o *models.Order) bool { return o.OrderNumber == number }, number)
}

func (f *fakeStore) GetOrderByGatewayOrderID(_ context.Context, id string) (*models.Order, error) {
	return f.findOrder(func(o *models.Order) bool { return o.GatewayOrderID == id }, id)
}

func (f *fakeStore) GetOrderByIdempotencyKey(_ context.Context, key string) (*models.Order, error) {
	o, err := f.findOrder(func(o *models.Order) bool { return o.IdempotencyKey == key }, key)
	if err != nil {
		return nil, nil
	}
	return o, nil
}

func (f *fakeStore) GetOrderItemsByOrderID(_ context.Context, orderID int64) ([]models.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.itemsErr != nil {
		return nil, f.itemsErr
	}
	return append([]models.OrderItem{}, f.items[orderID]...), nil
}

func (f *fakeStore) ConfirmPayment(_ context.Context, orderID int64, gatewayOrderID, paymentID, paymentStatus string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.orders[orderID]
	if o == nil || o.PaymentStatus != models.PaymentStatusPending {
		return false, nil
	}
	o.PaymentStatus = paymentStatus
	o.Status = models.OrderStatusProcessing
	o.PaymentID = paymentID
	if p := f.payments[gatewayOrderID]; p != nil {
		p.Status = models.AttemptStatusCaptured
		p.GatewayPaymentID = paymentID
	}
	return true, nil
}

func (f *fakeStore) ExpireOrder(_ context.Context, orderID int64, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.orders[orderID]
	if o == nil || o.PaymentStatus != models.PaymentStatusPending {
		return false, nil
	}
	o.PaymentStatus = models.PaymentStatusExpired
	o.Status = models.OrderStatusCancelled
	if p := f.payments[o.GatewayOrderID]; p != nil {
		p.Status = models.AttemptStatusExpired
		p.FailureReason = reason
	}
	return true, nil
}

func (f *fakeStore) RecordPaymentFailure(_ context.Context, gatewayOrderID, paymentID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.payments[gatewayOrderID]
	if p == nil || p.Status != models.AttemptStatusCreated {
		return store.ErrNotFound
	}
	p.FailureReason = reason
	p.GatewayPaymentID = paymentID
	return nil
}

func (f *fakeStore) RecordLateCapture(_ context.Context, gatewayOrderID, paymentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.payments[gatewayOrderID]
	if p == nil {
		return false, nil
	}
	switch p.Status {
	case models.AttemptStatusCreated, models.AttemptStatusFailed, models.AttemptStatusExpired:
	default:
		return false, nil
	}
	p.Status = models.AttemptStatusCapturedLate
	p.GatewayPaymentID = paymentID
	return true, nil
}

func (f *fakeStore) ListPendingOrders(_ context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if o.PaymentStatus == models.PaymentStatusPending && o.CreatedAt.Before(cutoff) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) UpdateOrderStatus(_ context.Context, orderID int64, from, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	o := f.orders[orderID]
	if o == nil || o.Status != from {
		return store.ErrStaleState
	}
	o.Status = to
	return nil
}

func (f *fakeStore) GetCouponByCode(_ context.Context, code string) (*models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[code]
	if !ok {
		return nil, fmt.Errorf("coupon %s: %w", code, store.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) IncrementCouponUsage(_ context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.couponUses[code]++
	c, ok := f.coupons[code]
	if !ok {
		return false, nil
	}
	if c.MaxUses > 0 && c.UsedCount >= c.MaxUses {
		return false, nil
	}
	c.UsedCount++
	return true, nil
}

func (f *fakeStore) CreateCoupon(_ context.Context, c *models.Coupon) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c.ID = f.nextID
	cp := *c
	f.coupons[c.Code] = &cp
	return nil
}

func (f *fakeStore) AppendActivity(_ context.Context, e *models.ActivityLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = int64(len(f.activity) + 1)
	f.activity = append(f.activity, *e)
	return nil
}

func (f *fakeStore) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.processed[eventID], nil
}

func (f *fakeStore) MarkEventProcessed(_ context.Context, eventID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed[eventID] = true
	return nil
}

func (f *fakeStore) CreateEnquiry(_ context.Context, e *models.Enquiry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = int64(len(f.enquiries) + 1)
	f.enquiries = append(f.enquiries, *e)
	return nil
}

func (f *fakeStore) CreateMessage(_ context.Context, m *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = int64(len(f.messages) + 1)
	f.messages = append(f.messages, *m)
	return nil
}

// fakeCarts keeps carts in memory
type fakeCarts struct {
	mu    sync.Mutex
	carts map[string]map[int64]models.CartItem
}

func newFakeCarts() *fakeCarts {
	return &fakeCarts{carts: map[string]map[int64]models.CartItem{}}
}

func (c *fakeCarts) CartItems(_ context.Context, sessionID string) ([]models.CartItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []models.CartItem{}
	for _, item := range c.carts[sessionID] {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (c *fakeCarts) PutCartItem(_ context.Context, sessionID string, item models.CartItem, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.carts[sessionID] == nil {
		c.carts[sessionID] = map[int64]models.CartItem{}
	}
	c.carts[sessionID][item.ProductID] = item
	return nil
}

func (c *fakeCarts) RemoveCartItem(_ context.Context, sessionID string, productID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.carts[sessionID], productID)
	return nil
}

func (c *fakeCarts) ClearCart(_ context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.carts, sessionID)
	return nil
}

// fakeInventory tracks available and reserved units per product
type fakeInventory struct {
	mu        sync.Mutex
	available map[int64]int
	reserved  map[int64]int
	committed map[int64]int
	released  map[int64]int
	restocked map[int64]int
	resynced  []int64
	synced    map[int64]models.Product
	forgotten []int64
	err       error
}

func newFakeInventory(stock map[int64]int) *fakeInventory {
	inv := &fakeInventory{
		available: map[int64]int{},
		reserved:  map[int64]int{},
		committed: map[int64]int{},
		released:  map[int64]int{},
		restocked: map[int64]int{},
		synced:    map[int64]models.Product{},
	}
	for id, qty := range stock {
		inv.available[id] = qty
	}
	return inv
}

func (i *fakeInventory) ReserveStock(_ context.Context, productID int64, quantity int) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return false, i.err
	}
	if i.available[productID] < quantity {
		return false, nil
	}
	i.available[productID] -= quantity
	i.reserved[productID] += quantity
	return true, nil
}

func (i *fakeInventory) ReleaseStock(_ context.Context, productID int64, quantity int) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.available[productID] += quantity
	i.reserved[productID] -= quantity
	if i.reserved[productID] < 0 {
		i.reserved[productID] = 0
	}
	i.released[productID] += quantity
	return nil
}

func (i *fakeInventory) RestockStock(_ context.Context, productID int64, quantity int) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.available[productID] += quantity
	i.restocked[productID] += quantity
	return nil
}

func (i *fakeInventory) CommitStock(_ context.Context, productID int64, quantity int) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.reserved[productID] -= quantity
	i.committed[productID] += quantity
	return nil
}

func (i *fakeInventory) Resync(_ context.Context, product *models.Product) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.resynced = append(i.resynced, product.ID)
	i.synced[product.ID] = *product
	return nil
}

func (i *fakeInventory) Forget(_ context.Context, productID int64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.forgotten = append(i.forgotten, productID)
	return nil
}

// fakeGateway signs with a fixed secret and lets tests script payments
type fakeGateway struct {
	mu          sync.Mutex
	secret      string
	createCalls int
	createErr   error
	fetchErr    error
	lastAmount  int64
	payments    map[string][]gateway.Payment
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{secret: "test_secret", payments: map[string][]gateway.Payment{}}
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) CreateOrder(_ context.Context, amount int64, currency, receipt string, _ map[string]string) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.lastAmount = amount
	return &gateway.Order{
		ID:       fmt.Sprintf("order_gw%d", g.createCalls),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

func (g *fakeGateway) FetchOrderPayments(_ context.Context, gatewayOrderID string) ([]gateway.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	return g.payments[gatewayOrderID], nil
}

func (g *fakeGateway) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	return signature == gateway.Sign(g.secret, gatewayOrderID, paymentID)
}

func (g *fakeGateway) sign(gatewayOrderID, paymentID string) string {
	return gateway.Sign(g.secret, gatewayOrderID, paymentID)
}

// fakeEvents records every published event
type fakeEvents struct {
	mu        sync.Mutex
	created   []*models.OrderCreatedEvent
	confirmed []*models.OrderConfirmedEvent
	expired   []*models.OrderExpiredEvent
	failed    []*models.PaymentFailedEvent
	changed   []*models.OrderStatusChangedEvent
	admin     []*models.AdminActionEvent
	late      []*models.LateCaptureEvent
}

func (e *fakeEvents) PublishOrderCreated(_ context.Context, ev *models.OrderCreatedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.created = append(e.created, ev)
	return nil
}

func (e *fakeEvents) PublishOrderConfirmed(_ context.Context, ev *models.OrderConfirmedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.confirmed = append(e.confirmed, ev)
	return nil
}

func (e *fakeEvents) PublishOrderExpired(_ context.Context, ev *models.OrderExpiredEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.expired = append(e.expired, ev)
	return nil
}

func (e *fakeEvents) PublishPaymentFailed(_ context.Context, ev *models.PaymentFailedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failed = append(e.failed, ev)
	return nil
}

func (e *fakeEvents) PublishOrderStatusChanged(_ context.Context, ev *models.OrderStatusChangedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changed = append(e.changed, ev)
	return nil
}

func (e *fakeEvents) PublishAdminAction(_ context.Context, ev *models.AdminActionEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.admin = append(e.admin, ev)
	return nil
}

func (e *fakeEvents) PublishLateCapture(_ context.Context, ev *models.LateCaptureEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.late = append(e.late, ev)
	return nil
}

// fakeLocker grants each key once until released
type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}}
}

func (l *fakeLocker) AcquireLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLocker) ReleaseLock(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

// fakeInvalidator counts catalog cache invalidations
type fakeInvalidator struct {
	calls int
}

func (f *fakeInvalidator) Invalidate(context.Context) { f.calls++ }
