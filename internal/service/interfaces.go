package service

import (
	"context"
	"encoding/json"
	"time"

	"storefront/internal/gateway"
	"storefront/internal/models"
	"storefront/internal/store"
)

// ProductRepository reads the catalog
type ProductRepository interface {
	ListProducts(ctx context.Context, activeOnly bool) ([]models.Product, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
}

// ProductCache holds the active product list between admin edits
type ProductCache interface {
	CachedProducts(ctx context.Context) ([]models.Product, error)
	CacheProducts(ctx context.Context, products []models.Product, ttl time.Duration) error
	InvalidateProducts(ctx context.Context) error
}

// CartStore persists session carts
type CartStore interface {
	CartItems(ctx context.Context, sessionID string) ([]models.CartItem, error)
	PutCartItem(ctx context.Context, sessionID string, item models.CartItem, ttl time.Duration) error
	RemoveCartItem(ctx context.Context, sessionID string, productID int64) error
	ClearCart(ctx context.Context, sessionID string) error
}

// CouponRepository reads coupons and counts redemptions
type CouponRepository interface {
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	IncrementCouponUsage(ctx context.Context, code string) (bool, error)
}

// OrderRepository persists orders and their payment attempts
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	AttachPayment(ctx context.Context, payment *models.Payment) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*models.Order, error)
	GetOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	ConfirmPayment(ctx context.Context, orderID int64, gatewayOrderID, paymentID, paymentStatus string) (bool, error)
	ExpireOrder(ctx context.Context, orderID int64, reason string) (bool, error)
	RecordPaymentFailure(ctx context.Context, gatewayOrderID, paymentID, reason string) error
	RecordLateCapture(ctx context.Context, gatewayOrderID, paymentID string) (bool, error)
	ListPendingOrders(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// StockStore is the durable stock ledger
type StockStore interface {
	ListProducts(ctx context.Context, activeOnly bool) ([]models.Product, error)
	ReserveStockTx(ctx context.Context, productID int64, quantity int) error
	ReleaseStock(ctx context.Context, productID int64, quantity int) error
	RestockStock(ctx context.Context, productID int64, quantity int) error
	CommitStock(ctx context.Context, productID int64, quantity int) error
}

// StockCache is the fast-path stock counter
type StockCache interface {
	ReserveStock(ctx context.Context, productID int64, quantity int) (bool, error)
	ReleaseStock(ctx context.Context, productID int64, quantity int) error
	RestockStock(ctx context.Context, productID int64, quantity int) error
	CommitStock(ctx context.Context, productID int64, quantity int) error
	InitStock(ctx context.Context, productID int64, available, reserved int) error
	DropStock(ctx context.Context, productID int64) error
}

// Inventory reserves and settles stock for orders
type Inventory interface {
	ReserveStock(ctx context.Context, productID int64, quantity int) (bool, error)
	ReleaseStock(ctx context.Context, productID int64, quantity int) error
	RestockStock(ctx context.Context, productID int64, quantity int) error
	CommitStock(ctx context.Context, productID int64, quantity int) error
	Resync(ctx context.Context, product *models.Product) error
	Forget(ctx context.Context, productID int64) error
}

// PaymentGateway is the hosted payment provider
type PaymentGateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*gateway.Order, error)
	FetchOrderPayments(ctx context.Context, gatewayOrderID string) ([]gateway.Payment, error)
	VerifySignature(gatewayOrderID, paymentID, signature string) bool
}

// EventPublisher emits domain events
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error
	PublishOrderExpired(ctx context.Context, event *models.OrderExpiredEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
	PublishLateCapture(ctx context.Context, event *models.LateCaptureEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishAdminAction(ctx context.Context, event *models.AdminActionEvent) error
}

// Locker takes short-lived distributed locks
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// AdminRepository is everything the admin console reads and writes
type AdminRepository interface {
	ListProducts(ctx context.Context, activeOnly bool) ([]models.Product, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	SetStockQuantity(ctx context.Context, productID int64, quantity int) error
	DeleteProduct(ctx context.Context, id int64) error
	SetProductsActive(ctx context.Context, ids []int64, active bool) (int64, error)
	DeleteProducts(ctx context.Context, ids []int64) (int64, error)

	ListOrders(ctx context.Context, q store.OrderQuery) ([]models.Order, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, from, to string) error
	ExpireOrder(ctx context.Context, orderID int64, reason string) (bool, error)

	ListCoupons(ctx context.Context) ([]models.Coupon, error)
	GetCouponByID(ctx context.Context, id int64) (*models.Coupon, error)
	CreateCoupon(ctx context.Context, c *models.Coupon) error
	UpdateCoupon(ctx context.Context, c *models.Coupon) error
	DeleteCoupon(ctx context.Context, id int64) error

	ListEnquiries(ctx context.Context, status string) ([]models.Enquiry, error)
	UpdateEnquiryStatus(ctx context.Context, id int64, status string) error
	ListMessages(ctx context.Context, unreadOnly bool) ([]models.Message, error)
	SetMessageRead(ctx context.Context, id int64, read bool) error
	DeleteMessage(ctx context.Context, id int64) error

	ListActivity(ctx context.Context, limit int) ([]models.ActivityLogEntry, error)
	GetSettings(ctx context.Context) (map[string]json.RawMessage, error)
	UpsertSettings(ctx context.Context, values map[string]json.RawMessage) error
	ListCustomers(ctx context.Context) ([]models.Customer, error)
	Analytics(ctx context.Context, since time.Time, lowStock int) (*models.Analytics, error)
}

// ContactRepository stores storefront enquiries and messages
type ContactRepository interface {
	CreateEnquiry(ctx context.Context, e *models.Enquiry) error
	CreateMessage(ctx context.Context, m *models.Message) error
}

// ActivityRepository writes the activity feed with event dedupe
type ActivityRepository interface {
	AppendActivity(ctx context.Context, e *models.ActivityLogEntry) error
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}
