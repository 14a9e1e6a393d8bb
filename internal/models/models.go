package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Product represents a catalog item. Prices are whole rupees.
type Product struct {
	ID               int64          `db:"id" json:"id"`
	Title            string         `db:"title" json:"title"`
	Subtitle         string         `db:"subtitle" json:"subtitle"`
	Price            int64          `db:"price" json:"price"`
	CompareAtPrice   int64          `db:"compare_at_price" json:"compare_at_price"`
	Category         string         `db:"category" json:"category"`
	Finish           string         `db:"finish" json:"finish"`
	StockStatus      string         `db:"stock_status" json:"stock_status"`
	StockQuantity    int            `db:"stock_quantity" json:"stock_quantity"`
	ReservedQuantity int            `db:"reserved_quantity" json:"-"`
	ImageURL         string         `db:"image_url" json:"image_url"`
	Images           pq.StringArray `db:"images" json:"images"`
	VideoURL         string         `db:"video_url" json:"video_url"`
	Description      string         `db:"description" json:"description"`
	Tags             pq.StringArray `db:"tags" json:"tags"`
	Attributes       Attributes     `db:"attributes" json:"attributes"`
	Active           bool           `db:"active" json:"active"`
	IsNew            bool           `db:"is_new" json:"is_new"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// Attributes holds per-category custom fields such as "seater" or "material".
type Attributes map[string]string

// Value implements driver.Valuer for JSONB columns.
func (a Attributes) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSONB columns.
func (a *Attributes) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = Attributes{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("attributes: unsupported type %T", src)
	}
	return json.Unmarshal(raw, a)
}

// Order represents a customer order
type Order struct {
	ID              int64     `db:"id" json:"id"`
	OrderNumber     string    `db:"order_number" json:"order_number"`
	CustomerName    string    `db:"customer_name" json:"customer_name"`
	CustomerEmail   string    `db:"customer_email" json:"customer_email"`
	CustomerPhone   string    `db:"customer_phone" json:"customer_phone"`
	AddressLine1    string    `db:"address_line1" json:"address_line1"`
	AddressLine2    string    `db:"address_line2" json:"address_line2"`
	City            string    `db:"city" json:"city"`
	State           string    `db:"state" json:"state"`
	Pincode         string    `db:"pincode" json:"pincode"`
	BillingSame     bool      `db:"billing_same" json:"billing_same"`
	PaymentMethod   string    `db:"payment_method" json:"payment_method"`
	PaymentStatus   string    `db:"payment_status" json:"payment_status"`
	Status          string    `db:"status" json:"status"`
	Subtotal        int64     `db:"subtotal" json:"subtotal"`
	Discount        int64     `db:"discount" json:"discount"`
	CouponCode      string    `db:"coupon_code" json:"coupon_code,omitempty"`
	TotalAmount     int64     `db:"total_amount" json:"total_amount"`
	AdvanceAmount   int64     `db:"advance_amount" json:"advance_amount"`
	RemainingAmount int64     `db:"remaining_amount" json:"remaining_amount"`
	GatewayOrderID  string    `db:"gateway_order_id" json:"gateway_order_id,omitempty"`
	PaymentID       string    `db:"payment_id" json:"payment_id,omitempty"`
	IdempotencyKey  string    `db:"idempotency_key" json:"-"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// OrderItem represents a line in an order
type OrderItem struct {
	ID          int64  `db:"id" json:"id"`
	OrderID     int64  `db:"order_id" json:"order_id"`
	ProductID   int64  `db:"product_id" json:"product_id"`
	ProductName string `db:"product_name" json:"product_name"`
	Finish      string `db:"finish" json:"finish"`
	Quantity    int    `db:"quantity" json:"quantity"`
	UnitPrice   int64  `db:"unit_price" json:"unit_price"`
	TotalPrice  int64  `db:"total_price" json:"total_price"`
}

// Payment is one gateway collection attempt for an order
type Payment struct {
	ID               int64     `db:"id" json:"id"`
	OrderID          int64     `db:"order_id" json:"order_id"`
	GatewayOrderID   string    `db:"gateway_order_id" json:"gateway_order_id"`
	GatewayPaymentID string    `db:"gateway_payment_id" json:"gateway_payment_id,omitempty"`
	Status           string    `db:"status" json:"status"`
	Amount           int64     `db:"amount" json:"amount"`
	FailureReason    string    `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Coupon is a discount code
type Coupon struct {
	ID             int64      `db:"id" json:"id"`
	Code           string     `db:"code" json:"code"`
	DiscountType   string     `db:"discount_type" json:"discount_type"`
	Value          int64      `db:"value" json:"value"`
	MinOrderAmount int64      `db:"min_order_amount" json:"min_order_amount"`
	MaxDiscount    int64      `db:"max_discount" json:"max_discount"`
	UsedCount      int        `db:"used_count" json:"used_count"`
	MaxUses        int        `db:"max_uses" json:"max_uses"`
	ExpiresAt      *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	Active         bool       `db:"active" json:"active"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// Enquiry is a bulk-order request from the storefront
type Enquiry struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	Company   string    `db:"company" json:"company"`
	ProductID *int64    `db:"product_id" json:"product_id,omitempty"`
	Quantity  int       `db:"quantity" json:"quantity"`
	Message   string    `db:"message" json:"message"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Message is a contact-form submission
type Message struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	Subject   string    `db:"subject" json:"subject"`
	Body      string    `db:"body" json:"body"`
	OrderID   *int64    `db:"order_id" json:"order_id,omitempty"`
	Read      bool      `db:"read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ActivityLogEntry is one line of the admin activity feed
type ActivityLogEntry struct {
	ID         int64     `db:"id" json:"id"`
	Actor      string    `db:"actor" json:"actor"`
	Action     string    `db:"action" json:"action"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   string    `db:"entity_id" json:"entity_id"`
	Detail     string    `db:"detail" json:"detail"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Customer is aggregated from orders; there is no customers table.
type Customer struct {
	Email       string    `db:"email" json:"email"`
	Name        string    `db:"name" json:"name"`
	Phone       string    `db:"phone" json:"phone"`
	OrderCount  int       `db:"order_count" json:"order_count"`
	TotalSpent  int64     `db:"total_spent" json:"total_spent"`
	LastOrderAt time.Time `db:"last_order_at" json:"last_order_at"`
}

// CartItem is one line of a session cart
type CartItem struct {
	ProductID int64  `json:"product_id"`
	Title     string `json:"title"`
	Finish    string `json:"finish"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Image     string `json:"image"`
}

// Cart is the session-scoped cart view
type Cart struct {
	SessionID string     `json:"session_id"`
	Items     []CartItem `json:"items"`
	Subtotal  int64      `json:"subtotal"`
	ItemCount int        `json:"item_count"`
}

// Order statuses
const (
	OrderStatusPending        = "pending"
	OrderStatusProcessing     = "processing"
	OrderStatusPacked         = "packed"
	OrderStatusShipped        = "shipped"
	OrderStatusOutForDelivery = "out_for_delivery"
	OrderStatusDelivered      = "delivered"
	OrderStatusCancelled      = "cancelled"
)

// Order payment statuses
const (
	PaymentStatusPending     = "pending"
	PaymentStatusPaid        = "paid"
	PaymentStatusAdvancePaid = "advance_paid"
	PaymentStatusFailed      = "failed"
	PaymentStatusExpired     = "expired"
)

// Payment attempt statuses
const (
	AttemptStatusCreated  = "created"
	AttemptStatusCaptured = "captured"
	AttemptStatusFailed   = "failed"
	AttemptStatusExpired  = "expired"

	// AttemptStatusCapturedLate marks money taken for an order that had
	// already expired; it needs a refund.
	AttemptStatusCapturedLate = "captured_after_expiry"
)

// Payment methods
const (
	PaymentMethodPrepaid = "prepaid"
	PaymentMethodCOD     = "cod"
)

// Coupon discount types
const (
	DiscountPercentage = "percentage"
	DiscountFlat       = "flat"
)

// Enquiry statuses
const (
	EnquiryStatusNew       = "new"
	EnquiryStatusContacted = "contacted"
	EnquiryStatusClosed    = "closed"
)

// orderTransitions lists the fulfilment moves the admin console may make.
var orderTransitions = map[string][]string{
	OrderStatusPending:        {OrderStatusCancelled},
	OrderStatusProcessing:     {OrderStatusPacked, OrderStatusCancelled},
	OrderStatusPacked:         {OrderStatusShipped, OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusShipped:        {OrderStatusOutForDelivery, OrderStatusCancelled},
	OrderStatusOutForDelivery: {OrderStatusDelivered, OrderStatusShipped, OrderStatusCancelled},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsOrderStatus reports whether s is a known order status
func IsOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusPacked, OrderStatusShipped,
		OrderStatusOutForDelivery, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

// Analytics is the admin dashboard summary
type Analytics struct {
	Revenue           int64           `json:"revenue"`
	Collected         int64           `json:"collected"`
	OrderCount        int             `json:"order_count"`
	ConfirmedOrders   int             `json:"confirmed_orders"`
	PendingPayments   int             `json:"pending_payments"`
	AverageOrderValue int64           `json:"average_order_value"`
	StatusCounts      map[string]int  `json:"status_counts"`
	TopProducts       []TopProduct    `json:"top_products"`
	DailyRevenue      []DailyRevenue  `json:"daily_revenue"`
	LowStock          []LowStockAlert `json:"low_stock"`
}

// TopProduct ranks products by units sold
type TopProduct struct {
	ProductID   int64  `db:"product_id" json:"product_id"`
	ProductName string `db:"product_name" json:"product_name"`
	Units       int    `db:"units" json:"units"`
	Revenue     int64  `db:"revenue" json:"revenue"`
}

// DailyRevenue is confirmed revenue for one day
type DailyRevenue struct {
	Day     time.Time `db:"day" json:"day"`
	Orders  int       `db:"orders" json:"orders"`
	Revenue int64     `db:"revenue" json:"revenue"`
}

// LowStockAlert flags an active product at or under the stock threshold
type LowStockAlert struct {
	ProductID     int64  `db:"id" json:"product_id"`
	Title         string `db:"title" json:"title"`
	StockQuantity int    `db:"stock_quantity" json:"stock_quantity"`
}
