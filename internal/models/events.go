package models

import "time"

// Event types
const (
	EventTypeOrderCreated       = "ORDER_CREATED"
	EventTypeOrderConfirmed     = "ORDER_CONFIRMED"
	EventTypeOrderExpired       = "ORDER_EXPIRED"
	EventTypePaymentFailed      = "PAYMENT_FAILED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypeAdminAction        = "ADMIN_ACTION"
	EventTypeLateCapture        = "PAYMENT_CAPTURED_AFTER_EXPIRY"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when a pending order is persisted
type OrderCreatedEvent struct {
	BaseEvent
	OrderID        int64           `json:"order_id"`
	OrderNumber    string          `json:"order_number"`
	PaymentMethod  string          `json:"payment_method"`
	TotalAmount    int64           `json:"total_amount"`
	AmountPayable  int64           `json:"amount_payable"`
	GatewayOrderID string          `json:"gateway_order_id"`
	Items          []OrderItemData `json:"items"`
}

// OrderConfirmedEvent published when a payment is verified or reconciled
type OrderConfirmedEvent struct {
	BaseEvent
	OrderID       int64  `json:"order_id"`
	OrderNumber   string `json:"order_number"`
	PaymentID     string `json:"payment_id"`
	PaymentStatus string `json:"payment_status"`
	AmountPaid    int64  `json:"amount_paid"`
	Source        string `json:"source"`
}

// OrderExpiredEvent published when an abandoned payment is given up on
type OrderExpiredEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Reason      string `json:"reason"`
}

// PaymentFailedEvent published when the widget reports a failure or a
// signature does not verify
type PaymentFailedEvent struct {
	BaseEvent
	OrderID        int64  `json:"order_id"`
	OrderNumber    string `json:"order_number"`
	GatewayOrderID string `json:"gateway_order_id"`
	PaymentID      string `json:"payment_id,omitempty"`
	Reason         string `json:"reason"`
}

// LateCaptureEvent published when the gateway took money for an order that
// had already expired. The order stays closed and the payment needs a refund.
type LateCaptureEvent struct {
	BaseEvent
	OrderID        int64  `json:"order_id"`
	OrderNumber    string `json:"order_number"`
	GatewayOrderID string `json:"gateway_order_id"`
	PaymentID      string `json:"payment_id"`
	Amount         int64  `json:"amount"`
}

// OrderStatusChangedEvent published on admin fulfilment updates
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	From        string `json:"from"`
	To          string `json:"to"`
	Actor       string `json:"actor"`
}

// AdminActionEvent published for product, coupon, settings and inbox edits
type AdminActionEvent struct {
	BaseEvent
	Actor      string `json:"actor"`
	Action     string `json:"action"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Detail     string `json:"detail,omitempty"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}
