package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/checkout"
	"storefront/internal/gateway"
	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sources recorded on ORDER_CONFIRMED events
const (
	ConfirmedByVerify     = "verify"
	ConfirmedByReconciler = "reconciler"
)

// CheckoutConfig carries the business knobs checkout depends on
type CheckoutConfig struct {
	Currency          string
	CODAdvancePercent int
	ConfirmationPath  string
	StoreName         string
}

// CheckoutService runs the checkout → payment sequence. Orders start in
// payment_status "pending" and move to paid/advance_paid once a payment is
// verified, or to expired via the reconciler.
type CheckoutService struct {
	orders    OrderRepository
	products  ProductRepository
	coupons   CouponRepository
	carts     CartStore
	inventory Inventory
	gateway   PaymentGateway
	events    EventPublisher
	cfg       CheckoutConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	orders OrderRepository,
	products ProductRepository,
	coupons CouponRepository,
	carts CartStore,
	inventory Inventory,
	gateway PaymentGateway,
	events EventPublisher,
	cfg CheckoutConfig,
) *CheckoutService {
	return &CheckoutService{
		orders:    orders,
		products:  products,
		coupons:   coupons,
		carts:     carts,
		inventory: inventory,
		gateway:   gateway,
		events:    events,
		cfg:       cfg,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// LineRequest is one cart line as sent by the storefront
type LineRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// CreateOrderRequest starts a checkout. Items may be omitted when the
// session cart should be used. Client-side amounts are never trusted.
type CreateOrderRequest struct {
	SessionID      string                `json:"-"`
	Items          []LineRequest         `json:"items"`
	PaymentMode    string                `json:"payment_mode"`
	Shipping       checkout.ShippingForm `json:"shipping"`
	CouponCode     string                `json:"coupon_code"`
	IdempotencyKey string                `json:"idempotency_key"`
}

// WidgetPrefill pre-populates the payment widget's contact fields
type WidgetPrefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

// CreateOrderResponse holds everything the browser needs to open the widget
type CreateOrderResponse struct {
	OrderID        int64          `json:"order_id"`
	OrderNumber    string         `json:"order_number"`
	GatewayOrderID string         `json:"razorpay_order_id"`
	KeyID          string         `json:"key"`
	Amount         int64          `json:"amount"`
	Currency       string         `json:"currency"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Prefill        WidgetPrefill  `json:"prefill"`
	Quote          checkout.Quote `json:"quote"`
}

// VerifyPaymentRequest carries the widget's success callback values
type VerifyPaymentRequest struct {
	SessionID      string `json:"-"`
	GatewayOrderID string `json:"razorpay_order_id"`
	PaymentID      string `json:"razorpay_payment_id"`
	Signature      string `json:"razorpay_signature"`
}

// VerifyPaymentResponse tells the browser where to go next
type VerifyPaymentResponse struct {
	OrderNumber   string `json:"order_number"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	Total         int64  `json:"total"`
	Remaining     int64  `json:"remaining"`
	RedirectURL   string `json:"redirect_url"`
}

// PaymentFailedRequest is the widget's declared failure
type PaymentFailedRequest struct {
	GatewayOrderID string `json:"razorpay_order_id"`
	PaymentID      string `json:"razorpay_payment_id"`
	Code           string `json:"code"`
	Description    string `json:"description"`
}

// OrderDetail is an order with its lines
type OrderDetail struct {
	*models.Order
	Items []models.OrderItem `json:"items"`
}

// CreateOrder validates the form, prices the cart from the catalog, persists
// a pending order, reserves stock and opens a gateway order.
func (s *CheckoutService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.CreateOrder")
	defer span.End()

	req.Shipping.Normalize()
	if err := req.Shipping.Validate(); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_form").Inc()
		return nil, err
	}
	if req.PaymentMode != models.PaymentMethodPrepaid && req.PaymentMode != models.PaymentMethodCOD {
		util.OrdersFailedTotal.WithLabelValues("invalid_mode").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, checkout.ErrInvalidPaymentMode)
	}

	if req.IdempotencyKey != "" {
		existing, err := s.orders.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
		if existing != nil {
			s.logger.Info("Duplicate checkout request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Int64("order_id", existing.ID))
			return s.replay(existing)
		}
	} else {
		req.IdempotencyKey = uuid.New().String()
	}

	requested, err := s.resolveLines(ctx, req)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_items").Inc()
		return nil, err
	}

	lines, items, err := s.priceLines(ctx, requested)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_items").Inc()
		return nil, err
	}

	coupon, err := s.lookupCoupon(ctx, req.CouponCode)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_coupon").Inc()
		return nil, err
	}

	quote, err := checkout.NewQuote(lines, req.PaymentMode, coupon, s.cfg.CODAdvancePercent, s.now())
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_coupon").Inc()
		return nil, err
	}

	order := &models.Order{
		OrderNumber:     s.newOrderNumber(),
		CustomerName:    req.Shipping.Name,
		CustomerEmail:   req.Shipping.Email,
		CustomerPhone:   req.Shipping.Phone,
		AddressLine1:    req.Shipping.AddressLine1,
		AddressLine2:    req.Shipping.AddressLine2,
		City:            req.Shipping.City,
		State:           req.Shipping.State,
		Pincode:         req.Shipping.Pincode,
		BillingSame:     req.Shipping.BillingSame,
		PaymentMethod:   req.PaymentMode,
		PaymentStatus:   models.PaymentStatusPending,
		Status:          models.OrderStatusPending,
		Subtotal:        quote.Subtotal,
		Discount:        quote.Discount,
		CouponCode:      quote.CouponCode,
		TotalAmount:     quote.Total,
		AdvanceAmount:   quote.Advance,
		RemainingAmount: quote.Remaining,
		IdempotencyKey:  req.IdempotencyKey,
	}

	if err := s.orders.CreateOrder(ctx, order, items); err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.Info("Pending order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("payment_method", order.PaymentMethod))

	if err := s.reserveItems(ctx, order, items); err != nil {
		util.OrdersFailedTotal.WithLabelValues("reservation_failed").Inc()
		return nil, err
	}

	gwOrder, err := s.openGatewayOrder(ctx, order, quote.AmountPayableNow)
	if err != nil {
		s.abandon(ctx, order, items, "gateway_unavailable")
		util.OrdersFailedTotal.WithLabelValues("gateway_error").Inc()
		return nil, err
	}
	order.GatewayOrderID = gwOrder.ID

	payment := &models.Payment{
		OrderID:        order.ID,
		GatewayOrderID: gwOrder.ID,
		Status:         models.AttemptStatusCreated,
		Amount:         quote.AmountPayableNow,
	}
	if err := s.orders.AttachPayment(ctx, payment); err != nil {
		s.abandon(ctx, order, items, "payment_attempt_not_saved")
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to save payment attempt: %w", err)
	}

	util.OrdersCreatedTotal.WithLabelValues(order.PaymentMethod).Inc()

	eventItems := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		eventItems = append(eventItems, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	event := &models.OrderCreatedEvent{
		BaseEvent:      newBaseEvent(models.EventTypeOrderCreated),
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		PaymentMethod:  order.PaymentMethod,
		TotalAmount:    order.TotalAmount,
		AmountPayable:  quote.AmountPayableNow,
		GatewayOrderID: order.GatewayOrderID,
		Items:          eventItems,
	}
	if err := s.events.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return s.widgetOptions(order, quote), nil
}

// VerifyPayment checks the widget signature and confirms the order. The cart
// is cleared only when the order ends up confirmed.
func (s *CheckoutService) VerifyPayment(ctx context.Context, req *VerifyPaymentRequest) (*VerifyPaymentResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.VerifyPayment")
	defer span.End()

	if req.GatewayOrderID == "" || req.PaymentID == "" || req.Signature == "" {
		util.PaymentVerificationFailed.WithLabelValues("missing_fields").Inc()
		return nil, invalid("razorpay_order_id, razorpay_payment_id and razorpay_signature are required")
	}

	order, err := s.orders.GetOrderByGatewayOrderID(ctx, req.GatewayOrderID)
	if err != nil {
		util.PaymentVerificationFailed.WithLabelValues("unknown_order").Inc()
		return nil, err
	}

	if !s.gateway.VerifySignature(req.GatewayOrderID, req.PaymentID, req.Signature) {
		util.PaymentVerificationFailed.WithLabelValues("bad_signature").Inc()
		s.logger.Warn("Payment signature mismatch",
			zap.Int64("order_id", order.ID),
			zap.String("payment_id", req.PaymentID))
		s.notePaymentFailure(ctx, order, req.PaymentID, "signature_mismatch")
		return nil, fmt.Errorf("payment %s: %w", req.PaymentID, ErrInvalidSignature)
	}

	confirmed, err := s.ConfirmOrder(ctx, order, req.PaymentID, ConfirmedByVerify)
	if err != nil {
		util.PaymentVerificationFailed.WithLabelValues("db_error").Inc()
		return nil, err
	}
	if !confirmed {
		// Already settled by a previous callback or by the reconciler.
		current, err := s.orders.GetOrderByID(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		if !isSettled(current.PaymentStatus) || current.PaymentID != req.PaymentID {
			if current.PaymentStatus == models.PaymentStatusExpired {
				if err := s.RecordLateCapture(ctx, current, req.PaymentID, ConfirmedByVerify); err != nil {
					s.logger.Error("Failed to record late capture",
						zap.Int64("order_id", current.ID),
						zap.String("payment_id", req.PaymentID),
						zap.Error(err))
				}
			}
			util.PaymentVerificationFailed.WithLabelValues("order_closed").Inc()
			return nil, fmt.Errorf("order %s is %s: %w", current.OrderNumber, current.PaymentStatus, ErrOrderClosed)
		}
		order = current
	}

	if req.SessionID != "" {
		if err := s.carts.ClearCart(ctx, req.SessionID); err != nil {
			s.logger.Warn("Failed to clear cart after payment",
				zap.String("session", req.SessionID),
				zap.Error(err))
		}
	}

	return &VerifyPaymentResponse{
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		Total:         order.TotalAmount,
		Remaining:     order.RemainingAmount,
		RedirectURL:   checkout.ConfirmationURL(s.cfg.ConfirmationPath, order.OrderNumber, order.TotalAmount, order.RemainingAmount),
	}, nil
}

// RecordPaymentFailure notes a failure the widget reported. The order stays
// pending so the shopper can retry; the reconciler expires it otherwise.
func (s *CheckoutService) RecordPaymentFailure(ctx context.Context, req *PaymentFailedRequest) error {
	ctx, span := util.StartSpan(ctx, "CheckoutService.RecordPaymentFailure")
	defer span.End()

	if req.GatewayOrderID == "" {
		return invalid("razorpay_order_id is required")
	}
	order, err := s.orders.GetOrderByGatewayOrderID(ctx, req.GatewayOrderID)
	if err != nil {
		return err
	}

	reason := strings.TrimSpace(req.Description)
	if reason == "" {
		reason = req.Code
	}
	if reason == "" {
		reason = "payment_failed"
	}

	util.PaymentFailuresReported.Inc()
	s.notePaymentFailure(ctx, order, req.PaymentID, reason)
	return nil
}

// GetOrder returns an order and its lines by public order number
func (s *CheckoutService) GetOrder(ctx context.Context, orderNumber string) (*OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.GetOrder")
	defer span.End()

	order, err := s.orders.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	items, err := s.orders.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	return &OrderDetail{Order: order, Items: items}, nil
}

// ConfirmOrder moves a pending order to paid (prepaid) or advance_paid (COD),
// commits its stock and counts the coupon. It returns false when the order
// had already left the pending state.
func (s *CheckoutService) ConfirmOrder(ctx context.Context, order *models.Order, paymentID, source string) (bool, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.ConfirmOrder")
	defer span.End()

	paymentStatus := models.PaymentStatusPaid
	if order.PaymentMethod == models.PaymentMethodCOD {
		paymentStatus = models.PaymentStatusAdvancePaid
	}
	amountPaid := amountCharged(order)

	items, err := s.orders.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load order items: %w", err)
	}

	ok, err := s.orders.ConfirmPayment(ctx, order.ID, order.GatewayOrderID, paymentID, paymentStatus)
	if err != nil {
		return false, fmt.Errorf("failed to confirm payment: %w", err)
	}
	if !ok {
		return false, nil
	}
	order.PaymentStatus = paymentStatus
	order.Status = models.OrderStatusProcessing
	order.PaymentID = paymentID

	for _, item := range items {
		if err := s.inventory.CommitStock(ctx, item.ProductID, item.Quantity); err != nil {
			s.logger.Error("Failed to commit stock",
				zap.Int64("order_id", order.ID),
				zap.Int64("product_id", item.ProductID),
				zap.Error(err))
		}
	}

	if order.CouponCode != "" {
		counted, err := s.coupons.IncrementCouponUsage(ctx, order.CouponCode)
		if err != nil {
			s.logger.Error("Failed to count coupon use", zap.String("coupon", order.CouponCode), zap.Error(err))
		} else if !counted {
			s.logger.Warn("Coupon used past its limit", zap.String("coupon", order.CouponCode), zap.Int64("order_id", order.ID))
		}
	}

	util.OrdersConfirmedTotal.WithLabelValues(source).Inc()
	s.logger.Info("Order confirmed",
		zap.Int64("order_id", order.ID),
		zap.String("payment_status", paymentStatus),
		zap.String("source", source))

	event := &models.OrderConfirmedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeOrderConfirmed),
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		PaymentID:     paymentID,
		PaymentStatus: paymentStatus,
		AmountPaid:    amountPaid,
		Source:        source,
	}
	if err := s.events.PublishOrderConfirmed(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderConfirmed event", zap.Error(err))
	}
	return true, nil
}

// ExpireOrder cancels a still-pending order and returns its stock. It
// returns false when the order had already left the pending state.
func (s *CheckoutService) ExpireOrder(ctx context.Context, order *models.Order, reason string) (bool, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.ExpireOrder")
	defer span.End()

	items, err := s.orders.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load order items: %w", err)
	}

	ok, err := s.orders.ExpireOrder(ctx, order.ID, reason)
	if err != nil || !ok {
		return false, err
	}
	order.PaymentStatus = models.PaymentStatusExpired
	order.Status = models.OrderStatusCancelled

	s.releaseItems(ctx, order.ID, items)

	util.OrdersExpiredTotal.Inc()
	s.logger.Warn("Pending order expired",
		zap.Int64("order_id", order.ID),
		zap.String("reason", reason))

	event := &models.OrderExpiredEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderExpired),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Reason:      reason,
	}
	if err := s.events.PublishOrderExpired(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderExpired event", zap.Error(err))
	}
	return true, nil
}

// RecordLateCapture notes money the gateway captured for an order that had
// already expired. The order stays closed and its stock stays released; the
// event flags the payment for a refund. Repeat calls for the same attempt are
// no-ops.
func (s *CheckoutService) RecordLateCapture(ctx context.Context, order *models.Order, paymentID, source string) error {
	ctx, span := util.StartSpan(ctx, "CheckoutService.RecordLateCapture")
	defer span.End()

	recorded, err := s.orders.RecordLateCapture(ctx, order.GatewayOrderID, paymentID)
	if err != nil {
		return err
	}
	if !recorded {
		return nil
	}

	util.LateCapturesTotal.WithLabelValues(source).Inc()
	s.logger.Error("Payment captured for expired order",
		zap.Int64("order_id", order.ID),
		zap.String("payment_id", paymentID),
		zap.String("source", source))

	event := &models.LateCaptureEvent{
		BaseEvent:      newBaseEvent(models.EventTypeLateCapture),
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		GatewayOrderID: order.GatewayOrderID,
		PaymentID:      paymentID,
		Amount:         amountCharged(order),
	}
	if err := s.events.PublishLateCapture(ctx, event); err != nil {
		s.logger.Error("Failed to publish LateCapture event", zap.Error(err))
	}
	return nil
}

// resolveLines merges duplicate lines, falling back to the session cart
func (s *CheckoutService) resolveLines(ctx context.Context, req *CreateOrderRequest) ([]LineRequest, error) {
	raw := req.Items
	if len(raw) == 0 && req.SessionID != "" {
		cartItems, err := s.carts.CartItems(ctx, req.SessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load cart: %w", err)
		}
		for _, item := range cartItems {
			raw = append(raw, LineRequest{ProductID: item.ProductID, Quantity: item.Quantity})
		}
	}
	if len(raw) == 0 {
		return nil, ErrEmptyCart
	}

	merged := make([]LineRequest, 0, len(raw))
	index := make(map[int64]int, len(raw))
	for _, line := range raw {
		if line.Quantity <= 0 {
			return nil, invalid("quantity for product %d must be positive", line.ProductID)
		}
		if i, ok := index[line.ProductID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged, nil
}

// priceLines loads products and builds priced lines and order items
func (s *CheckoutService) priceLines(ctx context.Context, requested []LineRequest) ([]checkout.Line, []models.OrderItem, error) {
	ids := make([]int64, len(requested))
	for i, line := range requested {
		ids[i] = line.ProductID
	}

	products, err := s.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load products: %w", err)
	}
	byID := make(map[int64]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	lines := make([]checkout.Line, 0, len(requested))
	items := make([]models.OrderItem, 0, len(requested))
	for _, line := range requested {
		product, ok := byID[line.ProductID]
		if !ok || !product.Active {
			return nil, nil, fmt.Errorf("product %d: %w", line.ProductID, ErrNotFound)
		}
		if line.Quantity > product.StockQuantity {
			return nil, nil, fmt.Errorf("%s has %d left: %w", product.Title, product.StockQuantity, ErrOutOfStock)
		}

		l := checkout.Line{ProductID: product.ID, Quantity: line.Quantity, UnitPrice: product.Price}
		lines = append(lines, l)
		items = append(items, models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Title,
			Finish:      product.Finish,
			Quantity:    line.Quantity,
			UnitPrice:   product.Price,
			TotalPrice:  l.Total(),
		})
	}
	return lines, items, nil
}

func (s *CheckoutService) lookupCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	code = checkout.NormalizeCouponCode(code)
	if code == "" {
		return nil, nil
	}
	coupon, err := s.coupons.GetCouponByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return nil, &checkout.CouponError{Code: code, Reason: checkout.CouponUnknown}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load coupon: %w", err)
	}
	return coupon, nil
}

// reserveItems reserves stock line by line; on any failure it releases what
// was taken and expires the order.
func (s *CheckoutService) reserveItems(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	start := time.Now()
	defer func() {
		util.StockReserveLatency.Observe(time.Since(start).Seconds())
	}()

	for i, item := range items {
		ok, err := s.inventory.ReserveStock(ctx, item.ProductID, item.Quantity)
		if err == nil && ok {
			continue
		}

		reason := "insufficient_stock"
		if err != nil {
			reason = "error"
		}
		util.StockReservationsFailed.WithLabelValues(reason).Inc()
		s.abandon(ctx, order, items[:i], "out_of_stock")

		if err != nil {
			return fmt.Errorf("failed to reserve stock for product %d: %w", item.ProductID, err)
		}
		return fmt.Errorf("%s: %w", item.ProductName, ErrOutOfStock)
	}
	return nil
}

// abandon releases reserved lines and closes an order that never reached the
// widget
func (s *CheckoutService) abandon(ctx context.Context, order *models.Order, reserved []models.OrderItem, reason string) {
	s.releaseItems(ctx, order.ID, reserved)
	if _, err := s.orders.ExpireOrder(ctx, order.ID, reason); err != nil {
		s.logger.Error("Failed to close abandoned order",
			zap.Int64("order_id", order.ID),
			zap.String("reason", reason),
			zap.Error(err))
	}
}

func (s *CheckoutService) releaseItems(ctx context.Context, orderID int64, items []models.OrderItem) {
	for _, item := range items {
		if err := s.inventory.ReleaseStock(ctx, item.ProductID, item.Quantity); err != nil {
			s.logger.Error("Failed to release stock",
				zap.Int64("order_id", orderID),
				zap.Int64("product_id", item.ProductID),
				zap.Error(err))
		}
	}
}

func (s *CheckoutService) openGatewayOrder(ctx context.Context, order *models.Order, amount int64) (*gateway.Order, error) {
	start := time.Now()
	gwOrder, err := s.gateway.CreateOrder(ctx, amount*100, s.cfg.Currency, order.OrderNumber, map[string]string{
		"order_number": order.OrderNumber,
		"payment_mode": order.PaymentMethod,
	})
	util.GatewayRequestLatency.WithLabelValues("create_order").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &GatewayError{Op: "create order", Err: err}
	}
	return gwOrder, nil
}

func (s *CheckoutService) notePaymentFailure(ctx context.Context, order *models.Order, paymentID, reason string) {
	if err := s.orders.RecordPaymentFailure(ctx, order.GatewayOrderID, paymentID, reason); err != nil {
		s.logger.Warn("Failed to record payment failure",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}

	event := &models.PaymentFailedEvent{
		BaseEvent:      newBaseEvent(models.EventTypePaymentFailed),
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		GatewayOrderID: order.GatewayOrderID,
		PaymentID:      paymentID,
		Reason:         reason,
	}
	if err := s.events.PublishPaymentFailed(ctx, event); err != nil {
		s.logger.Error("Failed to publish PaymentFailed event", zap.Error(err))
	}
}

// replay rebuilds the widget options for an order created by an earlier
// request with the same idempotency key
func (s *CheckoutService) replay(order *models.Order) (*CreateOrderResponse, error) {
	if order.PaymentStatus != models.PaymentStatusPending || order.GatewayOrderID == "" {
		return nil, fmt.Errorf("order %s is %s: %w", order.OrderNumber, order.PaymentStatus, ErrOrderClosed)
	}
	quote := checkout.Quote{
		Subtotal:    order.Subtotal,
		Discount:    order.Discount,
		Total:       order.TotalAmount,
		Advance:     order.AdvanceAmount,
		Remaining:   order.RemainingAmount,
		PaymentMode: order.PaymentMethod,
		CouponCode:  order.CouponCode,
	}
	quote.AmountPayableNow = quote.Total
	if order.PaymentMethod == models.PaymentMethodCOD {
		quote.AmountPayableNow = quote.Advance
	}
	return s.widgetOptions(order, quote), nil
}

func (s *CheckoutService) widgetOptions(order *models.Order, quote checkout.Quote) *CreateOrderResponse {
	description := "Order " + order.OrderNumber
	if order.PaymentMethod == models.PaymentMethodCOD {
		description = "COD advance for order " + order.OrderNumber
	}
	return &CreateOrderResponse{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		GatewayOrderID: order.GatewayOrderID,
		KeyID:          s.gateway.KeyID(),
		Amount:         quote.AmountPayableNow * 100,
		Currency:       s.cfg.Currency,
		Name:           s.cfg.StoreName,
		Description:    description,
		Prefill: WidgetPrefill{
			Name:    order.CustomerName,
			Email:   order.CustomerEmail,
			Contact: order.CustomerPhone,
		},
		Quote: quote,
	}
}

// newOrderNumber is "FW" + yymmdd + six hex digits
func (s *CheckoutService) newOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return "FW" + s.now().Format("060102") + suffix
}

// amountCharged is what the widget collects: the full total, or the advance
// for COD
func amountCharged(order *models.Order) int64 {
	if order.PaymentMethod == models.PaymentMethodCOD {
		return order.AdvanceAmount
	}
	return order.TotalAmount
}

func isSettled(paymentStatus string) bool {
	return paymentStatus == models.PaymentStatusPaid || paymentStatus == models.PaymentStatusAdvancePaid
}
