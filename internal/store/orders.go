package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/models"
)

// OrderQuery filters the admin order list
type OrderQuery struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// CreateOrder inserts an order and its items in one transaction
func (s *Store) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (order_number, customer_name, customer_email, customer_phone, address_line1,
			address_line2, city, state, pincode, billing_same, payment_method, payment_status, status,
			subtotal, discount, coupon_code, total_amount, advance_amount, remaining_amount, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING id, created_at, updated_at`

	err = tx.QueryRowxContext(ctx, query,
		order.OrderNumber, order.CustomerName, order.CustomerEmail, order.CustomerPhone, order.AddressLine1,
		order.AddressLine2, order.City, order.State, order.Pincode, order.BillingSame, order.PaymentMethod,
		order.PaymentStatus, order.Status, order.Subtotal, order.Discount, order.CouponCode,
		order.TotalAmount, order.AdvanceAmount, order.RemainingAmount, order.IdempotencyKey,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range items {
		items[i].OrderID = order.ID
		err = tx.QueryRowxContext(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, finish, quantity, unit_price, total_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			items[i].OrderID, items[i].ProductID, items[i].ProductName, items[i].Finish,
			items[i].Quantity, items[i].UnitPrice, items[i].TotalPrice,
		).Scan(&items[i].ID)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return tx.Commit()
}

// AttachPayment records a gateway order against a pending order
func (s *Store) AttachPayment(ctx context.Context, payment *models.Payment) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO payments (order_id, gateway_order_id, status, amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		payment.OrderID, payment.GatewayOrderID, payment.Status, payment.Amount,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE orders SET gateway_order_id = $1, updated_at = NOW() WHERE id = $2",
		payment.GatewayOrderID, payment.OrderID)
	if err != nil {
		return fmt.Errorf("failed to link payment: %w", err)
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	return s.getOrder(ctx, "id", id)
}

// GetOrderByNumber retrieves an order by its public order number
func (s *Store) GetOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	return s.getOrder(ctx, "order_number", number)
}

// GetOrderByGatewayOrderID retrieves the order a gateway order belongs to
func (s *Store) GetOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	return s.getOrder(ctx, "gateway_order_id", gatewayOrderID)
}

func (s *Store) getOrder(ctx context.Context, column string, value interface{}) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE "+column+" = $1", value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %v: %w", value, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE idempotency_key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders lists orders newest first
func (s *Store) ListOrders(ctx context.Context, q OrderQuery) ([]models.Order, error) {
	var (
		conds []string
		args  []interface{}
	)
	if q.Status != "" {
		args = append(args, q.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if q.Search != "" {
		args = append(args, "%"+q.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(order_number ILIKE $%d OR customer_name ILIKE $%d OR customer_phone ILIKE $%d OR customer_email ILIKE $%d)", n, n, n, n))
	}

	query := "SELECT * FROM orders"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders, query, args...)
	return orders, err
}

// UpdateOrderStatus moves an order from one fulfilment status to another.
// It fails with ErrStaleState if the order is no longer in from.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, from, to string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		to, orderID, from)
	if err != nil {
		return err
	}
	return expectRows(res, ErrStaleState)
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// ConfirmPayment moves a pending order to paid (or advance_paid) and marks
// its payment attempt captured. It returns false when the order had already
// left the pending state, so callers can treat repeats as no-ops.
func (s *Store) ConfirmPayment(ctx context.Context, orderID int64, gatewayOrderID, paymentID, paymentStatus string) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET payment_status = $1, status = $2, payment_id = $3, updated_at = NOW()
		WHERE id = $4 AND payment_status = $5`,
		paymentStatus, models.OrderStatusProcessing, paymentID, orderID, models.PaymentStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to confirm order: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return false, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE payments SET status = $1, gateway_payment_id = $2, updated_at = NOW()
		WHERE gateway_order_id = $3`,
		models.AttemptStatusCaptured, paymentID, gatewayOrderID)
	if err != nil {
		return false, fmt.Errorf("failed to capture payment: %w", err)
	}

	return true, tx.Commit()
}

// ExpireOrder cancels a still-pending order whose payment never completed
func (s *Store) ExpireOrder(ctx context.Context, orderID int64, reason string) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET payment_status = $1, status = $2, updated_at = NOW()
		WHERE id = $3 AND payment_status = $4`,
		models.PaymentStatusExpired, models.OrderStatusCancelled, orderID, models.PaymentStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to expire order: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return false, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE payments SET status = $1, failure_reason = $2, updated_at = NOW()
		WHERE order_id = $3 AND status = $4`,
		models.AttemptStatusExpired, reason, orderID, models.AttemptStatusCreated)
	if err != nil {
		return false, fmt.Errorf("failed to expire payment: %w", err)
	}

	return true, tx.Commit()
}

// RecordPaymentFailure notes a failed widget attempt. The attempt stays open
// because the shopper may retry against the same gateway order.
func (s *Store) RecordPaymentFailure(ctx context.Context, gatewayOrderID, paymentID, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE payments SET failure_reason = $1, gateway_payment_id = $2, updated_at = NOW()
		WHERE gateway_order_id = $3 AND status = $4`,
		reason, paymentID, gatewayOrderID, models.AttemptStatusCreated)
	if err != nil {
		return err
	}
	return expectRows(res, fmt.Errorf("open payment for %s: %w", gatewayOrderID, ErrNotFound))
}

// RecordLateCapture marks a payment that the gateway captured after its order
// had already expired, so it can be found and refunded. It returns false when
// the attempt was already recorded or had been captured normally.
func (s *Store) RecordLateCapture(ctx context.Context, gatewayOrderID, paymentID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE payments SET status = $1, gateway_payment_id = $2, failure_reason = $3, updated_at = NOW()
		WHERE gateway_order_id = $4 AND status IN ($5, $6, $7)`,
		models.AttemptStatusCapturedLate, paymentID, "captured after order expired",
		gatewayOrderID, models.AttemptStatusCreated, models.AttemptStatusFailed, models.AttemptStatusExpired)
	if err != nil {
		return false, fmt.Errorf("failed to record late capture: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListPendingOrders returns orders still awaiting payment created before cutoff
func (s *Store) ListPendingOrders(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders
		WHERE payment_status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3`,
		models.PaymentStatusPending, cutoff, limit)
	return orders, err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
