package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/models"
)

// CreateEnquiry stores a bulk-order enquiry
func (s *Store) CreateEnquiry(ctx context.Context, e *models.Enquiry) error {
	return s.db.QueryRowxContext(ctx, `
		INSERT INTO enquiries (name, email, phone, company, product_id, quantity, message, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		e.Name, e.Email, e.Phone, e.Company, e.ProductID, e.Quantity, e.Message, e.Status,
	).Scan(&e.ID, &e.CreatedAt)
}

// ListEnquiries lists enquiries newest first, optionally by status
func (s *Store) ListEnquiries(ctx context.Context, status string) ([]models.Enquiry, error) {
	enquiries := []models.Enquiry{}
	if status == "" {
		err := s.db.SelectContext(ctx, &enquiries, "SELECT * FROM enquiries ORDER BY created_at DESC")
		return enquiries, err
	}
	err := s.db.SelectContext(ctx, &enquiries,
		"SELECT * FROM enquiries WHERE status = $1 ORDER BY created_at DESC", status)
	return enquiries, err
}

// UpdateEnquiryStatus sets an enquiry's follow-up status
func (s *Store) UpdateEnquiryStatus(ctx context.Context, id int64, status string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE enquiries SET status = $1 WHERE id = $2", status, id)
	if err != nil {
		return err
	}
	return expectRows(res, fmt.Errorf("enquiry %d: %w", id, ErrNotFound))
}

// CreateMessage stores a contact-form message
func (s *Store) CreateMessage(ctx context.Context, m *models.Message) error {
	return s.db.QueryRowxContext(ctx, `
		INSERT INTO messages (name, email, phone, subject, body, order_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, read, created_at`,
		m.Name, m.Email, m.Phone, m.Subject, m.Body, m.OrderID,
	).Scan(&m.ID, &m.Read, &m.CreatedAt)
}

// ListMessages lists messages newest first
func (s *Store) ListMessages(ctx context.Context, unreadOnly bool) ([]models.Message, error) {
	query := "SELECT * FROM messages"
	if unreadOnly {
		query += " WHERE NOT read"
	}
	query += " ORDER BY created_at DESC"

	messages := []models.Message{}
	err := s.db.SelectContext(ctx, &messages, query)
	return messages, err
}

// SetMessageRead marks a message read or unread
func (s *Store) SetMessageRead(ctx context.Context, id int64, read bool) error {
	res, err := s.db.ExecContext(ctx, "UPDATE messages SET read = $1 WHERE id = $2", read, id)
	if err != nil {
		return err
	}
	return expectRows(res, fmt.Errorf("message %d: %w", id, ErrNotFound))
}

// DeleteMessage removes a message
func (s *Store) DeleteMessage(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectRows(res, fmt.Errorf("message %d: %w", id, ErrNotFound))
}

// AppendActivity writes an activity-log entry
func (s *Store) AppendActivity(ctx context.Context, e *models.ActivityLogEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	return s.db.QueryRowxContext(ctx, `
		INSERT INTO activity_log (actor, action, entity_type, entity_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		e.Actor, e.Action, e.EntityType, e.EntityID, e.Detail, e.CreatedAt,
	).Scan(&e.ID)
}

// ListActivity returns the most recent activity-log entries
func (s *Store) ListActivity(ctx context.Context, limit int) ([]models.ActivityLogEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	entries := []models.ActivityLogEntry{}
	err := s.db.SelectContext(ctx, &entries,
		"SELECT * FROM activity_log ORDER BY created_at DESC, id DESC LIMIT $1", limit)
	return entries, err
}

type settingRow struct {
	Key   string `db:"key"`
	Value []byte `db:"value"`
}

// GetSettings returns every setting as raw JSON keyed by name
func (s *Store) GetSettings(ctx context.Context) (map[string]json.RawMessage, error) {
	var rows []settingRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT key, value FROM settings ORDER BY key"); err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(rows))
	for _, r := range rows {
		out[r.Key] = json.RawMessage(r.Value)
	}
	return out, nil
}

// UpsertSettings writes the given settings in one transaction
func (s *Store) UpsertSettings(ctx context.Context, values map[string]json.RawMessage) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for k, v := range values {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, NOW())
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
			k, string(v))
		if err != nil {
			return fmt.Errorf("failed to write setting %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// ListCustomers aggregates customers from orders that got past payment
func (s *Store) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	customers := []models.Customer{}
	err := s.db.SelectContext(ctx, &customers, `
		SELECT customer_email AS email,
			(ARRAY_AGG(customer_name ORDER BY created_at DESC))[1] AS name,
			(ARRAY_AGG(customer_phone ORDER BY created_at DESC))[1] AS phone,
			COUNT(*) AS order_count,
			COALESCE(SUM(total_amount), 0) AS total_spent,
			MAX(created_at) AS last_order_at
		FROM orders
		WHERE payment_status IN ($1, $2)
		GROUP BY customer_email
		ORDER BY last_order_at DESC`,
		models.PaymentStatusPaid, models.PaymentStatusAdvancePaid)
	return customers, err
}

// Analytics computes the dashboard summary
func (s *Store) Analytics(ctx context.Context, since time.Time, lowStock int) (*models.Analytics, error) {
	out := &models.Analytics{StatusCounts: map[string]int{}}

	var totals struct {
		Revenue    int64 `db:"revenue"`
		Collected  int64 `db:"collected"`
		OrderCount int   `db:"order_count"`
		Confirmed  int   `db:"confirmed"`
		Pending    int   `db:"pending"`
	}
	err := s.db.GetContext(ctx, &totals, `
		SELECT
			COALESCE(SUM(total_amount) FILTER (WHERE payment_status IN ($1, $2) AND status <> $3), 0) AS revenue,
			COALESCE(SUM(CASE WHEN payment_status = $1 THEN total_amount
				WHEN payment_status = $2 THEN advance_amount ELSE 0 END), 0) AS collected,
			COUNT(*) AS order_count,
			COUNT(*) FILTER (WHERE payment_status IN ($1, $2)) AS confirmed,
			COUNT(*) FILTER (WHERE payment_status = $4) AS pending
		FROM orders`,
		models.PaymentStatusPaid, models.PaymentStatusAdvancePaid, models.OrderStatusCancelled, models.PaymentStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to compute totals: %w", err)
	}
	out.Revenue = totals.Revenue
	out.Collected = totals.Collected
	out.OrderCount = totals.OrderCount
	out.ConfirmedOrders = totals.Confirmed
	out.PendingPayments = totals.Pending
	if totals.Confirmed > 0 {
		out.AverageOrderValue = totals.Revenue / int64(totals.Confirmed)
	}

	var statuses []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := s.db.SelectContext(ctx, &statuses, "SELECT status, COUNT(*) AS count FROM orders GROUP BY status"); err != nil {
		return nil, fmt.Errorf("failed to count statuses: %w", err)
	}
	for _, st := range statuses {
		out.StatusCounts[st.Status] = st.Count
	}

	out.TopProducts = []models.TopProduct{}
	err = s.db.SelectContext(ctx, &out.TopProducts, `
		SELECT oi.product_id, MAX(oi.product_name) AS product_name,
			SUM(oi.quantity) AS units, SUM(oi.total_price) AS revenue
		FROM order_items oi JOIN orders o ON o.id = oi.order_id
		WHERE o.payment_status IN ($1, $2)
		GROUP BY oi.product_id
		ORDER BY units DESC
		LIMIT 10`,
		models.PaymentStatusPaid, models.PaymentStatusAdvancePaid)
	if err != nil {
		return nil, fmt.Errorf("failed to rank products: %w", err)
	}

	out.DailyRevenue = []models.DailyRevenue{}
	err = s.db.SelectContext(ctx, &out.DailyRevenue, `
		SELECT DATE_TRUNC('day', created_at) AS day, COUNT(*) AS orders, SUM(total_amount) AS revenue
		FROM orders
		WHERE payment_status IN ($1, $2) AND created_at >= $3
		GROUP BY day
		ORDER BY day`,
		models.PaymentStatusPaid, models.PaymentStatusAdvancePaid, since)
	if err != nil {
		return nil, fmt.Errorf("failed to compute daily revenue: %w", err)
	}

	out.LowStock = []models.LowStockAlert{}
	err = s.db.SelectContext(ctx, &out.LowStock, `
		SELECT id, title, stock_quantity FROM products
		WHERE active AND stock_quantity <= $1
		ORDER BY stock_quantity, id`, lowStock)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock: %w", err)
	}

	return out, nil
}
