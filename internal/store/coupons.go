package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/models"
)

// ListCoupons lists all coupons newest first
func (s *Store) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	coupons := []models.Coupon{}
	err := s.db.SelectContext(ctx, &coupons, "SELECT * FROM coupons ORDER BY created_at DESC")
	return coupons, err
}

// GetCouponByCode retrieves a coupon by its code
func (s *Store) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var c models.Coupon
	err := s.db.GetContext(ctx, &c, "SELECT * FROM coupons WHERE code = $1", code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("coupon %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCouponByID retrieves a coupon by ID
func (s *Store) GetCouponByID(ctx context.Context, id int64) (*models.Coupon, error) {
	var c models.Coupon
	err := s.db.GetContext(ctx, &c, "SELECT * FROM coupons WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("coupon %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCoupon inserts a coupon
func (s *Store) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	return s.db.QueryRowxContext(ctx, `
		INSERT INTO coupons (code, discount_type, value, min_order_amount, max_discount, max_uses, expires_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, used_count, created_at`,
		c.Code, c.DiscountType, c.Value, c.MinOrderAmount, c.MaxDiscount, c.MaxUses, c.ExpiresAt, c.Active,
	).Scan(&c.ID, &c.UsedCount, &c.CreatedAt)
}

// UpdateCoupon writes every editable column of c
func (s *Store) UpdateCoupon(ctx context.Context, c *models.Coupon) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE coupons SET code = $1, discount_type = $2, value = $3, min_order_amount = $4,
			max_discount = $5, max_uses = $6, expires_at = $7, active = $8
		WHERE id = $9`,
		c.Code, c.DiscountType, c.Value, c.MinOrderAmount, c.MaxDiscount, c.MaxUses, c.ExpiresAt, c.Active, c.ID)
	if err != nil {
		return err
	}
	return expectRows(res, fmt.Errorf("coupon %d: %w", c.ID, ErrNotFound))
}

// DeleteCoupon removes a coupon
func (s *Store) DeleteCoupon(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM coupons WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectRows(res, fmt.Errorf("coupon %d: %w", id, ErrNotFound))
}

// IncrementCouponUsage counts one redemption unless the coupon is used up.
// Returns false when the usage cap was already reached.
func (s *Store) IncrementCouponUsage(ctx context.Context, code string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE coupons SET used_count = used_count + 1
		WHERE code = $1 AND (max_uses = 0 OR used_count < max_uses)`, code)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
