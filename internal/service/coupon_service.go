package service

import (
	"context"
	"errors"
	"time"

	"storefront/internal/checkout"
	"storefront/internal/util"
)

// CouponQuote is the result of applying a code to a subtotal
type CouponQuote struct {
	Code     string `json:"code"`
	Discount int64  `json:"discount"`
	Subtotal int64  `json:"subtotal"`
	Total    int64  `json:"total"`
}

// CouponService checks coupon codes for the storefront
type CouponService struct {
	coupons CouponRepository
	now     func() time.Time
}

// NewCouponService creates a new coupon service
func NewCouponService(coupons CouponRepository) *CouponService {
	return &CouponService{coupons: coupons, now: time.Now}
}

// Validate applies code to subtotal. An ineligible code yields a
// *checkout.CouponError.
func (s *CouponService) Validate(ctx context.Context, code string, subtotal int64) (*CouponQuote, error) {
	ctx, span := util.StartSpan(ctx, "CouponService.Validate")
	defer span.End()

	code = checkout.NormalizeCouponCode(code)
	if code == "" {
		return nil, invalid("coupon code is required")
	}
	if subtotal < 0 {
		return nil, invalid("subtotal cannot be negative")
	}

	coupon, err := s.coupons.GetCouponByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return nil, &checkout.CouponError{Code: code, Reason: checkout.CouponUnknown}
	}
	if err != nil {
		return nil, err
	}

	discount, err := checkout.CouponDiscount(coupon, subtotal, s.now())
	if err != nil {
		return nil, err
	}
	return &CouponQuote{
		Code:     coupon.Code,
		Discount: discount,
		Subtotal: subtotal,
		Total:    subtotal - discount,
	}, nil
}
