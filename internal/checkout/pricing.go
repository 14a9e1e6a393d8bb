package checkout

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
)

// ErrInvalidPaymentMode is returned for anything other than prepaid or cod.
var ErrInvalidPaymentMode = errors.New("payment mode must be prepaid or cod")

var hundred = decimal.NewFromInt(100)

// Line is a priced cart line.
type Line struct {
	ProductID int64
	Quantity  int
	UnitPrice int64
}

// Total is the line total.
func (l Line) Total() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Quote carries the amounts derived for one checkout.
type Quote struct {
	Subtotal         int64  `json:"subtotal"`
	Discount         int64  `json:"discount"`
	Total            int64  `json:"total"`
	Advance          int64  `json:"advance"`
	AmountPayableNow int64  `json:"amount_payable_now"`
	Remaining        int64  `json:"remaining"`
	PaymentMode      string `json:"payment_mode"`
	CouponCode       string `json:"coupon_code,omitempty"`
}

// Subtotal sums line totals.
func Subtotal(lines []Line) int64 {
	var total int64
	for _, l := range lines {
		total += l.Total()
	}
	return total
}

// CODAdvance is percent of total, rounded half up to the rupee.
func CODAdvance(total int64, percent int) int64 {
	return decimal.NewFromInt(total).
		Mul(decimal.NewFromInt(int64(percent))).
		Div(hundred).
		Round(0).
		IntPart()
}

// NewQuote derives every amount for a checkout. coupon may be nil.
func NewQuote(lines []Line, mode string, coupon *models.Coupon, advancePercent int, now time.Time) (Quote, error) {
	q := Quote{
		Subtotal:    Subtotal(lines),
		PaymentMode: mode,
	}

	if coupon != nil {
		discount, err := CouponDiscount(coupon, q.Subtotal, now)
		if err != nil {
			return Quote{}, err
		}
		q.Discount = discount
		q.CouponCode = coupon.Code
	}
	q.Total = q.Subtotal - q.Discount

	switch mode {
	case models.PaymentMethodPrepaid:
		q.AmountPayableNow = q.Total
	case models.PaymentMethodCOD:
		q.Advance = CODAdvance(q.Total, advancePercent)
		q.AmountPayableNow = q.Advance
		q.Remaining = q.Total - q.Advance
	default:
		return Quote{}, ErrInvalidPaymentMode
	}

	return q, nil
}

// Coupon rejection reasons
const (
	CouponInactive  = "inactive"
	CouponExpired   = "expired"
	CouponExhausted = "exhausted"
	CouponMinOrder  = "min_order"
	CouponBadType   = "bad_type"
	CouponUnknown   = "unknown"
)

// CouponError explains why a coupon cannot be applied.
type CouponError struct {
	Code     string
	Reason   string
	MinOrder int64
}

func (e *CouponError) Error() string {
	switch e.Reason {
	case CouponInactive:
		return fmt.Sprintf("coupon %s is not active", e.Code)
	case CouponExpired:
		return fmt.Sprintf("coupon %s has expired", e.Code)
	case CouponExhausted:
		return fmt.Sprintf("coupon %s has reached its usage limit", e.Code)
	case CouponMinOrder:
		return fmt.Sprintf("coupon %s needs a minimum order of ₹%d", e.Code, e.MinOrder)
	case CouponUnknown:
		return fmt.Sprintf("coupon %s does not exist", e.Code)
	default:
		return fmt.Sprintf("coupon %s cannot be applied", e.Code)
	}
}

// CouponDiscount checks eligibility and returns the discount for subtotal.
func CouponDiscount(c *models.Coupon, subtotal int64, now time.Time) (int64, error) {
	if !c.Active {
		return 0, &CouponError{Code: c.Code, Reason: CouponInactive}
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return 0, &CouponError{Code: c.Code, Reason: CouponExpired}
	}
	if c.MaxUses > 0 && c.UsedCount >= c.MaxUses {
		return 0, &CouponError{Code: c.Code, Reason: CouponExhausted}
	}
	if subtotal < c.MinOrderAmount {
		return 0, &CouponError{Code: c.Code, Reason: CouponMinOrder, MinOrder: c.MinOrderAmount}
	}

	var discount int64
	switch c.DiscountType {
	case models.DiscountPercentage:
		discount = decimal.NewFromInt(subtotal).
			Mul(decimal.NewFromInt(c.Value)).
			Div(hundred).
			Round(0).
			IntPart()
		if c.MaxDiscount > 0 && discount > c.MaxDiscount {
			discount = c.MaxDiscount
		}
	case models.DiscountFlat:
		discount = c.Value
	default:
		return 0, &CouponError{Code: c.Code, Reason: CouponBadType}
	}

	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	return discount, nil
}

// NormalizeCouponCode upper-cases and trims a code as typed by a shopper.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ConfirmationURL builds the redirect target shown after a verified payment.
func ConfirmationURL(path, orderNumber string, total, codRemaining int64) string {
	q := url.Values{}
	q.Set("orderId", orderNumber)
	q.Set("total", strconv.FormatInt(total, 10))
	q.Set("cod", strconv.FormatInt(codRemaining, 10))
	return path + "?" + q.Encode()
}
