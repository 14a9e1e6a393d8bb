package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

const (
	reconcileBatch   = 100
	reconcileLockTTL = time.Minute
)

// settler finalizes pending orders one way or the other
type settler interface {
	ConfirmOrder(ctx context.Context, order *models.Order, paymentID, source string) (bool, error)
	ExpireOrder(ctx context.Context, order *models.Order, reason string) (bool, error)
	RecordLateCapture(ctx context.Context, order *models.Order, paymentID, source string) error
}

// ReconcileResult summarizes one reconciliation pass
type ReconcileResult struct {
	Checked   int
	Confirmed int
	Expired   int
	Skipped   int
}

// PaymentReconciler settles orders whose browser never came back: it asks
// the gateway whether money arrived and confirms or expires accordingly.
type PaymentReconciler struct {
	orders  OrderRepository
	gateway PaymentGateway
	settle  settler
	locks   Locker
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewPaymentReconciler creates a new reconciler. Orders pending longer than
// timeout are examined.
func NewPaymentReconciler(orders OrderRepository, gateway PaymentGateway, checkout *CheckoutService, locks Locker, timeout time.Duration) *PaymentReconciler {
	return &PaymentReconciler{
		orders:  orders,
		gateway: gateway,
		settle:  checkout,
		locks:   locks,
		timeout: timeout,
		logger:  util.GetLogger(),
		now:     time.Now,
	}
}

// Run performs one reconciliation pass
func (r *PaymentReconciler) Run(ctx context.Context) (ReconcileResult, error) {
	ctx, span := util.StartSpan(ctx, "PaymentReconciler.Run")
	defer span.End()

	start := time.Now()
	defer func() {
		util.ReconcileRunDuration.Observe(time.Since(start).Seconds())
	}()

	var result ReconcileResult

	pending, err := r.orders.ListPendingOrders(ctx, r.now().Add(-r.timeout), reconcileBatch)
	if err != nil {
		return result, util.SpanError(span, fmt.Errorf("failed to list pending orders: %w", err))
	}

	for i := range pending {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		order := &pending[i]
		result.Checked++

		outcome, err := r.reconcileOrder(ctx, order)
		if err != nil {
			r.logger.Error("Failed to reconcile order",
				zap.Int64("order_id", order.ID),
				zap.Error(err))
		}
		switch outcome {
		case outcomeConfirmed:
			result.Confirmed++
		case outcomeExpired:
			result.Expired++
		default:
			result.Skipped++
		}
	}

	if result.Checked > 0 {
		r.logger.Info("Reconciliation pass finished",
			zap.Int("checked", result.Checked),
			zap.Int("confirmed", result.Confirmed),
			zap.Int("expired", result.Expired),
			zap.Int("skipped", result.Skipped))
	}
	return result, nil
}

type reconcileOutcome int

const (
	outcomeSkipped reconcileOutcome = iota
	outcomeConfirmed
	outcomeExpired
)

func (r *PaymentReconciler) reconcileOrder(ctx context.Context, order *models.Order) (reconcileOutcome, error) {
	lockKey := "reconcile:order-" + strconv.FormatInt(order.ID, 10)
	acquired, err := r.locks.AcquireLock(ctx, lockKey, reconcileLockTTL)
	if err != nil {
		return outcomeSkipped, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return outcomeSkipped, nil
	}
	defer func() {
		if err := r.locks.ReleaseLock(ctx, lockKey); err != nil {
			r.logger.Warn("Failed to release reconcile lock", zap.String("lock", lockKey), zap.Error(err))
		}
	}()

	if order.GatewayOrderID != "" {
		start := time.Now()
		payments, err := r.gateway.FetchOrderPayments(ctx, order.GatewayOrderID)
		util.GatewayRequestLatency.WithLabelValues("fetch_payments").Observe(time.Since(start).Seconds())
		if err != nil {
			// Never expire an order while the gateway cannot be asked.
			return outcomeSkipped, &GatewayError{Op: "fetch payments", Err: err}
		}

		for _, p := range payments {
			if !p.Settled() {
				continue
			}
			ok, err := r.settle.ConfirmOrder(ctx, order, p.ID, ConfirmedByReconciler)
			if err != nil {
				return outcomeSkipped, err
			}
			if ok {
				return outcomeConfirmed, nil
			}
			return outcomeSkipped, r.noteIfExpired(ctx, order.ID, p.ID)
		}
	}

	ok, err := r.settle.ExpireOrder(ctx, order, "payment_timeout")
	if err != nil {
		return outcomeSkipped, err
	}
	if ok {
		return outcomeExpired, nil
	}
	return outcomeSkipped, nil
}

// noteIfExpired records a settled payment whose order was expired in the
// meantime, so the money is not silently kept
func (r *PaymentReconciler) noteIfExpired(ctx context.Context, orderID int64, paymentID string) error {
	current, err := r.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if current.PaymentStatus != models.PaymentStatusExpired {
		return nil
	}
	return r.settle.RecordLateCapture(ctx, current, paymentID, ConfirmedByReconciler)
}
