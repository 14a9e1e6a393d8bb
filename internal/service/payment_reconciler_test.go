package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/gateway"
	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReconcilerFixture(t *testing.T) (*checkoutFixture, *PaymentReconciler, *fakeLocker) {
	t.Helper()
	f := newCheckoutFixture(t)
	locks := newFakeLocker()
	r := NewPaymentReconciler(f.store, f.gateway, f.svc, locks, 30*time.Minute)
	r.now = func() time.Time { return time.Now().Add(time.Hour) }
	return f, r, locks
}

func TestReconcilerConfirmsCapturedPayment(t *testing.T) {
	f, r, _ := newReconcilerFixture(t)
	resp := f.checkoutCart(t, "sess-r1", models.PaymentMethodCOD)
	f.gateway.payments[resp.GatewayOrderID] = []gateway.Payment{
		{ID: "pay_failed", Status: "failed"},
		{ID: "pay_ok", Status: "captured"},
	}

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Checked: 1, Confirmed: 1}, result)

	order, err := f.store.GetOrderByID(context.Background(), resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusAdvancePaid, order.PaymentStatus)
	assert.Equal(t, "pay_ok", order.PaymentID)
	require.Len(t, f.events.confirmed, 1)
	assert.Equal(t, ConfirmedByReconciler, f.events.confirmed[0].Source)
}

func TestReconcilerExpiresUnpaidOrder(t *testing.T) {
	f, r, _ := newReconcilerFixture(t)
	resp := f.checkoutCart(t, "sess-r2", models.PaymentMethodPrepaid)

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Checked: 1, Expired: 1}, result)

	order, err := f.store.GetOrderByID(context.Background(), resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusExpired, order.PaymentStatus)
	assert.Equal(t, models.OrderStatusCancelled, order.Status)
	assert.Equal(t, 5, f.inventory.available[1])
	assert.Equal(t, 3, f.inventory.available[2])
	require.Len(t, f.events.expired, 1)
	assert.Equal(t, "payment_timeout", f.events.expired[0].Reason)

	// a second pass finds nothing left to do
	result, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Checked)
}

func TestReconcilerLeavesOrderWhenGatewayUnreachable(t *testing.T) {
	f, r, _ := newReconcilerFixture(t)
	resp := f.checkoutCart(t, "sess-r3", models.PaymentMethodPrepaid)
	f.gateway.fetchErr = errors.New("gateway timeout")

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Checked: 1, Skipped: 1}, result)

	order, err := f.store.GetOrderByID(context.Background(), resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Empty(t, f.events.expired)
}

func TestReconcilerSkipsLockedOrder(t *testing.T) {
	f, r, locks := newReconcilerFixture(t)
	resp := f.checkoutCart(t, "sess-r4", models.PaymentMethodPrepaid)
	locks.held["reconcile:order-1"] = true

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Checked: 1, Skipped: 1}, result)

	order, err := f.store.GetOrderByID(context.Background(), resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
}

func TestReconcilerIgnoresFreshOrders(t *testing.T) {
	f, r, _ := newReconcilerFixture(t)
	r.now = time.Now
	f.checkoutCart(t, "sess-r5", models.PaymentMethodPrepaid)

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{}, result)
}

func TestReconcilerReleasesLock(t *testing.T) {
	f, r, locks := newReconcilerFixture(t)
	f.checkoutCart(t, "sess-r6", models.PaymentMethodPrepaid)

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, locks.held)
}

// pendingSnapshot replays a pending list read before the orders moved on
type pendingSnapshot struct {
	*fakeStore
	pending []models.Order
}

func (p *pendingSnapshot) ListPendingOrders(context.Context, time.Time, int) ([]models.Order, error) {
	return p.pending, nil
}

func TestReconcilerRecordsCaptureOnExpiredOrder(t *testing.T) {
	f := newCheckoutFixture(t)
	resp := f.checkoutCart(t, "sess-r7", models.PaymentMethodCOD)
	ctx := context.Background()

	snapshot, err := f.store.ListPendingOrders(ctx, time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, snapshot, 1)

	expired, err := f.svc.ExpireOrder(ctx, &snapshot[0], "cancelled_by_admin")
	require.NoError(t, err)
	require.True(t, expired)
	f.gateway.payments[resp.GatewayOrderID] = []gateway.Payment{{ID: "pay_slow", Status: "captured"}}

	r := NewPaymentReconciler(&pendingSnapshot{fakeStore: f.store, pending: snapshot}, f.gateway, f.svc, newFakeLocker(), 30*time.Minute)
	result, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Checked: 1, Skipped: 1}, result)

	assert.Equal(t, models.AttemptStatusCapturedLate, f.store.payments[resp.GatewayOrderID].Status)
	require.Len(t, f.events.late, 1)
	assert.Equal(t, "pay_slow", f.events.late[0].PaymentID)
	assert.Equal(t, int64(2000), f.events.late[0].Amount)
	assert.Empty(t, f.events.confirmed)
}
