package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_created_total",
		Help: "Pending orders created at checkout",
	}, []string{"payment_method"})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_failed_total",
		Help: "Checkout attempts rejected before a gateway order was opened",
	}, []string{"reason"})

	OrdersConfirmedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_confirmed_total",
		Help: "Orders whose payment was confirmed",
	}, []string{"source"})

	OrdersExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_expired_total",
		Help: "Pending orders expired by the reconciler",
	})

	LateCapturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_late_captures_total",
		Help: "Payments captured after their order had expired",
	}, []string{"source"})

	OrderStatusChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_order_status_changes_total",
		Help: "Fulfilment status changes made from the admin console",
	}, []string{"to"})

	PaymentVerificationFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_payment_verification_failed_total",
		Help: "Payment verifications that did not confirm an order",
	}, []string{"reason"})

	PaymentFailuresReported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_payment_failures_reported_total",
		Help: "Failures reported by the checkout widget",
	})

	GatewayRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_gateway_request_latency_seconds",
		Help:    "Latency of payment gateway calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	StockReserveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_stock_reserve_latency_seconds",
		Help:    "Latency of stock reservation for one order",
		Buckets: prometheus.DefBuckets,
	})

	StockReservationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_stock_reservations_failed_total",
		Help: "Failed stock reservations",
	}, []string{"reason"})

	ReconcileRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_reconcile_run_duration_seconds",
		Help:    "Duration of one payment reconciliation pass",
		Buckets: prometheus.DefBuckets,
	})

	CartOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_operations_total",
		Help: "Cart mutations by operation",
	}, []string{"op"})

	ProductCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_product_cache_total",
		Help: "Product list cache lookups by result",
	}, []string{"result"})

	MediaUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_media_uploads_total",
		Help: "Admin media uploads by outcome",
	}, []string{"outcome"})

	AdminActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_admin_actions_total",
		Help: "Admin mutations by entity",
	}, []string{"entity"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
