package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/catalog"
	"storefront/internal/media"
	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Catalog serves the public product grid
type Catalog interface {
	ListProducts(ctx context.Context, filter catalog.Filter) (catalog.Page, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
}

// Carts manages session carts
type Carts interface {
	Get(ctx context.Context, sessionID string) (*models.Cart, error)
	Add(ctx context.Context, sessionID string, productID int64, quantity int) (*models.Cart, error)
	Update(ctx context.Context, sessionID string, productID int64, quantity int) (*models.Cart, error)
	Remove(ctx context.Context, sessionID string, productID int64) (*models.Cart, error)
	Clear(ctx context.Context, sessionID string) error
}

// Coupons checks discount codes
type Coupons interface {
	Validate(ctx context.Context, code string, subtotal int64) (*service.CouponQuote, error)
}

// Checkout runs checkout and payment confirmation
type Checkout interface {
	CreateOrder(ctx context.Context, req *service.CreateOrderRequest) (*service.CreateOrderResponse, error)
	VerifyPayment(ctx context.Context, req *service.VerifyPaymentRequest) (*service.VerifyPaymentResponse, error)
	RecordPaymentFailure(ctx context.Context, req *service.PaymentFailedRequest) error
	GetOrder(ctx context.Context, orderNumber string) (*service.OrderDetail, error)
}

// Contact accepts enquiries and messages
type Contact interface {
	SubmitEnquiry(ctx context.Context, req *service.EnquiryRequest) (*models.Enquiry, error)
	SubmitMessage(ctx context.Context, req *service.MessageRequest) (*models.Message, error)
}

// Admin is the admin console backend
type Admin interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, actor string, product *models.Product) error
	UpdateProduct(ctx context.Context, actor string, id int64, patch service.ProductPatch) (*models.Product, error)
	DeleteProduct(ctx context.Context, actor string, id int64) error
	BulkProducts(ctx context.Context, actor, action string, ids []int64) (int64, error)

	ListOrders(ctx context.Context, q store.OrderQuery) ([]models.Order, error)
	GetOrder(ctx context.Context, id int64) (*service.OrderDetail, error)
	UpdateOrderStatus(ctx context.Context, actor string, id int64, to string) (*models.Order, error)

	ListCoupons(ctx context.Context) ([]models.Coupon, error)
	CreateCoupon(ctx context.Context, actor string, coupon *models.Coupon) error
	UpdateCoupon(ctx context.Context, actor string, id int64, patch service.CouponPatch) (*models.Coupon, error)
	DeleteCoupon(ctx context.Context, actor string, id int64) error

	Settings(ctx context.Context) (map[string]json.RawMessage, error)
	UpdateSettings(ctx context.Context, actor string, values map[string]json.RawMessage) (map[string]json.RawMessage, error)
	Customers(ctx context.Context) ([]models.Customer, error)
	Analytics(ctx context.Context, days int) (*models.Analytics, error)
	Activity(ctx context.Context, limit int) ([]models.ActivityLogEntry, error)

	Messages(ctx context.Context, unreadOnly bool) ([]models.Message, error)
	MarkMessage(ctx context.Context, actor string, id int64, read bool) error
	DeleteMessage(ctx context.Context, actor string, id int64) error
	Enquiries(ctx context.Context, status string) ([]models.Enquiry, error)
	UpdateEnquiry(ctx context.Context, actor string, id int64, status string) error
}

// Uploader stores admin media uploads
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, body io.Reader) (*media.Uploaded, error)
}

// Pinger is a dependency the readiness check pings
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the HTTP layer dispatches to
type Deps struct {
	Catalog        Catalog
	Carts          Carts
	Coupons        Coupons
	Checkout       Checkout
	Contact        Contact
	Admin          Admin
	Uploads        Uploader
	Auth           AuthConfig
	MaxUploadBytes int64
	Readiness      map[string]Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	catalog        Catalog
	carts          Carts
	coupons        Coupons
	checkout       Checkout
	contact        Contact
	admin          Admin
	uploads        Uploader
	auth           AuthConfig
	maxUploadBytes int64
	readiness      map[string]Pinger
	logger         *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(deps Deps) *Handler {
	return &Handler{
		catalog:        deps.Catalog,
		carts:          deps.Carts,
		coupons:        deps.Coupons,
		checkout:       deps.Checkout,
		contact:        deps.Contact,
		admin:          deps.Admin,
		uploads:        deps.Uploads,
		auth:           deps.Auth,
		maxUploadBytes: deps.MaxUploadBytes,
		readiness:      deps.Readiness,
		logger:         util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger(h.logger))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	requireAdmin := AdminAuth(h.auth)

	public := router.Group("/api")
	{
		public.GET("/products", h.listProducts)
		public.GET("/products/:id", h.getProduct)
		public.POST("/products", requireAdmin, h.adminCreateProduct)

		public.GET("/cart", h.getCart)
		public.POST("/cart/items", h.addCartItem)
		public.PATCH("/cart/items/:productId", h.updateCartItem)
		public.DELETE("/cart/items/:productId", h.removeCartItem)
		public.DELETE("/cart", h.clearCart)

		public.POST("/coupons/validate", h.validateCoupon)

		public.POST("/razorpay/create-order", h.createOrder)
		public.POST("/razorpay/verify-payment", h.verifyPayment)
		public.POST("/razorpay/payment-failed", h.paymentFailed)

		public.GET("/orders/:number", h.getOrder)

		public.POST("/enquiries", h.submitEnquiry)
		public.POST("/messages", h.submitMessage)
	}

	admin := router.Group("/api/admin", requireAdmin)
	{
		admin.GET("/products", h.adminProducts)
		admin.POST("/products", h.adminCreateProduct)
		admin.PATCH("/products", h.adminUpdateProduct)
		admin.DELETE("/products", h.adminDeleteProduct)
		admin.POST("/products/bulk", h.adminBulkProducts)

		admin.GET("/orders", h.adminListOrders)
		admin.GET("/orders/:id", h.adminGetOrder)
		admin.PATCH("/orders/:id", h.adminUpdateOrder)

		admin.GET("/coupons", h.adminListCoupons)
		admin.POST("/coupons", h.adminCreateCoupon)
		admin.PATCH("/coupons", h.adminUpdateCoupon)
		admin.DELETE("/coupons", h.adminDeleteCoupon)

		admin.POST("/upload", h.adminUpload)

		admin.GET("/settings", h.adminSettings)
		admin.PATCH("/settings", h.adminUpdateSettings)

		admin.GET("/customers", h.adminCustomers)
		admin.GET("/analytics", h.adminAnalytics)
		admin.GET("/activity", h.adminActivity)

		admin.GET("/messages", h.adminMessages)
		admin.PATCH("/messages/:id", h.adminMarkMessage)
		admin.DELETE("/messages/:id", h.adminDeleteMessage)

		admin.GET("/enquiries", h.adminEnquiries)
		admin.PATCH("/enquiries/:id", h.adminUpdateEnquiry)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every backing service
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.readiness))
	ready := true
	for name, p := range h.readiness {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

// requestLogger writes one structured line per request
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if p, ok := PrincipalFrom(c.Request.Context()); ok {
			fields = append(fields, zap.String("actor", p.Actor()))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("HTTP request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn("HTTP request", fields...)
		default:
			logger.Debug("HTTP request", fields...)
		}
	}
}

func parseID(c *gin.Context, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid id",
			"details": raw,
		})
		return 0, false
	}
	return id, true
}

func badBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}
