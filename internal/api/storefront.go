package api

import (
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/catalog"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CartSessionHeader carries the shopper's cart session both ways
const CartSessionHeader = "X-Cart-Session"

// listProducts handles the filtered product grid
func (h *Handler) listProducts(c *gin.Context) {
	filter := catalog.Filter{
		Category:     c.Query("category"),
		PriceBracket: c.Query("price"),
		Finish:       c.Query("finish"),
		Availability: c.Query("availability"),
		Attributes:   c.QueryMap("attr"),
		Sort:         c.Query("sort"),
	}
	if raw := c.Query("visible"); raw != "" {
		visible, err := strconv.Atoi(raw)
		if err != nil || visible < 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid visible count",
				"details": raw,
			})
			return
		}
		filter.Visible = visible
	}

	page, err := h.catalog.ListProducts(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// getProduct handles product detail
func (h *Handler) getProduct(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}
	product, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// cartSession returns the request's cart session, issuing a new one when
// the browser has none yet
func cartSession(c *gin.Context) string {
	session := strings.TrimSpace(c.GetHeader(CartSessionHeader))
	if session == "" {
		session = uuid.New().String()
	}
	c.Header(CartSessionHeader, session)
	return session
}

type cartItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
	Quantity  int   `json:"quantity" binding:"required,gt=0"`
}

type cartQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func (h *Handler) getCart(c *gin.Context) {
	cart, err := h.carts.Get(c.Request.Context(), cartSession(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	cart, err := h.carts.Add(c.Request.Context(), cartSession(c), req.ProductID, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) updateCartItem(c *gin.Context) {
	productID, ok := parseID(c, c.Param("productId"))
	if !ok {
		return
	}
	var req cartQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	cart, err := h.carts.Update(c.Request.Context(), cartSession(c), productID, *req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	productID, ok := parseID(c, c.Param("productId"))
	if !ok {
		return
	}
	cart, err := h.carts.Remove(c.Request.Context(), cartSession(c), productID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.carts.Clear(c.Request.Context(), cartSession(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type couponRequest struct {
	Code     string `json:"code" binding:"required"`
	Subtotal int64  `json:"subtotal"`
}

// validateCoupon prices a code against the given subtotal, or against the
// session cart when no subtotal is sent
func (h *Handler) validateCoupon(c *gin.Context) {
	var req couponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	subtotal := req.Subtotal
	if subtotal == 0 && c.GetHeader(CartSessionHeader) != "" {
		cart, err := h.carts.Get(c.Request.Context(), cartSession(c))
		if err != nil {
			h.respondError(c, err)
			return
		}
		subtotal = cart.Subtotal
	}

	quote, err := h.coupons.Validate(c.Request.Context(), req.Code, subtotal)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// createOrder handles checkout: it persists a pending order and returns the
// payment widget options
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}
	req.SessionID = strings.TrimSpace(c.GetHeader(CartSessionHeader))

	resp, err := h.checkout.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// verifyPayment handles the widget's success callback
func (h *Handler) verifyPayment(c *gin.Context) {
	var req service.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}
	req.SessionID = strings.TrimSpace(c.GetHeader(CartSessionHeader))

	resp, err := h.checkout.VerifyPayment(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// paymentFailed records a failure the widget reported
func (h *Handler) paymentFailed(c *gin.Context) {
	var req service.PaymentFailedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	if err := h.checkout.RecordPaymentFailure(c.Request.Context(), &req); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "recorded"})
}

// getOrder handles the confirmation page lookup by order number
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.checkout.GetOrder(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) submitEnquiry(c *gin.Context) {
	var req service.EnquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	enquiry, err := h.contact.SubmitEnquiry(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, enquiry)
}

func (h *Handler) submitMessage(c *gin.Context) {
	var req service.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	msg, err := h.contact.SubmitMessage(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
