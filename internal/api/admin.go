package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
)

// queryID reads the ?id= parameter used by the product and coupon routes
func queryID(c *gin.Context) (int64, bool) {
	raw := c.Query("id")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid id",
			"details": "id query parameter is required",
		})
		return 0, false
	}
	return parseID(c, raw)
}

func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return n
}

// queryOffset reads a paging offset; negative values mean the first page
func queryOffset(c *gin.Context) int {
	if n := queryInt(c, "offset", 0); n > 0 {
		return n
	}
	return 0
}

// adminProducts lists every product, or returns one when ?id= is given
func (h *Handler) adminProducts(c *gin.Context) {
	if c.Query("id") != "" {
		id, ok := queryID(c)
		if !ok {
			return
		}
		product, err := h.admin.GetProduct(c.Request.Context(), id)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
		return
	}

	products, err := h.admin.ListProducts(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) adminCreateProduct(c *gin.Context) {
	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		badBody(c, err)
		return
	}
	product.ID = 0

	if err := h.admin.CreateProduct(c.Request.Context(), actor(c), &product); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) adminUpdateProduct(c *gin.Context) {
	id, ok := queryID(c)
	if !ok {
		return
	}
	var patch service.ProductPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badBody(c, err)
		return
	}

	product, err := h.admin.UpdateProduct(c.Request.Context(), actor(c), id, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) adminDeleteProduct(c *gin.Context) {
	id, ok := queryID(c)
	if !ok {
		return
	}
	if err := h.admin.DeleteProduct(c.Request.Context(), actor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type bulkRequest struct {
	Action string  `json:"action" binding:"required"`
	IDs    []int64 `json:"ids" binding:"required"`
}

func (h *Handler) adminBulkProducts(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	affected, err := h.admin.BulkProducts(c.Request.Context(), actor(c), req.Action, req.IDs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"action":   req.Action,
		"affected": affected,
	})
}

func (h *Handler) adminListOrders(c *gin.Context) {
	q := store.OrderQuery{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Limit:  queryInt(c, "limit", 50),
		Offset: queryOffset(c),
	}
	orders, err := h.admin.ListOrders(c.Request.Context(), q)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) adminGetOrder(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}
	order, err := h.admin.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type orderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) adminUpdateOrder(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}
	var req orderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	order, err := h.admin.UpdateOrderStatus(c.Request.Context(), actor(c), id, req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) adminListCoupons(c *gin.Context) {
	coupons, err := h.admin.ListCoupons(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coupons": coupons})
}

func (h *Handler) adminCreateCoupon(c *gin.Context) {
	var coupon models.Coupon
	if err := c.ShouldBindJSON(&coupon); err != nil {
		badBody(c, err)
		return
	}
	coupon.ID = 0
	coupon.UsedCount = 0

	if err := h.admin.CreateCoupon(c.Request.Context(), actor(c), &coupon); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, coupon)
}

func (h *Handler) adminUpdateCoupon(c *gin.Context) {
	id, ok := queryID(c)
	if !ok {
		return
	}
	var patch service.CouponPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badBody(c, err)
		return
	}

	coupon, err := h.admin.UpdateCoupon(c.Request.Context(), actor(c), id, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, coupon)
}

func (h *Handler) adminDeleteCoupon(c *gin.Context) {
	id, ok := queryID(c)
	if !ok {
		return
	}
	if err := h.admin.DeleteCoupon(c.Request.Context(), actor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// adminUpload stores one multipart "file" field in media storage
func (h *Handler) adminUpload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			util.MediaUploadsTotal.WithLabelValues("too_large").Inc()
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":   "Upload too large",
				"details": strconv.FormatInt(tooLarge.Limit, 10) + " bytes max",
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Missing file",
			"details": err.Error(),
		})
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer f.Close()

	uploaded, err := h.uploads.Upload(c.Request.Context(), fh.Filename, fh.Header.Get("Content-Type"), f)
	if err != nil {
		util.MediaUploadsTotal.WithLabelValues("failed").Inc()
		h.respondError(c, err)
		return
	}
	util.MediaUploadsTotal.WithLabelValues("stored").Inc()
	c.JSON(http.StatusCreated, uploaded)
}

func (h *Handler) adminSettings(c *gin.Context) {
	settings, err := h.admin.Settings(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *Handler) adminUpdateSettings(c *gin.Context) {
	var values map[string]json.RawMessage
	if err := c.ShouldBindJSON(&values); err != nil {
		badBody(c, err)
		return
	}

	settings, err := h.admin.UpdateSettings(c.Request.Context(), actor(c), values)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *Handler) adminCustomers(c *gin.Context) {
	customers, err := h.admin.Customers(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": customers})
}

func (h *Handler) adminAnalytics(c *gin.Context) {
	analytics, err := h.admin.Analytics(c.Request.Context(), queryInt(c, "days", 30))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analytics)
}

func (h *Handler) adminActivity(c *gin.Context) {
	entries, err := h.admin.Activity(c.Request.Context(), queryInt(c, "limit", 100))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": entries})
}

func (h *Handler) adminMessages(c *gin.Context) {
	unread, _ := strconv.ParseBool(c.Query("unread"))
	messages, err := h.admin.Messages(c.Request.Context(), unread)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

type markMessageRequest struct {
	Read *bool `json:"read" binding:"required"`
}

func (h *Handler) adminMarkMessage(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}
	var req markMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	if err := h.admin.MarkMessage(c.Request.Context(), actor(c), id, *req.Read); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "read": *req.Read})
}

func (h *Handler) adminDeleteMessage(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}
	if err := h.admin.DeleteMessage(c.Request.Context(), actor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) adminEnquiries(c *gin.Context) {
	enquiries, err := h.admin.Enquiries(c.Request.Context(), c.Query("status"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enquiries": enquiries})
}

type enquiryStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) adminUpdateEnquiry(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}
	var req enquiryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	if err := h.admin.UpdateEnquiry(c.Request.Context(), actor(c), id, req.Status); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}
