package api

import (
	"errors"
	"net/http"

	"storefront/internal/checkout"
	"storefront/internal/media"
	"storefront/internal/service"
	"storefront/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps a service error onto a status code and JSON body
func (h *Handler) respondError(c *gin.Context, err error) {
	var (
		verr *checkout.ValidationError
		cerr *checkout.CouponError
		gerr *service.GatewayError
	)

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   verr.Error(),
			"details": verr.Fields,
		})
	case errors.As(err, &cerr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   cerr.Error(),
			"details": cerr.Reason,
		})
	case errors.As(err, &gerr):
		h.logger.Error("Payment gateway call failed", zap.String("op", gerr.Op), zap.Error(gerr.Err))
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Payment gateway unavailable, please try again",
			"details": gerr.Op,
		})
	case errors.Is(err, service.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Payment verification failed",
			"details": err.Error(),
		})
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Not found",
			"details": err.Error(),
		})
	case errors.Is(err, service.ErrOutOfStock),
		errors.Is(err, service.ErrOrderClosed),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, store.ErrStaleState):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "Conflict",
			"details": err.Error(),
		})
	case errors.Is(err, media.ErrUnsupportedType):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{
			"error":   "Unsupported media type",
			"details": err.Error(),
		})
	default:
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
	}
}
