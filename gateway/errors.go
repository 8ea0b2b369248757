package gateway

import (
	"errors"
	"net/http"

	"github.com/example/foodorder/pkg/payment"
	"github.com/example/foodorder/pkg/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, payment.ErrInvalidSignature),
		errors.Is(err, payment.ErrInvalidPayload):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, service.ErrPaymentNotConfigured):
		return http.StatusInternalServerError, "payment_not_configured"
	case errors.Is(err, service.ErrPaymentUnavailable):
		return http.StatusBadGateway, "payment_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// respondError writes the error envelope. Server-side failures are logged
// and replaced by a generic message.
func (g *Gateway) respondError(c *gin.Context, err error) {
	status, code := classify(err)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		g.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", code),
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.Error(err))
		switch code {
		case "payment_not_configured", "payment_unavailable":
			message = "payment provider unavailable"
		default:
			message = "internal server error"
		}
	}

	c.JSON(status, gin.H{
		"success": false,
		"message": message,
		"code":    code,
	})
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}
