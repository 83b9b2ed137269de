package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/servifield/servifield/internal/order/domain"
	paymentdomain "github.com/servifield/servifield/internal/payment/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

// ErrorHandlingMiddleware converts errors recorded on the gin context into a
// JSON error envelope. Handlers call AbortWithError instead of writing error
// bodies themselves.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, paymentdomain.ErrInvalidIncomeID),
		errors.Is(err, paymentdomain.ErrInvalidOrderID),
		errors.Is(err, orderdomain.ErrInvalidOrder):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "invalid request",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, paymentdomain.ErrNoPaymentsFound):
		// Reversing an order with nothing to reverse is a client mistake,
		// not a missing resource.
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "nothing_to_reverse",
			Message: "order has no payments to reverse",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isNotFoundError(err error) bool {
	return errors.Is(err, orderdomain.ErrOrderNotFound) ||
		errors.Is(err, paymentdomain.ErrIncomeNotFound) ||
		errors.Is(err, gorm.ErrRecordNotFound)
}
