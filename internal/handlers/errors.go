package handlers

import (
	"errors"
	"net/http"

	"equipment_service/internal/service"

	"github.com/gin-gonic/gin"
)

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	var (
		validation *service.ValidationError
		stock      *service.InsufficientStockError
		notFound   *service.NotFoundError
		conflict   *service.ConflictError
		state      *service.InvalidStateError
		noAgent    *service.NoAgentAvailableError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &stock):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &conflict), errors.As(err, &state), errors.As(err, &noAgent):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the mapped status. Internal failures are logged and
// their detail is not leaked to the client.
func (h *Handler) respondError(c *gin.Context, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		if h.log != nil {
			h.log.Errorw(op+"_failed", "err", err)
		}
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	if h.log != nil {
		h.log.Infow(op+"_rejected", "status", status, "err", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
