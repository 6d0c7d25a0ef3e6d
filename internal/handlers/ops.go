package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary      Health
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary      Run overdue sweep
// @Description  Notifies overdue service events and escalates expired contingencies and overdue tickets once.
// @Tags         sweep
// @Produce      json
// @Success      200  {object}  service.SweepReport
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/sweep [post]
// @Security     BearerAuth
func (h *Handler) runSweep(c *gin.Context) {
	report, err := h.services.Sweep.RunOverdueSweep(c.Request.Context())
	if err != nil {
		h.respondError(c, "sweep", err)
		return
	}
	c.JSON(http.StatusOK, report)
}
