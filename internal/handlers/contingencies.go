package handlers

import (
	"net/http"
	"strings"

	"equipment_service/internal/models"
	"equipment_service/internal/repository"
	"equipment_service/internal/service"

	"github.com/gin-gonic/gin"
)

type reportRequest struct {
	EquipmentID string `json:"equipment_id" binding:"required"`
	FailureType string `json:"failure_type" binding:"required" example:"power"`
	Description string `json:"description"`
}

type resolveContingencyRequest struct {
	RootCause        string `json:"root_cause"`
	Resolution       string `json:"resolution" binding:"required"`
	ScheduleFollowUp bool   `json:"schedule_follow_up"`
}

// @Summary      Report contingency
// @Description  Severity is derived from the failure type, equipment criticality and risk class.
// @Tags         contingencies
// @Accept       json
// @Produce      json
// @Param        input  body      reportRequest  true  "failure"
// @Success      201    {object}  models.Contingency
// @Failure      400    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Router       /api/v1/contingencies [post]
// @Security     BearerAuth
func (h *Handler) reportContingency(c *gin.Context) {
	var input reportRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}
	ct, err := h.services.Contingencies.Report(c.Request.Context(), service.ReportInput{
		EquipmentID: input.EquipmentID,
		FailureType: input.FailureType,
		Description: input.Description,
	})
	if err != nil {
		h.respondError(c, "contingency_report", err)
		return
	}
	c.JSON(http.StatusCreated, ct)
}

// @Summary      List contingencies
// @Tags         contingencies
// @Produce      json
// @Param        equipment_id  query  string  false  "Equipment ID"
// @Param        state         query  string  false  "State"     Enums(OPEN,ESCALATED,CLOSED)
// @Param        severity      query  string  false  "Severity"  Enums(LOW,MEDIUM,HIGH,CRITICAL)
// @Success      200  {object}  map[string]interface{}  "count, contingencies"
// @Router       /api/v1/contingencies [get]
// @Security     BearerAuth
func (h *Handler) listContingencies(c *gin.Context) {
	items, err := h.services.Contingencies.List(c.Request.Context(), repository.ContingencyFilter{
		EquipmentID: strings.TrimSpace(c.Query("equipment_id")),
		State:       models.ContingencyState(upper(c.Query("state"))),
		Severity:    models.Severity(upper(c.Query("severity"))),
	})
	if err != nil {
		h.respondError(c, "contingency_list", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(items), "contingencies": items})
}

// @Summary      List contingencies past their resolution deadline
// @Tags         contingencies
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, contingencies"
// @Router       /api/v1/contingencies/expired [get]
// @Security     BearerAuth
func (h *Handler) listExpiredContingencies(c *gin.Context) {
	items, err := h.services.Contingencies.ListExpired(c.Request.Context())
	if err != nil {
		h.respondError(c, "contingency_list_expired", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(items), "contingencies": items})
}

// @Summary      Get contingency
// @Tags         contingencies
// @Produce      json
// @Param        id   path      string  true  "Contingency ID"
// @Success      200  {object}  models.Contingency
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/contingencies/{id} [get]
// @Security     BearerAuth
func (h *Handler) getContingency(c *gin.Context) {
	ct, err := h.services.Contingencies.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "contingency_get", err)
		return
	}
	c.JSON(http.StatusOK, ct)
}

// @Summary      Escalate contingency
// @Tags         contingencies
// @Accept       json
// @Produce      json
// @Param        id     path      string         true  "Contingency ID"
// @Param        input  body      reasonRequest  true  "reason"
// @Success      200    {object}  models.Contingency
// @Failure      409    {object}  map[string]string
// @Router       /api/v1/contingencies/{id}/escalate [post]
// @Security     BearerAuth
func (h *Handler) escalateContingency(c *gin.Context) {
	var input reasonRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}
	ct, err := h.services.Contingencies.Escalate(c.Request.Context(), c.Param("id"), input.Reason)
	if err != nil {
		h.respondError(c, "contingency_escalate", err)
		return
	}
	c.JSON(http.StatusOK, ct)
}

// @Summary      Resolve contingency
// @Description  Closes the contingency and optionally schedules a corrective follow-up maintenance.
// @Tags         contingencies
// @Accept       json
// @Produce      json
// @Param        id     path      string                     true  "Contingency ID"
// @Param        input  body      resolveContingencyRequest  true  "resolution"
// @Success      200    {object}  models.Contingency
// @Failure      400    {object}  map[string]string
// @Failure      409    {object}  map[string]string
// @Router       /api/v1/contingencies/{id}/resolve [post]
// @Security     BearerAuth
func (h *Handler) resolveContingency(c *gin.Context) {
	var input resolveContingencyRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}
	ct, err := h.services.Contingencies.Resolve(c.Request.Context(), c.Param("id"), service.ResolveInput{
		RootCause:        input.RootCause,
		Resolution:       input.Resolution,
		ScheduleFollowUp: input.ScheduleFollowUp,
	})
	if err != nil {
		h.respondError(c, "contingency_resolve", err)
		return
	}
	c.JSON(http.StatusOK, ct)
}
