package handlers

import (
	"net/http"
	"strings"
	"time"

	"equipment_service/internal/models"
	"equipment_service/internal/repository"
	"equipment_service/internal/service"

	"github.com/gin-gonic/gin"
)

type registerEquipmentRequest struct {
	Code                string `json:"code" binding:"required"`
	Name                string `json:"name" binding:"required"`
	Department          string `json:"department"`
	RiskClass           string `json:"risk_class" binding:"required" example:"HIGH"`
	IsCritical          bool   `json:"is_critical"`
	LastServiceDate     string `json:"last_service_date,omitempty" example:"2025-01-01"`
	LastCalibrationDate string `json:"last_calibration_date,omitempty" example:"2025-01-01"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// @Summary      Register equipment
// @Tags         equipment
// @Accept       json
// @Produce      json
// @Param        input  body      registerEquipmentRequest  true  "equipment"
// @Success      201    {object}  models.Equipment
// @Failure      400    {object}  map[string]string
// @Failure      409    {object}  map[string]string
// @Router       /api/v1/equipment [post]
// @Security     BearerAuth
func (h *Handler) registerEquipment(c *gin.Context) {
	var input registerEquipmentRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}
	lastService, err := parseOptionalDate("last_service_date", input.LastServiceDate)
	if err != nil {
		h.respondError(c, "equipment_register", err)
		return
	}
	lastCalibration, err := parseOptionalDate("last_calibration_date", input.LastCalibrationDate)
	if err != nil {
		h.respondError(c, "equipment_register", err)
		return
	}

	e, err := h.services.Equipment.Register(c.Request.Context(), service.RegisterEquipmentInput{
		Code:                input.Code,
		Name:                input.Name,
		Department:          input.Department,
		RiskClass:           models.RiskClass(upper(input.RiskClass)),
		IsCritical:          input.IsCritical,
		LastServiceDate:     lastService,
		LastCalibrationDate: lastCalibration,
	})
	if err != nil {
		h.respondError(c, "equipment_register", err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

// @Summary      List equipment
// @Tags         equipment
// @Produce      json
// @Param        department  query  string  false  "Department"
// @Param        risk_class  query  string  false  "Risk class"  Enums(LOW,MEDIUM,MEDIUM_HIGH,HIGH)
// @Param        state       query  string  false  "Service state"  Enums(ACTIVE,IN_SERVICE,DECOMMISSIONED)
// @Success      200  {object}  map[string]interface{}  "count, equipment"
// @Router       /api/v1/equipment [get]
// @Security     BearerAuth
func (h *Handler) listEquipment(c *gin.Context) {
	items, err := h.services.Equipment.List(c.Request.Context(), repository.EquipmentFilter{
		Department: strings.TrimSpace(c.Query("department")),
		RiskClass:  models.RiskClass(upper(c.Query("risk_class"))),
		State:      models.ServiceState(upper(c.Query("state"))),
	})
	if err != nil {
		h.respondError(c, "equipment_list", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(items), "equipment": items})
}

// @Summary      Get equipment
// @Tags         equipment
// @Produce      json
// @Param        id   path      string  true  "Equipment ID"
// @Success      200  {object}  models.Equipment
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/equipment/{id} [get]
// @Security     BearerAuth
func (h *Handler) getEquipment(c *gin.Context) {
	e, err := h.services.Equipment.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "equipment_get", err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// @Summary      Equipment overview
// @Description  Open events, open contingencies, open tickets and next due dates.
// @Tags         equipment
// @Produce      json
// @Param        id   path      string  true  "Equipment ID"
// @Success      200  {object}  models.EquipmentOverview
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/equipment/{id}/overview [get]
// @Security     BearerAuth
func (h *Handler) equipmentOverview(c *gin.Context) {
	ov, err := h.services.Equipment.Overview(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "equipment_overview", err)
		return
	}
	c.JSON(http.StatusOK, ov)
}

// @Summary      Decommission equipment
// @Tags         equipment
// @Accept       json
// @Produce      json
// @Param        id     path      string         true  "Equipment ID"
// @Param        input  body      reasonRequest  true  "reason"
// @Success      200    {object}  models.Equipment
// @Failure      404    {object}  map[string]string
// @Failure      409    {object}  map[string]string
// @Router       /api/v1/equipment/{id}/decommission [post]
// @Security     BearerAuth
func (h *Handler) decommissionEquipment(c *gin.Context) {
	var input reasonRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}
	e, err := h.services.Equipment.Decommission(c.Request.Context(), c.Param("id"), input.Reason)
	if err != nil {
		h.respondError(c, "equipment_decommission", err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// parseOptionalDate accepts the same layouts as the logs query.
func parseOptionalDate(field, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := parseQueryTime(s)
	if err != nil {
		return nil, &service.ValidationError{Field: field, Reason: "use RFC3339 or YYYY-MM-DD"}
	}
	return &t, nil
}
