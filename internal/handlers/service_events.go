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

type scheduleRequest struct {
	EquipmentID string `json:"equipment_id" binding:"required"`
	Kind        string `json:"kind" binding:"required" example:"MAINTENANCE"`
	Type        string `json:"type,omitempty" example:"PREVENTIVE"`
	BaseDate    string `json:"base_date,omitempty" example:"2025-01-01"`
	Notes       string `json:"notes,omitempty"`
}

type completeRequest struct {
	Parts []models.PartUsage `json:"parts"`
	Notes string             `json:"notes"`
}

// @Summary      Schedule service event
// @Description  Due date is base_date plus the risk-class interval. A same-kind open event within 7 days is a conflict.
// @Tags         service-events
// @Accept       json
// @Produce      json
// @Param        input  body      scheduleRequest  true  "event"
// @Success      201    {object}  models.ServiceEvent
// @Failure      400    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Failure      409    {object}  map[string]string
// @Router       /api/v1/service-events [post]
// @Security     BearerAuth
func (h *Handler) scheduleEvent(c *gin.Context) {
	var input scheduleRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}
	base, err := parseOptionalDate("base_date", input.BaseDate)
	if err != nil {
		h.respondError(c, "event_schedule", err)
		return
	}
	in := service.ScheduleInput{
		EquipmentID: input.EquipmentID,
		Kind:        models.EventKind(upper(input.Kind)),
		Type:        models.EventType(upper(input.Type)),
		Notes:       input.Notes,
	}
	if base != nil {
		in.BaseDate = *base
	}

	ev, err := h.services.Events.Schedule(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, "event_schedule", err)
		return
	}
	c.JSON(http.StatusCreated, ev)
}

// @Summary      List service events
// @Tags         service-events
// @Produce      json
// @Param        equipment_id  query  string  false  "Equipment ID"
// @Param        kind          query  string  false  "Kind"   Enums(MAINTENANCE,CALIBRATION)
// @Param        state         query  string  false  "State"  Enums(SCHEDULED,IN_PROGRESS,COMPLETED,CANCELLED)
// @Param        from          query  string  false  "Scheduled on or after"
// @Param        to            query  string  false  "Scheduled on or before. Date-only treated as end of day."
// @Success      200  {object}  map[string]interface{}  "count, events"
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/service-events [get]
// @Security     BearerAuth
func (h *Handler) listEvents(c *gin.Context) {
	from, to, ok := h.queryRange(c)
	if !ok {
		return
	}
	events, err := h.services.Events.List(c.Request.Context(), repository.EventFilter{
		EquipmentID: strings.TrimSpace(c.Query("equipment_id")),
		Kind:        models.EventKind(upper(c.Query("kind"))),
		State:       models.EventState(upper(c.Query("state"))),
		From:        from,
		To:          to,
	})
	if err != nil {
		h.respondError(c, "event_list", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(events), "events": events})
}

// @Summary      List overdue service events
// @Tags         service-events
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, events"
// @Router       /api/v1/service-events/overdue [get]
// @Security     BearerAuth
func (h *Handler) listOverdueEvents(c *gin.Context) {
	events, err := h.services.Events.ListOverdue(c.Request.Context())
	if err != nil {
		h.respondError(c, "event_list_overdue", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(events), "events": events})
}

// @Summary      Get service event
// @Tags         service-events
// @Produce      json
// @Param        id   path      string  true  "Event ID"
// @Success      200  {object}  models.ServiceEvent
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/service-events/{id} [get]
// @Security     BearerAuth
func (h *Handler) getEvent(c *gin.Context) {
	ev, err := h.services.Events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "event_get", err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// @Summary      Start service event
// @Tags         service-events
// @Produce      json
// @Param        id   path      string  true  "Event ID"
// @Success      200  {object}  models.ServiceEvent
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/service-events/{id}/start [post]
// @Security     BearerAuth
func (h *Handler) startEvent(c *gin.Context) {
	ev, err := h.services.Events.Start(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "event_start", err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// @Summary      Complete service event
// @Description  Consumes the listed parts and chains the next preventive event.
// @Tags         service-events
// @Accept       json
// @Produce      json
// @Param        id     path      string           true  "Event ID"
// @Param        input  body      completeRequest  true  "outcome"
// @Success      200    {object}  models.ServiceEvent
// @Failure      400    {object}  map[string]string
// @Failure      409    {object}  map[string]string
// @Router       /api/v1/service-events/{id}/complete [post]
// @Security     BearerAuth
func (h *Handler) completeEvent(c *gin.Context) {
	var input completeRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}
	ev, err := h.services.Events.Complete(c.Request.Context(), c.Param("id"), service.CompletionOutcome{
		Parts: input.Parts,
		Notes: input.Notes,
	})
	if err != nil {
		h.respondError(c, "event_complete", err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// @Summary      Cancel service event
// @Tags         service-events
// @Accept       json
// @Produce      json
// @Param        id     path      string         true  "Event ID"
// @Param        input  body      reasonRequest  true  "reason"
// @Success      200    {object}  models.ServiceEvent
// @Failure      400    {object}  map[string]string
// @Failure      409    {object}  map[string]string
// @Router       /api/v1/service-events/{id}/cancel [post]
// @Security     BearerAuth
func (h *Handler) cancelEvent(c *gin.Context) {
	var input reasonRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}
	ev, err := h.services.Events.Cancel(c.Request.Context(), c.Param("id"), input.Reason)
	if err != nil {
		h.respondError(c, "event_cancel", err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// queryRange parses optional from/to query params and writes a 400 on failure.
func (h *Handler) queryRange(c *gin.Context) (from, to time.Time, ok bool) {
	var err error
	if qs := c.Query("from"); qs != "" {
		from, err = parseQueryTime(qs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errFromInvalid})
			return from, to, false
		}
	}
	if qs := c.Query("to"); qs != "" {
		to, err = parseQueryTime(qs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errToInvalid})
			return from, to, false
		}
		if isDateOnly(qs) {
			to = to.Add(24*time.Hour - time.Nanosecond).UTC()
		}
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'from' must be <= 'to'"})
		return from, to, false
	}
	return from, to, true
}
