package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"equipment_service/internal/models"
	"equipment_service/internal/repository"
	"equipment_service/internal/service"

	"github.com/gin-gonic/gin"
)

type createTicketRequest struct {
	Category    string  `json:"category" binding:"required" example:"biomedical"`
	Priority    string  `json:"priority" binding:"required" example:"MEDIUM"`
	Description string  `json:"description"`
	EquipmentID *string `json:"equipment_id,omitempty"`
}

type assignRequest struct {
	AgentID int `json:"agent_id" binding:"required"`
}

type solutionRequest struct {
	Solution string `json:"solution"`
}

type closeTicketRequest struct {
	Solution          string `json:"solution"`
	SatisfactionScore *int   `json:"satisfaction_score,omitempty"`
}

// @Summary      Create ticket
// @Tags         tickets
// @Accept       json
// @Produce      json
// @Param        input  body      createTicketRequest  true  "ticket"
// @Success      201    {object}  models.Ticket
// @Failure      400    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Router       /api/v1/tickets [post]
// @Security     BearerAuth
func (h *Handler) createTicket(c *gin.Context) {
	var input createTicketRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}
	t, err := h.services.Tickets.Create(c.Request.Context(), service.CreateTicketInput{
		Category:    input.Category,
		Priority:    models.TicketPriority(upper(input.Priority)),
		Description: input.Description,
		EquipmentID: input.EquipmentID,
	})
	if err != nil {
		h.respondError(c, "ticket_create", err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// @Summary      List tickets
// @Tags         tickets
// @Produce      json
// @Param        category     query  string  false  "Category"
// @Param        state        query  string  false  "State"  Enums(OPEN,IN_PROGRESS,ESCALATED,RESOLVED,CLOSED)
// @Param        assignee_id  query  int     false  "Assignee user ID"
// @Param        open         query  bool    false  "Only tickets not yet resolved or closed"
// @Success      200  {object}  map[string]interface{}  "count, tickets"
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/tickets [get]
// @Security     BearerAuth
func (h *Handler) listTickets(c *gin.Context) {
	f := repository.TicketFilter{
		Category: strings.TrimSpace(c.Query("category")),
		State:    models.TicketState(upper(c.Query("state"))),
	}
	if qs := c.Query("assignee_id"); qs != "" {
		id, err := strconv.Atoi(qs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'assignee_id'"})
			return
		}
		f.AssigneeID = &id
	}
	if qs := c.Query("open"); qs != "" {
		open, err := strconv.ParseBool(qs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'open'"})
			return
		}
		f.OpenOnly = open
	}

	items, err := h.services.Tickets.List(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, "ticket_list", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(items), "tickets": items})
}

// @Summary      Get ticket
// @Tags         tickets
// @Produce      json
// @Param        id   path      string  true  "Ticket ID"
// @Success      200  {object}  models.Ticket
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/tickets/{id} [get]
// @Security     BearerAuth
func (h *Handler) getTicket(c *gin.Context) {
	t, err := h.services.Tickets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "ticket_get", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// @Summary      Auto-assign ticket
// @Description  Picks the agent in the ticket category with the fewest open tickets.
// @Tags         tickets
// @Produce      json
// @Param        id   path      string  true  "Ticket ID"
// @Success      200  {object}  models.Ticket
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/tickets/{id}/auto-assign [post]
// @Security     BearerAuth
func (h *Handler) autoAssignTicket(c *gin.Context) {
	t, err := h.services.Tickets.AutoAssign(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "ticket_auto_assign", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// @Summary      Assign ticket
// @Tags         tickets
// @Accept       json
// @Produce      json
// @Param        id     path      string         true  "Ticket ID"
// @Param        input  body      assignRequest  true  "agent"
// @Success      200    {object}  models.Ticket
// @Failure      400    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Router       /api/v1/tickets/{id}/assign [post]
// @Security     BearerAuth
func (h *Handler) assignTicket(c *gin.Context) {
	var input assignRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}
	t, err := h.services.Tickets.Assign(c.Request.Context(), c.Param("id"), input.AgentID)
	if err != nil {
		h.respondError(c, "ticket_assign", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// @Summary      Escalate overdue ticket
// @Tags         tickets
// @Produce      json
// @Param        id   path      string  true  "Ticket ID"
// @Success      200  {object}  models.Ticket
// @Failure      409  {object}  map[string]string  "still within its window"
// @Router       /api/v1/tickets/{id}/escalate [post]
// @Security     BearerAuth
func (h *Handler) escalateTicket(c *gin.Context) {
	t, err := h.services.Tickets.EscalateIfOverdue(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "ticket_escalate", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// @Summary      Resolve ticket
// @Tags         tickets
// @Accept       json
// @Produce      json
// @Param        id     path      string           true  "Ticket ID"
// @Param        input  body      solutionRequest  true  "solution"
// @Success      200    {object}  models.Ticket
// @Failure      400    {object}  map[string]string
// @Failure      409    {object}  map[string]string
// @Router       /api/v1/tickets/{id}/resolve [post]
// @Security     BearerAuth
func (h *Handler) resolveTicket(c *gin.Context) {
	var input solutionRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}
	t, err := h.services.Tickets.Resolve(c.Request.Context(), c.Param("id"), input.Solution)
	if err != nil {
		h.respondError(c, "ticket_resolve", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// @Summary      Close ticket
// @Tags         tickets
// @Accept       json
// @Produce      json
// @Param        id     path      string              true  "Ticket ID"
// @Param        input  body      closeTicketRequest  true  "solution and optional score 1..5"
// @Success      200    {object}  models.Ticket
// @Failure      400    {object}  map[string]string
// @Failure      409    {object}  map[string]string
// @Router       /api/v1/tickets/{id}/close [post]
// @Security     BearerAuth
func (h *Handler) closeTicket(c *gin.Context) {
	var input closeTicketRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}
	t, err := h.services.Tickets.Close(c.Request.Context(), c.Param("id"), service.CloseTicketInput{
		Solution:          input.Solution,
		SatisfactionScore: input.SatisfactionScore,
	})
	if err != nil {
		h.respondError(c, "ticket_close", err)
		return
	}
	c.JSON(http.StatusOK, t)
}
