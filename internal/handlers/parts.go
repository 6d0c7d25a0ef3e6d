package handlers

import (
	"net/http"

	"equipment_service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type registerPartRequest struct {
	Code            string          `json:"code" binding:"required"`
	Name            string          `json:"name" binding:"required"`
	ReorderPoint    int             `json:"reorder_point"`
	ReorderCeiling  *int            `json:"reorder_ceiling,omitempty"`
	InitialQuantity int             `json:"initial_quantity"`
	UnitCost        decimal.Decimal `json:"unit_cost" swaggertype:"string" example:"12.50"`
}

type receiveRequest struct {
	Quantity  int             `json:"quantity" binding:"required"`
	UnitCost  decimal.Decimal `json:"unit_cost" swaggertype:"string" example:"12.50"`
	Reference string          `json:"reference"`
}

type issueRequest struct {
	Quantity  int    `json:"quantity" binding:"required"`
	Reference string `json:"reference"`
}

type reconcileRequest struct {
	PhysicalCount *int   `json:"physical_count" binding:"required"`
	Reference     string `json:"reference"`
}

// @Summary      Register spare part
// @Tags         parts
// @Accept       json
// @Produce      json
// @Param        input  body      registerPartRequest  true  "part"
// @Success      201    {object}  models.SparePart
// @Failure      400    {object}  map[string]string
// @Failure      409    {object}  map[string]string
// @Router       /api/v1/parts [post]
// @Security     BearerAuth
func (h *Handler) registerPart(c *gin.Context) {
	var input registerPartRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}
	p, err := h.services.Parts.Register(c.Request.Context(), service.RegisterPartInput{
		Code:            input.Code,
		Name:            input.Name,
		ReorderPoint:    input.ReorderPoint,
		ReorderCeiling:  input.ReorderCeiling,
		InitialQuantity: input.InitialQuantity,
		UnitCost:        input.UnitCost,
	})
	if err != nil {
		h.respondError(c, "part_register", err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// @Summary      List spare parts
// @Tags         parts
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, parts"
// @Router       /api/v1/parts [get]
// @Security     BearerAuth
func (h *Handler) listParts(c *gin.Context) {
	items, err := h.services.Parts.List(c.Request.Context())
	if err != nil {
		h.respondError(c, "part_list", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(items), "parts": items})
}

// @Summary      Get spare part
// @Tags         parts
// @Produce      json
// @Param        id   path      string  true  "Part ID"
// @Success      200  {object}  models.SparePart
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/parts/{id} [get]
// @Security     BearerAuth
func (h *Handler) getPart(c *gin.Context) {
	p, err := h.services.Parts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "part_get", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Stock movements of a part
// @Tags         parts
// @Produce      json
// @Param        id   path      string  true  "Part ID"
// @Success      200  {object}  map[string]interface{}  "count, movements"
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/parts/{id}/movements [get]
// @Security     BearerAuth
func (h *Handler) partMovements(c *gin.Context) {
	items, err := h.services.Parts.Movements(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "part_movements", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(items), "movements": items})
}

// @Summary      Receive stock
// @Description  Updates the weighted average unit cost.
// @Tags         parts
// @Accept       json
// @Produce      json
// @Param        id     path      string          true  "Part ID"
// @Param        input  body      receiveRequest  true  "receipt"
// @Success      200    {object}  models.SparePart
// @Failure      400    {object}  map[string]string
// @Router       /api/v1/parts/{id}/receive [post]
// @Security     BearerAuth
func (h *Handler) receivePart(c *gin.Context) {
	var input receiveRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}
	p, err := h.services.Parts.Receive(c.Request.Context(), c.Param("id"), input.Quantity, input.UnitCost, input.Reference)
	if err != nil {
		h.respondError(c, "part_receive", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Issue stock
// @Tags         parts
// @Accept       json
// @Produce      json
// @Param        id     path      string        true  "Part ID"
// @Param        input  body      issueRequest  true  "issue"
// @Success      200    {object}  models.SparePart
// @Failure      400    {object}  map[string]string  "invalid quantity or insufficient stock"
// @Router       /api/v1/parts/{id}/issue [post]
// @Security     BearerAuth
func (h *Handler) issuePart(c *gin.Context) {
	var input issueRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}
	p, err := h.services.Parts.Issue(c.Request.Context(), c.Param("id"), input.Quantity, input.Reference)
	if err != nil {
		h.respondError(c, "part_issue", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Reconcile stock
// @Description  Sets on-hand quantity to the physical count and records an ADJUSTMENT movement.
// @Tags         parts
// @Accept       json
// @Produce      json
// @Param        id     path      string            true  "Part ID"
// @Param        input  body      reconcileRequest  true  "count"
// @Success      200    {object}  models.SparePart
// @Failure      400    {object}  map[string]string
// @Router       /api/v1/parts/{id}/reconcile [post]
// @Security     BearerAuth
func (h *Handler) reconcilePart(c *gin.Context) {
	var input reconcileRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}
	p, err := h.services.Parts.Reconcile(c.Request.Context(), c.Param("id"), *input.PhysicalCount, input.Reference)
	if err != nil {
		h.respondError(c, "part_reconcile", err)
		return
	}
	c.JSON(http.StatusOK, p)
}
