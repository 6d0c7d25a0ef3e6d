package handlers

import (
	"equipment_service/internal/logger"
	"equipment_service/internal/metrics"
	"equipment_service/internal/notify"
	"equipment_service/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	alerts   *notify.Hub
	metrics  *metrics.Collector
	limiter  *clientLimiter
}

type Option func(*Handler)

// WithAlertHub enables the /ws/alerts stream.
func WithAlertHub(hub *notify.Hub) Option {
	return func(h *Handler) { h.alerts = hub }
}

// WithMetrics exposes the collector on /metrics.
func WithMetrics(m *metrics.Collector) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithRateLimit limits every client IP to rps requests per second on the API.
func WithRateLimit(rps float64, burst int) Option {
	return func(h *Handler) {
		if rps > 0 {
			h.limiter = newClientLimiter(rps, burst)
		}
	}
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, opts ...Option) *Handler {
	h := &Handler{services: services, log: log}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Alert stream (HTTP upgrade) on the same port
	router.GET("/ws/alerts", h.wsAlerts)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth", h.rateLimit)
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.rateLimit, h.userIdMiddleware)
	{
		api.POST("/users", h.require(service.ActionManageUsers), h.createUser)

		h.registerEquipmentRoutes(api)
		h.registerServiceEventRoutes(api)
		h.registerContingencyRoutes(api)
		h.registerTicketRoutes(api)
		h.registerPartRoutes(api)
		h.registerLogRoutes(api)

		api.POST("/sweep", h.require(service.ActionRunSweep), h.runSweep)
	}
}

func (h *Handler) registerEquipmentRoutes(api *gin.RouterGroup) {
	view := h.require(service.ActionViewRecords)
	manage := h.require(service.ActionManageEquipment)

	eq := api.Group("/equipment")
	{
		eq.POST("", manage, h.registerEquipment)
		eq.GET("", view, h.listEquipment)
		eq.GET("/:id", view, h.getEquipment)
		eq.GET("/:id/overview", view, h.equipmentOverview)
		eq.POST("/:id/decommission", manage, h.decommissionEquipment)
	}
}

func (h *Handler) registerServiceEventRoutes(api *gin.RouterGroup) {
	view := h.require(service.ActionViewRecords)
	schedule := h.require(service.ActionScheduleService)

	events := api.Group("/service-events")
	{
		events.POST("", schedule, h.scheduleEvent)
		events.GET("", view, h.listEvents)
		events.GET("/overdue", view, h.listOverdueEvents)
		events.GET("/:id", view, h.getEvent)
		events.POST("/:id/start", schedule, h.startEvent)
		events.POST("/:id/complete", schedule, h.completeEvent)
		events.POST("/:id/cancel", schedule, h.cancelEvent)
	}
}

func (h *Handler) registerContingencyRoutes(api *gin.RouterGroup) {
	view := h.require(service.ActionViewRecords)
	manage := h.require(service.ActionManageContingency)

	cont := api.Group("/contingencies")
	{
		cont.POST("", h.require(service.ActionReportContingency), h.reportContingency)
		cont.GET("", view, h.listContingencies)
		cont.GET("/expired", view, h.listExpiredContingencies)
		cont.GET("/:id", view, h.getContingency)
		cont.POST("/:id/escalate", manage, h.escalateContingency)
		cont.POST("/:id/resolve", manage, h.resolveContingency)
	}
}

func (h *Handler) registerTicketRoutes(api *gin.RouterGroup) {
	view := h.require(service.ActionViewRecords)
	manage := h.require(service.ActionManageTickets)

	tickets := api.Group("/tickets")
	{
		tickets.POST("", h.require(service.ActionCreateTicket), h.createTicket)
		tickets.GET("", view, h.listTickets)
		tickets.GET("/:id", view, h.getTicket)
		tickets.POST("/:id/auto-assign", manage, h.autoAssignTicket)
		tickets.POST("/:id/assign", manage, h.assignTicket)
		tickets.POST("/:id/escalate", manage, h.escalateTicket)
		tickets.POST("/:id/resolve", manage, h.resolveTicket)
		tickets.POST("/:id/close", manage, h.closeTicket)
	}
}

func (h *Handler) registerPartRoutes(api *gin.RouterGroup) {
	view := h.require(service.ActionViewRecords)
	stock := h.require(service.ActionManageStock)

	parts := api.Group("/parts")
	{
		parts.POST("", stock, h.registerPart)
		parts.GET("", view, h.listParts)
		parts.GET("/:id", view, h.getPart)
		parts.GET("/:id/movements", view, h.partMovements)
		parts.POST("/:id/receive", stock, h.receivePart)
		parts.POST("/:id/issue", stock, h.issuePart)
		parts.POST("/:id/reconcile", stock, h.reconcilePart)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.require(service.ActionViewRecords), h.getLogs)
	}
}
