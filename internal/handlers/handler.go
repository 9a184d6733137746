package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"windfault/internal/logger"
	"windfault/internal/service"
)

// Handler wires the HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs the HTTP handler with its dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", h.health)

	// Live per-turbine state feed (HTTP upgrade), same port.
	router.GET("/ws", h.wsStateFeed)

	api := router.Group("/api/v1", h.requestLogMiddleware)
	{
		h.registerAlarmRoutes(api)
		h.registerTurbineRoutes(api)
		h.registerRecommendationRoutes(api)
		h.registerAnalyticsRoutes(api)
	}

	return router
}

func (h *Handler) registerAlarmRoutes(api *gin.RouterGroup) {
	alarms := api.Group("/alarms")
	{
		alarms.POST("", h.ingestAlarm)
		alarms.GET("", h.listAlarms)
		alarms.GET("/:id", h.getAlarm)
		alarms.GET("/:id/recommendations", h.alarmDecisionHistory)
		alarms.POST("/:id/snooze", h.snoozeAlarm)
		alarms.POST("/:id/recommendations", h.applyManualRecommendation)
	}
}

func (h *Handler) registerTurbineRoutes(api *gin.RouterGroup) {
	turbines := api.Group("/turbines")
	{
		turbines.POST("", h.registerTurbine)
		turbines.GET("", h.listTurbines)
		turbines.GET("/:id", h.getTurbine)
		turbines.PUT("/:id/state", h.overrideTurbineState)
		turbines.POST("/:id/comm-loss", h.markCommLoss)
		turbines.POST("/:id/comm-restore", h.restoreComm)
	}
}

func (h *Handler) registerRecommendationRoutes(api *gin.RouterGroup) {
	recs := api.Group("/recommendations")
	{
		recs.GET("", h.listRecommendations)
		recs.GET("/:id", h.getRecommendation)
	}
}

func (h *Handler) registerAnalyticsRoutes(api *gin.RouterGroup) {
	analytics := api.Group("/analytics")
	{
		analytics.GET("/summary", h.analyticsSummary)
		analytics.GET("/top-codes", h.analyticsTopCodes)
		analytics.GET("/troubled-turbines", h.analyticsTroubledTurbines)
		analytics.GET("/fault-frequency", h.analyticsFaultFrequency)
		analytics.GET("/temp-trends/:id", h.analyticsTempTrend)
		analytics.GET("/action-distribution", h.analyticsActionDistribution)
		analytics.GET("/escalation-rate", h.analyticsEscalationRate)
	}
}
