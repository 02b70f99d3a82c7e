package handlers

import (
	"heater_host/internal/logger"
	"heater_host/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Telemetry stream (HTTP upgrade) on the same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerHeaterRoutes(api)
		h.registerCalibrationRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerHeaterRoutes(api *gin.RouterGroup) {
	heaters := api.Group("/heaters")
	{
		heaters.GET("", h.listHeaters)
		heaters.GET("/:name", h.getHeater)
		// Body example: {"target_c":210}
		heaters.POST("/:name/target", h.setTarget)
		heaters.POST("/:name/off", h.turnOff)
		// Blocks until the bump test finishes.
		heaters.POST("/:name/calibrate", h.calibrate)
	}
}

func (h *Handler) registerCalibrationRoutes(api *gin.RouterGroup) {
	api.GET("/calibrations", h.listCalibrations)
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
