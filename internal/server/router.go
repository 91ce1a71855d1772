package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/harborpoint/dealflow-backend/internal/handlers"
	"github.com/harborpoint/dealflow-backend/internal/middleware"
)

type RouterConfig struct {
	AuthMiddleware    *middleware.AuthMiddleware
	PipelineHandler   *handlers.PipelineHandler
	SuggestionHandler *handlers.SuggestionHandler
	ReviewHandler     *handlers.ReviewHandler
	OutboundHandler   *handlers.OutboundHandler
	SSEHandler        *handlers.SSEHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Pipeline
	protected.POST("/pipeline/poll", cfg.PipelineHandler.Poll)
	protected.POST("/pipeline/backfill/step", cfg.PipelineHandler.BackfillStep)
	protected.GET("/pipeline/backfill/stream", cfg.PipelineHandler.BackfillStream)
	// Suggestions
	protected.GET("/suggestions", cfg.SuggestionHandler.List)
	protected.POST("/suggestions/:id/dismiss", cfg.SuggestionHandler.Dismiss)
	// Review queue
	protected.GET("/review/queue", cfg.ReviewHandler.ListQueue)
	protected.POST("/review/:message_id/resolve", cfg.ReviewHandler.Resolve)
	// Outbound update requests
	protected.POST("/outbound/update-request", cfg.OutboundHandler.Send)
	protected.GET("/outbound", cfg.OutboundHandler.List)
	// SSE
	protected.GET("/sse/stream", cfg.SSEHandler.Stream)

	return router
}
