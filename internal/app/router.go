package app

import (
	"github.com/gin-gonic/gin"

	"github.com/harborpoint/dealflow-backend/internal/server"
)

func wireRouter(handlerset Handlers, mw Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		AuthMiddleware:    mw.Auth,
		PipelineHandler:   handlerset.Pipeline,
		SuggestionHandler: handlerset.Suggestion,
		ReviewHandler:     handlerset.Review,
		OutboundHandler:   handlerset.Outbound,
		SSEHandler:        handlerset.SSE,
	})
}
