package app

import (
	"github.com/harborpoint/dealflow-backend/internal/handlers"
	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/sse"
)

type Handlers struct {
	Pipeline   *handlers.PipelineHandler
	Suggestion *handlers.SuggestionHandler
	Review     *handlers.ReviewHandler
	Outbound   *handlers.OutboundHandler
	SSE        *handlers.SSEHandler
}

func wireHandlers(log *logger.Logger, serviceset Services, hub *sse.SSEHub) Handlers {
	return Handlers{
		Pipeline:   handlers.NewPipelineHandler(log, serviceset.Poll, serviceset.Orchestrator, hub),
		Suggestion: handlers.NewSuggestionHandler(log, serviceset.Suggestion),
		Review:     handlers.NewReviewHandler(log, serviceset.Review),
		Outbound:   handlers.NewOutboundHandler(log, serviceset.Outbound),
		SSE:        handlers.NewSSEHandler(log, hub),
	}
}
