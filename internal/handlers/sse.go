package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/requestdata"
	"github.com/harborpoint/dealflow-backend/internal/sse"
)

// SSEHandler serves the general event stream. Clients subscribe to their
// organization's pipeline channel and receive poll/backfill/suggestion
// events pushed by the services.
type SSEHandler struct {
	log *logger.Logger
	hub *sse.SSEHub
}

func NewSSEHandler(log *logger.Logger, hub *sse.SSEHub) *SSEHandler {
	return &SSEHandler{
		log: log.With("handler", "SSEHandler"),
		hub: hub,
	}
}

// Stream handles GET /sse/stream.
func (h *SSEHandler) Stream(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing request context"))
		return
	}

	client := h.hub.NewSSEClient(rd.UserID)
	h.hub.AddChannel(client, "pipeline:"+rd.OrganizationID.String())
	defer h.hub.CloseClient(client)

	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
