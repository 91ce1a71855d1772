package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/requestdata"
	"github.com/harborpoint/dealflow-backend/internal/services"
	"github.com/harborpoint/dealflow-backend/internal/sse"
)

// PipelineHandler exposes the three frontends over the same orchestrator:
// single-shot poll, chunked backfill step, and streaming full backfill.
type PipelineHandler struct {
	log          *logger.Logger
	poll         services.PollService
	orchestrator services.BackfillOrchestrator
	hub          *sse.SSEHub
}

func NewPipelineHandler(log *logger.Logger, poll services.PollService, orchestrator services.BackfillOrchestrator, hub *sse.SSEHub) *PipelineHandler {
	return &PipelineHandler{
		log:          log.With("handler", "PipelineHandler"),
		poll:         poll,
		orchestrator: orchestrator,
		hub:          hub,
	}
}

type backfillStepRequest struct {
	Phase  string          `json:"phase"`
	Cursor json.RawMessage `json:"cursor"`
}

// Poll handles POST /pipeline/poll.
func (h *PipelineHandler) Poll(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing request context"))
		return
	}

	stats, err := h.poll.Poll(c.Request.Context(), rd.OrganizationID)
	if err != nil {
		if errors.Is(err, services.ErrNoMailAccount) {
			RespondError(c, http.StatusBadRequest, "no_mail_account", err)
			return
		}
		// The stats shape is always present so clients can render a
		// consistent progress UI even on failure.
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": ErrorEnvelope{Error: APIError{Message: err.Error(), Code: "poll_failed"}}.Error,
			"stats": services.PollStats{Errors: []string{}},
		})
		return
	}

	h.hub.Broadcast(sse.SSEMessage{
		Channel: pipelineChannel(rd),
		Event:   sse.SSEEventPollComplete,
		Data:    stats,
	})
	RespondOK(c, gin.H{"stats": stats})
}

// BackfillStep handles POST /pipeline/backfill/step, the chunked
// frontend. The caller loops: feed the returned cursor back until done.
func (h *PipelineHandler) BackfillStep(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing request context"))
		return
	}

	var req backfillStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	result, err := h.orchestrator.Step(c.Request.Context(), rd.OrganizationID, req.Phase, req.Cursor)
	if err != nil {
		if errors.Is(err, services.ErrNoMailAccount) {
			RespondError(c, http.StatusBadRequest, "no_mail_account", err)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": ErrorEnvelope{Error: APIError{Message: err.Error(), Code: "backfill_failed"}}.Error,
			"stats": services.StepStats{Errors: []string{}},
		})
		return
	}
	RespondOK(c, result)
}

// BackfillStream handles GET /pipeline/backfill/stream: one long-lived
// invocation drives the state machine to completion, emitting a frame per
// step. Used where the environment permits long-running connections.
func (h *PipelineHandler) BackfillStream(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing request context"))
		return
	}

	w := c.Writer
	flusher, ok := w.(http.Flusher)
	if !ok {
		RespondError(c, http.StatusInternalServerError, "streaming_unsupported", errors.New("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	emit := func(event sse.SSEEvent, data any) {
		payload, err := json.Marshal(data)
		if err != nil {
			h.log.Warn("failed to marshal stream frame", "err", err.Error())
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
		flusher.Flush()
		h.hub.Broadcast(sse.SSEMessage{Channel: pipelineChannel(rd), Event: event, Data: data})
	}

	emit(sse.SSEEventBackfillStatus, gin.H{"phase": services.PhaseIngest, "message": "backfill started"})

	ctx := c.Request.Context()
	var cursor []byte
	phase := services.PhaseIngest
	for {
		result, err := h.orchestrator.Step(ctx, rd.OrganizationID, phase, cursor)
		if err != nil {
			// The last known-good cursor stays with the client so a retry
			// resumes instead of restarting from zero.
			emit(sse.SSEEventBackfillError, gin.H{
				"error": err.Error(),
				"phase": phase,
				"stats": services.StepStats{Errors: []string{}},
			})
			return
		}
		if result.Done {
			emit(sse.SSEEventBackfillComplete, result)
			return
		}
		emit(sse.SSEEventBackfillProgress, result)
		phase = result.Phase
		cursor = result.Cursor

		select {
		case <-ctx.Done():
			h.log.Debug("backfill stream client gone", "organization_id", rd.OrganizationID)
			return
		default:
		}
	}
}

func pipelineChannel(rd *requestdata.RequestData) string {
	return "pipeline:" + rd.OrganizationID.String()
}
