package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/requestdata"
	"github.com/harborpoint/dealflow-backend/internal/services"
)

type ReviewHandler struct {
	log    *logger.Logger
	review services.ReviewService
}

func NewReviewHandler(log *logger.Logger, review services.ReviewService) *ReviewHandler {
	return &ReviewHandler{
		log:    log.With("handler", "ReviewHandler"),
		review: review,
	}
}

// ListQueue handles GET /review/queue.
func (h *ReviewHandler) ListQueue(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing request context"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	out, err := h.review.ListQueue(c.Request.Context(), rd.OrganizationID, limit)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, gin.H{"queue": out})
}

type resolveRequest struct {
	CounterpartyID *uuid.UUID `json:"counterparty_id"`
	DealID         *uuid.UUID `json:"deal_id"`
}

// Resolve handles POST /review/:message_id/resolve.
func (h *ReviewHandler) Resolve(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing request context"))
		return
	}
	messageID, err := uuid.Parse(c.Param("message_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", errors.New("invalid message id"))
		return
	}
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := h.review.Resolve(c.Request.Context(), rd.OrganizationID, messageID, req.CounterpartyID, req.DealID); err != nil {
		RespondError(c, http.StatusUnprocessableEntity, "resolve_failed", err)
		return
	}
	RespondOK(c, gin.H{"resolved": messageID})
}
