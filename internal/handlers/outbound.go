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
	"github.com/harborpoint/dealflow-backend/internal/types"
)

type OutboundHandler struct {
	log      *logger.Logger
	outbound services.OutboundService
}

func NewOutboundHandler(log *logger.Logger, outbound services.OutboundService) *OutboundHandler {
	return &OutboundHandler{
		log:      log.With("handler", "OutboundHandler"),
		outbound: outbound,
	}
}

type sendUpdateRequest struct {
	CounterpartyID uuid.UUID `json:"counterparty_id" binding:"required"`
	Subject        string    `json:"subject" binding:"required"`
	Body           string    `json:"body" binding:"required"`
}

// Send handles POST /outbound/update-request.
func (h *OutboundHandler) Send(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing request context"))
		return
	}
	var req sendUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	out, err := h.outbound.SendUpdateRequest(c.Request.Context(), rd.OrganizationID, req.CounterpartyID, req.Subject, req.Body)
	if err != nil {
		if errors.Is(err, services.ErrNoMailAccount) {
			RespondError(c, http.StatusBadRequest, "no_mail_account", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "send_failed", err)
		return
	}
	RespondOK(c, gin.H{"request": out})
}

// List handles GET /outbound?status=sent.
func (h *OutboundHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing request context"))
		return
	}
	status := c.DefaultQuery("status", types.OutboundStatusSent)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	out, err := h.outbound.ListByStatus(c.Request.Context(), rd.OrganizationID, status, limit)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, gin.H{"requests": out})
}
