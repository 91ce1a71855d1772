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

type SuggestionHandler struct {
	log         *logger.Logger
	suggestions services.SuggestionService
}

func NewSuggestionHandler(log *logger.Logger, suggestions services.SuggestionService) *SuggestionHandler {
	return &SuggestionHandler{
		log:         log.With("handler", "SuggestionHandler"),
		suggestions: suggestions,
	}
}

// List handles GET /suggestions.
func (h *SuggestionHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing request context"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	out, err := h.suggestions.ListActive(c.Request.Context(), rd.OrganizationID, limit)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, gin.H{"suggestions": out})
}

// Dismiss handles POST /suggestions/:id/dismiss. Dismissal is permanent
// for the address; later mail from it will not resurface a suggestion.
func (h *SuggestionHandler) Dismiss(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing request context"))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", errors.New("invalid suggestion id"))
		return
	}
	if err := h.suggestions.Dismiss(c.Request.Context(), rd.OrganizationID, id); err != nil {
		RespondError(c, http.StatusInternalServerError, "dismiss_failed", err)
		return
	}
	RespondOK(c, gin.H{"dismissed": id})
}
