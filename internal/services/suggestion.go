package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/repos"
	"github.com/harborpoint/dealflow-backend/internal/types"
)

// SuggestionService derives suggested contacts from senders that are not
// yet known counterparties, and serves the review surface over them.
type SuggestionService interface {
	// DeriveFromMessage runs after a message is ingested. Known
	// counterparties and dismissed addresses produce nothing; everything
	// else is upserted as a suggestion. extraction may be nil when the
	// message has not been classified yet.
	DeriveFromMessage(ctx context.Context, msg *types.RawMessage, extraction *ExtractionResult) error
	ListActive(ctx context.Context, orgID uuid.UUID, limit int) ([]*types.SuggestedContact, error)
	Dismiss(ctx context.Context, orgID, id uuid.UUID) error
}

type suggestionService struct {
	db             *gorm.DB
	log            *logger.Logger
	suggestions    repos.SuggestedContactRepo
	counterparties repos.CounterpartyRepo
}

func NewSuggestionService(db *gorm.DB, baseLog *logger.Logger, suggestions repos.SuggestedContactRepo, counterparties repos.CounterpartyRepo) SuggestionService {
	return &suggestionService{
		db:             db,
		log:            baseLog.With("service", "SuggestionService"),
		suggestions:    suggestions,
		counterparties: counterparties,
	}
}

func (s *suggestionService) DeriveFromMessage(ctx context.Context, msg *types.RawMessage, extraction *ExtractionResult) error {
	if msg == nil {
		return nil
	}
	address := strings.TrimSpace(strings.ToLower(msg.SenderAddress))
	if address == "" {
		return nil
	}

	known, err := s.counterparties.FindByAddress(ctx, nil, msg.OrganizationID, address)
	if err != nil {
		return fmt.Errorf("suggestion: counterparty lookup: %w", err)
	}
	if known != nil {
		return nil
	}

	dismissed, err := s.suggestions.IsDismissed(ctx, nil, msg.OrganizationID, address)
	if err != nil {
		return fmt.Errorf("suggestion: dismissed lookup: %w", err)
	}
	if dismissed {
		return nil
	}

	sc := &types.SuggestedContact{
		OrganizationID:  msg.OrganizationID,
		Address:         address,
		Name:            msg.SenderName,
		SourceMessageID: msg.ID,
	}
	// The classifier usually has a cleaner name and a firm the header lacks.
	if extraction != nil {
		if name := strings.TrimSpace(extraction.Counterparty.Name); name != "" {
			sc.Name = name
		}
		if firm := strings.TrimSpace(extraction.Counterparty.Firm); firm != "" {
			sc.Firm = &firm
		}
	}

	if err := s.suggestions.Upsert(ctx, nil, sc); err != nil {
		return fmt.Errorf("suggestion: upsert: %w", err)
	}
	s.log.Info("suggested contact upserted", "address", address, "source_message_id", msg.ID)
	return nil
}

func (s *suggestionService) ListActive(ctx context.Context, orgID uuid.UUID, limit int) ([]*types.SuggestedContact, error) {
	return s.suggestions.ListActive(ctx, nil, orgID, limit)
}

func (s *suggestionService) Dismiss(ctx context.Context, orgID, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("suggestion: id required")
	}
	return s.suggestions.Dismiss(ctx, nil, orgID, id)
}
