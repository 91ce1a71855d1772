package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/repos"
	"github.com/harborpoint/dealflow-backend/internal/types"
)

// ReviewService is the operator surface over low-confidence extractions.
type ReviewService interface {
	ListQueue(ctx context.Context, orgID uuid.UUID, limit int) ([]*types.ParseRecord, error)
	// Resolve accepts an operator's counterparty/deal decision for a record
	// in manual review and promotes it to success. Both ids may be nil when
	// the operator confirms "no match".
	Resolve(ctx context.Context, orgID, messageID uuid.UUID, counterpartyID, dealID *uuid.UUID) error
}

type reviewService struct {
	db             *gorm.DB
	log            *logger.Logger
	parseRecords   repos.ParseRecordRepo
	counterparties repos.CounterpartyRepo
	deals          repos.DealRepo
	rawMessages    repos.RawMessageRepo
}

func NewReviewService(db *gorm.DB, baseLog *logger.Logger, parseRecords repos.ParseRecordRepo, counterparties repos.CounterpartyRepo, deals repos.DealRepo, rawMessages repos.RawMessageRepo) ReviewService {
	return &reviewService{
		db:             db,
		log:            baseLog.With("service", "ReviewService"),
		parseRecords:   parseRecords,
		counterparties: counterparties,
		deals:          deals,
		rawMessages:    rawMessages,
	}
}

func (s *reviewService) ListQueue(ctx context.Context, orgID uuid.UUID, limit int) ([]*types.ParseRecord, error) {
	return s.parseRecords.ListByStatus(ctx, nil, orgID, types.ParseStatusManualReview, limit)
}

func (s *reviewService) Resolve(ctx context.Context, orgID, messageID uuid.UUID, counterpartyID, dealID *uuid.UUID) error {
	rec, err := s.parseRecords.GetByMessageID(ctx, nil, messageID)
	if err != nil {
		return fmt.Errorf("review: load record: %w", err)
	}
	if rec == nil || rec.OrganizationID != orgID {
		return fmt.Errorf("review: no parse record for message %s", messageID)
	}
	if rec.Status != types.ParseStatusManualReview {
		return fmt.Errorf("review: message %s is %s, not awaiting review", messageID, rec.Status)
	}

	if counterpartyID != nil {
		cp, err := s.counterparties.GetByID(ctx, nil, *counterpartyID)
		if err != nil {
			return fmt.Errorf("review: verify counterparty: %w", err)
		}
		if cp == nil || cp.OrganizationID != orgID {
			return fmt.Errorf("review: counterparty %s not found", *counterpartyID)
		}
	}
	if dealID != nil {
		d, err := s.deals.GetByID(ctx, nil, *dealID)
		if err != nil {
			return fmt.Errorf("review: verify deal: %w", err)
		}
		if d == nil || d.OrganizationID != orgID {
			return fmt.Errorf("review: deal %s not found", *dealID)
		}
	}

	if err := s.parseRecords.Resolve(ctx, nil, messageID, counterpartyID, dealID); err != nil {
		return fmt.Errorf("review: resolve: %w", err)
	}

	if counterpartyID != nil {
		if msg, err := s.rawMessages.GetByID(ctx, nil, messageID); err == nil && msg != nil {
			if err := s.counterparties.TouchLastInteraction(ctx, nil, *counterpartyID, msg.ReceivedAt); err != nil {
				s.log.Warn("failed to touch counterparty interaction", "counterparty_id", *counterpartyID, "err", err.Error())
			}
		}
	}

	s.log.Info("review resolved", "message_id", messageID, "resolved_at", time.Now())
	return nil
}
