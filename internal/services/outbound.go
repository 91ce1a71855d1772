package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/repos"
	"github.com/harborpoint/dealflow-backend/internal/types"
)

// OutboundService sends update requests to counterparties and records
// them so the thread answer correlator can close the loop.
type OutboundService interface {
	SendUpdateRequest(ctx context.Context, orgID, counterpartyID uuid.UUID, subject, body string) (*types.OutboundRequest, error)
	ListByStatus(ctx context.Context, orgID uuid.UUID, status string, limit int) ([]*types.OutboundRequest, error)
}

type outboundService struct {
	db             *gorm.DB
	log            *logger.Logger
	outbound       repos.OutboundRequestRepo
	counterparties repos.CounterpartyRepo
	accounts       repos.MailAccountRepo
	sources        MailSourceFactory
}

func NewOutboundService(
	db *gorm.DB,
	baseLog *logger.Logger,
	outbound repos.OutboundRequestRepo,
	counterparties repos.CounterpartyRepo,
	accounts repos.MailAccountRepo,
	sources MailSourceFactory,
) OutboundService {
	return &outboundService{
		db:             db,
		log:            baseLog.With("service", "OutboundService"),
		outbound:       outbound,
		counterparties: counterparties,
		accounts:       accounts,
		sources:        sources,
	}
}

// SendUpdateRequest records the request as pending first, then sends and
// marks it sent with the provider's thread id. A crash between the two
// leaves a pending row that never correlates, which is visible and
// harmless; the reverse order would drop answers on the floor.
func (s *outboundService) SendUpdateRequest(ctx context.Context, orgID, counterpartyID uuid.UUID, subject, body string) (*types.OutboundRequest, error) {
	cp, err := s.counterparties.GetByID(ctx, nil, counterpartyID)
	if err != nil {
		return nil, fmt.Errorf("outbound: load counterparty: %w", err)
	}
	if cp == nil || cp.OrganizationID != orgID {
		return nil, fmt.Errorf("outbound: counterparty %s not found", counterpartyID)
	}
	if strings.TrimSpace(cp.Address) == "" {
		return nil, fmt.Errorf("outbound: counterparty %s has no address", counterpartyID)
	}

	acct, err := s.accounts.GetByOrg(ctx, nil, orgID)
	if err != nil {
		return nil, fmt.Errorf("outbound: load account: %w", err)
	}
	if acct == nil {
		return nil, fmt.Errorf("outbound: %w", ErrNoMailAccount)
	}
	source, err := s.sources.ForAccount(ctx, acct)
	if err != nil {
		return nil, fmt.Errorf("outbound: mail source: %w", err)
	}

	req := &types.OutboundRequest{
		OrganizationID: orgID,
		CounterpartyID: &cp.ID,
		TargetAddress:  strings.ToLower(strings.TrimSpace(cp.Address)),
		Subject:        subject,
		Status:         types.OutboundStatusPending,
	}
	if _, err := s.outbound.Create(ctx, nil, req); err != nil {
		return nil, fmt.Errorf("outbound: record request: %w", err)
	}

	threadID, _, err := source.Send(ctx, cp.Address, subject, body)
	if err != nil {
		return nil, fmt.Errorf("outbound: send: %w", err)
	}
	sentAt := time.Now()
	if err := s.outbound.MarkSent(ctx, nil, req.ID, threadID, sentAt); err != nil {
		return nil, fmt.Errorf("outbound: mark sent: %w", err)
	}
	req.Status = types.OutboundStatusSent
	req.ThreadID = threadID
	req.SentAt = &sentAt

	s.log.Info("update request sent",
		"request_id", req.ID,
		"counterparty_id", cp.ID,
		"thread_id", threadID)
	return req, nil
}

func (s *outboundService) ListByStatus(ctx context.Context, orgID uuid.UUID, status string, limit int) ([]*types.OutboundRequest, error) {
	return s.outbound.ListByStatus(ctx, nil, orgID, status, limit)
}
