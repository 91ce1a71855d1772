package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/repos"
	"github.com/harborpoint/dealflow-backend/internal/types"
	"github.com/harborpoint/dealflow-backend/internal/utils"
)

// PollStats summarizes one single-shot poll.
type PollStats struct {
	Listed   int      `json:"listed"`
	Ingested int      `json:"ingested"`
	Parsed   int      `json:"parsed"`
	Matched  int      `json:"matched"`
	Errors   []string `json:"errors"`
}

// PollService is the single-shot frontend: ingest all unread mail in one
// call (volume is small at poll cadence, no chunking), classify whatever
// lacks a successful parse, correlate answers, advance the sync marker.
type PollService interface {
	Poll(ctx context.Context, orgID uuid.UUID) (*PollStats, error)
}

type pollService struct {
	db          *gorm.DB
	log         *logger.Logger
	accounts    repos.MailAccountRepo
	rawMessages repos.RawMessageRepo
	sources     MailSourceFactory
	ingestor    *Ingestor
	engine      ExtractionEngine
	correlator  ThreadCorrelator

	query       string
	concurrency int
	parseLimit  int
}

func NewPollService(
	db *gorm.DB,
	baseLog *logger.Logger,
	accounts repos.MailAccountRepo,
	rawMessages repos.RawMessageRepo,
	sources MailSourceFactory,
	ingestor *Ingestor,
	engine ExtractionEngine,
	correlator ThreadCorrelator,
) PollService {
	log := baseLog.With("service", "PollService")
	return &pollService{
		db:          db,
		log:         log,
		accounts:    accounts,
		rawMessages: rawMessages,
		sources:     sources,
		ingestor:    ingestor,
		engine:      engine,
		correlator:  correlator,
		query:       utils.GetEnv("POLL_QUERY", "is:unread", log),
		concurrency: utils.GetEnvAsInt("CLASSIFY_CONCURRENCY", 5, log),
		parseLimit:  utils.GetEnvAsInt("POLL_PARSE_LIMIT", 50, log),
	}
}

func (s *pollService) Poll(ctx context.Context, orgID uuid.UUID) (*PollStats, error) {
	if orgID == uuid.Nil {
		return nil, fmt.Errorf("poll: organization required")
	}

	acct, err := s.accounts.GetByOrg(ctx, nil, orgID)
	if err != nil {
		return nil, fmt.Errorf("poll: load account: %w", err)
	}
	if acct == nil {
		return nil, fmt.Errorf("poll: %w", ErrNoMailAccount)
	}
	source, err := s.sources.ForAccount(ctx, acct)
	if err != nil {
		return nil, fmt.Errorf("poll: mail source: %w", err)
	}

	stats := &PollStats{}

	// Unread volume is small, so all pages are drained in one invocation.
	var newMessages []*types.RawMessage
	pageToken := ""
	for {
		page, err := source.ListMessages(ctx, s.query, pageToken)
		if err != nil {
			return nil, fmt.Errorf("poll: list messages: %w", err)
		}
		stats.Listed += len(page.IDs)

		fresh, err := s.rawMessages.FilterNewProviderIDs(ctx, nil, orgID, page.IDs)
		if err != nil {
			return nil, fmt.Errorf("poll: filter known ids: %w", err)
		}
		for _, providerID := range fresh {
			inserted, err := s.ingestor.IngestOne(ctx, orgID, source, providerID)
			if err != nil {
				stats.Errors = append(stats.Errors, fmt.Sprintf("message %s: %v", providerID, err))
				continue
			}
			if inserted {
				stats.Ingested++
			}
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	// The backlog allowance lets each poll also chip away at older
	// unclassified mail beyond what this invocation ingested.
	unparsed, err := s.rawMessages.ListUnparsed(ctx, nil, orgID, stats.Ingested+s.parseLimit)
	if err != nil {
		return nil, fmt.Errorf("poll: list unparsed: %w", err)
	}
	if len(unparsed) > 0 {
		batch := RunBatch(ctx, unparsed, s.concurrency, func(ctx context.Context, msg *types.RawMessage) (*types.ParseRecord, error) {
			return s.engine.Extract(ctx, msg)
		}, nil)
		stats.Parsed = len(batch.Results)
		for _, be := range batch.Errors {
			stats.Errors = append(stats.Errors, fmt.Sprintf("message %s: %v", unparsed[be.Index].ID, be.Err))
		}
		newMessages = append(newMessages, unparsed...)
	}

	if len(newMessages) > 0 {
		matched, err := s.correlator.Correlate(ctx, newMessages)
		if err != nil {
			return nil, fmt.Errorf("poll: correlate: %w", err)
		}
		stats.Matched = matched
	}

	marker, err := source.CurrentSyncMarker(ctx)
	if err != nil {
		s.log.Warn("failed to read sync marker", "account_id", acct.ID, "err", err.Error())
	} else if err := s.accounts.UpdateSyncMarker(ctx, nil, acct.ID, marker); err != nil {
		s.log.Warn("failed to persist sync marker", "account_id", acct.ID, "err", err.Error())
	}

	s.log.Info("poll complete",
		"organization_id", orgID,
		"listed", stats.Listed,
		"ingested", stats.Ingested,
		"parsed", stats.Parsed,
		"matched", stats.Matched,
		"errors", len(stats.Errors))
	return stats, nil
}
