package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	redisclient "github.com/harborpoint/dealflow-backend/internal/clients/redis"
	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/repos"
)

// Ingestor stores one provider message: detail fetch, dedup-guarded
// insert, suggestion derivation. Shared by the backfill and poll
// frontends so both ingest identically.
type Ingestor struct {
	log         *logger.Logger
	rawMessages repos.RawMessageRepo
	suggestions SuggestionService
	seen        redisclient.SeenFilter
}

func NewIngestor(baseLog *logger.Logger, rawMessages repos.RawMessageRepo, suggestions SuggestionService, seen redisclient.SeenFilter) *Ingestor {
	return &Ingestor{
		log:         baseLog.With("service", "Ingestor"),
		rawMessages: rawMessages,
		suggestions: suggestions,
		seen:        seen,
	}
}

// IngestOne reports whether a new row was stored. The unique index on
// (organization, provider id) is the dedup invariant; the seen filter only
// saves the detail fetch for ids already durably stored. The mark happens
// after the insert, never before: a transient fetch or store failure must
// leave the id unmarked so retrying the same cursor can pick it up.
func (i *Ingestor) IngestOne(ctx context.Context, orgID uuid.UUID, source MailSource, providerID string) (bool, error) {
	if i.seen != nil {
		seen, err := i.seen.Seen(ctx, orgID.String(), providerID)
		if err != nil {
			i.log.Warn("seen filter unavailable, proceeding", "err", err.Error())
		} else if seen {
			return false, nil
		}
	}

	detail, err := source.GetMessage(ctx, providerID)
	if err != nil {
		return false, fmt.Errorf("fetch detail: %w", err)
	}
	msg, err := buildRawMessage(orgID, detail)
	if err != nil {
		return false, err
	}

	inserted, err := i.rawMessages.InsertIgnoreDuplicate(ctx, nil, msg)
	if err != nil {
		return false, fmt.Errorf("store: %w", err)
	}

	// Either branch means the row is in the store, so marking is safe.
	if i.seen != nil {
		if err := i.seen.Mark(ctx, orgID.String(), providerID); err != nil {
			i.log.Warn("seen filter mark failed", "provider_message_id", providerID, "err", err.Error())
		}
	}

	if inserted {
		if err := i.suggestions.DeriveFromMessage(ctx, msg, nil); err != nil {
			i.log.Warn("suggestion derivation failed", "provider_message_id", providerID, "err", err.Error())
		}
	}
	return inserted, nil
}
