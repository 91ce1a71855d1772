package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/repos"
	"github.com/harborpoint/dealflow-backend/internal/types"
	"github.com/harborpoint/dealflow-backend/internal/utils"
)

const (
	PhaseIngest   = "ingest"
	PhaseParse    = "parse"
	PhaseFinalize = "finalize"
)

// Cursor is the caller-owned progress marker. It is the only state that
// survives between invocations; everything else is recomputed per call.
type Cursor struct {
	Phase  string        `json:"phase"`
	Ingest *IngestCursor `json:"ingest,omitempty"`
	Parse  *ParseCursor  `json:"parse,omitempty"`
}

// IngestCursor carries the undrained provider-id queue and the page token
// for the next listing call, plus running totals for progress display.
type IngestCursor struct {
	PageToken string   `json:"page_token,omitempty"`
	Queue     []string `json:"queue,omitempty"`
	Listed    int      `json:"listed"`
	Ingested  int      `json:"ingested"`
}

// ParseCursor snapshots the unparsed total on first entry; the snapshot,
// not the live count, is the progress denominator because new mail can
// arrive mid-run.
type ParseCursor struct {
	Total   int64 `json:"total"`
	Parsed  int   `json:"parsed"`
	Matched int   `json:"matched"`
}

// StepStats covers one invocation only. Errors are per-item failure
// messages collected as data rather than thrown.
type StepStats struct {
	Listed   int      `json:"listed"`
	Ingested int      `json:"ingested"`
	Parsed   int      `json:"parsed"`
	Matched  int      `json:"matched"`
	Errors   []string `json:"errors"`
}

// StepResult is the orchestrator's per-call contract. Phase names the
// phase the NEXT call will run; Cursor is null once Done.
type StepResult struct {
	Phase    string         `json:"phase"`
	Cursor   datatypes.JSON `json:"cursor"`
	Done     bool           `json:"done"`
	Stats    StepStats      `json:"stats"`
	Progress string         `json:"progress"`
}

// BackfillOrchestrator is the resumable ingest/parse/finalize state
// machine. Callers loop: feed the returned cursor back in until Done.
// There is no cross-invocation lock; dedup inserts and parse-record
// upserts make overlapping invocations converge instead of corrupting
// state.
type BackfillOrchestrator interface {
	Step(ctx context.Context, orgID uuid.UUID, phase string, cursor []byte) (*StepResult, error)
}

type backfillOrchestrator struct {
	db          *gorm.DB
	log         *logger.Logger
	accounts    repos.MailAccountRepo
	rawMessages repos.RawMessageRepo
	sources     MailSourceFactory
	engine      ExtractionEngine
	ingestor    *Ingestor
	correlator  ThreadCorrelator

	ingestChunk int
	parseChunk  int
	concurrency int
	query       string
}

func NewBackfillOrchestrator(
	db *gorm.DB,
	baseLog *logger.Logger,
	accounts repos.MailAccountRepo,
	rawMessages repos.RawMessageRepo,
	sources MailSourceFactory,
	engine ExtractionEngine,
	ingestor *Ingestor,
	correlator ThreadCorrelator,
) BackfillOrchestrator {
	log := baseLog.With("service", "BackfillOrchestrator")
	return &backfillOrchestrator{
		db:          db,
		log:         log,
		accounts:    accounts,
		rawMessages: rawMessages,
		sources:     sources,
		engine:      engine,
		ingestor:    ingestor,
		correlator:  correlator,
		ingestChunk: utils.GetEnvAsInt("BACKFILL_INGEST_CHUNK", 30, log),
		parseChunk:  utils.GetEnvAsInt("BACKFILL_PARSE_CHUNK", 10, log),
		concurrency: utils.GetEnvAsInt("CLASSIFY_CONCURRENCY", 5, log),
		query:       utils.GetEnv("BACKFILL_QUERY", "in:inbox", log),
	}
}

func (o *backfillOrchestrator) Step(ctx context.Context, orgID uuid.UUID, phase string, rawCursor []byte) (*StepResult, error) {
	if orgID == uuid.Nil {
		return nil, fmt.Errorf("backfill: organization required")
	}

	cur := Cursor{Phase: phase}
	if len(rawCursor) > 0 && string(rawCursor) != "null" {
		if err := json.Unmarshal(rawCursor, &cur); err != nil {
			return nil, fmt.Errorf("backfill: decode cursor: %w", err)
		}
	}
	if cur.Phase == "" {
		cur.Phase = PhaseIngest
	}

	switch cur.Phase {
	case PhaseIngest:
		return o.stepIngest(ctx, orgID, cur.Ingest)
	case PhaseParse:
		return o.stepParse(ctx, orgID, cur.Parse)
	case PhaseFinalize:
		return o.stepFinalize(ctx, orgID)
	default:
		return nil, fmt.Errorf("backfill: unknown phase %q", cur.Phase)
	}
}

func (o *backfillOrchestrator) stepIngest(ctx context.Context, orgID uuid.UUID, cur *IngestCursor) (*StepResult, error) {
	acct, err := o.accounts.GetByOrg(ctx, nil, orgID)
	if err != nil {
		return nil, fmt.Errorf("backfill: load account: %w", err)
	}
	if acct == nil {
		return nil, fmt.Errorf("backfill: %w", ErrNoMailAccount)
	}
	source, err := o.sources.ForAccount(ctx, acct)
	if err != nil {
		return nil, fmt.Errorf("backfill: mail source: %w", err)
	}

	if cur == nil {
		cur = &IngestCursor{}
	}
	stats := StepStats{}

	// Refill the queue before processing. Pages whose ids are all already
	// ingested are skipped in a loop so resumed runs make visible progress
	// instead of returning empty chunk after empty chunk.
	exhausted := false
	for len(cur.Queue) == 0 {
		page, err := source.ListMessages(ctx, o.query, cur.PageToken)
		if err != nil {
			return nil, fmt.Errorf("backfill: list messages: %w", err)
		}
		stats.Listed += len(page.IDs)
		cur.Listed += len(page.IDs)

		fresh, err := o.rawMessages.FilterNewProviderIDs(ctx, nil, orgID, page.IDs)
		if err != nil {
			return nil, fmt.Errorf("backfill: filter known ids: %w", err)
		}
		cur.Queue = fresh
		cur.PageToken = page.NextPageToken

		if len(cur.Queue) == 0 && cur.PageToken == "" {
			exhausted = true
			break
		}
		if cur.PageToken == "" {
			break
		}
	}

	if exhausted && len(cur.Queue) == 0 {
		next := Cursor{Phase: PhaseParse}
		return o.result(next, false, stats, fmt.Sprintf("ingest complete: %d messages stored", cur.Ingested))
	}

	chunk := cur.Queue
	if len(chunk) > o.ingestChunk {
		chunk = chunk[:o.ingestChunk]
	}
	for _, providerID := range chunk {
		inserted, err := o.ingestor.IngestOne(ctx, orgID, source, providerID)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("message %s: %v", providerID, err))
			continue
		}
		if inserted {
			stats.Ingested++
			cur.Ingested++
		}
	}
	cur.Queue = cur.Queue[len(chunk):]

	if len(cur.Queue) == 0 && cur.PageToken == "" {
		next := Cursor{Phase: PhaseParse}
		return o.result(next, false, stats, fmt.Sprintf("ingest complete: %d messages stored", cur.Ingested))
	}

	next := Cursor{Phase: PhaseIngest, Ingest: cur}
	return o.result(next, false, stats,
		fmt.Sprintf("ingesting: %d stored of %d listed, %d queued", cur.Ingested, cur.Listed, len(cur.Queue)))
}

func (o *backfillOrchestrator) stepParse(ctx context.Context, orgID uuid.UUID, cur *ParseCursor) (*StepResult, error) {
	if cur == nil {
		total, err := o.rawMessages.CountUnparsed(ctx, nil, orgID)
		if err != nil {
			return nil, fmt.Errorf("backfill: count unparsed: %w", err)
		}
		cur = &ParseCursor{Total: total}
	}

	stats := StepStats{}

	slice, err := o.rawMessages.ListUnparsed(ctx, nil, orgID, o.parseChunk)
	if err != nil {
		return nil, fmt.Errorf("backfill: list unparsed: %w", err)
	}
	if len(slice) == 0 {
		next := Cursor{Phase: PhaseFinalize, Parse: cur}
		return o.result(next, false, stats, fmt.Sprintf("parse complete: %d of %d classified", cur.Parsed, cur.Total))
	}

	batch := RunBatch(ctx, slice, o.concurrency, func(ctx context.Context, msg *types.RawMessage) (*types.ParseRecord, error) {
		return o.engine.Extract(ctx, msg)
	}, nil)

	for _, rec := range batch.Results {
		stats.Parsed++
		if rec != nil && rec.CounterpartyID != nil {
			stats.Matched++
			cur.Matched++
		}
	}
	for _, be := range batch.Errors {
		stats.Errors = append(stats.Errors, fmt.Sprintf("message %s: %v", slice[be.Index].ID, be.Err))
	}
	cur.Parsed += len(slice)

	// The snapshot total bounds the phase: records routed to manual review
	// stay non-success and would otherwise keep the live count above zero
	// forever.
	if len(slice) < o.parseChunk || int64(cur.Parsed) >= cur.Total {
		next := Cursor{Phase: PhaseFinalize, Parse: cur}
		return o.result(next, false, stats, fmt.Sprintf("parse complete: %d of %d classified", cur.Parsed, cur.Total))
	}

	next := Cursor{Phase: PhaseParse, Parse: cur}
	return o.result(next, false, stats, fmt.Sprintf("parsing: %d of %d classified", cur.Parsed, cur.Total))
}

func (o *backfillOrchestrator) stepFinalize(ctx context.Context, orgID uuid.UUID) (*StepResult, error) {
	stats := StepStats{}

	recent, err := o.rawMessages.ListRecent(ctx, nil, orgID, 100)
	if err != nil {
		return nil, fmt.Errorf("backfill: list recent: %w", err)
	}
	if len(recent) > 0 {
		matched, err := o.correlator.Correlate(ctx, recent)
		if err != nil {
			return nil, fmt.Errorf("backfill: correlate: %w", err)
		}
		stats.Matched = matched
	}

	// Persist the provider's sync marker so the next poll resumes
	// incrementally instead of rescanning the mailbox.
	acct, err := o.accounts.GetByOrg(ctx, nil, orgID)
	if err != nil {
		return nil, fmt.Errorf("backfill: load account: %w", err)
	}
	if acct != nil {
		source, err := o.sources.ForAccount(ctx, acct)
		if err != nil {
			return nil, fmt.Errorf("backfill: mail source: %w", err)
		}
		marker, err := source.CurrentSyncMarker(ctx)
		if err != nil {
			o.log.Warn("failed to read sync marker", "account_id", acct.ID, "err", err.Error())
		} else if err := o.accounts.UpdateSyncMarker(ctx, nil, acct.ID, marker); err != nil {
			o.log.Warn("failed to persist sync marker", "account_id", acct.ID, "err", err.Error())
		}
	}

	return &StepResult{
		Phase:    PhaseFinalize,
		Cursor:   nil,
		Done:     true,
		Stats:    stats,
		Progress: "backfill complete",
	}, nil
}

func (o *backfillOrchestrator) result(next Cursor, done bool, stats StepStats, progress string) (*StepResult, error) {
	encoded, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("backfill: encode cursor: %w", err)
	}
	return &StepResult{
		Phase:    next.Phase,
		Cursor:   datatypes.JSON(encoded),
		Done:     done,
		Stats:    stats,
		Progress: progress,
	}, nil
}
