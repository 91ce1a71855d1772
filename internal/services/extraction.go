package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/harborpoint/dealflow-backend/internal/graph"
	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/repos"
	"github.com/harborpoint/dealflow-backend/internal/types"
	"github.com/harborpoint/dealflow-backend/internal/utils"
)

// ExtractionEngine classifies one ingested message into a terminal parse
// record. It is safe to call concurrently and safe to re-run on a message
// whose previous attempt failed.
type ExtractionEngine interface {
	Extract(ctx context.Context, msg *types.RawMessage) (*types.ParseRecord, error)
}

type extractionEngine struct {
	db             *gorm.DB
	log            *logger.Logger
	parseRecords   repos.ParseRecordRepo
	counterparties repos.CounterpartyRepo
	deals          repos.DealRepo
	classifier     Classifier
	triage         TriagePolicy
	graphClient    *graph.Client

	maxCounterparties int
	maxDeals          int
}

func NewExtractionEngine(
	db *gorm.DB,
	baseLog *logger.Logger,
	parseRecords repos.ParseRecordRepo,
	counterparties repos.CounterpartyRepo,
	deals repos.DealRepo,
	classifier Classifier,
	triage TriagePolicy,
	graphClient *graph.Client,
) ExtractionEngine {
	log := baseLog.With("service", "ExtractionEngine")
	return &extractionEngine{
		db:                db,
		log:               log,
		parseRecords:      parseRecords,
		counterparties:    counterparties,
		deals:             deals,
		classifier:        classifier,
		triage:            triage,
		graphClient:       graphClient,
		maxCounterparties: utils.GetEnvAsInt("CONTEXT_MAX_COUNTERPARTIES", 500, log),
		maxDeals:          utils.GetEnvAsInt("CONTEXT_MAX_DEALS", 100, log),
	}
}

func (e *extractionEngine) Extract(ctx context.Context, msg *types.RawMessage) (*types.ParseRecord, error) {
	if msg == nil || msg.ID == uuid.Nil {
		return nil, fmt.Errorf("extract: message required")
	}

	if _, err := e.parseRecords.UpsertProcessing(ctx, nil, msg.OrganizationID, msg.ID, e.classifier.ModelVersion()); err != nil {
		return nil, fmt.Errorf("extract: mark processing: %w", err)
	}

	cc, err := e.contextBundle(ctx, msg.OrganizationID)
	if err != nil {
		return nil, e.fail(ctx, msg.ID, fmt.Errorf("extract: load context: %w", err))
	}

	result, err := e.classifier.Classify(ctx, msg, cc)
	if err != nil {
		return nil, e.fail(ctx, msg.ID, fmt.Errorf("extract: classify: %w", err))
	}
	if err := result.Validate(); err != nil {
		return nil, e.fail(ctx, msg.ID, fmt.Errorf("extract: validate: %w", err))
	}

	counterpartyID, err := e.resolveCounterparty(ctx, msg, result)
	if err != nil {
		return nil, e.fail(ctx, msg.ID, err)
	}
	dealID := e.resolveDeal(cc, result)

	questions, err := json.Marshal(result.Questions)
	if err != nil {
		return nil, e.fail(ctx, msg.ID, fmt.Errorf("extract: encode questions: %w", err))
	}
	confidence, err := json.Marshal(result.Confidence)
	if err != nil {
		return nil, e.fail(ctx, msg.ID, fmt.Errorf("extract: encode confidence: %w", err))
	}

	now := time.Now()
	rec := &types.ParseRecord{
		MessageID:      msg.ID,
		OrganizationID: msg.OrganizationID,
		Status:         e.triage.Decide(result.Confidence.TriageMean()),
		CounterpartyID: counterpartyID,
		DealID:         dealID,
		Intent:         result.Intent,
		Commitment:     result.Amount,
		Sentiment:      result.Sentiment,
		Questions:      datatypes.JSON(questions),
		Confidence:     datatypes.JSON(confidence),
		Reasoning:      result.Reasoning,
		ModelVersion:   e.classifier.ModelVersion(),
		ParsedAt:       &now,
	}
	if err := e.parseRecords.Finalize(ctx, nil, rec); err != nil {
		return nil, e.fail(ctx, msg.ID, fmt.Errorf("extract: finalize: %w", err))
	}

	if rec.Status == types.ParseStatusSuccess {
		e.afterSuccess(ctx, msg, rec)
	}

	e.log.Info("message classified",
		"message_id", msg.ID,
		"status", rec.Status,
		"intent", rec.Intent,
		"mean_confidence", result.Confidence.TriageMean())
	return rec, nil
}

// fail records the failure on the parse record and returns the original
// error so batch callers can report it per message.
func (e *extractionEngine) fail(ctx context.Context, messageID uuid.UUID, cause error) error {
	if err := e.parseRecords.MarkFailed(ctx, nil, messageID, cause.Error()); err != nil {
		e.log.Error("failed to mark parse record failed", "message_id", messageID, "err", err.Error())
	}
	return cause
}

func (e *extractionEngine) contextBundle(ctx context.Context, orgID uuid.UUID) (ClassifyContext, error) {
	counterparties, err := e.counterparties.ListByOrg(ctx, nil, orgID, e.maxCounterparties)
	if err != nil {
		return ClassifyContext{}, err
	}
	deals, err := e.deals.ListOpenByOrg(ctx, nil, orgID, e.maxDeals)
	if err != nil {
		return ClassifyContext{}, err
	}
	return ClassifyContext{Counterparties: counterparties, Deals: deals}, nil
}

// resolveCounterparty trusts the classifier's match when it names a real
// counterparty in this org; otherwise it falls back to an exact
// case-insensitive address lookup on the sender.
func (e *extractionEngine) resolveCounterparty(ctx context.Context, msg *types.RawMessage, result *ExtractionResult) (*uuid.UUID, error) {
	if result.Counterparty.MatchedID != nil && *result.Counterparty.MatchedID != uuid.Nil {
		cp, err := e.counterparties.GetByID(ctx, nil, *result.Counterparty.MatchedID)
		if err != nil {
			return nil, fmt.Errorf("extract: verify counterparty match: %w", err)
		}
		if cp != nil && cp.OrganizationID == msg.OrganizationID {
			return &cp.ID, nil
		}
		e.log.Warn("classifier matched unknown counterparty, falling back to address lookup",
			"message_id", msg.ID, "matched_id", *result.Counterparty.MatchedID)
	}

	cp, err := e.counterparties.FindByAddress(ctx, nil, msg.OrganizationID, msg.SenderAddress)
	if err != nil {
		return nil, fmt.Errorf("extract: counterparty address lookup: %w", err)
	}
	if cp == nil {
		return nil, nil
	}
	return &cp.ID, nil
}

// resolveDeal only honors matches against the deals actually offered in
// the context bundle; a fabricated id is dropped rather than stored.
func (e *extractionEngine) resolveDeal(cc ClassifyContext, result *ExtractionResult) *uuid.UUID {
	if result.Deal.MatchedID == nil || *result.Deal.MatchedID == uuid.Nil {
		return nil
	}
	for _, d := range cc.Deals {
		if d != nil && d.ID == *result.Deal.MatchedID {
			id := d.ID
			return &id
		}
	}
	return nil
}

// afterSuccess runs the best-effort side effects of an accepted
// extraction. Neither failure unwinds the parse record.
func (e *extractionEngine) afterSuccess(ctx context.Context, msg *types.RawMessage, rec *types.ParseRecord) {
	if rec.CounterpartyID != nil {
		if err := e.counterparties.TouchLastInteraction(ctx, nil, *rec.CounterpartyID, msg.ReceivedAt); err != nil {
			e.log.Warn("failed to touch counterparty interaction", "counterparty_id", *rec.CounterpartyID, "err", err.Error())
		}
	}
	_ = graph.MirrorExtraction(ctx, e.graphClient, e.log, msg, rec)
}
