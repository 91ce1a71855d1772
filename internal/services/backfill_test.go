package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/harborpoint/dealflow-backend/internal/types"
)

type backfillHarness struct {
	store        *memStore
	source       *fakeMailSource
	orchestrator BackfillOrchestrator
	orgID        uuid.UUID
}

func newBackfillHarness(t *testing.T, source *fakeMailSource, classifier Classifier) *backfillHarness {
	t.Helper()
	log := testLogger(t)
	store := newMemStore()
	orgID := uuid.New()
	store.accounts = append(store.accounts, &types.MailAccount{
		ID: uuid.New(), OrganizationID: orgID, Address: "us@ourfirm.com",
	})

	rawRepo := &fakeRawMessageRepo{s: store}
	suggestions := NewSuggestionService(nil, log, &fakeSuggestedContactRepo{s: store}, &fakeCounterpartyRepo{s: store})
	ingestor := NewIngestor(log, rawRepo, suggestions, nil)
	engine := NewExtractionEngine(
		nil, log,
		&fakeParseRecordRepo{s: store},
		&fakeCounterpartyRepo{s: store},
		&fakeDealRepo{s: store},
		classifier,
		TriagePolicy{ReviewThreshold: 0.7},
		nil,
	)
	correlator := NewThreadCorrelator(nil, log, &fakeOutboundRequestRepo{s: store})
	orchestrator := NewBackfillOrchestrator(
		nil, log,
		&fakeMailAccountRepo{s: store},
		rawRepo,
		&fakeSourceFactory{source: source},
		engine,
		ingestor,
		correlator,
	)
	return &backfillHarness{store: store, source: source, orchestrator: orchestrator, orgID: orgID}
}

func detailFor(id string) *MailMessage {
	return &MailMessage{
		ProviderID:    id,
		ThreadID:      "thread-" + id,
		SenderAddress: id + "@example.com",
		SenderName:    "Sender " + id,
		Subject:       "Re: Fund II",
		BodyText:      "body of " + id,
		ReceivedAt:    time.Now().Add(-time.Hour),
	}
}

func singlePageSource(ids ...string) *fakeMailSource {
	src := &fakeMailSource{
		pages:   map[string]*MessagePage{"": {IDs: ids}},
		details: make(map[string]*MailMessage),
		marker:  "hist-42",
	}
	for _, id := range ids {
		src.details[id] = detailFor(id)
	}
	return src
}

func resultWithMean(mean float64) *ExtractionResult {
	res := validResult()
	res.Confidence = ConfidenceScores{Counterparty: mean, Deal: mean, Intent: mean, Amount: mean}
	return res
}

// Walks the three phases for a mailbox of three messages, one of which
// classifies below the review threshold.
func TestBackfillFullWalk(t *testing.T) {
	classifier := &fakeClassifier{results: map[string]*ExtractionResult{
		"m1": resultWithMean(0.5),
		"m2": resultWithMean(0.9),
		"m3": resultWithMean(0.8),
	}}
	h := newBackfillHarness(t, singlePageSource("m1", "m2", "m3"), classifier)
	ctx := context.Background()

	step1, err := h.orchestrator.Step(ctx, h.orgID, PhaseIngest, nil)
	if err != nil {
		t.Fatalf("ingest step: %v", err)
	}
	if step1.Phase != PhaseParse || step1.Done {
		t.Fatalf("after ingest: phase=%q done=%v, want parse/false", step1.Phase, step1.Done)
	}
	if step1.Stats.Listed != 3 || step1.Stats.Ingested != 3 {
		t.Fatalf("ingest stats = %+v, want listed 3 ingested 3", step1.Stats)
	}
	if len(h.store.messages) != 3 {
		t.Fatalf("stored %d messages, want 3", len(h.store.messages))
	}

	step2, err := h.orchestrator.Step(ctx, h.orgID, "", step1.Cursor)
	if err != nil {
		t.Fatalf("parse step: %v", err)
	}
	if step2.Phase != PhaseFinalize || step2.Done {
		t.Fatalf("after parse: phase=%q done=%v, want finalize/false", step2.Phase, step2.Done)
	}
	if step2.Stats.Parsed != 3 {
		t.Fatalf("parse stats = %+v, want parsed 3", step2.Stats)
	}

	statuses := map[string]int{}
	for _, rec := range h.store.parses {
		statuses[rec.Status]++
	}
	if statuses[types.ParseStatusSuccess] != 2 || statuses[types.ParseStatusManualReview] != 1 {
		t.Fatalf("statuses = %v, want 2 success / 1 manual_review", statuses)
	}

	step3, err := h.orchestrator.Step(ctx, h.orgID, "", step2.Cursor)
	if err != nil {
		t.Fatalf("finalize step: %v", err)
	}
	if !step3.Done {
		t.Fatalf("finalize not done: %+v", step3)
	}
	if step3.Cursor != nil {
		t.Fatalf("done result carries a cursor")
	}
	if h.store.accounts[0].SyncMarker != "hist-42" {
		t.Fatalf("sync marker = %q, want hist-42", h.store.accounts[0].SyncMarker)
	}
}

func TestBackfillCursorRoundTrip(t *testing.T) {
	t.Setenv("BACKFILL_INGEST_CHUNK", "1")

	src := &fakeMailSource{
		pages: map[string]*MessagePage{
			"":   {IDs: []string{"a", "b"}, NextPageToken: "p2"},
			"p2": {IDs: []string{"c", "d"}},
		},
		details: make(map[string]*MailMessage),
		marker:  "hist-7",
	}
	for _, id := range []string{"a", "b", "c", "d"} {
		src.details[id] = detailFor(id)
	}
	classifier := &fakeClassifier{fn: func(*types.RawMessage) (*ExtractionResult, error) {
		return resultWithMean(0.9), nil
	}}
	h := newBackfillHarness(t, src, classifier)
	ctx := context.Background()

	cursor := []byte(nil)
	var midRunCursor []byte
	steps := 0
	for {
		res, err := h.orchestrator.Step(ctx, h.orgID, PhaseIngest, cursor)
		if err != nil {
			t.Fatalf("step %d: %v", steps, err)
		}
		steps++
		if steps == 2 {
			midRunCursor = res.Cursor
		}
		if res.Phase != PhaseIngest {
			break
		}
		cursor = res.Cursor
		if steps > 20 {
			t.Fatalf("ingest did not terminate")
		}
	}

	if len(h.store.messages) != 4 {
		t.Fatalf("stored %d messages, want 4", len(h.store.messages))
	}
	if src.detailCalls != 4 {
		t.Fatalf("detail fetches = %d, want 4", src.detailCalls)
	}

	// Replaying an old cursor re-fetches at most its queued ids but never
	// creates duplicate rows.
	if _, err := h.orchestrator.Step(ctx, h.orgID, "", midRunCursor); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(h.store.messages) != 4 {
		t.Fatalf("replay duplicated rows: %d messages", len(h.store.messages))
	}
}

func TestBackfillIngestIdempotent(t *testing.T) {
	classifier := &fakeClassifier{fn: func(*types.RawMessage) (*ExtractionResult, error) {
		return resultWithMean(0.9), nil
	}}
	h := newBackfillHarness(t, singlePageSource("m1", "m2"), classifier)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		cursor := []byte(nil)
		phase := PhaseIngest
		for {
			res, err := h.orchestrator.Step(ctx, h.orgID, phase, cursor)
			if err != nil {
				t.Fatalf("run %d: %v", i, err)
			}
			if res.Done {
				break
			}
			phase, cursor = res.Phase, res.Cursor
		}
	}

	if len(h.store.messages) != 2 {
		t.Fatalf("stored %d messages, want 2 after two full runs", len(h.store.messages))
	}
}

func TestBackfillMissingAccount(t *testing.T) {
	classifier := &fakeClassifier{}
	h := newBackfillHarness(t, singlePageSource(), classifier)

	_, err := h.orchestrator.Step(context.Background(), uuid.New(), PhaseIngest, nil)
	if err == nil {
		t.Fatalf("expected error for unknown organization")
	}
}

func TestBackfillParseSkipsAlreadySucceeded(t *testing.T) {
	calls := 0
	classifier := &fakeClassifier{fn: func(*types.RawMessage) (*ExtractionResult, error) {
		calls++
		return resultWithMean(0.9), nil
	}}
	h := newBackfillHarness(t, singlePageSource("m1", "m2"), classifier)
	ctx := context.Background()

	// Pre-mark m1 as already classified.
	msg := &types.RawMessage{
		ID: uuid.New(), OrganizationID: h.orgID, ProviderMessageID: "m0",
		SenderAddress: "m0@example.com", ReceivedAt: time.Now().Add(-2 * time.Hour),
	}
	h.store.messages = append(h.store.messages, msg)
	h.store.parses[msg.ID] = &types.ParseRecord{
		ID: uuid.New(), MessageID: msg.ID, OrganizationID: h.orgID,
		Status: types.ParseStatusSuccess,
	}

	cursor := []byte(nil)
	phase := PhaseIngest
	for {
		res, err := h.orchestrator.Step(ctx, h.orgID, phase, cursor)
		if err != nil {
			t.Fatalf("step: %v", err)
		}
		if res.Done {
			break
		}
		phase, cursor = res.Phase, res.Cursor
	}

	if calls != 2 {
		t.Fatalf("classifier called %d times, want 2 (m0 must be skipped)", calls)
	}
}
