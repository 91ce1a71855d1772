package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/harborpoint/dealflow-backend/internal/types"
)

type extractionHarness struct {
	store  *memStore
	engine ExtractionEngine
	orgID  uuid.UUID
}

func newExtractionHarness(t *testing.T, classifier Classifier) *extractionHarness {
	t.Helper()
	log := testLogger(t)
	store := newMemStore()
	engine := NewExtractionEngine(
		nil, log,
		&fakeParseRecordRepo{s: store},
		&fakeCounterpartyRepo{s: store},
		&fakeDealRepo{s: store},
		classifier,
		TriagePolicy{ReviewThreshold: 0.7},
		nil,
	)
	return &extractionHarness{store: store, engine: engine, orgID: uuid.New()}
}

func (h *extractionHarness) addMessage(provider, sender string) *types.RawMessage {
	msg := &types.RawMessage{
		ID:                uuid.New(),
		OrganizationID:    h.orgID,
		ProviderMessageID: provider,
		SenderAddress:     sender,
		ReceivedAt:        time.Now().Add(-time.Hour),
	}
	h.store.messages = append(h.store.messages, msg)
	return msg
}

func (h *extractionHarness) addCounterparty(address string) *types.Counterparty {
	cp := &types.Counterparty{ID: uuid.New(), OrganizationID: h.orgID, Name: "Known", Address: address}
	h.store.counterparties = append(h.store.counterparties, cp)
	return cp
}

func TestExtractHighConfidenceSuccess(t *testing.T) {
	res := validResult()
	classifier := &fakeClassifier{fn: func(*types.RawMessage) (*ExtractionResult, error) { return res, nil }}
	h := newExtractionHarness(t, classifier)
	cp := h.addCounterparty("dana@summitcap.com")
	res.Counterparty.MatchedID = &cp.ID
	msg := h.addMessage("m1", "dana@summitcap.com")

	rec, err := h.engine.Extract(context.Background(), msg)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.Status != types.ParseStatusSuccess {
		t.Fatalf("status = %q, want success", rec.Status)
	}
	if rec.CounterpartyID == nil || *rec.CounterpartyID != cp.ID {
		t.Fatalf("counterparty id = %v, want %v", rec.CounterpartyID, cp.ID)
	}
	if cp.LastInteractionAt == nil {
		t.Fatalf("expected last interaction touch")
	}
	stored := h.store.parses[msg.ID]
	if stored == nil || stored.Status != types.ParseStatusSuccess {
		t.Fatalf("stored record not finalized: %+v", stored)
	}
}

func TestExtractLowConfidenceGoesToReview(t *testing.T) {
	res := validResult()
	res.Confidence = ConfidenceScores{Counterparty: 0.5, Deal: 0.5, Intent: 0.5, Amount: 0.5}
	classifier := &fakeClassifier{fn: func(*types.RawMessage) (*ExtractionResult, error) { return res, nil }}
	h := newExtractionHarness(t, classifier)
	msg := h.addMessage("m1", "stranger@example.com")

	rec, err := h.engine.Extract(context.Background(), msg)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.Status != types.ParseStatusManualReview {
		t.Fatalf("status = %q, want manual_review", rec.Status)
	}
}

func TestExtractFallsBackToAddressLookup(t *testing.T) {
	res := validResult()
	res.Counterparty.MatchedID = nil
	classifier := &fakeClassifier{fn: func(*types.RawMessage) (*ExtractionResult, error) { return res, nil }}
	h := newExtractionHarness(t, classifier)
	cp := h.addCounterparty("Dana@SummitCap.com")
	msg := h.addMessage("m1", "dana@summitcap.com")

	rec, err := h.engine.Extract(context.Background(), msg)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.CounterpartyID == nil || *rec.CounterpartyID != cp.ID {
		t.Fatalf("address fallback did not resolve counterparty")
	}
}

func TestExtractRejectsFabricatedDealID(t *testing.T) {
	res := validResult()
	fabricated := uuid.New()
	res.Deal.MatchedID = &fabricated
	classifier := &fakeClassifier{fn: func(*types.RawMessage) (*ExtractionResult, error) { return res, nil }}
	h := newExtractionHarness(t, classifier)
	msg := h.addMessage("m1", "dana@summitcap.com")

	rec, err := h.engine.Extract(context.Background(), msg)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.DealID != nil {
		t.Fatalf("fabricated deal id stored: %v", *rec.DealID)
	}
}

func TestExtractClassifierErrorMarksFailed(t *testing.T) {
	classifier := &fakeClassifier{fn: func(*types.RawMessage) (*ExtractionResult, error) {
		return nil, fmt.Errorf("transport down")
	}}
	h := newExtractionHarness(t, classifier)
	msg := h.addMessage("m1", "dana@summitcap.com")

	if _, err := h.engine.Extract(context.Background(), msg); err == nil {
		t.Fatalf("expected error")
	}
	rec := h.store.parses[msg.ID]
	if rec == nil || rec.Status != types.ParseStatusFailed {
		t.Fatalf("record = %+v, want failed", rec)
	}
	if rec.ErrorMessage == "" {
		t.Fatalf("expected error message recorded")
	}
}

func TestExtractInvalidOutputMarksFailed(t *testing.T) {
	res := validResult()
	res.Intent = "mysterious"
	classifier := &fakeClassifier{fn: func(*types.RawMessage) (*ExtractionResult, error) { return res, nil }}
	h := newExtractionHarness(t, classifier)
	msg := h.addMessage("m1", "dana@summitcap.com")

	if _, err := h.engine.Extract(context.Background(), msg); err == nil {
		t.Fatalf("expected validation error")
	}
	rec := h.store.parses[msg.ID]
	if rec == nil || rec.Status != types.ParseStatusFailed {
		t.Fatalf("record = %+v, want failed", rec)
	}
}
