package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/harborpoint/dealflow-backend/internal/types"
)

func newReviewHarness(t *testing.T) (*memStore, ReviewService, uuid.UUID) {
	t.Helper()
	log := testLogger(t)
	store := newMemStore()
	svc := NewReviewService(
		nil, log,
		&fakeParseRecordRepo{s: store},
		&fakeCounterpartyRepo{s: store},
		&fakeDealRepo{s: store},
		&fakeRawMessageRepo{s: store},
	)
	return store, svc, uuid.New()
}

func seedReviewRecord(store *memStore, orgID uuid.UUID) *types.RawMessage {
	msg := &types.RawMessage{
		ID: uuid.New(), OrganizationID: orgID, ProviderMessageID: "m1",
		SenderAddress: "dana@summitcap.com", ReceivedAt: time.Now().Add(-time.Hour),
	}
	store.messages = append(store.messages, msg)
	store.parses[msg.ID] = &types.ParseRecord{
		ID: uuid.New(), MessageID: msg.ID, OrganizationID: orgID,
		Status: types.ParseStatusManualReview,
	}
	return msg
}

func TestResolvePromotesToSuccess(t *testing.T) {
	store, svc, orgID := newReviewHarness(t)
	msg := seedReviewRecord(store, orgID)
	cp := &types.Counterparty{ID: uuid.New(), OrganizationID: orgID, Address: "dana@summitcap.com"}
	store.counterparties = append(store.counterparties, cp)

	if err := svc.Resolve(context.Background(), orgID, msg.ID, &cp.ID, nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	rec := store.parses[msg.ID]
	if rec.Status != types.ParseStatusSuccess {
		t.Fatalf("status = %q, want success", rec.Status)
	}
	if rec.CounterpartyID == nil || *rec.CounterpartyID != cp.ID {
		t.Fatalf("counterparty id not applied")
	}
	if cp.LastInteractionAt == nil {
		t.Fatalf("last interaction not touched")
	}
}

func TestResolveAllowsConfirmedNoMatch(t *testing.T) {
	store, svc, orgID := newReviewHarness(t)
	msg := seedReviewRecord(store, orgID)

	if err := svc.Resolve(context.Background(), orgID, msg.ID, nil, nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	rec := store.parses[msg.ID]
	if rec.Status != types.ParseStatusSuccess || rec.CounterpartyID != nil {
		t.Fatalf("record = %+v, want success with no counterparty", rec)
	}
}

func TestResolveRejectsNonReviewRecord(t *testing.T) {
	store, svc, orgID := newReviewHarness(t)
	msg := seedReviewRecord(store, orgID)
	store.parses[msg.ID].Status = types.ParseStatusSuccess

	if err := svc.Resolve(context.Background(), orgID, msg.ID, nil, nil); err == nil {
		t.Fatalf("expected error for already-resolved record")
	}
}

func TestResolveRejectsForeignCounterparty(t *testing.T) {
	store, svc, orgID := newReviewHarness(t)
	msg := seedReviewRecord(store, orgID)
	foreign := &types.Counterparty{ID: uuid.New(), OrganizationID: uuid.New(), Address: "x@y.com"}
	store.counterparties = append(store.counterparties, foreign)

	if err := svc.Resolve(context.Background(), orgID, msg.ID, &foreign.ID, nil); err == nil {
		t.Fatalf("expected error for counterparty in another organization")
	}
	if store.parses[msg.ID].Status != types.ParseStatusManualReview {
		t.Fatalf("record left review queue despite rejection")
	}
}
