package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/harborpoint/dealflow-backend/internal/types"
)

func TestCorrelateMatchesTargetOnly(t *testing.T) {
	log := testLogger(t)
	store := newMemStore()
	correlator := NewThreadCorrelator(nil, log, &fakeOutboundRequestRepo{s: store})
	orgID := uuid.New()

	sentAt := time.Now().Add(-24 * time.Hour)
	req := &types.OutboundRequest{
		ID:             uuid.New(),
		OrganizationID: orgID,
		ThreadID:       "thread-1",
		TargetAddress:  "dana@summitcap.com",
		Status:         types.OutboundStatusSent,
		SentAt:         &sentAt,
	}
	store.outbound = append(store.outbound, req)

	threadID := "thread-1"
	// A reply on the right thread from the wrong address must not match.
	selfReply := &types.RawMessage{
		ID: uuid.New(), OrganizationID: orgID, ThreadID: &threadID,
		SenderAddress: "me@ourfirm.com", BodyText: "following up again",
		ReceivedAt: time.Now().Add(-time.Hour),
	}
	matched, err := correlator.Correlate(context.Background(), []*types.RawMessage{selfReply})
	if err != nil {
		t.Fatalf("correlate: %v", err)
	}
	if matched != 0 {
		t.Fatalf("matched = %d, want 0 for non-target sender", matched)
	}
	if req.Status != types.OutboundStatusSent {
		t.Fatalf("status = %q, want sent", req.Status)
	}

	answer := &types.RawMessage{
		ID: uuid.New(), OrganizationID: orgID, ThreadID: &threadID,
		SenderAddress: "Dana@SummitCap.com", BodyText: "all on track, closing next month",
		ReceivedAt: time.Now(),
	}
	matched, err = correlator.Correlate(context.Background(), []*types.RawMessage{selfReply, answer})
	if err != nil {
		t.Fatalf("correlate: %v", err)
	}
	if matched != 1 {
		t.Fatalf("matched = %d, want 1", matched)
	}
	if req.Status != types.OutboundStatusAnswered {
		t.Fatalf("status = %q, want answered", req.Status)
	}
	if req.ReplyMessageID == nil || *req.ReplyMessageID != answer.ID {
		t.Fatalf("reply message id not captured")
	}
	if req.ReplyBody != answer.BodyText {
		t.Fatalf("reply body not captured")
	}
}

func TestCorrelateIgnoresOtherThreads(t *testing.T) {
	log := testLogger(t)
	store := newMemStore()
	correlator := NewThreadCorrelator(nil, log, &fakeOutboundRequestRepo{s: store})
	orgID := uuid.New()

	store.outbound = append(store.outbound, &types.OutboundRequest{
		ID: uuid.New(), OrganizationID: orgID, ThreadID: "thread-1",
		TargetAddress: "dana@summitcap.com", Status: types.OutboundStatusSent,
	})

	otherThread := "thread-2"
	msg := &types.RawMessage{
		ID: uuid.New(), OrganizationID: orgID, ThreadID: &otherThread,
		SenderAddress: "dana@summitcap.com", ReceivedAt: time.Now(),
	}
	matched, err := correlator.Correlate(context.Background(), []*types.RawMessage{msg})
	if err != nil {
		t.Fatalf("correlate: %v", err)
	}
	if matched != 0 {
		t.Fatalf("matched = %d, want 0 across threads", matched)
	}
}

func TestCorrelateNoThreadIDs(t *testing.T) {
	log := testLogger(t)
	store := newMemStore()
	correlator := NewThreadCorrelator(nil, log, &fakeOutboundRequestRepo{s: store})

	msg := &types.RawMessage{ID: uuid.New(), OrganizationID: uuid.New(), SenderAddress: "x@y.com"}
	matched, err := correlator.Correlate(context.Background(), []*types.RawMessage{msg})
	if err != nil {
		t.Fatalf("correlate: %v", err)
	}
	if matched != 0 {
		t.Fatalf("matched = %d, want 0", matched)
	}
}
