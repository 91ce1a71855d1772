package services

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/repos"
	"github.com/harborpoint/dealflow-backend/internal/types"
)

// ThreadCorrelator matches ingested messages back to outbound update
// requests awaiting an answer. A match requires the same provider thread
// and a sender equal (case-insensitive) to the request's target address;
// anyone else replying on the thread is not an answer.
type ThreadCorrelator interface {
	Correlate(ctx context.Context, msgs []*types.RawMessage) (matched int, err error)
}

type threadCorrelator struct {
	db       *gorm.DB
	log      *logger.Logger
	outbound repos.OutboundRequestRepo
}

func NewThreadCorrelator(db *gorm.DB, baseLog *logger.Logger, outbound repos.OutboundRequestRepo) ThreadCorrelator {
	return &threadCorrelator{
		db:       db,
		log:      baseLog.With("service", "ThreadCorrelator"),
		outbound: outbound,
	}
}

func (c *threadCorrelator) Correlate(ctx context.Context, msgs []*types.RawMessage) (int, error) {
	byThread := make(map[string][]*types.RawMessage)
	for _, msg := range msgs {
		if msg == nil || msg.ThreadID == nil || *msg.ThreadID == "" {
			continue
		}
		byThread[*msg.ThreadID] = append(byThread[*msg.ThreadID], msg)
	}
	if len(byThread) == 0 {
		return 0, nil
	}

	threadIDs := make([]string, 0, len(byThread))
	var orgID = msgs[0].OrganizationID
	for id := range byThread {
		threadIDs = append(threadIDs, id)
	}

	pending, err := c.outbound.ListSentByThreadIDs(ctx, nil, orgID, threadIDs)
	if err != nil {
		return 0, fmt.Errorf("correlate: list sent requests: %w", err)
	}

	matched := 0
	for _, req := range pending {
		if req == nil || req.ThreadID == "" {
			continue
		}
		target := strings.TrimSpace(strings.ToLower(req.TargetAddress))
		for _, msg := range byThread[req.ThreadID] {
			if strings.TrimSpace(strings.ToLower(msg.SenderAddress)) != target {
				continue
			}
			if err := c.outbound.MarkAnswered(ctx, nil, req.ID, msg.ID, msg.BodyText, msg.ReceivedAt); err != nil {
				return matched, fmt.Errorf("correlate: mark answered: %w", err)
			}
			matched++
			c.log.Info("outbound request answered",
				"request_id", req.ID,
				"thread_id", req.ThreadID,
				"reply_message_id", msg.ID)
			break
		}
	}
	return matched, nil
}
