package graph

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/types"
)

// MirrorExtraction merges the message/counterparty/deal edges for one
// successfully classified message. Best effort: callers treat errors as
// log-and-continue, the relational store stays the source of truth.
func MirrorExtraction(ctx context.Context, client *Client, log *logger.Logger, msg *types.RawMessage, rec *types.ParseRecord) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if msg == nil || rec == nil || rec.CounterpartyID == nil || *rec.CounterpartyID == uuid.Nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	params := map[string]any{
		"org_id":          msg.OrganizationID.String(),
		"counterparty_id": rec.CounterpartyID.String(),
		"message_id":      msg.ID.String(),
		"thread_id":       stringOrEmpty(msg.ThreadID),
		"subject":         msg.Subject,
		"intent":          rec.Intent,
		"sentiment":       rec.Sentiment,
		"received_at":     msg.ReceivedAt.UTC().Format(time.RFC3339Nano),
		"synced_at":       now,
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: client.Database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MERGE (c:Counterparty {id: $counterparty_id})
			SET c.organization_id = $org_id, c.synced_at = $synced_at
			MERGE (m:Message {id: $message_id})
			SET m.subject = $subject,
			    m.thread_id = $thread_id,
			    m.intent = $intent,
			    m.sentiment = $sentiment,
			    m.received_at = $received_at,
			    m.organization_id = $org_id,
			    m.synced_at = $synced_at
			MERGE (c)-[r:SENT]->(m)
			SET r.synced_at = $synced_at
		`, params); err != nil {
			return nil, err
		}

		if rec.DealID != nil && *rec.DealID != uuid.Nil {
			dealParams := map[string]any{
				"org_id":          msg.OrganizationID.String(),
				"counterparty_id": rec.CounterpartyID.String(),
				"message_id":      msg.ID.String(),
				"deal_id":         rec.DealID.String(),
				"commitment":      floatOrZero(rec.Commitment),
				"synced_at":       now,
			}
			if _, err := tx.Run(ctx, `
				MATCH (c:Counterparty {id: $counterparty_id})
				MATCH (m:Message {id: $message_id})
				MERGE (d:Deal {id: $deal_id})
				SET d.organization_id = $org_id, d.synced_at = $synced_at
				MERGE (c)-[e:ENGAGED_IN]->(d)
				SET e.synced_at = $synced_at,
				    e.last_commitment = $commitment
				MERGE (m)-[a:ABOUT]->(d)
				SET a.synced_at = $synced_at
			`, dealParams); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		if log != nil {
			log.Warn("relationship mirror failed (continuing)", "message_id", msg.ID, "err", err.Error())
		}
		return err
	}
	return nil
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
