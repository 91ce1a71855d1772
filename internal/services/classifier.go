package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/harborpoint/dealflow-backend/internal/types"
)

// ClassifyContext is the bundle of known entities handed to the
// classification service so it can resolve matches. Both lists are capped
// by the extraction engine to bound prompt size.
type ClassifyContext struct {
	Counterparties []*types.Counterparty
	Deals          []*types.Deal
}

// ExtractedCounterparty is the sender identity the classifier resolved.
// MatchedID is nil when no known counterparty matched.
type ExtractedCounterparty struct {
	Name      string     `json:"name"`
	Address   string     `json:"address"`
	Firm      string     `json:"firm"`
	MatchedID *uuid.UUID `json:"matched_id"`
}

// ExtractedDeal is the opportunity the classifier resolved.
type ExtractedDeal struct {
	Name      string     `json:"name"`
	MatchedID *uuid.UUID `json:"matched_id"`
}

// ConfidenceScores are per-field 0..1 scores from the classifier.
type ConfidenceScores struct {
	Counterparty float64 `json:"counterparty"`
	Deal         float64 `json:"deal"`
	Intent       float64 `json:"intent"`
	Amount       float64 `json:"amount"`
}

// TriageMean is the mean over the three fields the triage policy weighs.
// Amount confidence is tracked but deliberately excluded.
func (c ConfidenceScores) TriageMean() float64 {
	return (c.Counterparty + c.Deal + c.Intent) / 3.0
}

// ExtractionResult is the structured output of one classification call.
type ExtractionResult struct {
	Counterparty   ExtractedCounterparty `json:"counterparty"`
	Deal           ExtractedDeal         `json:"deal"`
	Intent         string                `json:"intent"`
	Amount         *float64              `json:"amount"`
	Sentiment      string                `json:"sentiment"`
	Questions      []string              `json:"questions"`
	HasWireDetails bool                  `json:"has_wire_details"`
	Confidence     ConfidenceScores      `json:"confidence"`
	Reasoning      string                `json:"reasoning"`
}

var validIntents = map[string]bool{
	types.IntentCommitment:  true,
	types.IntentQuestion:    true,
	types.IntentUpdate:      true,
	types.IntentDecline:     true,
	types.IntentIntroDeck:   true,
	types.IntentScheduling:  true,
	types.IntentWireDetails: true,
	types.IntentOther:       true,
}

var validSentiments = map[string]bool{
	types.SentimentPositive: true,
	types.SentimentNeutral:  true,
	types.SentimentNegative: true,
}

// Validate enforces the closed enum sets and confidence bounds. Anything
// nonconforming is an extraction failure; values are never coerced.
func (r *ExtractionResult) Validate() error {
	if r == nil {
		return fmt.Errorf("extraction result is nil")
	}
	if !validIntents[strings.TrimSpace(r.Intent)] {
		return fmt.Errorf("invalid intent %q", r.Intent)
	}
	if !validSentiments[strings.TrimSpace(r.Sentiment)] {
		return fmt.Errorf("invalid sentiment %q", r.Sentiment)
	}
	for name, score := range map[string]float64{
		"counterparty": r.Confidence.Counterparty,
		"deal":         r.Confidence.Deal,
		"intent":       r.Confidence.Intent,
		"amount":       r.Confidence.Amount,
	} {
		if score < 0 || score > 1 {
			return fmt.Errorf("confidence %s out of range: %f", name, score)
		}
	}
	if r.Amount != nil && *r.Amount < 0 {
		return fmt.Errorf("negative commitment amount: %f", *r.Amount)
	}
	return nil
}

// Classifier is the external classification service boundary.
type Classifier interface {
	Classify(ctx context.Context, msg *types.RawMessage, cc ClassifyContext) (*ExtractionResult, error)
	ModelVersion() string
}
