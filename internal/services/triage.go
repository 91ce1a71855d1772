package services

import (
	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/types"
	"github.com/harborpoint/dealflow-backend/internal/utils"
)

// TriagePolicy decides whether an extraction is trusted enough to
// auto-accept. A wrong counterparty/deal link costs more than a review
// queue entry, so anything under the threshold goes to manual review.
type TriagePolicy struct {
	ReviewThreshold float64
}

func NewTriagePolicy(log *logger.Logger) TriagePolicy {
	return TriagePolicy{
		ReviewThreshold: utils.GetEnvAsFloat("TRIAGE_REVIEW_THRESHOLD", 0.7, log),
	}
}

// triageEpsilon absorbs the float error of the thirds sum in TriageMean:
// three scores of exactly the threshold must come out at the threshold,
// not a hair under it.
const triageEpsilon = 1e-9

// Decide maps a mean confidence to a terminal parse status.
func (p TriagePolicy) Decide(meanConfidence float64) string {
	if meanConfidence < p.ReviewThreshold-triageEpsilon {
		return types.ParseStatusManualReview
	}
	return types.ParseStatusSuccess
}
