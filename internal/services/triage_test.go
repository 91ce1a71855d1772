package services

import (
	"math"
	"testing"

	"github.com/harborpoint/dealflow-backend/internal/types"
)

func TestTriageDecideMonotonic(t *testing.T) {
	policy := TriagePolicy{ReviewThreshold: 0.7}

	cases := []struct {
		mean float64
		want string
	}{
		{0.0, types.ParseStatusManualReview},
		{0.5, types.ParseStatusManualReview},
		{0.6999, types.ParseStatusManualReview},
		{0.7, types.ParseStatusSuccess},
		{0.71, types.ParseStatusSuccess},
		{1.0, types.ParseStatusSuccess},
	}
	for _, tc := range cases {
		if got := policy.Decide(tc.mean); got != tc.want {
			t.Fatalf("Decide(%v) = %q, want %q", tc.mean, got, tc.want)
		}
	}
}

// Three scores of exactly the threshold sum to a mean a few ulps under
// it; the decision must still be success.
func TestTriageDecideAtThresholdMean(t *testing.T) {
	policy := TriagePolicy{ReviewThreshold: 0.7}
	conf := ConfidenceScores{Counterparty: 0.7, Deal: 0.7, Intent: 0.7}
	if got := policy.Decide(conf.TriageMean()); got != types.ParseStatusSuccess {
		t.Fatalf("Decide(mean of three 0.7s) = %q, want success", got)
	}
}

func TestTriageMeanExcludesAmount(t *testing.T) {
	conf := ConfidenceScores{Counterparty: 0.9, Deal: 0.6, Intent: 0.9, Amount: 0.0}
	want := (0.9 + 0.6 + 0.9) / 3.0
	if got := conf.TriageMean(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("TriageMean() = %v, want %v", got, want)
	}

	withAmount := conf
	withAmount.Amount = 1.0
	if got := withAmount.TriageMean(); math.Abs(got-conf.TriageMean()) > 1e-9 {
		t.Fatalf("amount confidence leaked into the mean: %v", got)
	}
}
