package bib

import (
	"github.com/racepix/bibscan/internal/detection"
)

// Unknown is the terminal label for photos where no valid bib number was
// found by either stage. It is a valid classification, not an error.
const Unknown = "unknown"

// Method identifies which path produced a result or candidate.
type Method string

const (
	// MethodCloud means the whole-image cloud text detector produced the
	// winning token.
	MethodCloud Method = "cloud"

	// MethodLocal means the local CV pipeline produced the winning token.
	MethodLocal Method = "local"

	// MethodManual means a human-supplied label replaced the pipeline
	// result.
	MethodManual Method = "manual"
)

// Result is the single output type of the detection pipeline.
//
// Invariants:
//   - BibNumber is either Unknown or a 1-6 digit string whose value is in
//     the authoritative bib range (see IsValidBibNumber)
//   - Confidence is clamped into [0.0, 0.99]; only manual labels carry 1.0
//   - Bounds, when present, satisfies X1<X2 and Y1<Y2
//
// Method is empty on an Unknown result produced by the pipeline, since
// neither stage can claim it.
type Result struct {
	BibNumber  string            `json:"bib_number"`
	Confidence float64           `json:"confidence"`
	Bounds     *detection.Bounds `json:"bbox,omitempty"`
	Method     Method            `json:"method,omitempty"`
}

// unknownResult is the terminal result when no candidate survives.
func unknownResult() Result {
	return Result{BibNumber: Unknown, Confidence: 0.0}
}

// Candidate is an intermediate, pre-selection token compared across both
// recognition sources within one detection call.
type Candidate struct {
	// Token is the digit string.
	Token string

	// Score is the composite post-boost confidence. It may transiently
	// exceed 1.0; the cap to 0.99 happens at the result boundary.
	Score float64

	// Bounds is the token box in original image coordinates.
	Bounds detection.Bounds

	// Source is MethodCloud or MethodLocal.
	Source Method
}

// bestCandidate picks the single highest-scoring candidate. Ties are
// broken by preferring the cloud source. Returns nil for an empty slice.
func bestCandidate(candidates []Candidate) *Candidate {
	var best *Candidate
	for i := range candidates {
		c := &candidates[i]
		if best == nil || c.Score > best.Score {
			best = c
			continue
		}
		if c.Score == best.Score && c.Source == MethodCloud && best.Source != MethodCloud {
			best = c
		}
	}
	return best
}
