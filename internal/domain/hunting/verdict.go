package hunting

import "errors"

// ErrConfidenceOutOfRange is returned when a verdict carries a confidence
// outside [0, 1].
var ErrConfidenceOutOfRange = errors.New("confidence must be in [0, 1]")

// Verdict is a verifier's adjudication of exactly one candidate. It is
// transient and never persisted directly; confirmed verdicts become
// ConfirmedLeak rows through the result sink.
type Verdict struct {
	candidate   Candidate
	isConfirmed bool
	rationale   string
	confidence  float64
}

// NewVerdict creates a Verdict for a candidate.
func NewVerdict(candidate Candidate, isConfirmed bool, rationale string, confidence float64) (Verdict, error) {
	if confidence < 0 || confidence > 1 {
		return Verdict{}, ErrConfidenceOutOfRange
	}

	return Verdict{
		candidate:   candidate,
		isConfirmed: isConfirmed,
		rationale:   rationale,
		confidence:  confidence,
	}, nil
}

// Candidate returns the candidate this verdict adjudicates.
func (v Verdict) Candidate() Candidate { return v.candidate }

// IsConfirmed reports whether the verifier judged the candidate a plausibly
// genuine leak.
func (v Verdict) IsConfirmed() bool { return v.isConfirmed }

// Rationale returns the verifier's explanation.
func (v Verdict) Rationale() string { return v.rationale }

// Confidence returns the verifier's confidence in [0, 1].
func (v Verdict) Confidence() float64 { return v.confidence }
