package hunting

// RecordOutcome reports what the result sink did with a confirmed verdict.
type RecordOutcome int

const (
	// OutcomeUnspecified is the zero value and indicates a bug.
	OutcomeUnspecified RecordOutcome = iota

	// OutcomeInserted means a new ConfirmedLeak row was written.
	OutcomeInserted

	// OutcomeDuplicateSkipped means a leak with the same fingerprint already
	// exists; nothing was written.
	OutcomeDuplicateSkipped

	// OutcomeWriteError means durable storage was unavailable; nothing was
	// written and the candidate may be retried on a future invocation.
	OutcomeWriteError
)

// String returns the outcome in a log-friendly form.
func (o RecordOutcome) String() string {
	switch o {
	case OutcomeInserted:
		return "INSERTED"
	case OutcomeDuplicateSkipped:
		return "DUPLICATE_SKIPPED"
	case OutcomeWriteError:
		return "WRITE_ERROR"
	default:
		return "UNSPECIFIED"
	}
}
