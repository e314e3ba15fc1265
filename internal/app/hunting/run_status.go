package hunting

import "errors"

// ErrRunStatusTransition is returned on an invalid run status transition.
var ErrRunStatusTransition = errors.New("invalid run status transition")

// RunStatus tracks where a single invocation is in the pipeline.
type RunStatus int

const (
	// RunStatusIdle is the initial state before the corpus read begins.
	RunStatusIdle RunStatus = iota

	// RunStatusQuerying means the bounded corpus scan is in flight.
	RunStatusQuerying

	// RunStatusExtracting means the pattern library is being applied to the
	// returned file records.
	RunStatusExtracting

	// RunStatusVerifying means candidates are being adjudicated.
	RunStatusVerifying

	// RunStatusRecording means confirmed verdicts are being persisted.
	RunStatusRecording

	// RunStatusDone means the invocation completed and produced a summary.
	RunStatusDone

	// RunStatusFailed means an unrecoverable error ended the invocation.
	RunStatusFailed
)

// String returns the status in a log-friendly form.
func (s RunStatus) String() string {
	switch s {
	case RunStatusIdle:
		return "IDLE"
	case RunStatusQuerying:
		return "QUERYING"
	case RunStatusExtracting:
		return "EXTRACTING"
	case RunStatusVerifying:
		return "VERIFYING"
	case RunStatusRecording:
		return "RECORDING"
	case RunStatusDone:
		return "DONE"
	case RunStatusFailed:
		return "FAILED"
	default:
		return "UNSPECIFIED"
	}
}

// validNext maps each status to its allowed successors. Failed is reachable
// from any non-terminal state.
var validNext = map[RunStatus][]RunStatus{
	RunStatusIdle:       {RunStatusQuerying},
	RunStatusQuerying:   {RunStatusExtracting},
	RunStatusExtracting: {RunStatusVerifying, RunStatusDone},
	RunStatusVerifying:  {RunStatusRecording},
	RunStatusRecording:  {RunStatusDone},
}

// ValidateTransition checks whether moving to target is legal from the
// current status.
func (s RunStatus) ValidateTransition(target RunStatus) error {
	if target == RunStatusFailed {
		if s == RunStatusDone || s == RunStatusFailed {
			return ErrRunStatusTransition
		}
		return nil
	}

	for _, next := range validNext[s] {
		if next == target {
			return nil
		}
	}
	return ErrRunStatusTransition
}
