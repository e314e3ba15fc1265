package hunting

import "fmt"

// QueryError indicates the corpus read failed. The invocation fails closed:
// no partial candidates from a failed page are processed.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string { return fmt.Sprintf("corpus query failed: %v", e.Err) }

func (e *QueryError) Unwrap() error { return e.Err }

// VerificationError indicates external adjudication failed for one candidate.
// The orchestrator recovers it locally as "not confirmed" and continues the
// run; it never fabricates a confirmed verdict.
type VerificationError struct {
	Fingerprint string
	Err         error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed for %s: %v", e.Fingerprint, e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// WriteError indicates persistence failed for one confirmed leak. Nothing was
// written; the candidate may be re-confirmed and retried on a future
// invocation.
type WriteError struct {
	Fingerprint string
	Err         error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("recording leak %s failed: %v", e.Fingerprint, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ConfigurationError indicates a required setting is missing or invalid.
// It is fatal: the invocation aborts before any corpus read.
type ConfigurationError struct {
	Setting string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Setting != "" {
		return fmt.Sprintf("invalid configuration %s: %v", e.Setting, e.Err)
	}
	return fmt.Sprintf("invalid configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
