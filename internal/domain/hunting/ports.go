package hunting

import "context"

// CorpusReader issues a bounded, filtered scan against the corpus source.
// Eligibility predicates are pushed down to the source when it supports
// server-side filtering, otherwise applied client-side. Implementations never
// mutate the corpus and never retry internally; retry policy belongs to the
// orchestrator.
type CorpusReader interface {
	// Scan returns at most limit eligible file records. Order is
	// source-defined and not stable across runs. Failures are reported as
	// *QueryError.
	Scan(ctx context.Context, limit int) ([]FileRecord, error)
}

// Verifier adjudicates whether a candidate is plausibly a real secret or a
// placeholder/test value. Implementations are substitutable: a hosted model
// API, a local heuristic classifier, or a test stub. Failures are reported as
// *VerificationError and must never be turned into a confirmed verdict.
type Verifier interface {
	// Verify adjudicates one candidate. snippet is the surrounding file
	// content used as classification context.
	Verify(ctx context.Context, candidate Candidate, snippet string) (Verdict, error)
}

// LeakStore persists confirmed leaks exactly once per fingerprint. The
// check-then-insert must be effectively atomic per fingerprint so concurrent
// racers recording the same fingerprint cannot both insert.
type LeakStore interface {
	// Record persists the leak for a confirmed verdict. Returns
	// OutcomeDuplicateSkipped without writing when the fingerprint already
	// exists, and OutcomeWriteError (with a *WriteError) when storage is
	// unavailable.
	Record(ctx context.Context, v Verdict) (RecordOutcome, error)

	// Exists reports whether a leak with the fingerprint is already recorded.
	Exists(ctx context.Context, fingerprint string) (bool, error)
}
