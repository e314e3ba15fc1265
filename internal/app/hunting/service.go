// Package hunting orchestrates one pass of the leak-hunting pipeline:
// corpus scan, candidate extraction, verification, and recording.
package hunting

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ahrav/leakhunter/internal/domain/hunting"
	"github.com/ahrav/leakhunter/internal/domain/rules"
	"github.com/ahrav/leakhunter/pkg/common"
	"github.com/ahrav/leakhunter/pkg/common/logger"
)

// metrics defines the instrumentation the orchestrator reports.
type metrics interface {
	IncFilesScanned(ctx context.Context, n int)
	IncCandidatesFound(ctx context.Context, n int)
	IncConfirmedLeaks(ctx context.Context, n int)
	IncRunErrors(ctx context.Context, kind string)
	ObserveRunDuration(ctx context.Context, d time.Duration)
}

// contextWindow is the number of characters of surrounding file content
// supplied to the verifier on each side of a match.
const contextWindow = 150

// Config carries the orchestrator's tunable parameters.
type Config struct {
	// QueryLimit caps how many file records one invocation pulls from the
	// corpus. The cap is applied once, at the query boundary.
	QueryLimit int

	// QueryTimeout bounds each corpus scan attempt. Zero disables the
	// deadline.
	QueryTimeout time.Duration

	// VerifyWorkers bounds concurrent verification calls. Candidates share
	// no mutable state so they verify independently.
	VerifyWorkers int

	// VerifyTimeout bounds each verification call.
	VerifyTimeout time.Duration

	// VerifyRatePerSec paces verification calls to stay inside provider
	// quotas. Zero disables pacing.
	VerifyRatePerSec float64
}

// Orchestrator sequences corpus scan, extraction, verification, and
// recording for one invocation. It is safe for concurrent invocations; all
// per-run state lives in the run value.
type Orchestrator struct {
	cfg      Config
	ruleset  *rules.Ruleset
	corpus   hunting.CorpusReader
	verifier hunting.Verifier
	store    hunting.LeakStore
	limiter  *common.RateLimiter

	logger *logger.Logger
	tracer trace.Tracer
	metric metrics
}

// NewOrchestrator wires the pipeline components together.
func NewOrchestrator(
	cfg Config,
	ruleset *rules.Ruleset,
	corpus hunting.CorpusReader,
	verifier hunting.Verifier,
	store hunting.LeakStore,
	log *logger.Logger,
	tracer trace.Tracer,
	metric metrics,
) *Orchestrator {
	limiter := common.NewRateLimiter(float64(rate.Inf), 1)
	if cfg.VerifyRatePerSec > 0 {
		limiter = common.NewRateLimiter(cfg.VerifyRatePerSec, 1)
	}
	if cfg.VerifyWorkers <= 0 {
		cfg.VerifyWorkers = 4
	}

	return &Orchestrator{
		cfg:      cfg,
		ruleset:  ruleset,
		corpus:   corpus,
		verifier: verifier,
		store:    store,
		limiter:  limiter,
		logger:   log.With("component", "hunt_orchestrator"),
		tracer:   tracer,
		metric:   metric,
	}
}

// run tracks the state of a single invocation.
type run struct {
	id      string
	status  RunStatus
	started time.Time

	mu        sync.Mutex
	errors    int
	confirmed int
}

func (r *run) advance(target RunStatus) error {
	if err := r.status.ValidateTransition(target); err != nil {
		return err
	}
	r.status = target
	return nil
}

func (r *run) countError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors++
}

func (r *run) countConfirmed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmed++
}

// Run executes one invocation. It always returns a summary; the error is
// non-nil only for run-level failures (corpus read), in which case the
// summary reports status FAILED. Per-candidate verification and write
// failures are counted and logged but never abort the batch.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	r := &run{
		id:      uuid.New().String(),
		status:  RunStatusIdle,
		started: time.Now(),
	}

	ctx, span := o.tracer.Start(ctx, "hunt.run",
		trace.WithAttributes(
			attribute.String("run_id", r.id),
			attribute.Int("query_limit", o.cfg.QueryLimit),
			attribute.String("ruleset_hash", o.ruleset.Hash()),
		))
	defer span.End()

	o.logger.Info(ctx, "hunt started",
		"run_id", r.id,
		"query_limit", o.cfg.QueryLimit,
		"ruleset_hash", o.ruleset.Hash(),
	)

	records, err := o.scan(ctx, r)
	if err != nil {
		return o.fail(ctx, span, r, err)
	}
	o.metric.IncFilesScanned(ctx, len(records))

	candidates, err := o.extract(ctx, r, records)
	if err != nil {
		return o.fail(ctx, span, r, err)
	}
	o.metric.IncCandidatesFound(ctx, len(candidates))

	if len(candidates) == 0 {
		if err := r.advance(RunStatusDone); err != nil {
			return o.fail(ctx, span, r, err)
		}
		return o.finish(ctx, r, len(records), 0), nil
	}

	verdicts, err := o.verify(ctx, r, records, candidates)
	if err != nil {
		return o.fail(ctx, span, r, err)
	}

	if err := o.record(ctx, r, verdicts); err != nil {
		return o.fail(ctx, span, r, err)
	}

	if err := r.advance(RunStatusDone); err != nil {
		return o.fail(ctx, span, r, err)
	}

	return o.finish(ctx, r, len(records), len(candidates)), nil
}

// scan performs the bounded corpus read with capped retries. The adapter
// itself never retries; retry policy lives here.
func (o *Orchestrator) scan(ctx context.Context, r *run) ([]hunting.FileRecord, error) {
	if err := r.advance(RunStatusQuerying); err != nil {
		return nil, err
	}

	ctx, span := o.tracer.Start(ctx, "hunt.scan")
	defer span.End()

	// Each attempt gets its own deadline so a hung corpus read fails the
	// attempt instead of hanging the invocation.
	var records []hunting.FileRecord
	op := func() error {
		sctx := ctx
		if o.cfg.QueryTimeout > 0 {
			var cancel context.CancelFunc
			sctx, cancel = context.WithTimeout(ctx, o.cfg.QueryTimeout)
			defer cancel()
		}

		var err error
		records, err = o.corpus.Scan(sctx, o.cfg.QueryLimit)
		return err
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		var qe *hunting.QueryError
		if errors.As(err, &qe) {
			return nil, err
		}
		return nil, &hunting.QueryError{Err: err}
	}

	span.SetAttributes(attribute.Int("files_scanned", len(records)))
	return records, nil
}

func (o *Orchestrator) extract(ctx context.Context, r *run, records []hunting.FileRecord) ([]hunting.Candidate, error) {
	if err := r.advance(RunStatusExtracting); err != nil {
		return nil, err
	}

	_, span := o.tracer.Start(ctx, "hunt.extract")
	defer span.End()

	var candidates []hunting.Candidate
	for _, record := range records {
		candidates = append(candidates, hunting.Extract(o.ruleset, record)...)
	}

	span.SetAttributes(attribute.Int("candidates_found", len(candidates)))
	o.logger.Info(ctx, "extraction complete",
		"run_id", r.id,
		"files_scanned", len(records),
		"candidates_found", len(candidates),
	)
	return candidates, nil
}

// verify adjudicates candidates concurrently. Verification failures are
// recovered as "not confirmed" for that candidate: the verdict is dropped,
// the error counted, and the run continues.
func (o *Orchestrator) verify(ctx context.Context, r *run, records []hunting.FileRecord, candidates []hunting.Candidate) ([]hunting.Verdict, error) {
	if err := r.advance(RunStatusVerifying); err != nil {
		return nil, err
	}

	ctx, span := o.tracer.Start(ctx, "hunt.verify",
		trace.WithAttributes(attribute.Int("candidates", len(candidates))))
	defer span.End()

	contents := make(map[string]string, len(records))
	for _, rec := range records {
		contents[rec.RepoName()+"\x00"+rec.Path()] = rec.Content()
	}

	verdicts := make([]hunting.Verdict, len(candidates))
	confirmed := make([]bool, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.VerifyWorkers)

	for i, candidate := range candidates {
		i, candidate := i, candidate
		g.Go(func() error {
			if err := o.limiter.Wait(gctx); err != nil {
				return err
			}

			content := contents[candidate.RepoName()+"\x00"+candidate.Path()]
			snippet := hunting.ContextSnippet(content, candidate.Offset(), len(candidate.MatchedText()), contextWindow)

			vctx := gctx
			if o.cfg.VerifyTimeout > 0 {
				var cancel context.CancelFunc
				vctx, cancel = context.WithTimeout(gctx, o.cfg.VerifyTimeout)
				defer cancel()
			}

			verdict, err := o.verifier.Verify(vctx, candidate, snippet)
			if err != nil {
				// Fail closed: uncertainty is not a leak.
				r.countError()
				o.metric.IncRunErrors(gctx, "verification")
				o.logger.Error(gctx, "verification failed, treating as not confirmed",
					"run_id", r.id,
					"rule_id", candidate.RuleID(),
					"fingerprint", candidate.Fingerprint(),
					"error", err,
				)
				return nil
			}

			verdicts[i] = verdict
			confirmed[i] = verdict.IsConfirmed()
			return nil
		})
	}

	// Worker funcs only return context errors; candidate failures are
	// recovered in place.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]hunting.Verdict, 0, len(candidates))
	for i := range verdicts {
		if confirmed[i] {
			out = append(out, verdicts[i])
		}
	}

	span.SetAttributes(attribute.Int("confirmed_verdicts", len(out)))
	return out, nil
}

// record persists confirmed verdicts. Write failures are counted and logged
// but never abort the batch; the candidate remains unrecorded and can be
// retried by a future invocation.
func (o *Orchestrator) record(ctx context.Context, r *run, verdicts []hunting.Verdict) error {
	if err := r.advance(RunStatusRecording); err != nil {
		return err
	}

	ctx, span := o.tracer.Start(ctx, "hunt.record",
		trace.WithAttributes(attribute.Int("confirmed_verdicts", len(verdicts))))
	defer span.End()

	for _, verdict := range verdicts {
		fingerprint := verdict.Candidate().Fingerprint()

		outcome, err := o.store.Record(ctx, verdict)
		switch outcome {
		case hunting.OutcomeInserted:
			r.countConfirmed()
			o.metric.IncConfirmedLeaks(ctx, 1)
			o.logger.Info(ctx, "confirmed leak recorded",
				"run_id", r.id,
				"repo_name", verdict.Candidate().RepoName(),
				"path", verdict.Candidate().Path(),
				"rule_id", verdict.Candidate().RuleID(),
				"fingerprint", fingerprint,
			)

		case hunting.OutcomeDuplicateSkipped:
			o.logger.Info(ctx, "leak already recorded, skipping",
				"run_id", r.id,
				"fingerprint", fingerprint,
			)

		default:
			r.countError()
			o.metric.IncRunErrors(ctx, "write")
			o.logger.Error(ctx, "recording leak failed",
				"run_id", r.id,
				"fingerprint", fingerprint,
				"error", err,
			)
		}
	}

	return nil
}

func (o *Orchestrator) fail(ctx context.Context, span trace.Span, r *run, err error) (Summary, error) {
	_ = r.advance(RunStatusFailed)
	r.countError()

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	kind := "run"
	var qe *hunting.QueryError
	if errors.As(err, &qe) {
		kind = "query"
	}
	o.metric.IncRunErrors(ctx, kind)

	duration := time.Since(r.started)
	o.metric.ObserveRunDuration(ctx, duration)

	o.logger.Error(ctx, "hunt failed",
		"run_id", r.id,
		"error", err,
		"duration_ms", duration.Milliseconds(),
	)

	return Summary{
		RunID:      r.id,
		Status:     r.status.String(),
		Errors:     r.errors,
		DurationMs: duration.Milliseconds(),
	}, err
}

func (o *Orchestrator) finish(ctx context.Context, r *run, filesScanned, candidatesFound int) Summary {
	duration := time.Since(r.started)
	o.metric.ObserveRunDuration(ctx, duration)

	summary := Summary{
		RunID:           r.id,
		Status:          r.status.String(),
		FilesScanned:    filesScanned,
		CandidatesFound: candidatesFound,
		ConfirmedLeaks:  r.confirmed,
		Errors:          r.errors,
		DurationMs:      duration.Milliseconds(),
	}

	o.logger.Info(ctx, "hunt complete",
		"run_id", r.id,
		"files_scanned", summary.FilesScanned,
		"candidates_found", summary.CandidatesFound,
		"confirmed_leaks", summary.ConfirmedLeaks,
		"errors", summary.Errors,
		"duration_ms", summary.DurationMs,
	)

	return summary
}
