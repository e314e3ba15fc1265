package hunting

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/leakhunter/internal/domain/hunting"
	"github.com/ahrav/leakhunter/internal/domain/rules"
	"github.com/ahrav/leakhunter/pkg/common/logger"
)

type fakeCorpus struct {
	mu       sync.Mutex
	records  []hunting.FileRecord
	failures int
	err      error
	gotLimit int
	calls    int
}

func (f *fakeCorpus) Scan(_ context.Context, limit int) ([]hunting.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.gotLimit = limit
	if f.err != nil && (f.failures == 0 || f.calls <= f.failures) {
		return nil, f.err
	}
	return f.records, nil
}

type fakeVerifier struct {
	mu     sync.Mutex
	called int

	// errFor fails verification for candidates whose matched text equals
	// the key.
	errFor map[string]error

	// confirm marks matched texts that should be judged genuine.
	confirm map[string]bool
}

func (f *fakeVerifier) Verify(_ context.Context, c hunting.Candidate, _ string) (hunting.Verdict, error) {
	f.mu.Lock()
	f.called++
	f.mu.Unlock()

	if err, ok := f.errFor[c.MatchedText()]; ok {
		return hunting.Verdict{}, err
	}
	if f.confirm[c.MatchedText()] {
		return hunting.NewVerdict(c, true, "live credential format", 0.9)
	}
	return hunting.NewVerdict(c, false, "placeholder value", 0.0)
}

type fakeStore struct {
	mu       sync.Mutex
	inserted map[string]bool
	writeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{inserted: make(map[string]bool)}
}

func (f *fakeStore) Record(_ context.Context, v hunting.Verdict) (hunting.RecordOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp := v.Candidate().Fingerprint()
	if f.writeErr != nil {
		return hunting.OutcomeWriteError, &hunting.WriteError{Fingerprint: fp, Err: f.writeErr}
	}
	if f.inserted[fp] {
		return hunting.OutcomeDuplicateSkipped, nil
	}
	f.inserted[fp] = true
	return hunting.OutcomeInserted, nil
}

func (f *fakeStore) Exists(_ context.Context, fingerprint string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inserted[fingerprint], nil
}

func newTestOrchestrator(t *testing.T, cfg Config, corpus hunting.CorpusReader, verifier hunting.Verifier, store hunting.LeakStore) *Orchestrator {
	t.Helper()

	log := logger.New(io.Discard, logger.LevelInfo, "test", nil)
	tracer := noop.NewTracerProvider().Tracer("test")
	return NewOrchestrator(cfg, rules.Default(), corpus, verifier, store, log, tracer, NoopMetrics{})
}

func TestRun_ConfirmedLeakRecorded(t *testing.T) {
	t.Parallel()

	const secret = "AKIAIOSFODNN7EXAMPLEKEY9"
	corpus := &fakeCorpus{records: []hunting.FileRecord{
		hunting.NewFileRecord("acme/widgets", "src/config.py",
			`api_key = "`+secret+`"`, 40),
	}}
	verifier := &fakeVerifier{confirm: map[string]bool{secret: true}}
	store := newFakeStore()

	o := newTestOrchestrator(t, Config{QueryLimit: 25, VerifyWorkers: 2}, corpus, verifier, store)

	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "DONE", summary.Status)
	assert.Equal(t, 1, summary.FilesScanned)
	assert.Equal(t, 1, summary.CandidatesFound)
	assert.Equal(t, 1, summary.ConfirmedLeaks)
	assert.Equal(t, 0, summary.Errors)
	assert.NotEmpty(t, summary.RunID)

	fp := hunting.Fingerprint("acme/widgets", "src/config.py", secret)
	exists, err := store.Exists(context.Background(), fp)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRun_QueryLimitPassedThrough(t *testing.T) {
	t.Parallel()

	corpus := &fakeCorpus{}
	o := newTestOrchestrator(t, Config{QueryLimit: 7}, corpus, &fakeVerifier{}, newFakeStore())

	_, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, corpus.gotLimit)
}

func TestRun_NoCandidatesSkipsVerification(t *testing.T) {
	t.Parallel()

	corpus := &fakeCorpus{records: []hunting.FileRecord{
		hunting.NewFileRecord("acme/widgets", "src/config.py", "timeout = 30\nretries = 5\n", 25),
	}}
	verifier := &fakeVerifier{}

	o := newTestOrchestrator(t, Config{QueryLimit: 25}, corpus, verifier, newFakeStore())

	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "DONE", summary.Status)
	assert.Equal(t, 1, summary.FilesScanned)
	assert.Equal(t, 0, summary.CandidatesFound)
	assert.Equal(t, 0, summary.ConfirmedLeaks)
	assert.Equal(t, 0, verifier.called)
}

func TestRun_VerificationFailureIsFailClosed(t *testing.T) {
	t.Parallel()

	const good = "AKIAIOSFODNN7REALKEY9999"
	const bad = "ghp_1234567890abcdefghij"
	content := `api_key = "` + good + `"` + "\n" + `token = "` + bad + `"` + "\n"

	corpus := &fakeCorpus{records: []hunting.FileRecord{
		hunting.NewFileRecord("acme/widgets", "src/config.py", content, len(content)),
	}}
	verifier := &fakeVerifier{
		confirm: map[string]bool{good: true},
		errFor: map[string]error{
			bad: &hunting.VerificationError{Fingerprint: "x", Err: errors.New("model timeout")},
		},
	}
	store := newFakeStore()

	o := newTestOrchestrator(t, Config{QueryLimit: 25, VerifyWorkers: 2}, corpus, verifier, store)

	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	// The failing candidate is treated as not confirmed; the healthy one
	// still lands.
	assert.Equal(t, "DONE", summary.Status)
	assert.Equal(t, 2, summary.CandidatesFound)
	assert.Equal(t, 1, summary.ConfirmedLeaks)
	assert.Equal(t, 1, summary.Errors)

	exists, err := store.Exists(context.Background(), hunting.Fingerprint("acme/widgets", "src/config.py", bad))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRun_DuplicateSkipped(t *testing.T) {
	t.Parallel()

	const secret = "AKIAIOSFODNN7EXAMPLEKEY9"
	corpus := &fakeCorpus{records: []hunting.FileRecord{
		hunting.NewFileRecord("acme/widgets", "src/config.py",
			`api_key = "`+secret+`"`, 40),
	}}
	verifier := &fakeVerifier{confirm: map[string]bool{secret: true}}
	store := newFakeStore()

	o := newTestOrchestrator(t, Config{QueryLimit: 25}, corpus, verifier, store)

	first, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.ConfirmedLeaks)

	second, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "DONE", second.Status)
	assert.Equal(t, 0, second.ConfirmedLeaks)
	assert.Equal(t, 0, second.Errors)
}

func TestRun_WriteErrorCountedNotFatal(t *testing.T) {
	t.Parallel()

	const secret = "AKIAIOSFODNN7EXAMPLEKEY9"
	corpus := &fakeCorpus{records: []hunting.FileRecord{
		hunting.NewFileRecord("acme/widgets", "src/config.py",
			`api_key = "`+secret+`"`, 40),
	}}
	verifier := &fakeVerifier{confirm: map[string]bool{secret: true}}
	store := newFakeStore()
	store.writeErr = errors.New("connection reset")

	o := newTestOrchestrator(t, Config{QueryLimit: 25}, corpus, verifier, store)

	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "DONE", summary.Status)
	assert.Equal(t, 0, summary.ConfirmedLeaks)
	assert.Equal(t, 1, summary.Errors)
}

func TestRun_QueryErrorFailsRun(t *testing.T) {
	t.Parallel()

	corpus := &fakeCorpus{err: &hunting.QueryError{Err: errors.New("quota exceeded")}}
	o := newTestOrchestrator(t, Config{QueryLimit: 25}, corpus, &fakeVerifier{}, newFakeStore())

	summary, err := o.Run(context.Background())
	require.Error(t, err)

	var qe *hunting.QueryError
	assert.ErrorAs(t, err, &qe)
	assert.Equal(t, "FAILED", summary.Status)
	assert.Equal(t, 0, summary.FilesScanned)
	assert.GreaterOrEqual(t, summary.Errors, 1)
}

func TestRun_ScanRetriesTransientFailure(t *testing.T) {
	t.Parallel()

	corpus := &fakeCorpus{
		records:  []hunting.FileRecord{hunting.NewFileRecord("acme/widgets", "src/config.py", "x = 1\n", 6)},
		failures: 1,
		err:      &hunting.QueryError{Err: errors.New("transient")},
	}
	o := newTestOrchestrator(t, Config{QueryLimit: 25}, corpus, &fakeVerifier{}, newFakeStore())

	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "DONE", summary.Status)
	assert.Equal(t, 1, summary.FilesScanned)
	assert.Equal(t, 2, corpus.calls)
}

func TestRun_VerifyTimeoutApplied(t *testing.T) {
	t.Parallel()

	const secret = "AKIAIOSFODNN7EXAMPLEKEY9"
	corpus := &fakeCorpus{records: []hunting.FileRecord{
		hunting.NewFileRecord("acme/widgets", "src/config.py",
			`api_key = "`+secret+`"`, 40),
	}}
	verifier := &slowVerifier{delay: 200 * time.Millisecond}
	store := newFakeStore()

	o := newTestOrchestrator(t, Config{QueryLimit: 25, VerifyTimeout: 20 * time.Millisecond}, corpus, verifier, store)

	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "DONE", summary.Status)
	assert.Equal(t, 0, summary.ConfirmedLeaks)
	assert.Equal(t, 1, summary.Errors)
}

func TestRun_CanceledVerificationIsNotAQueryError(t *testing.T) {
	t.Parallel()

	const first = "AKIAIOSFODNN7REALKEY9999"
	const second = "ghp_1234567890abcdefghij"
	content := `api_key = "` + first + `"` + "\n" + `token = "` + second + `"` + "\n"

	corpus := &fakeCorpus{records: []hunting.FileRecord{
		hunting.NewFileRecord("acme/widgets", "src/config.py", content, len(content)),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The first verification cancels the run; with one worker the second
	// candidate observes the canceled context before its verifier call.
	verifier := &cancelingVerifier{cancel: cancel}

	o := newTestOrchestrator(t, Config{QueryLimit: 25, VerifyWorkers: 1}, corpus, verifier, newFakeStore())

	summary, err := o.Run(ctx)
	require.Error(t, err)

	assert.ErrorIs(t, err, context.Canceled)
	var qe *hunting.QueryError
	assert.False(t, errors.As(err, &qe), "cancellation must not be reported as a corpus query failure")
	assert.Equal(t, "FAILED", summary.Status)
}

// cancelingVerifier cancels the run on its first call and fails it.
type cancelingVerifier struct {
	cancel context.CancelFunc
}

func (c *cancelingVerifier) Verify(_ context.Context, cand hunting.Candidate, _ string) (hunting.Verdict, error) {
	c.cancel()
	return hunting.Verdict{}, &hunting.VerificationError{Fingerprint: cand.Fingerprint(), Err: context.Canceled}
}

func TestRun_ScanTimeoutApplied(t *testing.T) {
	t.Parallel()

	corpus := &hangingCorpus{}
	o := newTestOrchestrator(t, Config{QueryLimit: 25, QueryTimeout: 20 * time.Millisecond}, corpus, &fakeVerifier{}, newFakeStore())

	done := make(chan struct{})
	var summary Summary
	var err error
	go func() {
		summary, err = o.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("hung corpus scan was not bounded by the query timeout")
	}

	require.Error(t, err)

	var qe *hunting.QueryError
	assert.ErrorAs(t, err, &qe)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "FAILED", summary.Status)
}

// hangingCorpus blocks until the scan context is canceled.
type hangingCorpus struct{}

func (h *hangingCorpus) Scan(ctx context.Context, _ int) ([]hunting.FileRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type slowVerifier struct {
	delay time.Duration
}

func (s *slowVerifier) Verify(ctx context.Context, c hunting.Candidate, _ string) (hunting.Verdict, error) {
	select {
	case <-ctx.Done():
		return hunting.Verdict{}, &hunting.VerificationError{Fingerprint: c.Fingerprint(), Err: ctx.Err()}
	case <-time.After(s.delay):
		return hunting.NewVerdict(c, true, "slow", 0.9)
	}
}
