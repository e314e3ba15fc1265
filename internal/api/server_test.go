package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	apphunting "github.com/ahrav/leakhunter/internal/app/hunting"
	"github.com/ahrav/leakhunter/internal/domain/hunting"
	"github.com/ahrav/leakhunter/internal/domain/rules"
	corpusmem "github.com/ahrav/leakhunter/internal/infra/corpus/memory"
	storagemem "github.com/ahrav/leakhunter/internal/infra/storage/leaks/memory"
	verifiermem "github.com/ahrav/leakhunter/internal/infra/verifier/memory"
	"github.com/ahrav/leakhunter/pkg/common/logger"
)

const testSecret = "AKIAIOSFODNN7REALKEY9999"

func newTestServer(t *testing.T, corpus hunting.CorpusReader, verifier hunting.Verifier, store hunting.LeakStore) *httptest.Server {
	t.Helper()

	log := logger.New(io.Discard, logger.LevelInfo, "test", nil)
	tracer := noop.NewTracerProvider().Tracer("test")

	orchestrator := apphunting.NewOrchestrator(
		apphunting.Config{QueryLimit: 25, VerifyWorkers: 2},
		rules.Default(),
		corpus,
		verifier,
		store,
		log,
		tracer,
		apphunting.NoopMetrics{},
	)

	srv := NewServer(":0", time.Second, orchestrator, store, log, tracer, NoopAPIMetrics{})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealth(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, corpusmem.NewCorpus(rules.Default()), verifiermem.NewVerifier(), storagemem.NewLeakStore())

	resp, err := http.Get(ts.URL + "/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadiness(t *testing.T) {
	t.Parallel()

	t.Run("ready", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(t, corpusmem.NewCorpus(rules.Default()), verifiermem.NewVerifier(), storagemem.NewLeakStore())

		resp, err := http.Get(ts.URL + "/v1/readiness")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("sink unreachable", func(t *testing.T) {
		t.Parallel()

		store := storagemem.NewLeakStore()
		store.Err = errors.New("connection refused")
		ts := newTestServer(t, corpusmem.NewCorpus(rules.Default()), verifiermem.NewVerifier(), store)

		resp, err := http.Get(ts.URL + "/v1/readiness")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestStartHunt_ReturnsSummary(t *testing.T) {
	t.Parallel()

	corpus := corpusmem.NewCorpus(rules.Default())
	corpus.Add(hunting.NewFileRecord("acme/api", "src/config.py",
		`api_key = "`+testSecret+`"`, 40))

	verifier := verifiermem.NewVerifier()
	verifier.Confirm(testSecret)

	store := storagemem.NewLeakStore()
	ts := newTestServer(t, corpus, verifier, store)

	resp, err := http.Post(ts.URL+"/v1/hunts", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary apphunting.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))

	assert.Equal(t, "DONE", summary.Status)
	assert.Equal(t, 1, summary.FilesScanned)
	assert.Equal(t, 1, summary.CandidatesFound)
	assert.Equal(t, 1, summary.ConfirmedLeaks)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 1, store.Count())
}

func TestStartHunt_SecondInvocationIdempotent(t *testing.T) {
	t.Parallel()

	corpus := corpusmem.NewCorpus(rules.Default())
	corpus.Add(hunting.NewFileRecord("acme/api", "src/config.py",
		`api_key = "`+testSecret+`"`, 40))

	verifier := verifiermem.NewVerifier()
	verifier.Confirm(testSecret)

	store := storagemem.NewLeakStore()
	ts := newTestServer(t, corpus, verifier, store)

	for range [2]struct{}{} {
		resp, err := http.Post(ts.URL+"/v1/hunts", "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	assert.Equal(t, 1, store.Count())
}

func TestStartHunt_QueryFailureIsServerError(t *testing.T) {
	t.Parallel()

	corpus := corpusmem.NewCorpus(rules.Default())
	corpus.Err = errors.New("quota exceeded")

	ts := newTestServer(t, corpus, verifiermem.NewVerifier(), storagemem.NewLeakStore())

	resp, err := http.Post(ts.URL+"/v1/hunts", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var summary apphunting.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, "FAILED", summary.Status)
}
