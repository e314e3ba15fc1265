package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/leakhunter/internal/domain/hunting"
	"github.com/ahrav/leakhunter/internal/infra/storage"
)

func confirmedVerdict(t *testing.T, repo, path, matched string) hunting.Verdict {
	t.Helper()

	c := hunting.NewCandidate(repo, path, matched, "api_key", 12)
	v, err := hunting.NewVerdict(c, true, "looks like a live key", 0.9)
	require.NoError(t, err)
	return v
}

func TestLeakStore_RecordAndExists(t *testing.T) {
	pool, cleanup := storage.SetupTestContainer(t)
	defer cleanup()

	store := NewLeakStore(pool, storage.NoOpTracer())
	ctx := context.Background()

	v := confirmedVerdict(t, "acme/api", "src/config.py", "AKIAIOSFODNN7REALKEY9999")
	fp := v.Candidate().Fingerprint()

	exists, err := store.Exists(ctx, fp)
	require.NoError(t, err)
	assert.False(t, exists)

	outcome, err := store.Record(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, hunting.OutcomeInserted, outcome)

	exists, err = store.Exists(ctx, fp)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLeakStore_DuplicateFingerprintSkipped(t *testing.T) {
	pool, cleanup := storage.SetupTestContainer(t)
	defer cleanup()

	store := NewLeakStore(pool, storage.NoOpTracer())
	ctx := context.Background()

	v := confirmedVerdict(t, "acme/api", "src/config.py", "AKIAIOSFODNN7REALKEY9999")

	outcome, err := store.Record(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, hunting.OutcomeInserted, outcome)

	// Same candidate surfaced by a later invocation.
	outcome, err = store.Record(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, hunting.OutcomeDuplicateSkipped, outcome)

	var count int
	err = pool.QueryRow(ctx, "SELECT COUNT(*) FROM confirmed_leaks").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLeakStore_DistinctFingerprintsBothInserted(t *testing.T) {
	pool, cleanup := storage.SetupTestContainer(t)
	defer cleanup()

	store := NewLeakStore(pool, storage.NoOpTracer())
	ctx := context.Background()

	first := confirmedVerdict(t, "acme/api", "src/config.py", "AKIAIOSFODNN7REALKEY9999")
	// Same secret value in a different file hashes to a different
	// fingerprint.
	second := confirmedVerdict(t, "acme/api", "deploy/app.yaml", "AKIAIOSFODNN7REALKEY9999")

	outcome, err := store.Record(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, hunting.OutcomeInserted, outcome)

	outcome, err = store.Record(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, hunting.OutcomeInserted, outcome)
}

func TestLeakStore_RejectsUnconfirmedVerdict(t *testing.T) {
	pool, cleanup := storage.SetupTestContainer(t)
	defer cleanup()

	store := NewLeakStore(pool, storage.NoOpTracer())
	ctx := context.Background()

	c := hunting.NewCandidate("acme/api", "src/config.py", "AKIAIOSFODNN7REALKEY9999", "api_key", 12)
	v, err := hunting.NewVerdict(c, false, "placeholder", 0.0)
	require.NoError(t, err)

	outcome, err := store.Record(ctx, v)
	require.Error(t, err)
	assert.Equal(t, hunting.OutcomeWriteError, outcome)
	assert.ErrorIs(t, err, hunting.ErrVerdictNotConfirmed)
}
