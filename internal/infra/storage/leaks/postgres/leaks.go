// Package postgres persists confirmed leaks with fingerprint-based
// idempotency.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/leakhunter/internal/domain/hunting"
	"github.com/ahrav/leakhunter/internal/infra/storage"
)

var _ hunting.LeakStore = (*leakStore)(nil)

var defaultDBAttributes = []attribute.KeyValue{
	attribute.String("db.system", "postgresql"),
}

const insertLeakQuery = `
INSERT INTO confirmed_leaks (repo_name, file_path, secret_fingerprint, rationale, discovered_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (secret_fingerprint) DO NOTHING
`

const leakExistsQuery = `
SELECT 1 FROM confirmed_leaks WHERE secret_fingerprint = $1
`

// leakStore is a PostgreSQL implementation of the leak sink. Idempotency is
// enforced by the unique index on secret_fingerprint; a conflicting insert
// affects zero rows and is reported as a duplicate, never an error.
type leakStore struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

// NewLeakStore creates a PostgreSQL-backed leak store on the given pool.
func NewLeakStore(pool *pgxpool.Pool, tracer trace.Tracer) *leakStore {
	return &leakStore{pool: pool, tracer: tracer}
}

// Record persists a confirmed verdict. The fingerprint is derived from the
// verdict's candidate, so retried invocations converge on a single row.
func (s *leakStore) Record(ctx context.Context, v hunting.Verdict) (hunting.RecordOutcome, error) {
	leak, err := hunting.NewConfirmedLeak(v, time.Now())
	if err != nil {
		return hunting.OutcomeWriteError, &hunting.WriteError{
			Fingerprint: v.Candidate().Fingerprint(),
			Err:         err,
		}
	}

	outcome := hunting.OutcomeUnspecified
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("repo_name", leak.RepoName()),
		attribute.String("fingerprint", leak.SecretFingerprint()),
	)
	err = storage.ExecuteAndTrace(ctx, s.tracer, "postgres.record_leak", dbAttrs, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx, insertLeakQuery,
			leak.RepoName(),
			leak.Path(),
			leak.SecretFingerprint(),
			leak.Rationale(),
			leak.DiscoveredAt(),
		)
		if err != nil {
			return fmt.Errorf("failed to record leak: %w", err)
		}

		if tag.RowsAffected() == 0 {
			outcome = hunting.OutcomeDuplicateSkipped
			return nil
		}
		outcome = hunting.OutcomeInserted
		return nil
	})
	if err != nil {
		return hunting.OutcomeWriteError, &hunting.WriteError{
			Fingerprint: leak.SecretFingerprint(),
			Err:         err,
		}
	}

	return outcome, nil
}

// Exists reports whether a leak with the given fingerprint is already
// recorded.
func (s *leakStore) Exists(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("fingerprint", fingerprint),
	)
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.leak_exists", dbAttrs, func(ctx context.Context) error {
		var one int
		err := s.pool.QueryRow(ctx, leakExistsQuery, fingerprint).Scan(&one)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("failed to check leak existence: %w", err)
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, &hunting.WriteError{Fingerprint: fingerprint, Err: err}
	}

	return exists, nil
}
