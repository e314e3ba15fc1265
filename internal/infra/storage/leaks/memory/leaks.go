// Package memory provides an in-memory leak store for tests and local
// development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ahrav/leakhunter/internal/domain/hunting"
)

var _ hunting.LeakStore = (*LeakStore)(nil)

// LeakStore keeps confirmed leaks in a map keyed by fingerprint.
type LeakStore struct {
	mu    sync.RWMutex
	leaks map[string]hunting.ConfirmedLeak

	// Err, when set, is returned by every operation.
	Err error
}

// NewLeakStore creates an empty in-memory leak store.
func NewLeakStore() *LeakStore {
	return &LeakStore{leaks: make(map[string]hunting.ConfirmedLeak)}
}

// Record stores a confirmed verdict, skipping fingerprints already present.
func (s *LeakStore) Record(_ context.Context, v hunting.Verdict) (hunting.RecordOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp := v.Candidate().Fingerprint()
	if s.Err != nil {
		return hunting.OutcomeWriteError, &hunting.WriteError{Fingerprint: fp, Err: s.Err}
	}

	if _, ok := s.leaks[fp]; ok {
		return hunting.OutcomeDuplicateSkipped, nil
	}

	leak, err := hunting.NewConfirmedLeak(v, time.Now())
	if err != nil {
		return hunting.OutcomeWriteError, &hunting.WriteError{Fingerprint: fp, Err: err}
	}

	s.leaks[fp] = leak
	return hunting.OutcomeInserted, nil
}

// Exists reports whether a fingerprint is recorded.
func (s *LeakStore) Exists(_ context.Context, fingerprint string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Err != nil {
		return false, &hunting.WriteError{Fingerprint: fingerprint, Err: s.Err}
	}

	_, ok := s.leaks[fingerprint]
	return ok, nil
}

// Count returns the number of recorded leaks.
func (s *LeakStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.leaks)
}
