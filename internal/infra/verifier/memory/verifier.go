// Package memory provides a canned verifier for tests and local development.
package memory

import (
	"context"
	"sync"

	"github.com/ahrav/leakhunter/internal/domain/hunting"
)

var _ hunting.Verifier = (*Verifier)(nil)

// Verifier returns canned verdicts keyed by matched text. Unknown values are
// rejected with zero confidence.
type Verifier struct {
	mu      sync.RWMutex
	confirm map[string]bool

	// Err, when set, fails every verification.
	Err error
}

// NewVerifier creates a verifier that rejects everything until Confirm is
// called.
func NewVerifier() *Verifier {
	return &Verifier{confirm: make(map[string]bool)}
}

// Confirm marks a matched value as a genuine leak.
func (v *Verifier) Confirm(matched string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.confirm[matched] = true
}

// Verify returns the canned verdict for the candidate's matched text.
func (v *Verifier) Verify(_ context.Context, c hunting.Candidate, _ string) (hunting.Verdict, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.Err != nil {
		return hunting.Verdict{}, &hunting.VerificationError{
			Fingerprint: c.Fingerprint(),
			Err:         v.Err,
		}
	}

	if v.confirm[c.MatchedText()] {
		return hunting.NewVerdict(c, true, "confirmed by fixture", 0.9)
	}
	return hunting.NewVerdict(c, false, "rejected by fixture", 0.0)
}
