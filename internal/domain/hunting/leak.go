package hunting

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"time"
)

// ErrVerdictNotConfirmed is returned when a ConfirmedLeak is created from a
// verdict the verifier did not confirm.
var ErrVerdictNotConfirmed = errors.New("verdict is not confirmed")

// Fingerprint computes the deterministic dedup key for a leak. It is a pure
// function of (repoName, path, matchedText): repeated runs over the same
// corpus state produce the same fingerprint. Inputs are length-prefixed so
// adjacent fields cannot collide by concatenation.
func Fingerprint(repoName, path, matchedText string) string {
	h := sha256.New()

	for _, s := range []string{repoName, path, matchedText} {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// ConfirmedLeak is a candidate an adjudicator judged plausibly genuine,
// persisted under its fingerprint. The fingerprint never changes for the
// same underlying leak.
type ConfirmedLeak struct {
	repoName          string
	path              string
	secretFingerprint string
	rationale         string
	discoveredAt      time.Time
}

// NewConfirmedLeak creates a ConfirmedLeak from a confirmed verdict.
func NewConfirmedLeak(v Verdict, discoveredAt time.Time) (ConfirmedLeak, error) {
	if !v.IsConfirmed() {
		return ConfirmedLeak{}, ErrVerdictNotConfirmed
	}

	c := v.Candidate()
	return ConfirmedLeak{
		repoName:          c.RepoName(),
		path:              c.Path(),
		secretFingerprint: c.Fingerprint(),
		rationale:         v.Rationale(),
		discoveredAt:      discoveredAt.UTC(),
	}, nil
}

// ReconstructConfirmedLeak builds a ConfirmedLeak from persisted state,
// bypassing verdict validation. Intended for storage layers only.
func ReconstructConfirmedLeak(repoName, path, fingerprint, rationale string, discoveredAt time.Time) ConfirmedLeak {
	return ConfirmedLeak{
		repoName:          repoName,
		path:              path,
		secretFingerprint: fingerprint,
		rationale:         rationale,
		discoveredAt:      discoveredAt,
	}
}

// RepoName returns the repository the leak was found in.
func (l ConfirmedLeak) RepoName() string { return l.repoName }

// Path returns the file path the leak was found in.
func (l ConfirmedLeak) Path() string { return l.path }

// SecretFingerprint returns the dedup key for this leak.
func (l ConfirmedLeak) SecretFingerprint() string { return l.secretFingerprint }

// Rationale returns the adjudicator's explanation.
func (l ConfirmedLeak) Rationale() string { return l.rationale }

// DiscoveredAt returns when the leak was first recorded.
func (l ConfirmedLeak) DiscoveredAt() time.Time { return l.discoveredAt }
