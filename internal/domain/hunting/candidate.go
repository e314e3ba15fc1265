package hunting

// Candidate is a substring that syntactically resembles a secret assignment.
// It is transient: held only for the duration of verification, never
// persisted. A Candidate always references a rule that actually matched its
// source text at the recorded offset.
type Candidate struct {
	repoName    string
	path        string
	matchedText string
	ruleID      string
	offset      int
}

// NewCandidate creates a Candidate for a rule match.
func NewCandidate(repoName, path, matchedText, ruleID string, offset int) Candidate {
	return Candidate{
		repoName:    repoName,
		path:        path,
		matchedText: matchedText,
		ruleID:      ruleID,
		offset:      offset,
	}
}

// RepoName returns the repository the candidate was found in.
func (c Candidate) RepoName() string { return c.repoName }

// Path returns the file path the candidate was found in.
func (c Candidate) Path() string { return c.path }

// MatchedText returns the captured secret value.
func (c Candidate) MatchedText() string { return c.matchedText }

// RuleID identifies the inclusion rule that produced this candidate.
func (c Candidate) RuleID() string { return c.ruleID }

// Offset returns the byte offset of the match start within the file content.
func (c Candidate) Offset() int { return c.offset }

// Fingerprint returns the dedup key for this candidate's underlying leak.
func (c Candidate) Fingerprint() string {
	return Fingerprint(c.repoName, c.path, c.matchedText)
}
