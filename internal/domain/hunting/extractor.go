package hunting

import (
	"github.com/ahrav/leakhunter/internal/domain/rules"
)

// Extract applies every inclusion rule to the record's content and returns
// one candidate per non-overlapping match. It is deterministic and total:
// malformed or ineligible input yields no candidates, never an error.
func Extract(rs *rules.Ruleset, record FileRecord) []Candidate {
	if !rs.Eligible(record.Path(), record.SizeBytes(), record.Content()) {
		return nil
	}

	var candidates []Candidate
	for _, rule := range rs.Rules() {
		if !rule.Path(record.Path()) {
			continue
		}

		for _, m := range rule.Matcher().FindAllStringSubmatchIndex(record.Content(), -1) {
			// m[0] is the match start, m[2]:m[3] bound the capture group.
			if m[2] < 0 {
				continue
			}
			candidates = append(candidates, NewCandidate(
				record.RepoName(),
				record.Path(),
				record.Content()[m[2]:m[3]],
				rule.ID,
				m[0],
			))
		}
	}

	return candidates
}

// ContextSnippet returns the content surrounding a match, clamped to content
// bounds, for use as verification context.
func ContextSnippet(content string, offset, matchLen, window int) string {
	if content == "" {
		return ""
	}
	if offset < 0 || offset > len(content) {
		return content
	}

	start := offset - window
	if start < 0 {
		start = 0
	}
	end := offset + matchLen + window
	if end > len(content) {
		end = len(content)
	}

	snippet := content[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet = snippet + "..."
	}
	return snippet
}
