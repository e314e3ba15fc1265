// Package rules defines the pattern library used to select leak candidates.
// Rules are pure values: they perform no I/O and are independently testable
// against literal paths and file contents.
package rules

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	regexp "github.com/wasilibs/go-re2"
)

// DefaultSizeCeiling is the maximum file size, in bytes, a file may have and
// still be scan-eligible.
const DefaultSizeCeiling = 100_000

// defaultKeywords is the fixed vocabulary of secret assignment keywords.
var defaultKeywords = []string{
	"api_key",
	"secret_key",
	"access_token",
	"secret",
	"token",
	"password",
	"credential",
	"private_key",
}

// defaultPathFilter selects files whose extension or path suggests
// configuration material.
const defaultPathFilter = `(?i)(\.(py|ya?ml|json|env|conf|cfg|properties|sh)$|config)`

// defaultExcludePattern rejects fixture and test data paths to suppress the
// most common false positive sources.
const defaultExcludePattern = `(?i)(test|example|sample|demo|mock|fake)`

// Rule is a single inclusion rule: a path filter plus a content matcher whose
// first capture group is the candidate secret value.
type Rule struct {
	ID             string `yaml:"id"`
	PathPattern    string `yaml:"path_pattern"`
	ContentPattern string `yaml:"content_pattern"`

	path    *regexp.Regexp
	content *regexp.Regexp
}

// Path reports whether the rule's path filter accepts the given path.
func (r *Rule) Path(path string) bool { return r.path.MatchString(path) }

// Matcher returns the compiled content matcher for this rule.
func (r *Rule) Matcher() *regexp.Regexp { return r.content }

func (r *Rule) compile() error {
	if r.ID == "" {
		return errors.New("rule id is required")
	}

	path, err := regexp.Compile(r.PathPattern)
	if err != nil {
		return fmt.Errorf("rule %s: compiling path pattern: %w", r.ID, err)
	}

	content, err := regexp.Compile(r.ContentPattern)
	if err != nil {
		return fmt.Errorf("rule %s: compiling content pattern: %w", r.ID, err)
	}
	if content.NumSubexp() != 1 {
		return fmt.Errorf("rule %s: content pattern must have exactly one capture group", r.ID)
	}

	r.path = path
	r.content = content
	return nil
}

// Ruleset is an ordered set of inclusion rules plus a single exclusion
// predicate and size ceiling.
type Ruleset struct {
	rules       []Rule
	exclude     *regexp.Regexp
	excludeExpr string
	prefilter   string
	sizeCeiling int
}

// Default returns the built-in ruleset: one inclusion rule per vocabulary
// keyword, a shared config-path filter, and the fixture-path exclusion.
func Default() *Ruleset {
	rs, err := New(defaultRules(), defaultExcludePattern, DefaultSizeCeiling)
	if err != nil {
		// The built-in patterns are compile-time constants; failing to
		// compile them is a programming error.
		panic(err)
	}
	return rs
}

func defaultRules() []Rule {
	rules := make([]Rule, 0, len(defaultKeywords))
	for _, kw := range defaultKeywords {
		rules = append(rules, Rule{
			ID:             kw,
			PathPattern:    defaultPathFilter,
			ContentPattern: fmt.Sprintf(`(?i)\b%s\s*[:=]\s*["']?([-a-zA-Z0-9_./]{20,})["']?`, kw),
		})
	}
	return rules
}

// New compiles the given rules into a Ruleset. Every content pattern must
// carry exactly one capture group.
func New(rules []Rule, excludePattern string, sizeCeiling int) (*Ruleset, error) {
	if len(rules) == 0 {
		return nil, errors.New("at least one inclusion rule is required")
	}
	if sizeCeiling <= 0 {
		return nil, errors.New("size ceiling must be positive")
	}

	seen := make(map[string]struct{}, len(rules))
	for i := range rules {
		if err := rules[i].compile(); err != nil {
			return nil, err
		}
		if _, dup := seen[rules[i].ID]; dup {
			return nil, fmt.Errorf("duplicate rule id %q", rules[i].ID)
		}
		seen[rules[i].ID] = struct{}{}
	}

	exclude, err := regexp.Compile(excludePattern)
	if err != nil {
		return nil, fmt.Errorf("compiling exclusion pattern: %w", err)
	}

	return &Ruleset{
		rules:       rules,
		exclude:     exclude,
		excludeExpr: excludePattern,
		prefilter:   keywordPrefilter(rules),
		sizeCeiling: sizeCeiling,
	}, nil
}

// keywordPrefilter builds the cheap contains-style predicate pushed down to
// corpus sources that support server-side filtering. It matches any rule
// keyword followed by an assignment operator.
func keywordPrefilter(rules []Rule) string {
	ids := make([]string, 0, len(rules))
	for _, r := range rules {
		ids = append(ids, r.ID)
	}
	sort.Strings(ids)

	expr := `(?i)(`
	for i, id := range ids {
		if i > 0 {
			expr += "|"
		}
		expr += id
	}
	return expr + `)\s*[:=]`
}

// Rules returns the inclusion rules in declaration order.
func (rs *Ruleset) Rules() []Rule { return rs.rules }

// SizeCeiling returns the maximum eligible file size in bytes.
func (rs *Ruleset) SizeCeiling() int { return rs.sizeCeiling }

// Excluded reports whether the path matches the exclusion predicate.
func (rs *Ruleset) Excluded(path string) bool { return rs.exclude.MatchString(path) }

// Included reports whether at least one inclusion rule's path filter accepts
// the path.
func (rs *Ruleset) Included(path string) bool {
	for i := range rs.rules {
		if rs.rules[i].Path(path) {
			return true
		}
	}
	return false
}

// Eligible reports whether a file is scan-eligible: its path satisfies at
// least one inclusion rule, does not satisfy the exclusion predicate, its
// size is below the ceiling, and its content is non-empty.
func (rs *Ruleset) Eligible(path string, sizeBytes int, content string) bool {
	if content == "" {
		return false
	}
	if sizeBytes >= rs.sizeCeiling {
		return false
	}
	if rs.Excluded(path) {
		return false
	}
	return rs.Included(path)
}

// PathFilterExpr returns the union of the inclusion rules' path patterns for
// server-side pushdown. Patterns use RE2 syntax, which corpus engines such as
// BigQuery evaluate natively.
func (rs *Ruleset) PathFilterExpr() string {
	exprs := make([]string, 0, len(rs.rules))
	seen := make(map[string]struct{}, len(rs.rules))
	for _, r := range rs.rules {
		if _, ok := seen[r.PathPattern]; ok {
			continue
		}
		seen[r.PathPattern] = struct{}{}
		exprs = append(exprs, r.PathPattern)
	}

	if len(exprs) == 1 {
		return exprs[0]
	}

	union := "("
	for i, e := range exprs {
		if i > 0 {
			union += "|"
		}
		union += e
	}
	return union + ")"
}

// ExcludeExpr returns the exclusion predicate pattern for server-side
// pushdown.
func (rs *Ruleset) ExcludeExpr() string { return rs.excludeExpr }

// ContentPrefilterExpr returns the keyword-assignment predicate pushed down
// to cheaply narrow the corpus before extraction runs client-side.
func (rs *Ruleset) ContentPrefilterExpr() string { return rs.prefilter }

// Hash returns a deterministic digest of the ruleset so the active pattern
// version can be recorded with each run.
func (rs *Ruleset) Hash() string {
	h := md5.New()

	for _, r := range rs.rules {
		h.Write([]byte(r.ID))
		h.Write([]byte(r.PathPattern))
		h.Write([]byte(r.ContentPattern))
	}
	h.Write([]byte(rs.excludeExpr))
	h.Write([]byte(fmt.Sprintf("%d", rs.sizeCeiling)))

	return hex.EncodeToString(h.Sum(nil))
}
