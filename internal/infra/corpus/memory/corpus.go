// Package memory provides an in-memory corpus reader for tests and local
// development.
package memory

import (
	"context"
	"sync"

	"github.com/ahrav/leakhunter/internal/domain/hunting"
	"github.com/ahrav/leakhunter/internal/domain/rules"
)

// Corpus serves file records from memory, applying the same eligibility
// filtering the warehouse adapter pushes into its query.
type Corpus struct {
	mu      sync.RWMutex
	files   []hunting.FileRecord
	ruleset *rules.Ruleset

	// Err, when set, is returned by every Scan call.
	Err error
}

// NewCorpus creates an empty in-memory corpus filtered by the given ruleset.
func NewCorpus(ruleset *rules.Ruleset) *Corpus {
	return &Corpus{ruleset: ruleset}
}

// Add appends a file to the corpus.
func (c *Corpus) Add(record hunting.FileRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = append(c.files, record)
}

// Scan returns at most limit eligible files in insertion order.
func (c *Corpus) Scan(_ context.Context, limit int) ([]hunting.FileRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Err != nil {
		return nil, &hunting.QueryError{Err: c.Err}
	}

	records := make([]hunting.FileRecord, 0, limit)
	for _, f := range c.files {
		if len(records) == limit {
			break
		}
		if !c.ruleset.Eligible(f.Path(), f.SizeBytes(), f.Content()) {
			continue
		}
		records = append(records, f)
	}
	return records, nil
}
