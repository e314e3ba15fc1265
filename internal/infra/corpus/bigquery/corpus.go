// Package bigquery reads candidate files from the public GitHub corpus on
// BigQuery.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/iterator"

	"github.com/ahrav/leakhunter/internal/domain/hunting"
	"github.com/ahrav/leakhunter/internal/domain/rules"
	"github.com/ahrav/leakhunter/pkg/common/logger"
)

// queryTemplate joins the files table to the contents table and pushes the
// ruleset's path, exclusion, size, and keyword filters into the query so the
// warehouse discards ineligible rows server-side. Dataset and table names
// cannot be bound as query parameters, so they are interpolated from
// configuration; all ruleset-derived values travel as named parameters.
const queryTemplate = `
SELECT
  f.repo_name AS repo_name,
  f.path AS path,
  c.content AS content,
  c.size AS size_bytes
FROM ` + "`%s.files`" + ` AS f
JOIN ` + "`%s.contents`" + ` AS c
  ON f.id = c.id
WHERE REGEXP_CONTAINS(f.path, @path_filter)
  AND NOT REGEXP_CONTAINS(f.path, @exclude_filter)
  AND c.size < @size_ceiling
  AND c.content IS NOT NULL
  AND c.content != ''
  AND REGEXP_CONTAINS(c.content, @content_prefilter)
LIMIT %d
`

// Corpus is a read-only adapter over the GitHub dataset. It holds no mutable
// state and never retries; retry policy belongs to the caller.
type Corpus struct {
	client  *bigquery.Client
	dataset string
	ruleset *rules.Ruleset

	logger *logger.Logger
	tracer trace.Tracer
}

// NewCorpus builds a corpus reader over the given dataset, e.g.
// "bigquery-public-data.github_repos".
func NewCorpus(
	client *bigquery.Client,
	dataset string,
	ruleset *rules.Ruleset,
	log *logger.Logger,
	tracer trace.Tracer,
) *Corpus {
	return &Corpus{
		client:  client,
		dataset: dataset,
		ruleset: ruleset,
		logger:  log.With("component", "bigquery_corpus"),
		tracer:  tracer,
	}
}

// fileRow mirrors the query's SELECT list.
type fileRow struct {
	RepoName  string `bigquery:"repo_name"`
	Path      string `bigquery:"path"`
	Content   string `bigquery:"content"`
	SizeBytes int64  `bigquery:"size_bytes"`
}

// Scan executes one bounded query and returns at most limit file records.
// The limit is the single point where the read is capped. Failures are
// wrapped as QueryError.
func (c *Corpus) Scan(ctx context.Context, limit int) ([]hunting.FileRecord, error) {
	ctx, span := c.tracer.Start(ctx, "bigquery_corpus.scan",
		trace.WithAttributes(
			attribute.String("dataset", c.dataset),
			attribute.Int("row_limit", limit),
		))
	defer span.End()

	if limit <= 0 {
		err := fmt.Errorf("row limit must be positive, got %d", limit)
		span.SetStatus(codes.Error, err.Error())
		return nil, &hunting.QueryError{Err: err}
	}

	// LIMIT does not accept query parameters; the value is validated above
	// and interpolated as an integer.
	q := c.client.Query(fmt.Sprintf(queryTemplate, c.dataset, c.dataset, limit))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "path_filter", Value: c.ruleset.PathFilterExpr()},
		{Name: "exclude_filter", Value: c.ruleset.ExcludeExpr()},
		{Name: "size_ceiling", Value: int64(c.ruleset.SizeCeiling())},
		{Name: "content_prefilter", Value: c.ruleset.ContentPrefilterExpr()},
	}

	it, err := q.Read(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &hunting.QueryError{Err: fmt.Errorf("executing corpus query: %w", err)}
	}

	records := make([]hunting.FileRecord, 0, limit)
	for {
		var row fileRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, &hunting.QueryError{Err: fmt.Errorf("reading corpus row: %w", err)}
		}

		records = append(records, hunting.NewFileRecord(
			row.RepoName,
			row.Path,
			row.Content,
			int(row.SizeBytes),
		))
	}

	span.SetAttributes(attribute.Int("rows_returned", len(records)))
	c.logger.Debug(ctx, "corpus scan complete",
		"dataset", c.dataset,
		"row_limit", limit,
		"rows_returned", len(records),
	)

	return records, nil
}
