package adapter

import (
	"context"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
)

// SearchRecord is one per-search telemetry row. It records which resolver
// tier answered and how each branch fared, so query-dependent
// inconsistencies can be traced after the fact.
type SearchRecord struct {
	SessionID   string    `bigquery:"session_id"`
	Domain      string    `bigquery:"domain"`
	Query       string    `bigquery:"query"`
	ResolveTier string    `bigquery:"resolve_tier"`
	Provider    string    `bigquery:"provider_status"`
	Fulltext    string    `bigquery:"fulltext_status"`
	Semantic    string    `bigquery:"semantic_status"`
	ResultCount int       `bigquery:"result_count"`
	DurationMS  int64     `bigquery:"duration_ms"`
	Timestamp   time.Time `bigquery:"timestamp"`
}

// BranchStatus values for SearchRecord fields
const (
	BranchOK      = "ok"
	BranchEmpty   = "empty"
	BranchFailed  = "failed"
	BranchSkipped = "skipped"
)

// Telemetry streams search outcome records to an analytics sink. Writes are
// best-effort: a sink failure must never fail the search that produced the
// record.
type Telemetry interface {
	RecordSearch(ctx context.Context, rec *SearchRecord) error
}

type telemetryClient struct {
	inserter *bigquery.Inserter
}

// NewTelemetry creates a BigQuery-backed telemetry sink writing to
// dataset.table via streaming inserts
func NewTelemetry(ctx context.Context, projectID, dataset, table string) (Telemetry, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client")
	}

	return &telemetryClient{
		inserter: client.Dataset(dataset).Table(table).Inserter(),
	}, nil
}

func (t *telemetryClient) RecordSearch(ctx context.Context, rec *SearchRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if err := t.inserter.Put(ctx, rec); err != nil {
		return goerr.Wrap(err, "failed to insert search record")
	}
	return nil
}

// NopTelemetry discards all records; used when no sink is configured
type NopTelemetry struct{}

func (NopTelemetry) RecordSearch(ctx context.Context, rec *SearchRecord) error {
	return nil
}

// StatusFor maps a branch outcome to a SearchRecord status string
func StatusFor(err error, count int) string {
	switch {
	case err != nil:
		return BranchFailed
	case count == 0:
		return BranchEmpty
	default:
		return BranchOK
	}
}
