package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/catalog-ingestor/internal/catalog"
)

// RunStore records ingestion runs. It implements catalog.RunRecorder.
type RunStore struct {
	pool  Pool
	table string
}

// NewRunStore builds a RunStore over an existing pool.
func NewRunStore(pool Pool, table string) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table, "ingest_runs")
	if err != nil {
		return nil, err
	}
	return &RunStore{pool: pool, table: name}, nil
}

// StartRun inserts a running row for runID.
func (s *RunStore) StartRun(ctx context.Context, runID string, startedAt time.Time) error {
	query := fmt.Sprintf(`
INSERT INTO %s (run_id, started_at, status)
VALUES ($1, $2, $3)
ON CONFLICT (run_id) DO NOTHING`, s.table)
	if _, err := s.pool.Exec(ctx, query, runID, startedAt, string(catalog.RunRunning)); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// CompleteRun stores the terminal summary, inserting the row if StartRun
// never landed.
func (s *RunStore) CompleteRun(ctx context.Context, summary catalog.RunSummary) error {
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	started_at,
	finished_at,
	status,
	categories,
	products,
	failures,
	error_text,
	report_uri
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)
ON CONFLICT (run_id) DO UPDATE SET
	finished_at = EXCLUDED.finished_at,
	status = EXCLUDED.status,
	categories = EXCLUDED.categories,
	products = EXCLUDED.products,
	failures = EXCLUDED.failures,
	error_text = EXCLUDED.error_text,
	report_uri = EXCLUDED.report_uri`, s.table)

	args := []any{
		summary.RunID,
		summary.StartedAt,
		summary.FinishedAt,
		string(summary.Status),
		summary.Categories,
		summary.Products,
		summary.Failures,
		nullString(summary.ErrorText),
		nullString(summary.ReportURI),
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// LatestRun returns the most recently started run.
func (s *RunStore) LatestRun(ctx context.Context) (catalog.RunSummary, error) {
	query := fmt.Sprintf(`
SELECT run_id, started_at, finished_at, status, categories, products, failures, error_text, report_uri
FROM %s
ORDER BY started_at DESC
LIMIT 1`, s.table)

	var (
		run        catalog.RunSummary
		status     string
		finishedAt sql.NullTime
		categories sql.NullInt64
		products   sql.NullInt64
		failures   sql.NullInt64
		errText    sql.NullString
		reportURI  sql.NullString
	)
	err := s.pool.QueryRow(ctx, query).Scan(
		&run.RunID,
		&run.StartedAt,
		&finishedAt,
		&status,
		&categories,
		&products,
		&failures,
		&errText,
		&reportURI,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.RunSummary{}, catalog.ErrRunNotFound
		}
		return catalog.RunSummary{}, fmt.Errorf("get latest run: %w", err)
	}
	run.Status = catalog.RunStatus(status)
	run.FinishedAt = finishedAt.Time
	run.Categories = int(categories.Int64)
	run.Products = int(products.Int64)
	run.Failures = int(failures.Int64)
	run.ErrorText = errText.String
	run.ReportURI = reportURI.String
	return run, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
