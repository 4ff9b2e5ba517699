package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/twaplab/hltwap/internal/domain"
)

// RunStore implements domain.IngestionRunStore using PostgreSQL. Rows are
// append-only: they are never updated or deleted.
type RunStore struct {
	pool *pgxpool.Pool
}

// NewRunStore creates a new RunStore backed by the given connection pool.
func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

const runSelectCols = `id, last_ingestion_date, records_processed,
	COALESCE(source_reference, ''), status, COALESCE(error_message, ''), created_at`

// insertRun appends one run row inside the given transaction. Shared with
// TradeStore.CommitRun so the success row lands in the same commit as the
// trade batch.
func insertRun(ctx context.Context, tx pgx.Tx, run domain.IngestionRun) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO ingestion_runs (
			last_ingestion_date, records_processed, source_reference,
			status, error_message, created_at
		) VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), $6)`,
		run.LastIngestionDate, run.RecordsProcessed, run.SourceReference,
		run.Status, run.ErrorMessage, run.CreatedAt,
	)
	return err
}

// Append records a run outcome in its own transaction.
func (s *RunStore) Append(ctx context.Context, run domain.IngestionRun) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin append run: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertRun(ctx, tx, run); err != nil {
		return fmt.Errorf("postgres: append run: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit append run: %w", err)
	}
	return nil
}

// LatestSuccessful returns the most recent run with status success, which is
// the watermark for the next ingestion pass. Returns domain.ErrNotFound when
// no run has succeeded yet.
func (s *RunStore) LatestSuccessful(ctx context.Context) (domain.IngestionRun, error) {
	query := `SELECT ` + runSelectCols + ` FROM ingestion_runs
		WHERE status = $1 ORDER BY last_ingestion_date DESC LIMIT 1`
	return s.queryOne(ctx, query, domain.RunSuccess)
}

// Latest returns the most recently created run of any status.
// Returns domain.ErrNotFound when no run exists.
func (s *RunStore) Latest(ctx context.Context) (domain.IngestionRun, error) {
	query := `SELECT ` + runSelectCols + ` FROM ingestion_runs
		ORDER BY created_at DESC LIMIT 1`
	return s.queryOne(ctx, query)
}

func (s *RunStore) queryOne(ctx context.Context, query string, args ...any) (domain.IngestionRun, error) {
	var run domain.IngestionRun
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&run.ID, &run.LastIngestionDate, &run.RecordsProcessed,
		&run.SourceReference, &run.Status, &run.ErrorMessage, &run.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.IngestionRun{}, domain.ErrNotFound
		}
		return domain.IngestionRun{}, fmt.Errorf("postgres: query run: %w", err)
	}
	return run, nil
}

// Compile-time interface check.
var _ domain.IngestionRunStore = (*RunStore)(nil)
