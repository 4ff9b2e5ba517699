package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/twaplab/hltwap/internal/domain"
)

// runLockKey names the lock that serializes ingestion passes. Two concurrent
// passes would compute the same watermark and double-process the same range.
const runLockKey = "ingestion_run"

// epochFloor bounds the first ever listing when no successful run exists yet.
var epochFloor = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

// FillSource enumerates and fetches block-grouped fill objects.
type FillSource interface {
	ListBlocks(ctx context.Context, after, before time.Time) ([]string, error)
	FetchBlock(ctx context.Context, blockPrefix string) ([]domain.BlobFile, error)
}

// TradeCommitter persists a run's trades and its success record atomically.
type TradeCommitter interface {
	CommitRun(ctx context.Context, trades []domain.Trade, run domain.IngestionRun) error
}

// RunLog reads and appends ingestion-run bookkeeping rows.
type RunLog interface {
	Append(ctx context.Context, run domain.IngestionRun) error
	LatestSuccessful(ctx context.Context) (domain.IngestionRun, error)
}

// Config holds coordinator tuning parameters.
type Config struct {
	// MaxBlocks caps how many block groups one pass processes. Excess
	// blocks stay eligible for the next pass because the watermark only
	// advances when a run succeeds.
	MaxBlocks int

	// FetchConcurrency bounds how many blocks are fetched in parallel.
	FetchConcurrency int

	// FetchTimeout bounds each block fetch. A timeout is an ordinary
	// block-fetch failure: the block is skipped this pass.
	FetchTimeout time.Duration

	// LockTTL is how long the run lock is held before expiring on its own.
	LockTTL time.Duration
}

// Coordinator orchestrates one ingestion pass: determine the watermark,
// enumerate new blocks, fetch them, parse, normalize, deduplicate, and
// persist the batch together with a run-outcome record.
type Coordinator struct {
	source FillSource
	trades TradeCommitter
	runs   RunLog
	locks  domain.LockManager
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(
	source FillSource,
	trades TradeCommitter,
	runs RunLog,
	locks domain.LockManager,
	cfg Config,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		source: source,
		trades: trades,
		runs:   runs,
		locks:  locks,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "coordinator")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one ingestion pass and returns the persisted record count.
// Every invocation appends exactly one IngestionRun row, success or failure
// (the sole exception is finding the run lock already held, which means
// another pass is writing its own row). Failures are reported both as the recorded
// run and as the returned error so the trigger can alert; the watermark only
// advances on success.
func (c *Coordinator) Run(ctx context.Context) (domain.RunResult, error) {
	unlock, err := c.locks.Acquire(ctx, runLockKey, c.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			// The concurrent holder writes its own run row.
			return domain.RunResult{Status: domain.RunFailed}, fmt.Errorf("pipeline: acquire run lock: %w", err)
		}
		// A broken lock backend is an ordinary pass failure and gets a row.
		return c.fail(ctx, "", fmt.Errorf("pipeline: acquire run lock: %w", err))
	}
	defer unlock()

	watermark := c.watermark(ctx)
	c.logger.InfoContext(ctx, "ingestion pass starting",
		slog.Time("watermark", watermark),
		slog.Int("max_blocks", c.cfg.MaxBlocks),
	)

	blocks, err := c.source.ListBlocks(ctx, watermark, time.Time{})
	if err != nil {
		return c.fail(ctx, "", fmt.Errorf("pipeline: list blocks: %w", err))
	}

	if len(blocks) > c.cfg.MaxBlocks {
		c.logger.WarnContext(ctx, "capping blocks for this pass",
			slog.Int("found", len(blocks)),
			slog.Int("cap", c.cfg.MaxBlocks),
		)
		blocks = blocks[:c.cfg.MaxBlocks]
	}

	files, skipped := c.fetchBlocks(ctx, blocks)
	sourceRef := fmt.Sprintf("batch_%d_files", len(files))

	var raw []domain.RawFill
	for _, file := range files {
		fills, err := ParseFills(file.Data)
		if err != nil {
			// A structurally corrupt object means this range cannot be
			// ingested completely. Persisting the rest and retrying would
			// duplicate it, so the whole pass fails and the watermark
			// stays put.
			return c.fail(ctx, sourceRef, fmt.Errorf("pipeline: parse %s: %w", file.Key, err))
		}
		raw = append(raw, fills...)
	}

	trades, dropped := Normalize(raw)
	before := len(trades)
	trades = Dedupe(trades)

	completed := c.now()
	run := domain.IngestionRun{
		LastIngestionDate: completed,
		RecordsProcessed:  len(trades),
		SourceReference:   sourceRef,
		Status:            domain.RunSuccess,
		CreatedAt:         completed,
	}

	if err := c.trades.CommitRun(ctx, trades, run); err != nil {
		return c.fail(ctx, sourceRef, fmt.Errorf("pipeline: commit run: %w: %w", domain.ErrPersistence, err))
	}

	c.logger.InfoContext(ctx, "ingestion pass complete",
		slog.Int("blocks", len(blocks)),
		slog.Int("blocks_skipped", skipped),
		slog.Int("files", len(files)),
		slog.Int("records_raw", len(raw)),
		slog.Int("records_dropped", dropped),
		slog.Int("records_deduped", before-len(trades)),
		slog.Int("records_persisted", len(trades)),
		slog.Time("new_watermark", completed),
	)

	return domain.RunResult{
		RecordsProcessed: len(trades),
		Status:           domain.RunSuccess,
	}, nil
}

// watermark returns the last successful run's completion time, or the epoch
// floor when no run has succeeded yet.
func (c *Coordinator) watermark(ctx context.Context) time.Time {
	run, err := c.runs.LatestSuccessful(ctx)
	if err != nil {
		c.logger.InfoContext(ctx, "no previous successful run, using epoch floor",
			slog.Time("floor", epochFloor),
		)
		return epochFloor
	}
	return run.LastIngestionDate
}

// fetchBlocks fetches the given blocks with bounded concurrency, each under
// its own timeout. A failed block is logged and skipped while the pass still
// succeeds. Note the gap this opens: a successful pass advances the watermark
// to its completion time, so a skipped block's objects fall behind it and are
// never listed again. The skip count in the pass log is the only signal;
// recovering the data takes a manual backfill. Files are returned in block
// order so deduplication's first-wins rule stays deterministic.
func (c *Coordinator) fetchBlocks(ctx context.Context, blocks []string) ([]domain.BlobFile, int) {
	results := make([][]domain.BlobFile, len(blocks))

	var mu sync.Mutex
	skipped := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.FetchConcurrency)

	for i, block := range blocks {
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gctx, c.cfg.FetchTimeout)
			defer cancel()

			files, err := c.source.FetchBlock(fetchCtx, block)
			if err != nil {
				c.logger.WarnContext(ctx, "skipping block after fetch failure",
					slog.String("block", block),
					slog.String("error", err.Error()),
				)
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}
			results[i] = files
			return nil
		})
	}

	// Goroutines never return errors; Wait only observes ctx cancellation.
	_ = g.Wait()

	var files []domain.BlobFile
	for _, blockFiles := range results {
		files = append(files, blockFiles...)
	}
	return files, skipped
}

// fail appends a failed run row and returns the error for the trigger to
// alert on. The bookkeeping append is best-effort: if it also fails, the
// original error still wins.
func (c *Coordinator) fail(ctx context.Context, sourceRef string, runErr error) (domain.RunResult, error) {
	now := c.now()
	run := domain.IngestionRun{
		LastIngestionDate: now,
		RecordsProcessed:  0,
		SourceReference:   sourceRef,
		Status:            domain.RunFailed,
		ErrorMessage:      runErr.Error(),
		CreatedAt:         now,
	}

	if err := c.runs.Append(ctx, run); err != nil {
		c.logger.ErrorContext(ctx, "recording failed run also failed",
			slog.String("run_error", runErr.Error()),
			slog.String("append_error", err.Error()),
		)
	}

	c.logger.ErrorContext(ctx, "ingestion pass failed", slog.String("error", runErr.Error()))

	return domain.RunResult{Status: domain.RunFailed}, runErr
}
