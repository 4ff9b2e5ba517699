package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twaplab/hltwap/internal/domain"
)

// Scheduler drives the coordinator on a cron cadence and accepts manual
// out-of-band triggers. A pass that fails is only logged here: the failed
// range stays behind the watermark and is retried on the next trigger.
type Scheduler struct {
	coordinator *Coordinator
	cronExpr    string
	triggerCh   <-chan struct{}
	logger      *slog.Logger
}

// NewScheduler creates a Scheduler. triggerCh may be nil when manual
// triggering is not wired.
func NewScheduler(coordinator *Coordinator, cronExpr string, triggerCh <-chan struct{}, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		coordinator: coordinator,
		cronExpr:    cronExpr,
		triggerCh:   triggerCh,
		logger:      logger.With(slog.String("component", "scheduler")),
	}
}

// Run blocks until the context is cancelled, starting one ingestion pass at
// every cron trigger and whenever a manual trigger arrives.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", slog.String("cron", s.cronExpr))

	for {
		next, err := nextCronTime(s.cronExpr, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("pipeline: parsing cron expression %q: %w", s.cronExpr, err)
		}

		wait := time.Until(next)
		s.logger.Info("waiting for next ingestion trigger",
			slog.Time("next_run", next),
			slog.Duration("wait", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-timer.C:
			s.runOnce(ctx, "cron")
		case <-s.triggerCh:
			timer.Stop()
			s.runOnce(ctx, "manual")
		}
	}
}

// runOnce executes a single pass and logs its outcome.
func (s *Scheduler) runOnce(ctx context.Context, trigger string) {
	result, err := s.coordinator.Run(ctx)
	switch {
	case errors.Is(err, domain.ErrLockHeld):
		s.logger.Warn("ingestion pass already running, trigger skipped",
			slog.String("trigger", trigger),
		)
	case err != nil:
		s.logger.Error("ingestion pass failed",
			slog.String("trigger", trigger),
			slog.String("error", err.Error()),
		)
	default:
		s.logger.Info("ingestion pass succeeded",
			slog.String("trigger", trigger),
			slog.Int("records", result.RecordsProcessed),
		)
	}
}
