package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/twaplab/hltwap/internal/pipeline"
	"github.com/twaplab/hltwap/internal/server"
)

// ServeMode runs the read API only. No ingestion happens on this instance.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, nil)
	return g.Wait()
}

// IngestMode performs a single ingestion pass and exits. Intended for
// cron-style external scheduling and backfills.
func (a *App) IngestMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting ingest mode")

	coordinator := a.newCoordinator(deps)
	result, err := coordinator.Run(ctx)
	if err != nil {
		return fmt.Errorf("ingest mode: %w", err)
	}

	a.logger.InfoContext(ctx, "ingestion pass complete",
		slog.Int("records", result.RecordsProcessed),
		slog.String("status", string(result.Status)),
	)
	return nil
}

// FullMode runs the read API and the scheduled ingestion loop in one process.
// The HTTP trigger endpoint feeds the scheduler through a buffered channel.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	triggerCh := make(chan struct{}, 1)

	if a.cfg.Scheduler.Enabled {
		sched := pipeline.NewScheduler(a.newCoordinator(deps), a.cfg.Scheduler.Cron, triggerCh, a.logger)
		g.Go(func() error {
			return sched.Run(ctx)
		})
	} else {
		a.logger.InfoContext(ctx, "scheduler disabled, ingestion runs only on manual trigger")
		coordinator := a.newCoordinator(deps)
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-triggerCh:
					if _, err := coordinator.Run(ctx); err != nil {
						a.logger.ErrorContext(ctx, "manual ingestion run failed",
							slog.String("error", err.Error()),
						)
					}
				}
			}
		})
	}

	a.startHTTPServer(ctx, g, deps, triggerCh)

	return g.Wait()
}

func (a *App) newCoordinator(deps *Dependencies) *pipeline.Coordinator {
	return pipeline.NewCoordinator(
		deps.FillSource,
		deps.TradeStore,
		deps.RunStore,
		deps.LockManager,
		pipeline.Config{
			MaxBlocks:        a.cfg.Ingest.MaxBlocks,
			FetchConcurrency: a.cfg.Ingest.FetchConcurrency,
			FetchTimeout:     a.cfg.Ingest.FetchTimeout.Duration,
			LockTTL:          a.cfg.Ingest.LockTTL.Duration,
		},
		a.logger,
	)
}

// startHTTPServer adds the API server plus its shutdown watcher to the
// errgroup. trigger may be nil for serve-only instances.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, trigger chan<- struct{}) {
	srv := server.New(server.Config{
		Port:        a.cfg.Server.Port,
		APIKey:      a.cfg.Server.APIKey,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, deps.TradeService, trigger, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
