package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/twaplab/hltwap/internal/blob/s3"
	"github.com/twaplab/hltwap/internal/cache/redis"
	"github.com/twaplab/hltwap/internal/config"
	"github.com/twaplab/hltwap/internal/domain"
	"github.com/twaplab/hltwap/internal/service"
	"github.com/twaplab/hltwap/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	TradeStore domain.TradeStore
	RunStore   domain.IngestionRunStore

	LockManager domain.LockManager

	FillSource *s3blob.FillSource

	TradeService *service.TradeService
}

// needsS3 reports whether the mode reads the node fills bucket. Serve-only
// instances never touch object storage.
func needsS3(mode string) bool {
	switch mode {
	case "ingest", "full":
		return true
	default:
		return false
	}
}

// needsRedis reports whether the mode takes the ingestion run lock.
func needsRedis(mode string) bool {
	return needsS3(mode)
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL (every mode persists or reads trades) ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.TradeStore = postgres.NewTradeStore(pool)
	deps.RunStore = postgres.NewRunStore(pool)

	// --- Redis (run lock for ingesting modes) ---
	if needsRedis(mode) {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.LockManager = redis.NewLockManager(redisClient)
	}

	// --- S3 fill source ---
	if needsS3(mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			Endpoint:       cfg.S3.Endpoint,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			RequestPayer:   cfg.S3.RequestPayer,
			Anonymous:      cfg.S3.Anonymous,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		if err := s3Client.Health(ctx); err != nil {
			logger.Warn("s3 health check failed, ingestion passes may fail",
				slog.String("bucket", cfg.S3.Bucket),
				slog.String("error", err.Error()),
			)
		}

		deps.FillSource = s3blob.NewFillSource(s3Client, cfg.S3.Prefix, logger)
	}

	deps.TradeService = service.NewTradeService(deps.TradeStore, deps.RunStore, logger)

	return deps, cleanup, nil
}
