// Package config defines the top-level configuration for the hltwap service
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by HLTWAP_* environment variables.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Ingest    IngestConfig    `toml:"ingest"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Server    ServerConfig    `toml:"server"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. Redis backs the run-lock
// that serializes ingestion passes.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds object storage parameters for the node fills bucket. The
// Hyperliquid bucket is public with requester-pays billing, so the default
// access mode is anonymous with RequestPayer set; static credentials are
// supported for mirrored buckets.
type S3Config struct {
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	Endpoint       string `toml:"endpoint"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	RequestPayer   string `toml:"request_payer"`
	Anonymous      bool   `toml:"anonymous"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// IngestConfig holds coordinator tuning parameters.
type IngestConfig struct {
	MaxBlocks        int      `toml:"max_blocks"`
	FetchConcurrency int      `toml:"fetch_concurrency"`
	FetchTimeout     duration `toml:"fetch_timeout"`
	LockTTL          duration `toml:"lock_ttl"`
}

// SchedulerConfig holds the daily ingestion trigger parameters.
type SchedulerConfig struct {
	Enabled bool   `toml:"enabled"`
	Cron    string `toml:"cron"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "hltwap",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   10,
			MaxRetries: 3,
		},
		S3: S3Config{
			Region:       "us-east-1",
			Bucket:       "hl-mainnet-node-data",
			Prefix:       "node_fills_by_block/",
			RequestPayer: "requester",
			Anonymous:    true,
		},
		Ingest: IngestConfig{
			MaxBlocks:        100,
			FetchConcurrency: 4,
			FetchTimeout:     duration{2 * time.Minute},
			LockTTL:          duration{30 * time.Minute},
		},
		Scheduler: SchedulerConfig{
			Enabled: true,
			Cron:    "0 2 * * *",
		},
		Server: ServerConfig{
			Port: 8000,
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// Validate checks the configuration for the selected mode and returns an
// error describing the first problem found.
func (c *Config) Validate() error {
	mode := strings.ToLower(c.Mode)
	switch mode {
	case "serve", "ingest", "full":
	default:
		return fmt.Errorf("config: unsupported mode %q (want serve, ingest, or full)", c.Mode)
	}

	if c.Database.DSN == "" && (c.Database.Host == "" || c.Database.Database == "" || c.Database.User == "") {
		return fmt.Errorf("config: database requires either dsn or host/database/user")
	}

	if mode == "ingest" || mode == "full" {
		if c.S3.Bucket == "" {
			return fmt.Errorf("config: s3 bucket is required for mode %q", mode)
		}
		if c.S3.Region == "" {
			return fmt.Errorf("config: s3 region is required for mode %q", mode)
		}
		if c.S3.Prefix == "" {
			return fmt.Errorf("config: s3 prefix is required for mode %q", mode)
		}
		if !c.S3.Anonymous && c.S3.AccessKey == "" {
			return fmt.Errorf("config: s3 access_key is required when anonymous access is disabled")
		}
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis addr is required for mode %q", mode)
		}
		if c.Ingest.MaxBlocks <= 0 {
			return fmt.Errorf("config: ingest max_blocks must be positive, got %d", c.Ingest.MaxBlocks)
		}
		if c.Ingest.FetchConcurrency <= 0 {
			return fmt.Errorf("config: ingest fetch_concurrency must be positive, got %d", c.Ingest.FetchConcurrency)
		}
		if c.Ingest.FetchTimeout.Duration <= 0 {
			return fmt.Errorf("config: ingest fetch_timeout must be positive")
		}
		if c.Ingest.LockTTL.Duration <= 0 {
			return fmt.Errorf("config: ingest lock_ttl must be positive")
		}
	}

	if mode == "full" && c.Scheduler.Enabled {
		if strings.TrimSpace(c.Scheduler.Cron) == "" {
			return fmt.Errorf("config: scheduler cron expression is required when the scheduler is enabled")
		}
	}

	if (mode == "serve" || mode == "full") && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("config: server port %d out of range", c.Server.Port)
	}

	return nil
}
