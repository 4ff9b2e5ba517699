package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies HLTWAP_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known HLTWAP_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "HLTWAP_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "HLTWAP_DATABASE_HOST")
	setInt(&cfg.Database.Port, "HLTWAP_DATABASE_PORT")
	setStr(&cfg.Database.Database, "HLTWAP_DATABASE_NAME")
	setStr(&cfg.Database.User, "HLTWAP_DATABASE_USER")
	setStr(&cfg.Database.Password, "HLTWAP_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "HLTWAP_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "HLTWAP_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "HLTWAP_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "HLTWAP_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "HLTWAP_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "HLTWAP_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "HLTWAP_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "HLTWAP_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "HLTWAP_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "HLTWAP_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Region, "HLTWAP_S3_REGION")
	setStr(&cfg.S3.Bucket, "HLTWAP_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "HLTWAP_S3_PREFIX")
	setStr(&cfg.S3.Endpoint, "HLTWAP_S3_ENDPOINT")
	setStr(&cfg.S3.AccessKey, "HLTWAP_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "HLTWAP_S3_SECRET_KEY")
	setStr(&cfg.S3.RequestPayer, "HLTWAP_S3_REQUEST_PAYER")
	setBool(&cfg.S3.Anonymous, "HLTWAP_S3_ANONYMOUS")
	setBool(&cfg.S3.ForcePathStyle, "HLTWAP_S3_FORCE_PATH_STYLE")

	// ── Ingest ──
	setInt(&cfg.Ingest.MaxBlocks, "HLTWAP_INGEST_MAX_BLOCKS")
	setInt(&cfg.Ingest.FetchConcurrency, "HLTWAP_INGEST_FETCH_CONCURRENCY")
	setDuration(&cfg.Ingest.FetchTimeout, "HLTWAP_INGEST_FETCH_TIMEOUT")
	setDuration(&cfg.Ingest.LockTTL, "HLTWAP_INGEST_LOCK_TTL")

	// ── Scheduler ──
	setBool(&cfg.Scheduler.Enabled, "HLTWAP_SCHEDULER_ENABLED")
	setStr(&cfg.Scheduler.Cron, "HLTWAP_SCHEDULER_CRON")

	// ── Server ──
	setInt(&cfg.Server.Port, "HLTWAP_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "HLTWAP_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "HLTWAP_SERVER_API_KEY")

	// ── Top-level ──
	setStr(&cfg.Mode, "HLTWAP_MODE")
	setStr(&cfg.LogLevel, "HLTWAP_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
