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
// built-in defaults, applies STOCKSIM_* environment variable overrides, and
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

// applyEnvOverrides reads well-known STOCKSIM_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "STOCKSIM_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "STOCKSIM_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "STOCKSIM_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "STOCKSIM_SERVER_RATE_WINDOW")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "STOCKSIM_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "STOCKSIM_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "STOCKSIM_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "STOCKSIM_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "STOCKSIM_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "STOCKSIM_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "STOCKSIM_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "STOCKSIM_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "STOCKSIM_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "STOCKSIM_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "STOCKSIM_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "STOCKSIM_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "STOCKSIM_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "STOCKSIM_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "STOCKSIM_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "STOCKSIM_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "STOCKSIM_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "STOCKSIM_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "STOCKSIM_S3_REGION")
	setStr(&cfg.S3.Bucket, "STOCKSIM_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "STOCKSIM_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "STOCKSIM_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "STOCKSIM_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "STOCKSIM_S3_FORCE_PATH_STYLE")

	// ── Feed ──
	setStr(&cfg.Feed.URL, "STOCKSIM_FEED_URL")
	setStringSlice(&cfg.Feed.Tickers, "STOCKSIM_FEED_TICKERS")

	// ── Gateway ──
	setDuration(&cfg.Gateway.UpdateInterval, "STOCKSIM_GATEWAY_UPDATE_INTERVAL")

	// ── Trade ──
	setInt64(&cfg.Trade.MaxQuantity, "STOCKSIM_TRADE_MAX_QUANTITY")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "STOCKSIM_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
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
