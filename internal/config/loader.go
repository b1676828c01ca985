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
// built-in defaults, applies ARBENGINE_* environment variable overrides, and
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

// applyEnvOverrides reads well-known ARBENGINE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setBool(&cfg.Engine.Autostart, "ARBENGINE_ENGINE_AUTOSTART")
	setFloat64(&cfg.Engine.MinProfitThreshold, "ARBENGINE_ENGINE_MIN_PROFIT_THRESHOLD")
	setFloat64(&cfg.Engine.MinProfitPercentage, "ARBENGINE_ENGINE_MIN_PROFIT_PERCENTAGE")
	setFloat64(&cfg.Engine.MaxPositionSize, "ARBENGINE_ENGINE_MAX_POSITION_SIZE")
	setBool(&cfg.Engine.AutoHedge, "ARBENGINE_ENGINE_AUTO_HEDGE")
	setFloat64(&cfg.Engine.HedgeMinFundingCapture, "ARBENGINE_ENGINE_HEDGE_MIN_FUNDING_CAPTURE")
	setInt(&cfg.Engine.ScanIntervalSeconds, "ARBENGINE_ENGINE_SCAN_INTERVAL_SECONDS")
	setInt(&cfg.Engine.MaxConcurrentExecutions, "ARBENGINE_ENGINE_MAX_CONCURRENT_EXECUTIONS")
	setInt(&cfg.Engine.CooldownSeconds, "ARBENGINE_ENGINE_COOLDOWN_SECONDS")
	setInt(&cfg.Engine.ExecutionTimeoutSeconds, "ARBENGINE_ENGINE_EXECUTION_TIMEOUT_SECONDS")
	setStringSlice(&cfg.Engine.EnabledTypes, "ARBENGINE_ENGINE_ENABLED_TYPES")
	setStringSlice(&cfg.Engine.EnabledExchanges, "ARBENGINE_ENGINE_ENABLED_EXCHANGES")
	setStringSlice(&cfg.Engine.EnabledSymbols, "ARBENGINE_ENGINE_ENABLED_SYMBOLS")
	setInt(&cfg.Engine.LogCapacity, "ARBENGINE_ENGINE_LOG_CAPACITY")
	setBool(&cfg.Engine.ScanLock, "ARBENGINE_ENGINE_SCAN_LOCK")
	setDuration(&cfg.Engine.ScanLockTTL, "ARBENGINE_ENGINE_SCAN_LOCK_TTL")
	setBool(&cfg.Engine.RestoreConfig, "ARBENGINE_ENGINE_RESTORE_CONFIG")

	// ── Collaborators ──
	setStr(&cfg.Collaborators.Kind, "ARBENGINE_COLLABORATORS_KIND")
	setStr(&cfg.Collaborators.BaseURL, "ARBENGINE_COLLABORATORS_BASE_URL")
	setStr(&cfg.Collaborators.APIKey, "ARBENGINE_COLLABORATORS_API_KEY")
	setStr(&cfg.Collaborators.APISecret, "ARBENGINE_COLLABORATORS_API_SECRET")
	setFloat64(&cfg.Collaborators.RequestsPerSec, "ARBENGINE_COLLABORATORS_REQUESTS_PER_SEC")
	setInt(&cfg.Collaborators.Burst, "ARBENGINE_COLLABORATORS_BURST")
	setDuration(&cfg.Collaborators.Timeout, "ARBENGINE_COLLABORATORS_TIMEOUT")
	setInt(&cfg.Collaborators.MaxRetries, "ARBENGINE_COLLABORATORS_MAX_RETRIES")
	setFloat64(&cfg.Collaborators.Paper.RejectRate, "ARBENGINE_COLLABORATORS_PAPER_REJECT_RATE")
	setDuration(&cfg.Collaborators.Paper.Latency, "ARBENGINE_COLLABORATORS_PAPER_LATENCY")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ARBENGINE_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "ARBENGINE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBENGINE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBENGINE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBENGINE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBENGINE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBENGINE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBENGINE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBENGINE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBENGINE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARBENGINE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBENGINE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBENGINE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBENGINE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBENGINE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBENGINE_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "ARBENGINE_REDIS_KEY_PREFIX")
	setInt64(&cfg.Redis.StreamMaxLen, "ARBENGINE_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ARBENGINE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBENGINE_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBENGINE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBENGINE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBENGINE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBENGINE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBENGINE_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "ARBENGINE_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Cron, "ARBENGINE_ARCHIVE_CRON")
	setInt(&cfg.Archive.RetentionDays, "ARBENGINE_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ARBENGINE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARBENGINE_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "ARBENGINE_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "ARBENGINE_SERVER_CORS_ORIGINS")
	setFloat64(&cfg.Server.RateLimitPerSec, "ARBENGINE_SERVER_RATE_LIMIT_PER_SEC")
	setInt(&cfg.Server.RateLimitBurst, "ARBENGINE_SERVER_RATE_LIMIT_BURST")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBENGINE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBENGINE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBENGINE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBENGINE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBENGINE_MODE")
	setStr(&cfg.LogLevel, "ARBENGINE_LOG_LEVEL")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
