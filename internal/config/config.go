// Package config defines the top-level configuration for the arbitrage
// automation engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBENGINE_* environment variables.
type Config struct {
	Engine        EngineConfig        `toml:"engine"`
	Collaborators CollaboratorsConfig `toml:"collaborators"`
	Postgres      PostgresConfig      `toml:"postgres"`
	Redis         RedisConfig         `toml:"redis"`
	S3            S3Config            `toml:"s3"`
	Archive       ArchiveConfig       `toml:"archive"`
	Server        ServerConfig        `toml:"server"`
	Notify        NotifyConfig        `toml:"notify"`
	Mode          string              `toml:"mode"`
	LogLevel      string              `toml:"log_level"`
}

// EngineConfig holds the compiled-in automation defaults. The live values are
// owned by the engine's config store and tuned at runtime over the API.
type EngineConfig struct {
	Autostart               bool     `toml:"autostart"`
	MinProfitThreshold      float64  `toml:"min_profit_threshold"`
	MinProfitPercentage     float64  `toml:"min_profit_percentage"`
	MaxPositionSize         float64  `toml:"max_position_size"`
	AutoHedge               bool     `toml:"auto_hedge"`
	HedgeMinFundingCapture  float64  `toml:"hedge_min_funding_capture"`
	ScanIntervalSeconds     int      `toml:"scan_interval_seconds"`
	MaxConcurrentExecutions int      `toml:"max_concurrent_executions"`
	CooldownSeconds         int      `toml:"cooldown_seconds"`
	ExecutionTimeoutSeconds int      `toml:"execution_timeout_seconds"`
	EnabledTypes            []string `toml:"enabled_types"`
	EnabledExchanges        []string `toml:"enabled_exchanges"`
	EnabledSymbols          []string `toml:"enabled_symbols"`
	LogCapacity             int      `toml:"log_capacity"`
	// ScanLock makes each scan cycle hold a Redis lock so only one replica
	// scans at a time. Ignored without Redis.
	ScanLock    bool     `toml:"scan_lock"`
	ScanLockTTL duration `toml:"scan_lock_ttl"`
	// RestoreConfig loads the last persisted config on startup when Postgres
	// is configured.
	RestoreConfig bool `toml:"restore_config"`
}

// CollaboratorsConfig selects and configures the discovery, execution and
// hedge backends.
type CollaboratorsConfig struct {
	// Kind is "http" for the trading backend or "paper" for in-process
	// simulation.
	Kind           string      `toml:"kind"`
	BaseURL        string      `toml:"base_url"`
	APIKey         string      `toml:"api_key"`
	APISecret      string      `toml:"api_secret"`
	RequestsPerSec float64     `toml:"requests_per_sec"`
	Burst          int         `toml:"burst"`
	Timeout        duration    `toml:"timeout"`
	MaxRetries     int         `toml:"max_retries"`
	Paper          PaperConfig `toml:"paper"`
}

// PaperConfig tunes the simulated collaborators.
type PaperConfig struct {
	RejectRate    float64            `toml:"reject_rate"`
	Latency       duration           `toml:"latency"`
	Opportunities []PaperOpportunity `toml:"opportunities"`
}

// PaperOpportunity is a static discovery fixture.
type PaperOpportunity struct {
	Type             string  `toml:"type"`
	Symbol           string  `toml:"symbol"`
	BuyExchange      string  `toml:"buy_exchange"`
	SellExchange     string  `toml:"sell_exchange"`
	NetProfit        float64 `toml:"net_profit"`
	SpreadPercentage float64 `toml:"spread_percentage"`
	VolumeAvailable  float64 `toml:"volume_available"`
	HedgeLong        string  `toml:"hedge_long"`
	HedgeShort       string  `toml:"hedge_short"`
	FundingCapture   float64 `toml:"funding_capture"`
	HoldPeriodHours  int     `toml:"hold_period_hours"`
}

// PostgresConfig holds PostgreSQL connection parameters. Leaving both dsn and
// host empty disables persistence.
type PostgresConfig struct {
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

// Enabled reports whether a database is configured.
func (p PostgresConfig) Enabled() bool {
	return strings.TrimSpace(p.DSN) != "" || p.Host != ""
}

// RedisConfig holds Redis connection parameters. An empty addr disables the
// signal bus and scan lock.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	// KeyPrefix namespaces lock and stream keys.
	KeyPrefix string `toml:"key_prefix"`
	// StreamMaxLen caps the execution stream.
	StreamMaxLen int64 `toml:"stream_max_len"`
}

// Enabled reports whether Redis is configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls moving old execution history to object storage.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	Cron          string `toml:"cron"`
	RetentionDays int    `toml:"retention_days"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
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

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
	// RateLimitPerSec caps requests per client IP; 0 disables the limit.
	RateLimitPerSec float64 `toml:"rate_limit_per_sec"`
	RateLimitBurst  int     `toml:"rate_limit_burst"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	auto := domain.DefaultAutomationConfig()
	types := make([]string, 0, len(auto.EnabledTypes))
	for _, t := range auto.EnabledTypes {
		types = append(types, string(t))
	}
	return Config{
		Engine: EngineConfig{
			Autostart:               false,
			MinProfitThreshold:      auto.MinProfitThreshold.InexactFloat64(),
			MinProfitPercentage:     auto.MinProfitPercentage.InexactFloat64(),
			MaxPositionSize:         auto.MaxPositionSize.InexactFloat64(),
			AutoHedge:               auto.AutoHedge,
			HedgeMinFundingCapture:  auto.HedgeMinFundingCapture.InexactFloat64(),
			ScanIntervalSeconds:     auto.ScanIntervalSeconds,
			MaxConcurrentExecutions: auto.MaxConcurrentExecutions,
			CooldownSeconds:         auto.CooldownSeconds,
			ExecutionTimeoutSeconds: auto.ExecutionTimeoutSeconds,
			EnabledTypes:            types,
			EnabledExchanges:        auto.EnabledExchanges,
			EnabledSymbols:          auto.EnabledSymbols,
			LogCapacity:             10,
			ScanLock:                true,
			ScanLockTTL:             duration{time.Minute},
			RestoreConfig:           true,
		},
		Collaborators: CollaboratorsConfig{
			Kind:           "paper",
			RequestsPerSec: 5,
			Burst:          5,
			Timeout:        duration{10 * time.Second},
			MaxRetries:     3,
			Paper: PaperConfig{
				RejectRate: 0,
				Latency:    duration{200 * time.Millisecond},
			},
		},
		Postgres: PostgresConfig{
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			DB:           0,
			PoolSize:     20,
			MaxRetries:   3,
			TLSEnabled:   false,
			KeyPrefix:    "arbengine:",
			StreamMaxLen: 10_000,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arbengine-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			Cron:          "0 0 3 * * *",
			RetentionDays: 30,
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimitPerSec: 20,
			RateLimitBurst:  40,
		},
		Notify: NotifyConfig{
			Events: []string{"execution_failed", "hedge_failed", "automation_status"},
		},
		Mode:     "automation",
		LogLevel: "info",
	}
}

// AutomationDefaults converts the engine section into the config the engine
// starts with and resets to.
func (c *Config) AutomationDefaults() domain.AutomationConfig {
	e := c.Engine
	cfg := domain.AutomationConfig{
		MinProfitThreshold:      decimal.NewFromFloat(e.MinProfitThreshold),
		MinProfitPercentage:     decimal.NewFromFloat(e.MinProfitPercentage),
		MaxPositionSize:         decimal.NewFromFloat(e.MaxPositionSize),
		AutoHedge:               e.AutoHedge,
		HedgeMinFundingCapture:  decimal.NewFromFloat(e.HedgeMinFundingCapture),
		ScanIntervalSeconds:     e.ScanIntervalSeconds,
		MaxConcurrentExecutions: e.MaxConcurrentExecutions,
		CooldownSeconds:         e.CooldownSeconds,
		ExecutionTimeoutSeconds: e.ExecutionTimeoutSeconds,
		EnabledTypes:            make([]domain.OpportunityType, 0, len(e.EnabledTypes)),
		EnabledExchanges:        append([]string(nil), e.EnabledExchanges...),
		EnabledSymbols:          append([]string(nil), e.EnabledSymbols...),
	}
	for _, t := range e.EnabledTypes {
		cfg.EnabledTypes = append(cfg.EnabledTypes, domain.OpportunityType(t))
	}
	return cfg
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"automation": true,
	"headless":   true,
	"scan":       true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validCollaborators = map[string]bool{
	"http":  true,
	"paper": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: automation, headless, scan)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine
	e := c.Engine
	if e.MinProfitThreshold < 0 {
		errs = append(errs, "engine: min_profit_threshold must be >= 0")
	}
	if e.MinProfitPercentage < 0 {
		errs = append(errs, "engine: min_profit_percentage must be >= 0")
	}
	if e.MaxPositionSize <= 0 {
		errs = append(errs, "engine: max_position_size must be > 0")
	}
	if e.HedgeMinFundingCapture < 0 {
		errs = append(errs, "engine: hedge_min_funding_capture must be >= 0")
	}
	if e.ScanIntervalSeconds < 1 {
		errs = append(errs, "engine: scan_interval_seconds must be >= 1")
	}
	if e.MaxConcurrentExecutions < 1 {
		errs = append(errs, "engine: max_concurrent_executions must be >= 1")
	}
	if e.CooldownSeconds < 0 {
		errs = append(errs, "engine: cooldown_seconds must be >= 0")
	}
	if e.ExecutionTimeoutSeconds < 0 {
		errs = append(errs, "engine: execution_timeout_seconds must be >= 0 (0 disables the timeout)")
	}
	for _, t := range e.EnabledTypes {
		if !domain.OpportunityType(t).Valid() {
			errs = append(errs, fmt.Sprintf("engine: unknown opportunity type %q (valid: cross_exchange, funding_rate)", t))
		}
	}
	if e.LogCapacity < 1 {
		errs = append(errs, "engine: log_capacity must be >= 1")
	}

	// Collaborators
	if !validCollaborators[strings.ToLower(c.Collaborators.Kind)] {
		errs = append(errs, fmt.Sprintf("collaborators: unknown kind %q (valid: http, paper)", c.Collaborators.Kind))
	}
	if strings.EqualFold(c.Collaborators.Kind, "http") && c.Collaborators.BaseURL == "" {
		errs = append(errs, "collaborators: base_url is required for kind http")
	}
	if c.Collaborators.RequestsPerSec <= 0 {
		errs = append(errs, "collaborators: requests_per_sec must be > 0")
	}
	if c.Collaborators.Paper.RejectRate < 0 || c.Collaborators.Paper.RejectRate > 1 {
		errs = append(errs, "collaborators: paper.reject_rate must be within [0, 1]")
	}

	// Postgres
	if c.Postgres.Enabled() {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled() && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Archive needs both ends.
	if c.Archive.Enabled {
		if !c.Postgres.Enabled() {
			errs = append(errs, "archive: requires postgres")
		}
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.Cron == "" {
			errs = append(errs, "archive: cron must not be empty")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimitPerSec < 0 {
			errs = append(errs, "server: rate_limit_per_sec must be >= 0")
		}
		if c.Server.RateLimitPerSec > 0 && c.Server.RateLimitBurst < 1 {
			errs = append(errs, "server: rate_limit_burst must be >= 1 when rate limiting is on")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
