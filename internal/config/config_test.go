package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, domain.DefaultAutomationConfig().ScanIntervalSeconds, cfg.Engine.ScanIntervalSeconds)
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "headless"

[engine]
min_profit_threshold = 2.5
cooldown_seconds = 15
enabled_types = ["funding_rate"]
scan_lock_ttl = "45s"

[collaborators]
kind = "paper"

[collaborators.paper]
latency = "10ms"

[[collaborators.paper.opportunities]]
type = "cross_exchange"
symbol = "BTC/USDT"
buy_exchange = "binance"
sell_exchange = "okx"
net_profit = 12.5
spread_percentage = 0.8
volume_available = 250
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "headless", cfg.Mode)
	assert.Equal(t, 2.5, cfg.Engine.MinProfitThreshold)
	assert.Equal(t, 15, cfg.Engine.CooldownSeconds)
	assert.Equal(t, []string{"funding_rate"}, cfg.Engine.EnabledTypes)
	assert.Equal(t, 45*time.Second, cfg.Engine.ScanLockTTL.Duration)
	assert.Equal(t, 10*time.Millisecond, cfg.Collaborators.Paper.Latency.Duration)
	require.Len(t, cfg.Collaborators.Paper.Opportunities, 1)
	assert.Equal(t, "okx", cfg.Collaborators.Paper.Opportunities[0].SellExchange)

	// untouched sections keep their defaults
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Engine.MaxConcurrentExecutions)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `log_level = "debug"`)
	t.Setenv("ARBENGINE_ENGINE_MAX_CONCURRENT_EXECUTIONS", "7")
	t.Setenv("ARBENGINE_ENGINE_ENABLED_SYMBOLS", " BTC/USDT , ,ETH/USDT")
	t.Setenv("ARBENGINE_SERVER_API_KEY", "s3cret")
	t.Setenv("ARBENGINE_COLLABORATORS_TIMEOUT", "2s")
	t.Setenv("ARBENGINE_ENGINE_AUTO_HEDGE", "not-a-bool")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 7, cfg.Engine.MaxConcurrentExecutions)
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, cfg.Engine.EnabledSymbols)
	assert.Equal(t, "s3cret", cfg.Server.APIKey)
	assert.Equal(t, 2*time.Second, cfg.Collaborators.Timeout.Duration)
	assert.True(t, cfg.Engine.AutoHedge, "unparsable values are ignored")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Engine.MaxConcurrentExecutions = 0
	cfg.Engine.EnabledTypes = []string{"triangular"}
	cfg.Collaborators.Kind = "http"
	cfg.Archive.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown mode "trade"`)
	assert.Contains(t, msg, "max_concurrent_executions must be >= 1")
	assert.Contains(t, msg, `unknown opportunity type "triangular"`)
	assert.Contains(t, msg, "base_url is required")
	assert.Contains(t, msg, "archive: requires postgres")
}

func TestAutomationDefaults(t *testing.T) {
	cfg := Defaults()
	cfg.Engine.MinProfitThreshold = 12.5
	cfg.Engine.EnabledTypes = []string{"cross_exchange"}

	auto := cfg.AutomationDefaults()
	assert.Equal(t, "12.5", auto.MinProfitThreshold.String())
	assert.Equal(t, []domain.OpportunityType{domain.OpportunityCrossExchange}, auto.EnabledTypes)
	assert.Equal(t, cfg.Engine.EnabledSymbols, auto.EnabledSymbols)

	auto.EnabledSymbols[0] = "MUTATED"
	assert.NotEqual(t, "MUTATED", cfg.Engine.EnabledSymbols[0])
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Server.APIKey = "key"
	cfg.Postgres.DSN = "postgres://u:p@h/db"
	cfg.Notify.TelegramToken = "tok"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Equal(t, "***", out.Postgres.DSN)
	assert.Equal(t, "***", out.Notify.TelegramToken)
	assert.Empty(t, out.Redis.Password, "empty secrets stay empty")
	assert.Equal(t, "key", cfg.Server.APIKey)

	out.Server.CORSOrigins[0] = "changed"
	assert.NotEqual(t, "changed", cfg.Server.CORSOrigins[0])
}

func TestExampleConfigIsValid(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.toml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "automation", cfg.Mode)
	assert.Len(t, cfg.Collaborators.Paper.Opportunities, 2)
	assert.Equal(t, 200*time.Millisecond, cfg.Collaborators.Paper.Latency.Duration)
	assert.Equal(t, Defaults().Engine.EnabledSymbols, cfg.Engine.EnabledSymbols)
}
