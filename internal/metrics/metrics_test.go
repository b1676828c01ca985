package metrics_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/alanyoungcy/arbengine/internal/metrics"
)

func scrape(t *testing.T, s *metrics.Sink) string {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestSink_Executions(t *testing.T) {
	s := metrics.NewSink()
	ctx := context.Background()

	stats := domain.Stats{TotalProfit: decimal.RequireFromString("12.5"), CurrentExecutions: 2, IsRunning: true}
	s.OnExecution(ctx, domain.ExecutionRecord{Type: domain.OpportunityCrossExchange, Status: domain.ExecSuccess, DurationMs: 250}, stats)
	s.OnExecution(ctx, domain.ExecutionRecord{Type: domain.OpportunityCrossExchange, Status: domain.ExecFailed}, stats)
	s.OnHedge(ctx, domain.HedgeOutcome{Success: false}, stats)

	body := scrape(t, s)
	assert.Contains(t, body, `arbengine_executions_total{status="success",type="cross_exchange"} 1`)
	assert.Contains(t, body, `arbengine_executions_total{status="failed",type="cross_exchange"} 1`)
	assert.Contains(t, body, `arbengine_hedges_total{result="failed"} 1`)
	assert.Contains(t, body, "arbengine_total_profit 12.5")
	assert.Contains(t, body, "arbengine_current_executions 2")
	assert.Contains(t, body, "arbengine_running 1")
	assert.Contains(t, body, `arbengine_execution_duration_seconds_count{type="cross_exchange"} 2`)
}

func TestSink_Scans(t *testing.T) {
	s := metrics.NewSink()
	ctx := context.Background()

	s.OnScan(ctx, domain.ScanReport{Discovered: 4, Eligible: 2, Dispatched: 1})
	s.OnScan(ctx, domain.ScanReport{Error: "discovery down"})
	s.OnScan(ctx, domain.ScanReport{Skipped: true})

	cfg := domain.DefaultAutomationConfig()
	cfg.Version = 7
	s.OnConfig(ctx, cfg)

	body := scrape(t, s)
	assert.Contains(t, body, `arbengine_scans_total{result="completed"} 1`)
	assert.Contains(t, body, `arbengine_scans_total{result="failed"} 1`)
	assert.Contains(t, body, `arbengine_scans_total{result="skipped"} 1`)
	assert.Contains(t, body, `arbengine_opportunities_total{stage="discovered"} 4`)
	assert.Contains(t, body, `arbengine_opportunities_total{stage="dispatched"} 1`)
	assert.Contains(t, body, "arbengine_config_version 7")
	assert.Contains(t, body, "go_goroutines")
}
