package service

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/arbengine/internal/automation"
	"github.com/alanyoungcy/arbengine/internal/domain"
)

// LogSink writes config, status and scan events to the structured log. The
// engine already logs each execution and hedge itself.
type LogSink struct {
	automation.NopSink
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With(slog.String("component", "events"))}
}

func (s *LogSink) OnConfig(ctx context.Context, cfg domain.AutomationConfig) {
	s.logger.InfoContext(ctx, "automation config applied",
		slog.Uint64("version", cfg.Version),
		slog.String("min_profit_threshold", cfg.MinProfitThreshold.String()),
		slog.String("max_position_size", cfg.MaxPositionSize.String()),
		slog.Int("scan_interval_seconds", cfg.ScanIntervalSeconds),
		slog.Int("max_concurrent_executions", cfg.MaxConcurrentExecutions),
		slog.Bool("auto_hedge", cfg.AutoHedge),
	)
}

func (s *LogSink) OnStatus(ctx context.Context, stats domain.Stats) {
	s.logger.InfoContext(ctx, "automation status",
		slog.Bool("is_running", stats.IsRunning),
		slog.Int("current_executions", stats.CurrentExecutions),
		slog.Int64("total_executions", stats.TotalExecutions),
		slog.String("total_profit", stats.TotalProfit.String()),
	)
}

func (s *LogSink) OnScan(ctx context.Context, report domain.ScanReport) {
	s.logger.DebugContext(ctx, "scan cycle",
		slog.Int("discovered", report.Discovered),
		slog.Int("eligible", report.Eligible),
		slog.Int("dispatched", report.Dispatched),
		slog.Bool("skipped", report.Skipped),
	)
}

var _ automation.Sink = (*LogSink)(nil)
