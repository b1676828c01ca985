package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/arbengine/internal/automation"
	"github.com/alanyoungcy/arbengine/internal/domain"
)

const recordTimeout = 5 * time.Second

// Recorder persists finalized executions, hedge outcomes and config
// snapshots, and writes operator-relevant changes to the audit log. Store
// failures are logged and never reach the engine.
type Recorder struct {
	automation.NopSink

	execs   domain.ExecutionStore
	hedges  domain.HedgeStore
	configs domain.AutomationConfigStore
	audit   domain.AuditStore
	logger  *slog.Logger

	mu          sync.Mutex
	statusKnown bool
	lastRunning bool
}

// NewRecorder creates a Recorder. Any store may be nil to skip that concern.
func NewRecorder(
	execs domain.ExecutionStore,
	hedges domain.HedgeStore,
	configs domain.AutomationConfigStore,
	audit domain.AuditStore,
	logger *slog.Logger,
) *Recorder {
	return &Recorder{
		execs:   execs,
		hedges:  hedges,
		configs: configs,
		audit:   audit,
		logger:  logger.With(slog.String("component", "recorder")),
	}
}

func (r *Recorder) OnExecution(ctx context.Context, rec domain.ExecutionRecord, _ domain.Stats) {
	if r.execs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()
	if err := r.execs.Create(ctx, rec); err != nil {
		r.logger.ErrorContext(ctx, "persist execution failed",
			slog.String("execution_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (r *Recorder) OnHedge(ctx context.Context, outcome domain.HedgeOutcome, _ domain.Stats) {
	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()
	if r.hedges != nil {
		if err := r.hedges.Create(ctx, outcome); err != nil {
			r.logger.ErrorContext(ctx, "persist hedge outcome failed",
				slog.String("execution_id", outcome.ExecutionID),
				slog.String("error", err.Error()),
			)
		}
	}
	if !outcome.Success {
		r.auditLog(ctx, domain.AuditHedgeFailed, map[string]any{
			"execution_id":   outcome.ExecutionID,
			"symbol":         outcome.Symbol,
			"long_exchange":  outcome.LongExchange,
			"short_exchange": outcome.ShortExchange,
			"size":           outcome.Size.String(),
			"error":          outcome.Error,
		})
	}
}

func (r *Recorder) OnConfig(ctx context.Context, cfg domain.AutomationConfig) {
	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()
	if r.configs != nil {
		if err := r.configs.Save(ctx, cfg); err != nil {
			r.logger.ErrorContext(ctx, "save automation config failed",
				slog.Uint64("version", cfg.Version),
				slog.String("error", err.Error()),
			)
		}
	}
	r.auditLog(ctx, domain.AuditConfigUpdated, map[string]any{
		"version":                   cfg.Version,
		"min_profit_threshold":      cfg.MinProfitThreshold.String(),
		"min_profit_percentage":     cfg.MinProfitPercentage.String(),
		"max_position_size":         cfg.MaxPositionSize.String(),
		"auto_hedge":                cfg.AutoHedge,
		"scan_interval_seconds":     cfg.ScanIntervalSeconds,
		"max_concurrent_executions": cfg.MaxConcurrentExecutions,
		"cooldown_seconds":          cfg.CooldownSeconds,
		"enabled_types":             cfg.EnabledTypes,
	})
}

// OnStatus audits running-state transitions only; stats resets also emit a
// status event and are not audited.
func (r *Recorder) OnStatus(ctx context.Context, stats domain.Stats) {
	r.mu.Lock()
	changed := !r.statusKnown || r.lastRunning != stats.IsRunning
	r.statusKnown = true
	r.lastRunning = stats.IsRunning
	r.mu.Unlock()
	if !changed {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()
	r.auditLog(ctx, domain.AuditStatusChanged, map[string]any{
		"is_running":         stats.IsRunning,
		"current_executions": stats.CurrentExecutions,
		"total_executions":   stats.TotalExecutions,
	})
}

func (r *Recorder) auditLog(ctx context.Context, event string, detail map[string]any) {
	if r.audit == nil {
		return
	}
	if err := r.audit.Log(ctx, event, detail); err != nil {
		r.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

var _ automation.Sink = (*Recorder)(nil)
