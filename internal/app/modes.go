package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbengine/internal/automation"
	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/alanyoungcy/arbengine/internal/metrics"
	"github.com/alanyoungcy/arbengine/internal/server"
	"github.com/alanyoungcy/arbengine/internal/server/handler"
	"github.com/alanyoungcy/arbengine/internal/server/ws"
	"github.com/alanyoungcy/arbengine/internal/service"
)

const (
	scanLockKey     = "automation:scan"
	shutdownTimeout = 10 * time.Second
)

// snapshot is the state a WebSocket client receives on connect.
type snapshot struct {
	Config domain.AutomationConfig  `json:"config"`
	Stats  domain.Stats             `json:"stats"`
	Log    []domain.ExecutionRecord `json:"log"`
}

// runtime is the engine together with the sinks that need their own
// goroutines or routes.
type runtime struct {
	engine  *automation.Engine
	metrics *metrics.Sink
	alerter *service.Alerter
	archive *service.ArchiveJob
}

// AutomationMode runs the engine behind the HTTP and WebSocket API. Scanning
// starts immediately only when engine.autostart is set; otherwise the
// operator toggles it over the API.
func (a *App) AutomationMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting automation mode")

	rt, err := a.buildRuntime(ctx, deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startRuntime(ctx, g, rt, a.cfg.Engine.Autostart)

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps, rt)
	}

	return g.Wait()
}

// HeadlessMode runs the engine without any API. Scanning always starts
// immediately since nothing could toggle it later.
func (a *App) HeadlessMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting headless mode")

	rt, err := a.buildRuntime(ctx, deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startRuntime(ctx, g, rt, true)
	return g.Wait()
}

// ScanMode runs one discovery and filter pass against the effective config
// and logs the outcome of every opportunity. Nothing is executed.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	configs := automation.NewConfigStore(a.cfg.AutomationDefaults())
	if err := a.restoreConfig(ctx, deps, configs.Restore); err != nil {
		return err
	}
	cfg := configs.Get()

	if len(cfg.EnabledTypes) == 0 {
		a.logger.WarnContext(ctx, "scan: no opportunity types enabled")
		return nil
	}

	opps, err := deps.Collaborators.Discover(ctx, domain.DiscoveryRequest{
		Types:     cfg.EnabledTypes,
		Exchanges: cfg.EnabledExchanges,
		Symbols:   cfg.EnabledSymbols,
	})
	if err != nil {
		return fmt.Errorf("app: scan: discover: %w", err)
	}

	kept, rejected := automation.FilterWithReasons(opps, cfg)
	for _, opp := range kept {
		a.logger.InfoContext(ctx, "scan: eligible opportunity",
			slog.String("symbol", opp.Symbol),
			slog.String("type", string(opp.Type)),
			slog.String("buy_exchange", opp.BuyExchange),
			slog.String("sell_exchange", opp.SellExchange),
			slog.String("net_profit", opp.NetProfit.String()),
			slog.String("spread_pct", opp.SpreadPercentage.String()),
			slog.String("size", automation.PositionSize(opp, cfg).String()),
			slog.Bool("hedge", automation.ShouldHedge(opp, cfg)),
		)
	}
	for _, r := range rejected {
		a.logger.InfoContext(ctx, "scan: rejected opportunity",
			slog.String("symbol", r.Opportunity.Symbol),
			slog.String("type", string(r.Opportunity.Type)),
			slog.String("reason", string(r.Reason)),
		)
	}
	a.logger.InfoContext(ctx, "scan complete",
		slog.Int("discovered", len(opps)),
		slog.Int("eligible", len(kept)),
		slog.Int("rejected", len(rejected)),
	)
	return nil
}

// buildRuntime assembles the engine and its sinks from the wired
// dependencies and restores the persisted config when enabled.
func (a *App) buildRuntime(ctx context.Context, deps *Dependencies) (*runtime, error) {
	rt := &runtime{metrics: metrics.NewSink()}

	sinks := automation.Sinks{service.NewLogSink(a.logger), rt.metrics}
	if deps.ExecutionStore != nil {
		sinks = append(sinks, service.NewRecorder(
			deps.ExecutionStore, deps.HedgeStore, deps.ConfigStore, deps.AuditStore, a.logger,
		))
	}
	if deps.SignalBus != nil {
		sinks = append(sinks, service.NewBroadcaster(deps.SignalBus, a.logger))
	}
	if deps.Notifier.Enabled() {
		rt.alerter = service.NewAlerter(deps.Notifier, a.logger)
		sinks = append(sinks, rt.alerter)
	}

	opts := []automation.Option{
		automation.WithSink(sinks),
		automation.WithLogCapacity(a.cfg.Engine.LogCapacity),
	}
	if a.cfg.Engine.ScanLock && deps.LockManager != nil {
		opts = append(opts, automation.WithScanLock(deps.LockManager, scanLockKey, a.cfg.Engine.ScanLockTTL.Duration))
	}

	rt.engine = automation.NewEngine(
		automation.NewConfigStore(a.cfg.AutomationDefaults()),
		deps.Collaborators,
		deps.Collaborators,
		deps.Collaborators,
		a.logger,
		opts...,
	)
	if err := a.restoreConfig(ctx, deps, rt.engine.RestoreConfig); err != nil {
		return nil, err
	}

	if deps.Archiver != nil {
		job, err := service.NewArchiveJob(deps.Archiver, a.cfg.Archive.Cron, a.cfg.Archive.RetentionDays, a.logger)
		if err != nil {
			return nil, fmt.Errorf("app: archive job: %w", err)
		}
		rt.archive = job
	}
	return rt, nil
}

// restoreConfig applies the last persisted automation config through apply.
// A database with no saved config is not an error.
func (a *App) restoreConfig(ctx context.Context, deps *Dependencies, apply func(domain.AutomationConfig) domain.AutomationConfig) error {
	if !a.cfg.Engine.RestoreConfig || deps.ConfigStore == nil {
		return nil
	}
	saved, err := deps.ConfigStore.Load(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		a.logger.InfoContext(ctx, "no persisted automation config, using defaults")
		return nil
	}
	if err != nil {
		return fmt.Errorf("app: restore automation config: %w", err)
	}
	cfg := apply(saved)
	a.logger.InfoContext(ctx, "automation config restored",
		slog.Uint64("persisted_version", saved.Version),
		slog.Uint64("version", cfg.Version),
	)
	return nil
}

// startRuntime launches the engine, alert delivery and the archive schedule.
// Alert delivery stops only after the engine has drained its in-flight
// executions, so their alerts are still sent.
func (a *App) startRuntime(ctx context.Context, g *errgroup.Group, rt *runtime, autostart bool) {
	alertCtx, stopAlerts := context.WithCancel(context.WithoutCancel(ctx))
	g.Go(func() error {
		defer stopAlerts()
		// Run only returns once ctx is done; that is a normal stop.
		_ = rt.engine.Run(ctx, autostart)
		return nil
	})

	if rt.alerter != nil {
		g.Go(func() error {
			return rt.alerter.Run(alertCtx)
		})
	}

	if rt.archive != nil {
		g.Go(func() error {
			return rt.archive.Run(ctx)
		})
	}
}

// startServer registers the HTTP API and, when a signal bus is wired, the
// WebSocket hub.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, rt *runtime) {
	handlers := server.Handlers{
		Health:     handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Automation: handler.NewAutomationHandler(rt.engine, a.logger),
		Metrics:    rt.metrics.Handler(),
	}
	if deps.ExecutionStore != nil {
		handlers.History = handler.NewHistoryHandler(deps.ExecutionStore, deps.HedgeStore, a.logger)
	}
	if deps.AuditStore != nil {
		handlers.Audit = handler.NewAuditHandler(deps.AuditStore, a.logger)
	}

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, func() any {
			cfg, stats, log := rt.engine.Snapshot()
			return snapshot{Config: cfg, Stats: stats, Log: log}
		}, a.cfg.Server.CORSOrigins, a.logger)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimitPerSec: a.cfg.Server.RateLimitPerSec,
		RateLimitBurst:  a.cfg.Server.RateLimitBurst,
	}, handlers, hub, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
