package automation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// Engine is the host-facing automation engine. It owns the scheduler,
// throttle and ledger and serialises every compound state change behind one
// mutex, so observers never see a released slot without the matching stats
// and log update.
type Engine struct {
	mu sync.Mutex

	configs  *ConfigStore
	throttle *Throttle
	ledger   *Ledger
	sched    *Scheduler

	discoverer domain.Discoverer
	executor   domain.OrderExecutor
	hedger     domain.HedgeCreator

	sink        Sink
	locks       domain.LockManager
	lockKey     string
	lockTTL     time.Duration
	now         func() time.Time
	newID       func() string
	logCapacity int

	inflight sync.WaitGroup
	logger   *slog.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithSink sets the event sink. Multiple sinks can be combined with Sinks.
func WithSink(s Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithClock replaces time.Now for cooldowns and timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator replaces the execution ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// WithScanLock makes each scan cycle hold a distributed lock so only one
// engine instance scans at a time.
func WithScanLock(locks domain.LockManager, key string, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locks = locks
		e.lockKey = key
		e.lockTTL = ttl
	}
}

// WithLogCapacity overrides the number of retained execution records.
func WithLogCapacity(n int) Option {
	return func(e *Engine) { e.logCapacity = n }
}

// NewEngine creates a stopped Engine.
func NewEngine(
	configs *ConfigStore,
	discoverer domain.Discoverer,
	executor domain.OrderExecutor,
	hedger domain.HedgeCreator,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		configs:     configs,
		discoverer:  discoverer,
		executor:    executor,
		hedger:      hedger,
		sink:        NopSink{},
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
		logCapacity: DefaultLogCapacity,
		lockTTL:     time.Minute,
		logger:      logger.With(slog.String("component", "automation")),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.throttle = NewThrottle(e.now)
	e.ledger = NewLedger(e.logCapacity)
	e.sched = NewScheduler(func(ctx context.Context) {
		e.ScanOnce(ctx)
	}, func() time.Duration {
		return e.configs.Get().ScanInterval()
	}, logger)

	configs.Subscribe(func(cfg domain.AutomationConfig) {
		e.sink.OnConfig(context.Background(), cfg)
	})
	return e
}

// Config returns the current tunables.
func (e *Engine) Config() domain.AutomationConfig {
	return e.configs.Get()
}

// UpdateConfig applies a partial update. The scheduler picks it up on its
// next tick.
func (e *Engine) UpdateConfig(patch domain.AutomationPatch) (domain.AutomationConfig, error) {
	cfg, err := e.configs.Update(patch)
	if err != nil {
		return domain.AutomationConfig{}, err
	}
	e.logger.Info("automation: config updated", slog.Uint64("version", cfg.Version))
	return cfg, nil
}

// ResetConfig restores the default tunables and forgets symbol cooldowns.
// Slots held by in-flight executions are kept.
func (e *Engine) ResetConfig() domain.AutomationConfig {
	e.throttle.ClearCooldowns()
	cfg := e.configs.Reset()
	e.logger.Info("automation: config reset", slog.Uint64("version", cfg.Version))
	return cfg
}

// RestoreConfig loads a persisted config as the live one.
func (e *Engine) RestoreConfig(cfg domain.AutomationConfig) domain.AutomationConfig {
	return e.configs.Restore(cfg)
}

// Stats returns a consistent snapshot of the counters.
func (e *Engine) Stats() domain.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statsLocked()
}

// Log returns the retained execution records, newest first.
func (e *Engine) Log() []domain.ExecutionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Log()
}

// Snapshot returns config, stats and log read together.
func (e *Engine) Snapshot() (domain.AutomationConfig, domain.Stats, []domain.ExecutionRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.configs.Get(), e.statsLocked(), e.ledger.Log()
}

// ResetStats zeroes every counter and empties the log. In-flight executions
// keep their slots and are counted when they finish.
func (e *Engine) ResetStats() domain.Stats {
	e.mu.Lock()
	e.ledger.Reset()
	st := e.statsLocked()
	e.mu.Unlock()

	e.logger.Info("automation: stats reset")
	e.sink.OnStatus(context.Background(), st)
	return st
}

// IsRunning reports whether automatic scanning is on.
func (e *Engine) IsRunning() bool {
	return e.sched.Running()
}

// ToggleAutomation flips between running and stopped and returns the new
// state.
func (e *Engine) ToggleAutomation() bool {
	running := e.sched.Toggle()
	e.sink.OnStatus(context.Background(), e.Stats())
	return running
}

// Start turns automatic scanning on. It is a no-op when already running.
func (e *Engine) Start() bool {
	started := e.sched.Start()
	if started {
		e.sink.OnStatus(context.Background(), e.Stats())
	}
	return started
}

// Stop turns automatic scanning off. Dispatched executions still finish.
func (e *Engine) Stop() bool {
	stopped := e.sched.Stop()
	if stopped {
		e.sink.OnStatus(context.Background(), e.Stats())
	}
	return stopped
}

// Run binds the engine to ctx, optionally starts scanning, and blocks until
// ctx is done. It then stops the scheduler and waits for in-flight
// executions.
func (e *Engine) Run(ctx context.Context, autostart bool) error {
	e.sched.Bind(ctx)
	if autostart {
		e.Start()
	}
	<-ctx.Done()
	e.Stop()
	e.sched.Wait()
	e.Wait()
	e.logger.Info("automation: engine stopped")
	return ctx.Err()
}

// Wait blocks until every dispatched execution and hedge has finished.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

// ScanOnce runs a single scan cycle: discovery, filtering and dispatch.
// Dispatched executions continue after ScanOnce returns.
func (e *Engine) ScanOnce(ctx context.Context) domain.ScanReport {
	cfg := e.configs.Get()
	report := domain.ScanReport{StartedAt: e.now().UTC()}

	if len(cfg.EnabledTypes) == 0 {
		report.Skipped = true
		e.logger.DebugContext(ctx, "automation: no opportunity types enabled, scan skipped")
		e.sink.OnScan(ctx, report)
		return report
	}

	if e.locks != nil {
		unlock, err := e.locks.Acquire(ctx, e.lockKey, e.lockTTL)
		if err != nil {
			report.Skipped = true
			if !errors.Is(err, domain.ErrLockHeld) {
				report.Error = err.Error()
				e.logger.WarnContext(ctx, "automation: scan lock failed",
					slog.String("error", err.Error()),
				)
			}
			e.sink.OnScan(ctx, report)
			return report
		}
		defer unlock()
	}

	opps, err := e.discoverer.Discover(ctx, domain.DiscoveryRequest{
		Types:     cfg.EnabledTypes,
		Exchanges: cfg.EnabledExchanges,
		Symbols:   cfg.EnabledSymbols,
	})
	if err != nil && ctx.Err() != nil {
		// Stopped mid-discovery; not a failed scan.
		report.Skipped = true
		e.logger.DebugContext(ctx, "automation: scan cancelled during discovery")
		e.sink.OnScan(ctx, report)
		return report
	}
	if err != nil {
		report.Error = err.Error()
		opps = nil
		e.logger.WarnContext(ctx, "automation: discovery failed",
			slog.String("error", err.Error()),
		)
	}
	report.Discovered = len(opps)

	kept, rejected := FilterWithReasons(opps, cfg)
	report.Eligible = len(kept)
	for _, r := range rejected {
		e.logger.DebugContext(ctx, "automation: opportunity rejected",
			slog.String("symbol", r.Opportunity.Symbol),
			slog.String("type", string(r.Opportunity.Type)),
			slog.String("reason", string(r.Reason)),
		)
	}

	// Executions finalize under the same lock, so no slot is released
	// until every eligible opportunity of this cycle had its chance.
	e.mu.Lock()
	for _, opp := range kept {
		if ctx.Err() != nil {
			break
		}
		if !e.throttle.TryAcquire(opp.Symbol, cfg) {
			e.logger.DebugContext(ctx, "automation: slot denied",
				slog.String("symbol", opp.Symbol),
			)
			continue
		}
		e.dispatch(ctx, opp, cfg)
		report.Dispatched++
	}
	e.mu.Unlock()

	e.ledger.RecordScan(report)
	e.sink.OnScan(ctx, report)
	if report.Dispatched > 0 || report.Error != "" {
		e.logger.InfoContext(ctx, "automation: scan complete",
			slog.Int("discovered", report.Discovered),
			slog.Int("eligible", report.Eligible),
			slog.Int("dispatched", report.Dispatched),
		)
	}
	return report
}

func (e *Engine) statsLocked() domain.Stats {
	st := e.ledger.Stats()
	st.CurrentExecutions = e.throttle.Current()
	st.IsRunning = e.sched.Running()
	return st
}
