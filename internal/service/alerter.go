package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/arbengine/internal/automation"
	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/alanyoungcy/arbengine/internal/notify"
)

const alertQueueSize = 64

// Notifier is the subset of notify.Notifier used by Alerter.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

type alert struct {
	event   string
	title   string
	message string
}

// Alerter turns engine events into operator notifications. Alerts are queued
// and delivered by Run so slow chat APIs never hold up an execution; when
// the queue is full new alerts are dropped.
type Alerter struct {
	automation.NopSink

	notifier Notifier
	queue    chan alert
	logger   *slog.Logger

	mu          sync.Mutex
	statusKnown bool
	lastRunning bool
}

// NewAlerter creates an Alerter delivering through n.
func NewAlerter(n Notifier, logger *slog.Logger) *Alerter {
	return &Alerter{
		notifier: n,
		queue:    make(chan alert, alertQueueSize),
		logger:   logger.With(slog.String("component", "alerter")),
	}
}

// Run delivers queued alerts until ctx is cancelled, then flushes what is
// left with a fresh context. Alerts enqueued after Run returns are never
// sent, so ctx should outlive the engine's in-flight executions.
func (a *Alerter) Run(ctx context.Context) error {
	for {
		select {
		case al := <-a.queue:
			a.deliver(ctx, al)
		case <-ctx.Done():
			flushCtx := context.WithoutCancel(ctx)
			for {
				select {
				case al := <-a.queue:
					a.deliver(flushCtx, al)
				default:
					return nil
				}
			}
		}
	}
}

func (a *Alerter) OnExecution(_ context.Context, rec domain.ExecutionRecord, _ domain.Stats) {
	if rec.Status == domain.ExecSuccess {
		a.enqueue(notify.EventExecutionSuccess, "Execution succeeded",
			fmt.Sprintf("%s %s %s -> %s size %s profit %s",
				rec.Type, rec.Symbol, rec.BuyExchange, rec.SellExchange, rec.Size, rec.Profit))
		return
	}
	a.enqueue(notify.EventExecutionFailed, "Execution failed",
		fmt.Sprintf("%s %s %s -> %s: %s", rec.Type, rec.Symbol, rec.BuyExchange, rec.SellExchange, rec.Error))
}

func (a *Alerter) OnHedge(_ context.Context, outcome domain.HedgeOutcome, _ domain.Stats) {
	if outcome.Success {
		return
	}
	a.enqueue(notify.EventHedgeFailed, "Hedge failed",
		fmt.Sprintf("%s long %s short %s size %s (execution %s): %s",
			outcome.Symbol, outcome.LongExchange, outcome.ShortExchange, outcome.Size,
			outcome.ExecutionID, outcome.Error))
}

func (a *Alerter) OnStatus(_ context.Context, stats domain.Stats) {
	a.mu.Lock()
	changed := a.statusKnown && a.lastRunning != stats.IsRunning
	a.statusKnown = true
	a.lastRunning = stats.IsRunning
	a.mu.Unlock()
	if !changed {
		return
	}

	state := "stopped"
	if stats.IsRunning {
		state = "started"
	}
	a.enqueue(notify.EventAutomationStatus, "Automation "+state,
		fmt.Sprintf("executions %d (ok %d, failed %d), profit %s",
			stats.TotalExecutions, stats.SuccessfulExecutions, stats.FailedExecutions, stats.TotalProfit))
}

func (a *Alerter) OnScan(_ context.Context, report domain.ScanReport) {
	if report.Error == "" {
		return
	}
	a.enqueue(notify.EventScanFailed, "Scan failed", report.Error)
}

func (a *Alerter) enqueue(event, title, message string) {
	select {
	case a.queue <- alert{event: event, title: title, message: message}:
	default:
		a.logger.Warn("alert queue full, dropping alert", slog.String("event", event))
	}
}

func (a *Alerter) deliver(ctx context.Context, al alert) {
	if err := a.notifier.Notify(ctx, al.event, al.title, al.message); err != nil {
		a.logger.WarnContext(ctx, "alert delivery failed",
			slog.String("event", al.event),
			slog.String("error", err.Error()),
		)
	}
}

var _ automation.Sink = (*Alerter)(nil)
