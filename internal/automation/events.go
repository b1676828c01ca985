package automation

import (
	"context"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// Sink observes engine events. Calls happen after the corresponding state
// change is complete, outside the engine lock, on the goroutine that caused
// the change. Implementations should return quickly.
type Sink interface {
	OnExecution(ctx context.Context, rec domain.ExecutionRecord, stats domain.Stats)
	OnHedge(ctx context.Context, outcome domain.HedgeOutcome, stats domain.Stats)
	OnConfig(ctx context.Context, cfg domain.AutomationConfig)
	OnStatus(ctx context.Context, stats domain.Stats)
	OnScan(ctx context.Context, report domain.ScanReport)
}

// NopSink ignores every event. Embed it to implement only some callbacks.
type NopSink struct{}

func (NopSink) OnExecution(context.Context, domain.ExecutionRecord, domain.Stats) {}
func (NopSink) OnHedge(context.Context, domain.HedgeOutcome, domain.Stats)        {}
func (NopSink) OnConfig(context.Context, domain.AutomationConfig)                 {}
func (NopSink) OnStatus(context.Context, domain.Stats)                            {}
func (NopSink) OnScan(context.Context, domain.ScanReport)                         {}

// Sinks fans events out to every member in order.
type Sinks []Sink

func (s Sinks) OnExecution(ctx context.Context, rec domain.ExecutionRecord, stats domain.Stats) {
	for _, sink := range s {
		sink.OnExecution(ctx, rec, stats)
	}
}

func (s Sinks) OnHedge(ctx context.Context, outcome domain.HedgeOutcome, stats domain.Stats) {
	for _, sink := range s {
		sink.OnHedge(ctx, outcome, stats)
	}
}

func (s Sinks) OnConfig(ctx context.Context, cfg domain.AutomationConfig) {
	for _, sink := range s {
		sink.OnConfig(ctx, cfg)
	}
}

func (s Sinks) OnStatus(ctx context.Context, stats domain.Stats) {
	for _, sink := range s {
		sink.OnStatus(ctx, stats)
	}
}

func (s Sinks) OnScan(ctx context.Context, report domain.ScanReport) {
	for _, sink := range s {
		sink.OnScan(ctx, report)
	}
}

var (
	_ Sink = NopSink{}
	_ Sink = Sinks(nil)
)
