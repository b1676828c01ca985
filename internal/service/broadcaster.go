// Package service holds the host-side observers of the automation engine:
// they persist, broadcast and alert on engine events, and schedule the
// history archive.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbengine/internal/automation"
	"github.com/alanyoungcy/arbengine/internal/domain"
)

// ExecutionEvent is the payload of an execution envelope.
type ExecutionEvent struct {
	Record domain.ExecutionRecord `json:"record"`
	Stats  domain.Stats           `json:"stats"`
}

// HedgeEvent is the payload of a hedge envelope.
type HedgeEvent struct {
	Outcome domain.HedgeOutcome `json:"outcome"`
	Stats   domain.Stats        `json:"stats"`
}

// Broadcaster publishes engine events on the signal bus. Finalized
// executions are also appended to a durable stream.
type Broadcaster struct {
	bus    domain.SignalBus
	now    func() time.Time
	logger *slog.Logger
}

// NewBroadcaster creates a Broadcaster publishing on bus.
func NewBroadcaster(bus domain.SignalBus, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		bus:    bus,
		now:    time.Now,
		logger: logger.With(slog.String("component", "broadcaster")),
	}
}

func (b *Broadcaster) OnExecution(ctx context.Context, rec domain.ExecutionRecord, stats domain.Stats) {
	b.publish(ctx, domain.ChannelExecution, domain.EventExecution, ExecutionEvent{Record: rec, Stats: stats})
	b.publish(ctx, domain.ChannelStats, domain.EventStats, stats)

	payload, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := b.bus.StreamAppend(ctx, domain.StreamExecutions, payload); err != nil {
		b.logger.WarnContext(ctx, "stream append failed",
			slog.String("execution_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (b *Broadcaster) OnHedge(ctx context.Context, outcome domain.HedgeOutcome, stats domain.Stats) {
	b.publish(ctx, domain.ChannelHedge, domain.EventHedge, HedgeEvent{Outcome: outcome, Stats: stats})
	b.publish(ctx, domain.ChannelStats, domain.EventStats, stats)
}

func (b *Broadcaster) OnConfig(ctx context.Context, cfg domain.AutomationConfig) {
	b.publish(ctx, domain.ChannelConfig, domain.EventConfig, cfg)
}

func (b *Broadcaster) OnStatus(ctx context.Context, stats domain.Stats) {
	b.publish(ctx, domain.ChannelStatus, domain.EventStatus, stats)
}

func (b *Broadcaster) OnScan(ctx context.Context, report domain.ScanReport) {
	b.publish(ctx, domain.ChannelScan, domain.EventScan, report)
}

func (b *Broadcaster) publish(ctx context.Context, channel, eventType string, data any) {
	payload, err := json.Marshal(domain.EventEnvelope{
		Type:      eventType,
		Data:      data,
		Timestamp: b.now().UTC(),
	})
	if err != nil {
		b.logger.ErrorContext(ctx, "marshal event failed",
			slog.String("type", eventType),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := b.bus.Publish(ctx, channel, payload); err != nil {
		b.logger.WarnContext(ctx, "publish event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

var _ automation.Sink = (*Broadcaster)(nil)
