package domain

import (
	"context"
	"time"
)

// Signal bus channels carrying automation engine events.
const (
	ChannelExecution = "ch:automation:execution"
	ChannelHedge     = "ch:automation:hedge"
	ChannelStats     = "ch:automation:stats"
	ChannelConfig    = "ch:automation:config"
	ChannelStatus    = "ch:automation:status"
	ChannelScan      = "ch:automation:scan"

	// StreamExecutions is the durable stream of finalized executions.
	StreamExecutions = "stream:automation:executions"
)

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// Event types carried in EventEnvelope.Type.
const (
	EventExecution = "execution"
	EventHedge     = "hedge"
	EventStats     = "stats"
	EventConfig    = "config"
	EventStatus    = "status"
	EventScan      = "scan"
	EventSnapshot  = "snapshot"
)

// EventEnvelope is the JSON shape published on the signal bus and pushed to
// WebSocket clients.
type EventEnvelope struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}
