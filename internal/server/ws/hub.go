// Package ws pushes automation engine events to WebSocket clients. Events
// arrive on the signal bus; every new client first receives a snapshot of
// the engine's config, stats and execution log.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// eventPattern matches every automation channel on the signal bus.
const eventPattern = "ch:automation:*"

// defaultEvents are pushed to a client until it narrows its subscription.
var defaultEvents = []string{
	domain.EventExecution,
	domain.EventHedge,
	domain.EventStats,
	domain.EventConfig,
	domain.EventStatus,
}

// knownEvents are the event types a client may subscribe to.
var knownEvents = append(slices.Clone(defaultEvents), domain.EventScan)

// SnapshotFunc returns the payload of the snapshot envelope sent on connect.
type SnapshotFunc func() any

// Hub fans events from the signal bus out to connected clients.
type Hub struct {
	bus      domain.SignalBus
	snapshot SnapshotFunc
	upgrader websocket.Upgrader
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a Hub. allowedOrigins restricts browser origins; empty
// allows all.
func NewHub(bus domain.SignalBus, snapshot SnapshotFunc, allowedOrigins []string, logger *slog.Logger) *Hub {
	return &Hub{
		bus:      bus,
		snapshot: snapshot,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		now:     time.Now,
		logger:  logger.With(slog.String("component", "ws_hub")),
		clients: make(map[*client]struct{}),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}

// Run relays signal bus events to clients until ctx is cancelled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	defer h.closeAll()

	events, err := h.bus.Subscribe(ctx, eventPattern)
	if err != nil {
		// Keep serving snapshots even without live events.
		h.logger.ErrorContext(ctx, "ws: subscribe failed",
			slog.String("pattern", eventPattern),
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-events:
			if !ok {
				h.logger.WarnContext(ctx, "ws: event subscription closed")
				events = nil
				continue
			}
			h.broadcast(data)
		}
	}
}

// broadcast delivers one bus payload to every client subscribed to its type.
func (h *Hub) broadcast(data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
		h.logger.Debug("ws: ignoring malformed event")
		return
	}

	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if c.wants(env.Type) {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		if !c.deliver(data) {
			h.logger.Warn("ws: dropping event for slow client", slog.String("type", env.Type))
		}
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("ws: client connected", slog.Int("total_clients", n))
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.close()
	if ok {
		h.logger.Info("ws: client disconnected", slog.Int("total_clients", n))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

// HandleWS upgrades the request, queues the snapshot and starts the
// client's pumps.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newClient(conn)
	if h.snapshot != nil {
		if msg, err := h.envelope(domain.EventSnapshot, h.snapshot()); err == nil {
			c.deliver(msg)
		} else {
			h.logger.Error("ws: marshal snapshot failed", slog.String("error", err.Error()))
		}
	}
	if !h.add(c) {
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(h)
}

func (h *Hub) envelope(typ string, data any) ([]byte, error) {
	return json.Marshal(domain.EventEnvelope{Type: typ, Data: data, Timestamp: h.now().UTC()})
}
