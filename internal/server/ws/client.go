package ws

import (
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// eventSubscriptions acknowledges a subscription change with the client's
// resulting event set.
const eventSubscriptions = "subscriptions"

// subscribeMsg lets a client change which event types it receives.
type subscribeMsg struct {
	Action string   `json:"action"` // "subscribe" or "unsubscribe"
	Events []string `json:"events"`
}

type subscriptionsAck struct {
	Events []string `json:"events"`
}

// client is one WebSocket connection. send is closed exactly once, by close.
type client struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
	events map[string]bool
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		events: make(map[string]bool, len(knownEvents)),
	}
	for _, e := range defaultEvents {
		c.events[e] = true
	}
	return c
}

// deliver queues msg without blocking. It reports false when the client is
// closed or its buffer is full.
func (c *client) deliver(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) wants(event string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[event]
}

// apply changes the subscription and returns the resulting events, sorted.
// Unknown event names are ignored.
func (c *client) apply(msg subscribeMsg) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range msg.Events {
		if !slices.Contains(knownEvents, e) {
			continue
		}
		switch msg.Action {
		case "subscribe":
			c.events[e] = true
		case "unsubscribe":
			delete(c.events, e)
		}
	}
	out := make([]string, 0, len(c.events))
	for e := range c.events {
		out = append(out, e)
	}
	slices.Sort(out)
	return out
}

// readPump handles subscription changes until the connection fails, then
// detaches the client from the hub.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("ws: unexpected close", slog.String("error", err.Error()))
			}
			return
		}

		var msg subscribeMsg
		if err := json.Unmarshal(raw, &msg); err != nil || len(msg.Events) == 0 {
			continue
		}
		ack, err := h.envelope(eventSubscriptions, subscriptionsAck{Events: c.apply(msg)})
		if err == nil {
			c.deliver(ack)
		}
	}
}

// writePump drains send to the connection and keeps it alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
