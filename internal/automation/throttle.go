package automation

import (
	"sync"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// Throttle bounds in-flight executions and spaces executions on the same
// symbol by the configured cooldown. It is safe for concurrent use.
type Throttle struct {
	mu      sync.Mutex
	current int
	last    map[string]time.Time // symbol -> last granted acquisition
	now     func() time.Time
}

// NewThrottle creates a Throttle. A nil clock uses time.Now.
func NewThrottle(now func() time.Time) *Throttle {
	if now == nil {
		now = time.Now
	}
	return &Throttle{
		last: make(map[string]time.Time),
		now:  now,
	}
}

// TryAcquire grants a slot for symbol unless every slot is taken or the
// symbol is still cooling down. A granted slot must be returned with
// Release.
func (t *Throttle) TryAcquire(symbol string, cfg domain.AutomationConfig) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current >= cfg.MaxConcurrent() {
		return false
	}
	now := t.now()
	if last, ok := t.last[symbol]; ok && now.Sub(last) < cfg.Cooldown() {
		return false
	}
	t.current++
	t.last[symbol] = now
	return true
}

// Release returns a slot. The count never drops below zero.
func (t *Throttle) Release(symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current > 0 {
		t.current--
	}
}

// Current returns the number of held slots.
func (t *Throttle) Current() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// LastExecution returns when symbol last acquired a slot.
func (t *Throttle) LastExecution(symbol string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts, ok := t.last[symbol]
	return ts, ok
}

// ClearCooldowns forgets every symbol's last execution time. Held slots are
// untouched.
func (t *Throttle) ClearCooldowns() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = make(map[string]time.Time)
}
