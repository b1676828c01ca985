package automation

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler runs a scan function repeatedly while in the running state. The
// first scan happens immediately on start; each following scan is armed
// after the previous one finishes, using the interval current at that time.
type Scheduler struct {
	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	base     context.Context
	scan     func(context.Context)
	interval func() time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a stopped Scheduler. interval is consulted before
// every wait and is clamped to at least one second.
func NewScheduler(scan func(context.Context), interval func() time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		base:     context.Background(),
		scan:     scan,
		interval: interval,
		logger:   logger.With(slog.String("component", "scheduler")),
	}
}

// Bind sets the parent context for future scan loops. Stopping the parent
// stops a running loop.
func (s *Scheduler) Bind(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = ctx
}

// Running reports whether the scan timer is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start transitions to running. It returns false when already running.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

// Stop transitions to stopped. It returns false when already stopped. A scan
// in progress observes cancellation; work it already dispatched continues.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

// Toggle flips the state and returns the new running value. Starting fails
// once the bound parent context is done.
func (s *Scheduler) Toggle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.stopLocked()
		return false
	}
	return s.startLocked()
}

// Wait blocks until the current scan loop, if any, has exited.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *Scheduler) startLocked() bool {
	if s.running {
		return false
	}
	if s.base.Err() != nil {
		s.logger.Warn("scheduler: start ignored, parent context done")
		return false
	}
	ctx, cancel := context.WithCancel(s.base)
	done := make(chan struct{})
	s.running = true
	s.cancel = cancel
	s.done = done
	go s.loop(ctx, done)
	s.logger.Info("scheduler: started")
	return true
}

func (s *Scheduler) stopLocked() bool {
	if !s.running {
		return false
	}
	s.running = false
	s.cancel()
	s.cancel = nil
	s.logger.Info("scheduler: stopped")
	return true
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		// Parent cancellation stops the loop without a Stop call.
		s.mu.Lock()
		if s.done == done && s.running {
			s.running = false
			s.cancel = nil
		}
		s.mu.Unlock()
	}()

	for {
		s.scan(ctx)

		wait := s.interval()
		if wait < time.Second {
			wait = time.Second
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
