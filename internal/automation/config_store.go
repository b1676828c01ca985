// Package automation implements the arbitrage automation engine: a scan loop
// that discovers opportunities, filters them against live tunables, throttles
// dispatch by concurrency and per-symbol cooldown, and drives each accepted
// opportunity through execution and an optional hedge.
package automation

import (
	"sync"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

type observer struct {
	id int
	fn func(domain.AutomationConfig)
}

// ConfigStore holds the single live AutomationConfig. Reads return copies;
// every write bumps the version and notifies observers in subscription order.
type ConfigStore struct {
	mu        sync.RWMutex
	cfg       domain.AutomationConfig
	defaults  domain.AutomationConfig
	observers []observer
	nextID    int
	now       func() time.Time
}

// NewConfigStore creates a store initialised with defaults. Reset restores
// the same defaults.
func NewConfigStore(defaults domain.AutomationConfig) *ConfigStore {
	s := &ConfigStore{
		defaults: defaults.Clone(),
		now:      time.Now,
	}
	s.cfg = s.defaults.Clone()
	s.cfg.Version = 1
	s.cfg.UpdatedAt = s.now().UTC()
	return s
}

// Get returns a snapshot of the current config.
func (s *ConfigStore) Get() domain.AutomationConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Defaults returns the config Reset restores.
func (s *ConfigStore) Defaults() domain.AutomationConfig {
	return s.defaults.Clone()
}

// Update shallow-merges patch into the current config.
func (s *ConfigStore) Update(patch domain.AutomationPatch) (domain.AutomationConfig, error) {
	if err := patch.Validate(); err != nil {
		return domain.AutomationConfig{}, err
	}
	return s.replace(0, func(cur domain.AutomationConfig) domain.AutomationConfig {
		return patch.Apply(cur)
	}), nil
}

// Reset restores the defaults.
func (s *ConfigStore) Reset() domain.AutomationConfig {
	return s.replace(0, func(domain.AutomationConfig) domain.AutomationConfig {
		return s.defaults.Clone()
	})
}

// Restore replaces the current tunables with a previously persisted config.
// The new version is above both the live and the persisted one, so
// observers never see it go backwards.
func (s *ConfigStore) Restore(cfg domain.AutomationConfig) domain.AutomationConfig {
	return s.replace(cfg.Version, func(domain.AutomationConfig) domain.AutomationConfig {
		return cfg.Clone()
	})
}

// Subscribe registers fn to be called after every change. The returned
// function removes the subscription.
func (s *ConfigStore) Subscribe(fn func(domain.AutomationConfig)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, observer{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

func (s *ConfigStore) replace(floor uint64, next func(domain.AutomationConfig) domain.AutomationConfig) domain.AutomationConfig {
	s.mu.Lock()
	version := max(s.cfg.Version, floor)
	cfg := next(s.cfg)
	cfg.Version = version + 1
	cfg.UpdatedAt = s.now().UTC()
	s.cfg = cfg
	snapshot := cfg.Clone()
	observers := make([]observer, len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	for _, o := range observers {
		o.fn(snapshot.Clone())
	}
	return snapshot
}
