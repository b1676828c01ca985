package automation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

func TestConfigStore_UpdateMergesAndNotifies(t *testing.T) {
	s := NewConfigStore(testConfig())
	var seen []domain.AutomationConfig
	s.Subscribe(func(c domain.AutomationConfig) { seen = append(seen, c) })

	interval := 0
	threshold := dec("7.5")
	cfg, err := s.Update(domain.AutomationPatch{
		ScanIntervalSeconds: &interval,
		MinProfitThreshold:  &threshold,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.ScanIntervalSeconds, "store does not clamp")
	assert.Equal(t, 5, cfg.MaxConcurrentExecutions, "untouched fields survive")
	assert.True(t, cfg.MinProfitThreshold.Equal(threshold))
	assert.Equal(t, uint64(2), cfg.Version)
	require.Len(t, seen, 1)
	assert.Equal(t, cfg.Version, seen[0].Version)
	assert.Equal(t, cfg, s.Get())
}

func TestConfigStore_ResetRestoresDefaults(t *testing.T) {
	defaults := testConfig()
	s := NewConfigStore(defaults)

	hedge := true
	symbols := []string{"XRP/USD"}
	_, err := s.Update(domain.AutomationPatch{AutoHedge: &hedge, EnabledSymbols: &symbols})
	require.NoError(t, err)

	cfg := s.Reset()
	assert.False(t, cfg.AutoHedge)
	assert.Equal(t, defaults.EnabledSymbols, cfg.EnabledSymbols)
	assert.Equal(t, uint64(3), cfg.Version)
}

func TestConfigStore_SnapshotsAreIsolated(t *testing.T) {
	s := NewConfigStore(testConfig())
	cfg := s.Get()
	cfg.EnabledSymbols[0] = "MUTATED"
	assert.NotEqual(t, "MUTATED", s.Get().EnabledSymbols[0])
}

func TestConfigStore_RejectsUnknownType(t *testing.T) {
	s := NewConfigStore(testConfig())
	types := []domain.OpportunityType{"triangular"}
	_, err := s.Update(domain.AutomationPatch{EnabledTypes: &types})
	assert.ErrorIs(t, err, domain.ErrInvalidPatch)
	assert.Equal(t, uint64(1), s.Get().Version)
}

func TestConfigStore_Unsubscribe(t *testing.T) {
	s := NewConfigStore(testConfig())
	calls := 0
	cancel := s.Subscribe(func(domain.AutomationConfig) { calls++ })
	s.Reset()
	cancel()
	s.Reset()
	assert.Equal(t, 1, calls)
}

func TestConfigStore_RestoreKeepsVersionMonotonic(t *testing.T) {
	s := NewConfigStore(testConfig())
	persisted := testConfig()
	persisted.Version = 0
	persisted.CooldownSeconds = 42

	cfg := s.Restore(persisted)
	assert.Equal(t, 42, cfg.CooldownSeconds)
	assert.Equal(t, uint64(2), cfg.Version)

	persisted.Version = 17
	cfg = s.Restore(persisted)
	assert.Equal(t, uint64(18), cfg.Version)
}
