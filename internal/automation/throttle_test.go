package automation

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottle_ConcurrencyBound(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentExecutions = 2
	th := NewThrottle(newFakeClock().Now)

	assert.True(t, th.TryAcquire("BTC/USD", cfg))
	assert.True(t, th.TryAcquire("ETH/USD", cfg))
	assert.False(t, th.TryAcquire("SOL/USD", cfg))
	assert.Equal(t, 2, th.Current())

	th.Release("BTC/USD")
	assert.True(t, th.TryAcquire("SOL/USD", cfg))
	assert.Equal(t, 2, th.Current())
}

func TestThrottle_NeverNegative(t *testing.T) {
	th := NewThrottle(nil)
	th.Release("BTC/USD")
	th.Release("BTC/USD")
	assert.Equal(t, 0, th.Current())
}

func TestThrottle_RandomSequenceStaysInBounds(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentExecutions = 3
	th := NewThrottle(newFakeClock().Now)
	rng := rand.New(rand.NewSource(42))
	symbols := []string{"BTC/USD", "ETH/USD", "SOL/USD", "ADA/USD"}

	for i := 0; i < 1000; i++ {
		s := symbols[rng.Intn(len(symbols))]
		if rng.Intn(2) == 0 {
			th.TryAcquire(s, cfg)
		} else {
			th.Release(s)
		}
		cur := th.Current()
		require.GreaterOrEqual(t, cur, 0)
		require.LessOrEqual(t, cur, cfg.MaxConcurrentExecutions)
	}
}

func TestThrottle_Cooldown(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.CooldownSeconds = 10
	th := NewThrottle(clock.Now)

	require.True(t, th.TryAcquire("BTC/USD", cfg))
	th.Release("BTC/USD")

	clock.Advance(9*time.Second + 999*time.Millisecond)
	assert.False(t, th.TryAcquire("BTC/USD", cfg), "inside cooldown")
	assert.True(t, th.TryAcquire("ETH/USD", cfg), "other symbols are unaffected")
	th.Release("ETH/USD")

	clock.Advance(time.Millisecond)
	assert.True(t, th.TryAcquire("BTC/USD", cfg), "cooldown elapsed exactly")
}

func TestThrottle_DeniedAcquireDoesNotTouchCooldown(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.MaxConcurrentExecutions = 1
	cfg.CooldownSeconds = 10
	th := NewThrottle(clock.Now)

	require.True(t, th.TryAcquire("BTC/USD", cfg))
	assert.False(t, th.TryAcquire("ETH/USD", cfg))
	_, seen := th.LastExecution("ETH/USD")
	assert.False(t, seen)
}

func TestThrottle_DegenerateConfigIsClamped(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentExecutions = 0
	cfg.CooldownSeconds = -5
	th := NewThrottle(newFakeClock().Now)

	assert.True(t, th.TryAcquire("BTC/USD", cfg))
	assert.False(t, th.TryAcquire("ETH/USD", cfg))
	th.Release("BTC/USD")
	assert.True(t, th.TryAcquire("BTC/USD", cfg))
}

func TestThrottle_ClearCooldownsKeepsSlots(t *testing.T) {
	cfg := testConfig()
	cfg.CooldownSeconds = 60
	th := NewThrottle(newFakeClock().Now)

	require.True(t, th.TryAcquire("BTC/USD", cfg))
	th.ClearCooldowns()
	assert.Equal(t, 1, th.Current())
	assert.True(t, th.TryAcquire("BTC/USD", cfg))
}
