package automation

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCountingScheduler(interval time.Duration) (*Scheduler, *atomic.Int64) {
	var scans atomic.Int64
	s := NewScheduler(func(context.Context) {
		scans.Add(1)
	}, func() time.Duration { return interval }, testLogger())
	return s, &scans
}

func TestScheduler_ScansImmediatelyOnStart(t *testing.T) {
	s, scans := newCountingScheduler(time.Hour)
	require.True(t, s.Start())
	defer s.Stop()

	require.Eventually(t, func() bool { return scans.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, s.Running())
}

func TestScheduler_StartStopIdempotent(t *testing.T) {
	s, _ := newCountingScheduler(time.Hour)

	assert.False(t, s.Stop(), "stop while stopped")
	assert.True(t, s.Start())
	assert.False(t, s.Start(), "start while running")
	assert.True(t, s.Stop())
	assert.False(t, s.Stop())
	s.Wait()
	assert.False(t, s.Running())
}

func TestScheduler_Toggle(t *testing.T) {
	s, _ := newCountingScheduler(time.Hour)

	assert.True(t, s.Toggle())
	assert.True(t, s.Running())
	assert.False(t, s.Toggle())
	assert.False(t, s.Running())
	s.Wait()
}

func TestScheduler_NoScansAfterStop(t *testing.T) {
	s, scans := newCountingScheduler(time.Second)
	require.True(t, s.Start())
	require.Eventually(t, func() bool { return scans.Load() >= 1 }, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Wait()
	after := scans.Load()

	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, after, scans.Load())
}

func TestScheduler_SubSecondIntervalIsClamped(t *testing.T) {
	s, scans := newCountingScheduler(0)
	require.True(t, s.Start())

	time.Sleep(300 * time.Millisecond)
	s.Stop()
	s.Wait()
	assert.Equal(t, int64(1), scans.Load())
}

func TestScheduler_ParentCancelStopsLoop(t *testing.T) {
	s, _ := newCountingScheduler(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	s.Bind(ctx)
	require.True(t, s.Start())

	cancel()
	s.Wait()
	assert.False(t, s.Running())
	assert.False(t, s.Start(), "start after parent is done")
}

func TestScheduler_ToggleAfterParentDoneStaysStopped(t *testing.T) {
	s, scans := newCountingScheduler(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	s.Bind(ctx)
	cancel()

	assert.False(t, s.Toggle())
	assert.False(t, s.Running())
	s.Wait()
	assert.Zero(t, scans.Load())
}
