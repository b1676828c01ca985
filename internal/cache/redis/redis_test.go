package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbengine/internal/cache/redis"
	"github.com/alanyoungcy/arbengine/internal/domain"
)

func newClient(t *testing.T, prefix string) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := redis.New(context.Background(), redis.ClientConfig{
		Addr:         mr.Addr(),
		PoolSize:     4,
		KeyPrefix:    prefix,
		StreamMaxLen: 100,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestNew_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = redis.New(context.Background(), redis.ClientConfig{Addr: addr})
	assert.Error(t, err)
}

func TestLockManager_AcquireRelease(t *testing.T) {
	c, mr := newClient(t, "arbengine:")
	lm := redis.NewLockManager(c)
	ctx := context.Background()

	unlock, err := lm.Acquire(ctx, "automation:scan", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("arbengine:lock:automation:scan"))

	_, err = lm.Acquire(ctx, "automation:scan", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock()
	assert.False(t, mr.Exists("arbengine:lock:automation:scan"))

	unlock2, err := lm.Acquire(ctx, "automation:scan", time.Minute)
	require.NoError(t, err)
	unlock2()
}

func TestLockManager_ExpiredHolderCannotReleaseNextHolder(t *testing.T) {
	c, mr := newClient(t, "")
	lm := redis.NewLockManager(c)
	ctx := context.Background()

	stale, err := lm.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := lm.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	defer fresh()

	stale()
	assert.True(t, mr.Exists("lock:k"), "stale unlock must not delete the new holder's key")
}

func TestSignalBus_PublishSubscribe(t *testing.T) {
	c, _ := newClient(t, "")
	bus := redis.NewSignalBus(c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := bus.Subscribe(ctx, "ch:automation:*")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, domain.ChannelExecution, []byte(`{"id":"1"}`)))

	select {
	case got := <-msgs:
		assert.JSONEq(t, `{"id":"1"}`, string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}

	cancel()
	select {
	case _, open := <-msgs:
		assert.False(t, open, "channel closes on cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed after cancel")
	}
}

func TestSignalBus_Streams(t *testing.T) {
	c, mr := newClient(t, "arbengine:")
	bus := redis.NewSignalBus(c)
	ctx := context.Background()

	empty, err := bus.StreamRead(ctx, domain.StreamExecutions, "0", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, bus.StreamAppend(ctx, domain.StreamExecutions, []byte(p)))
	}

	first, err := bus.StreamRead(ctx, domain.StreamExecutions, "0", 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "a", string(first[0].Payload))
	assert.Equal(t, "b", string(first[1].Payload))

	rest, err := bus.StreamRead(ctx, domain.StreamExecutions, first[1].ID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "c", string(rest[0].Payload))

	assert.True(t, mr.Exists("arbengine:"+domain.StreamExecutions))
	assert.False(t, mr.Exists(domain.StreamExecutions))
}

func TestClient_Ping(t *testing.T) {
	c, mr := newClient(t, "")
	require.NoError(t, c.Ping(context.Background()))

	mr.Close()
	assert.Error(t, c.Ping(context.Background()))
}
