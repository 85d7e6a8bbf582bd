package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBurstThenDeny(t *testing.T) {
	l := NewLocal(1, 3)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i)
	}
	d, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Second, d.RetryAfter)

	other, err := l.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "clients are independent")
	assert.Equal(t, 2, l.Len())
}

func TestLocalBoundsKeys(t *testing.T) {
	l := NewLocal(10, 1)
	for i := 0; i < defaultMaxKeys+50; i++ {
		_, _ = l.Allow(context.Background(), fmt.Sprintf("client-%d", i))
	}
	assert.Equal(t, defaultMaxKeys, l.Len())
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisFixedWindow(t *testing.T) {
	mr, client := newRedis(t)
	l := NewRedis(client, 2, time.Minute, "test")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := l.Allow(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)

	assert.True(t, mr.Exists("test:alice"))
	assert.Greater(t, mr.TTL("test:alice"), time.Duration(0))

	mr.FastForward(time.Minute + time.Second)
	d, err = l.Allow(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "new window after expiry")
}

func TestRedisReset(t *testing.T) {
	_, client := newRedis(t)
	l := NewRedis(client, 1, time.Minute, "")
	ctx := context.Background()

	d, _ := l.Allow(ctx, "bob")
	require.True(t, d.Allowed)
	d, _ = l.Allow(ctx, "bob")
	require.False(t, d.Allowed)

	require.NoError(t, l.Reset(ctx, "bob"))
	d, err := l.Allow(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisFailsOpen(t *testing.T) {
	mr, client := newRedis(t)
	l := NewRedis(client, 1, time.Minute, "test")
	mr.Close()

	d, err := l.Allow(context.Background(), "carol")
	assert.Error(t, err)
	assert.True(t, d.Allowed)
	assert.Error(t, l.Check(context.Background()))
}
