package store

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedisLock(t *testing.T) *RedisLock {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLock(rdb)
}

func TestRedisLock_AcquireSucceedsOnceThenFailsUntilReleased(t *testing.T) {
	lock := newTestRedisLock(t)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "cleanup:running", 10*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = lock.Acquire(ctx, "cleanup:running", 10*time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, lock.Release(ctx, "cleanup:running"))

	ok, err = lock.Acquire(ctx, "cleanup:running", 10*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}
