package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/logging"
	sharedtesting "github.com/wms-platform/task-engine/pkg/testing"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	sharedtesting.SkipIfShort(t)
	ctx := context.Background()

	container, err := sharedtesting.NewRedisContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close(ctx) })

	client := container.Client()
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func quietLogger() *logging.Logger {
	cfg := logging.DefaultConfig("task-engine-test")
	cfg.Level = logging.LevelError
	return logging.New(cfg)
}

func TestRedisCoordination(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	t.Run("zone lock is mutually exclusive", func(t *testing.T) {
		lock := NewZoneLock(client, ZoneLockConfig{TTL: 5 * time.Second, PollInterval: 5 * time.Millisecond, WaitTimeout: 5 * time.Second}, quietLogger())

		var inside, maxInside int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				release, err := lock.Acquire(ctx, "WH-1", "A")
				if !assert.NoError(t, err) {
					return
				}
				n := atomic.AddInt32(&inside, 1)
				for {
					prev := atomic.LoadInt32(&maxInside)
					if n <= prev || atomic.CompareAndSwapInt32(&maxInside, prev, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				release()
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), atomic.LoadInt32(&maxInside))
	})

	t.Run("zone lock wait times out", func(t *testing.T) {
		lock := NewZoneLock(client, ZoneLockConfig{TTL: 5 * time.Second, PollInterval: 5 * time.Millisecond, WaitTimeout: 50 * time.Millisecond}, quietLogger())
		release, err := lock.Acquire(ctx, "WH-1", "B")
		require.NoError(t, err)
		defer release()

		_, err = lock.Acquire(ctx, "WH-1", "B")
		assert.ErrorIs(t, err, ErrLockTimeout)

		other, err := lock.Acquire(ctx, "WH-2", "B")
		require.NoError(t, err)
		other()
	})

	t.Run("stale release does not free a new owner", func(t *testing.T) {
		lock := NewZoneLock(client, ZoneLockConfig{TTL: 50 * time.Millisecond, PollInterval: 5 * time.Millisecond, WaitTimeout: time.Second}, quietLogger())
		first, err := lock.Acquire(ctx, "WH-1", "C")
		require.NoError(t, err)

		second, err := lock.Acquire(ctx, "WH-1", "C")
		require.NoError(t, err)
		first()

		held, err := client.Exists(ctx, zoneKey("WH-1", "C")).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), held)
		second()
	})

	t.Run("job lock elects one holder", func(t *testing.T) {
		lock := NewJobLock(client, quietLogger())
		release, acquired, err := lock.TryAcquire(ctx, "slotting", time.Minute)
		require.NoError(t, err)
		require.True(t, acquired)

		_, acquired, err = lock.TryAcquire(ctx, "slotting", time.Minute)
		require.NoError(t, err)
		assert.False(t, acquired)

		release()
		again, acquired, err := lock.TryAcquire(ctx, "slotting", time.Minute)
		require.NoError(t, err)
		assert.True(t, acquired)
		again()
	})

	t.Run("session cache", func(t *testing.T) {
		cache := NewSessionCache(client)

		_, err := cache.Get(ctx, "s-1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, cache.Touch(ctx, "s-1", time.Minute), domain.ErrNotFound)

		require.NoError(t, cache.Put(ctx, "s-1", "w-1", time.Minute))
		workerID, err := cache.Get(ctx, "s-1")
		require.NoError(t, err)
		assert.Equal(t, "w-1", workerID)
		require.NoError(t, cache.Touch(ctx, "s-1", time.Minute))

		require.NoError(t, cache.Delete(ctx, "s-1"))
		_, err = cache.Get(ctx, "s-1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
