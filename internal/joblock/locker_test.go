package joblock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedis connects to TEST_REDIS_URL and skips the test when it is not set or not
// reachable.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisLocker(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	locker := NewRedisLocker(client, "paidleave:test:"+uuid.NewString()+":")

	t.Run("Error_SecondObtainWhileHeld", func(t *testing.T) {
		lock, err := locker.Obtain(ctx, "payment-pipeline", time.Minute)
		require.NoError(t, err)
		defer func() { _ = lock.Release(ctx) }()

		_, err = locker.Obtain(ctx, "payment-pipeline", time.Minute)
		assert.ErrorIs(t, err, ErrNotObtained)
	})

	t.Run("Success_ObtainAfterRelease", func(t *testing.T) {
		lock, err := locker.Obtain(ctx, "case-writeback", time.Minute)
		require.NoError(t, err)
		require.NoError(t, lock.Release(ctx))

		again, err := locker.Obtain(ctx, "case-writeback", time.Minute)
		require.NoError(t, err)
		assert.NoError(t, again.Refresh(ctx, time.Minute))
		assert.NoError(t, again.Release(ctx))
	})

	t.Run("Error_RefreshAfterExpiry", func(t *testing.T) {
		lock, err := locker.Obtain(ctx, "payment-cancellation", 50*time.Millisecond)
		require.NoError(t, err)

		time.Sleep(150 * time.Millisecond)

		assert.ErrorIs(t, lock.Refresh(ctx, time.Minute), ErrLockLost)
		assert.NoError(t, lock.Release(ctx))
	})
}
