package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (Locker, *miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisLocker(rdb, 5*time.Second), mr, rdb
}

func TestWithLockRunsAndReleases(t *testing.T) {
	locker, mr, _ := newTestLocker(t)
	ctx := context.Background()

	ran := false
	err := locker.WithLock(ctx, "date:2025-12-01", func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists("lock:date:2025-12-01"), "lock key should be held inside fn")
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists("lock:date:2025-12-01"), "lock key should be released")
}

func TestWithLockContended(t *testing.T) {
	locker, _, _ := newTestLocker(t)
	ctx := context.Background()

	err := locker.WithLock(ctx, "date:2025-12-01", func(ctx context.Context) error {
		inner := locker.WithLock(ctx, "date:2025-12-01", func(ctx context.Context) error {
			t.Fatal("nested holder must not run")
			return nil
		})
		assert.ErrorIs(t, inner, ErrLockNotAcquired)

		other := locker.WithLock(ctx, "date:2025-12-02", func(ctx context.Context) error { return nil })
		assert.NoError(t, other, "different keys do not contend")
		return nil
	})
	require.NoError(t, err)
}

func TestWithLockPropagatesError(t *testing.T) {
	locker, mr, _ := newTestLocker(t)
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), "k", func(ctx context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:k"))
}

func TestReleaseKeepsForeignToken(t *testing.T) {
	locker, mr, rdb := newTestLocker(t)
	ctx := context.Background()

	err := locker.WithLock(ctx, "k", func(ctx context.Context) error {
		// simulate expiry and takeover by another holder
		require.NoError(t, rdb.Set(ctx, "lock:k", "someone-else", time.Minute).Err())
		return nil
	})
	require.NoError(t, err)

	got, err := mr.Get("lock:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}
