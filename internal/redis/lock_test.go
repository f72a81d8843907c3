package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockKey(t *testing.T) {
	host := uuid.MustParse("7b0c1f4e-5d0a-4c61-9a38-1f5b9f0d2c11")

	assert.Equal(t, "lock:host:7b0c1f4e-5d0a-4c61-9a38-1f5b9f0d2c11:day:2026-10-19", LockKey(host, "2026-10-19"))
	assert.NotEqual(t, LockKey(host, "2026-10-19"), LockKey(host, "2026-10-20"))
}

func newTestLocker(t *testing.T) (*miniredis.Miniredis, Locker) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisHostDayLocker(client, 5*time.Second)
}

func TestWithHostDayLock(t *testing.T) {
	ctx := context.Background()
	host := uuid.New()
	key := LockKey(host, "2026-10-19")

	t.Run("holds the key while fn runs and releases it", func(t *testing.T) {
		mr, locker := newTestLocker(t)

		called := false
		err := locker.WithHostDayLock(ctx, host, "2026-10-19", func(ctx context.Context) error {
			called = true
			assert.True(t, mr.Exists(key))
			assert.Equal(t, 5*time.Second, mr.TTL(key))
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return nil
		})
		require.NoError(t, err)
		assert.True(t, called)
		assert.False(t, mr.Exists(key))
	})

	t.Run("already held", func(t *testing.T) {
		mr, locker := newTestLocker(t)
		require.NoError(t, mr.Set(key, "other-request"))

		err := locker.WithHostDayLock(ctx, host, "2026-10-19", func(context.Context) error {
			t.Fatal("fn must not run without the lock")
			return nil
		})
		assert.ErrorIs(t, err, ErrLockNotAcquired)

		held, err := mr.Get(key)
		require.NoError(t, err)
		assert.Equal(t, "other-request", held)
	})

	t.Run("other days are independent", func(t *testing.T) {
		mr, locker := newTestLocker(t)
		require.NoError(t, mr.Set(LockKey(host, "2026-10-20"), "other-request"))

		err := locker.WithHostDayLock(ctx, host, "2026-10-19", func(context.Context) error { return nil })
		assert.NoError(t, err)
	})

	t.Run("fn error is returned and the lock released", func(t *testing.T) {
		mr, locker := newTestLocker(t)
		boom := errors.New("insert failed")

		err := locker.WithHostDayLock(ctx, host, "2026-10-19", func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.False(t, mr.Exists(key))
	})

	t.Run("release leaves a lock taken over by someone else", func(t *testing.T) {
		mr, locker := newTestLocker(t)

		err := locker.WithHostDayLock(ctx, host, "2026-10-19", func(context.Context) error {
			// our TTL ran out and another request acquired the key
			return mr.Set(key, "next-owner")
		})
		require.NoError(t, err)

		held, err := mr.Get(key)
		require.NoError(t, err)
		assert.Equal(t, "next-owner", held)
	})

	t.Run("redis unavailable", func(t *testing.T) {
		mr, locker := newTestLocker(t)
		mr.Close()

		err := locker.WithHostDayLock(ctx, host, "2026-10-19", func(context.Context) error {
			t.Fatal("fn must not run without the lock")
			return nil
		})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrLockNotAcquired)
	})
}
