package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("booking lock not acquired")
)

// Locker serializes the re-validate-then-insert step of booking for one host and calendar day.
type Locker interface {
	WithHostDayLock(ctx context.Context, hostID uuid.UUID, day string, fn func(ctx context.Context) error) error
}

type redisHostDayLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisHostDayLocker creates a locker that uses a per host and day Redis key
func NewRedisHostDayLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisHostDayLocker{
		client: client,
		ttl:    ttl,
	}
}

func LockKey(hostID uuid.UUID, day string) string {
	return fmt.Sprintf("lock:host:%s:day:%s", hostID.String(), day)
}

func (l *redisHostDayLocker) WithHostDayLock(ctx context.Context, hostID uuid.UUID, day string, fn func(ctx context.Context) error) error {
	key := LockKey(hostID, day)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire booking lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisHostDayLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release booking lock: %w", err)
	}
	return nil
}
