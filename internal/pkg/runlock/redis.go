package runlock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "lock:"

// releaseScript deletes the lock only if it still carries the holder's token, so an
// expired holder never frees a lock that was re-acquired by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ErrLockNotHeld is reported when a release finds the lock already expired or taken.
var ErrLockNotHeld = errors.New("lock not held")

// RedisLocker is a Locker shared by every instance using the same Redis. Locks expire
// after TTL so a crashed holder cannot block a key forever.
type RedisLocker struct {
	client       redis.Cmdable
	ttl          time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
}

type RedisOption func(*RedisLocker)

func WithPollInterval(d time.Duration) RedisOption {
	return func(l *RedisLocker) { l.pollInterval = d }
}

func WithLogger(logger *slog.Logger) RedisOption {
	return func(l *RedisLocker) { l.logger = logger }
}

func NewRedisLocker(client redis.Cmdable, ttl time.Duration, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		client:       client,
		ttl:          ttl,
		pollInterval: 50 * time.Millisecond,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	token := uuid.NewString()
	redisKey := keyPrefix + key

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release even if the caller's context is already cancelled.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := l.release(releaseCtx, redisKey, token); err != nil {
				l.logger.Warn("failed to release lock", "key", key, "error", err)
			}
		})
	}, nil
}

func (l *RedisLocker) release(ctx context.Context, redisKey, token string) error {
	deleted, err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Int()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrLockNotHeld
	}
	return nil
}
