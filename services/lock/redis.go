package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/sahilchouksey/course-enrollment/utils/cache"
)

const (
	redisLockPrefix    = "lock:course:"
	defaultPollDelay   = 25 * time.Millisecond
	maxPollDelay       = 200 * time.Millisecond
	releaseCallTimeout = 2 * time.Second
)

// RedisLocker is a Locker shared between replicas. Each lock is a key set with
// NX and a TTL, owned through a random token so only the holder can release it.
type RedisLocker struct {
	cache *cache.RedisCache
	ttl   time.Duration
	wait  time.Duration
}

// NewRedisLocker creates a locker whose keys expire after ttl. Lock gives up
// after wait.
func NewRedisLocker(c *cache.RedisCache, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{cache: c, ttl: ttl, wait: wait}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := redisLockPrefix + key
	token := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	delay := defaultPollDelay
	for {
		ok, err := l.cache.SetNX(ctx, redisKey, token, l.ttl)
		if err == nil && ok {
			break
		}
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			if ctx.Err() == context.DeadlineExceeded {
				return nil, ErrLockTimeout
			}
			return nil, ctx.Err()
		case <-timer.C:
		}
		if delay < maxPollDelay {
			delay *= 2
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), releaseCallTimeout)
		defer cancel()
		released, err := l.cache.DeleteIfEquals(releaseCtx, redisKey, token)
		if err != nil {
			log.Errorf("[LOCK] Failed to release %s: %v", redisKey, err)
			return
		}
		if !released {
			l.warnExpired(releaseCtx, redisKey)
		}
	}, nil
}

// warnExpired reports a lock that outlived its ttl, noting whether another
// holder has taken the key since
func (l *RedisLocker) warnExpired(ctx context.Context, redisKey string) {
	if remaining, taken := l.heldElsewhere(ctx, redisKey); taken {
		log.Warnf("[LOCK] %s expired before release and is now held by another owner (ttl %v)", redisKey, remaining)
		return
	}
	log.Warnf("[LOCK] %s expired before release (ttl %v)", redisKey, l.ttl)
}

// heldElsewhere reports whether redisKey exists and, if so, its remaining ttl.
// A key without expiry reports -1.
func (l *RedisLocker) heldElsewhere(ctx context.Context, redisKey string) (time.Duration, bool) {
	remaining, err := l.cache.TTL(ctx, redisKey)
	if err != nil || remaining == -2 {
		return 0, false
	}
	return remaining, true
}
