package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisAttemptsPrefix = "authgate:login:attempts:"
	redisLockPrefix     = "authgate:login:lock:"
)

// incrWithTTL bumps the counter and gives it the window TTL whenever it has none,
// so a counter can never outlive its window.
var incrWithTTL = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// RedisAttemptLimiter shares counters between replicas through Redis.
// The attempts key expires with the window; the lock key with the lock duration.
type RedisAttemptLimiter struct {
	rdb    redis.UniversalClient
	policy LimiterPolicy
}

func NewRedisAttemptLimiter(rdb redis.UniversalClient, p LimiterPolicy) *RedisAttemptLimiter {
	return &RedisAttemptLimiter{rdb: rdb, policy: p}
}

var _ AttemptLimiter = (*RedisAttemptLimiter)(nil)

func (l *RedisAttemptLimiter) Locked(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := l.rdb.PTTL(ctx, redisLockPrefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("read login lock: %w", err)
	}
	// -2: no key, -1: no expiry (never set by us)
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (l *RedisAttemptLimiter) Fail(ctx context.Context, key string) (int, error) {
	attemptsKey := redisAttemptsPrefix + key

	n, err := incrWithTTL.Run(ctx, l.rdb, []string{attemptsKey}, l.policy.Window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("record login failure: %w", err)
	}

	count := int(n)
	if count < l.policy.MaxAttempts {
		return l.policy.MaxAttempts - count, nil
	}

	_, err = l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisLockPrefix+key, 1, l.policy.LockDuration)
		pipe.Del(ctx, attemptsKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("lock login: %w", err)
	}
	return 0, nil
}

func (l *RedisAttemptLimiter) Reset(ctx context.Context, key string) error {
	err := l.rdb.Del(ctx, redisAttemptsPrefix+key, redisLockPrefix+key).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("reset login attempts: %w", err)
	}
	return nil
}
