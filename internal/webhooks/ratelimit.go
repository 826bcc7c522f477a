package webhooks

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/relaycrm/relaycrm/internal/logging"
	"go.uber.org/zap"
)

// Limiter bounds inbound request rates per caller before any expensive work.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimitClient is the slice of the Redis API the limiter uses.
// *redis.Client satisfies it.
type RateLimitClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// RedisLimiter is a fixed-window counter in Redis: INCR per key, EXPIRE on the
// first hit of a window. Counting is shared across instances so the limit
// holds for the deployment, not per process.
type RedisLimiter struct {
	client RateLimitClient
	limit  int64
	window time.Duration
	logger logging.Logger
}

// NewRedisLimiter creates a limiter allowing `limit` requests per `window`.
func NewRedisLimiter(client RateLimitClient, limit int64, window time.Duration, logger logging.Logger) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		logger: logger.With(zap.String("component", "ratelimit")),
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("ratelimit:inbound:%s", key)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		// Fail open: a Redis outage must not take the gateway down with it.
		l.logger.Warn("rate limit check failed, allowing request",
			zap.String("key", key),
			zap.Error(err),
		)
		return true, nil
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			l.logger.Warn("failed to set rate limit window",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	} else if count > l.limit {
		// If the first hit's EXPIRE was lost the key would count forever and
		// lock the caller out permanently. Re-arm the window before denying.
		l.rearmWindow(ctx, key, redisKey)
	}
	return count <= l.limit, nil
}

// rearmWindow restores the expiry on a key that has none. go-redis reports a
// key without expiry as a TTL of -1.
func (l *RedisLimiter) rearmWindow(ctx context.Context, key, redisKey string) {
	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl != time.Duration(-1) {
		return
	}
	l.logger.Warn("rate limit key had no expiry, re-arming window",
		zap.String("key", key),
	)
	if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
		l.logger.Warn("failed to re-arm rate limit window",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// UnlimitedLimiter allows everything. Used in tests and when no Redis is
// configured.
type UnlimitedLimiter struct{}

func (UnlimitedLimiter) Allow(_ context.Context, _ string) (bool, error) { return true, nil }
