package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// EndpointLimiter enforces a tight fixed-window budget on a single
// sensitive endpoint (login, refresh, password reset), layered on top of
// the global sliding window. Callers that only penalize failures record an
// attempt on failure and call Reset on success, so successful requests never
// consume the budget.
type EndpointLimiter struct {
	redis       redis.UniversalClient
	prefix      string
	maxAttempts int
	cooldown    time.Duration
}

// NewEndpointLimiter creates a fixed-window limiter with the given budget.
func NewEndpointLimiter(redisClient redis.UniversalClient, prefix string, maxAttempts int, cooldown time.Duration) *EndpointLimiter {
	return &EndpointLimiter{
		redis:       redisClient,
		prefix:      prefix,
		maxAttempts: maxAttempts,
		cooldown:    cooldown,
	}
}

func (l *EndpointLimiter) key(id string) string {
	return l.prefix + ":" + id
}

// Check returns ErrRateLimited if the key has already exhausted its budget.
// It does not record an attempt.
func (l *EndpointLimiter) Check(ctx context.Context, id string) error {
	count, err := l.redis.Get(ctx, l.key(id)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(l.maxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Increment records an attempt and returns ErrRateLimited once the budget
// is exceeded.
func (l *EndpointLimiter) Increment(ctx context.Context, id string) error {
	count, err := l.redis.Incr(ctx, l.key(id)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: the TTL is set only by the first hit.
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(id), l.cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count > int64(l.maxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counter. Called after a successful request when the
// policy is to only penalize failures.
func (l *EndpointLimiter) Reset(ctx context.Context, id string) error {
	if err := l.redis.Del(ctx, l.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RetryAfter exposes the window size for rejection responses.
func (l *EndpointLimiter) RetryAfter() time.Duration {
	return l.cooldown
}
