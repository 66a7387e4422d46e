// Package rate implements request-admission control: a distributed
// sliding-window limiter over the shared key-value store, a single-process
// in-memory variant, and fixed-window budgets for sensitive endpoints.
package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pacomedomagni/havenkeep-admission/internal"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Count      int64
	RetryAfter time.Duration
}

// Limiter is satisfied by both the distributed and the local sliding-window
// implementations.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Prune, insert, count, and refresh expiry in one script so the observed
// cardinality reflects every write the store has ordered before it.
// Client-side counting under-counts during bursts across replicas.
const slidingWindowScript = `
local cutoff = tonumber(ARGV[1]) - tonumber(ARGV[2])
redis.call("ZREMRANGEBYSCORE", KEYS[1], 0, cutoff)
redis.call("ZADD", KEYS[1], ARGV[1], ARGV[3])
local count = redis.call("ZCARD", KEYS[1])
redis.call("PEXPIRE", KEYS[1], ARGV[2])
return count
`

var slidingWindowLua = redis.NewScript(slidingWindowScript)

// SlidingWindow is the distributed limiter. Mandatory whenever more than one
// replica can run concurrently.
type SlidingWindow struct {
	redis  redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewSlidingWindow creates a distributed limiter admitting at most limit
// requests per key within the trailing window.
func NewSlidingWindow(redisClient redis.UniversalClient, prefix string, limit int, window time.Duration) *SlidingWindow {
	if prefix == "" {
		prefix = "rl"
	}
	return &SlidingWindow{
		redis:  redisClient,
		prefix: prefix,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow records the request and admits it iff the window cardinality stays
// within the limit. Rejected requests still count: a rejected burst keeps
// the key hot, which is the behavior brute-force budgets want.
func (l *SlidingWindow) Allow(ctx context.Context, key string) (Decision, error) {
	member, err := internal.NewOpaqueToken()
	if err != nil {
		return Decision{}, err
	}

	nowMs := l.now().UnixMilli()
	count, err := slidingWindowLua.Run(ctx, l.redis,
		[]string{l.prefix + ":" + key},
		strconv.FormatInt(nowMs, 10),
		strconv.FormatInt(l.window.Milliseconds(), 10),
		member,
	).Int64()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return Decision{
		Allowed:    count <= int64(l.limit),
		Count:      count,
		RetryAfter: l.window,
	}, nil
}
