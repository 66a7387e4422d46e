// Package revocation tracks explicitly invalidated access tokens until
// their natural expiry. Entries carry a TTL equal to the token's remaining
// lifetime, so the registry self-cleans and never grows unbounded.
package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pacomedomagni/havenkeep-admission/internal"
)

// ErrRedisUnavailable wraps registry store failures.
var ErrRedisUnavailable = errors.New("revocation redis unavailable")

// FailMode decides what an unreachable registry means for verification.
// It is chosen once at startup from the configured environment.
type FailMode int

const (
	// FailOpen treats lookup failures as not-revoked. Development only.
	FailOpen FailMode = iota
	// FailClosed treats lookup failures as revoked, denying the request.
	// The production default: safety over availability.
	FailClosed
)

const minTTL = time.Second

// Registry is the access-token blacklist.
type Registry struct {
	redis  redis.UniversalClient
	prefix string
	mode   FailMode
}

// New creates a Registry with the given key prefix and failure posture.
func New(redisClient redis.UniversalClient, prefix string, mode FailMode) *Registry {
	if prefix == "" {
		prefix = "rvk"
	}
	return &Registry{
		redis:  redisClient,
		prefix: prefix,
		mode:   mode,
	}
}

func (r *Registry) key(token string) string {
	return r.prefix + ":" + internal.HashToken(token)
}

// Revoke stores a presence marker for the token. The TTL is clamped to at
// least one second so a marker is always written, and revoking an
// already-revoked token just refreshes the marker.
func (r *Registry) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl < minTTL {
		ttl = minTTL
	}
	if err := r.redis.Set(ctx, r.key(token), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether the token is blacklisted. When the store is
// unreachable the returned decision follows the configured FailMode and the
// wrapped store error is returned alongside it for logging.
func (r *Registry) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := r.redis.Exists(ctx, r.key(token)).Result()
	if err != nil {
		return r.mode == FailClosed, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}
