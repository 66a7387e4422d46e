package rate

import "errors"

var (
	// ErrRateLimited signals an admission denial.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps limiter store failures.
	ErrRedisUnavailable = errors.New("rate limiter redis unavailable")
)
