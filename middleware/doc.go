// Package middleware provides the HTTP admission chain: correlation id,
// panic recovery, request logging, CSRF double-submit protection,
// sliding-window rate limiting, and the bearer-token guard. Rejections are
// terminal: they short-circuit the chain before business handlers run.
//
// The intended order, outermost first:
//
//	Correlation → Recovery → Logging → Csrf → RateLimit → Guard
//
// Csrf sits outside RateLimit so a request with a bad CSRF token is refused
// with 403 before it can consume any of the admission budget.
package middleware
