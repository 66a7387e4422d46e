package admission

import "errors"

var (
	// ErrUnauthenticated is the umbrella rejection for any access-token
	// verification failure. The specific reason wraps it and is available
	// through errors.Is; HTTP responses never distinguish the reasons.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrTokenMalformed is returned when a token cannot be parsed at all.
	ErrTokenMalformed = errors.New("malformed token")
	// ErrTokenExpired is returned when a token's signature check or expiry
	// validation fails.
	ErrTokenExpired = errors.New("token expired or signature invalid")
	// ErrTokenRevoked is returned when a structurally valid access token is
	// present in the revocation registry.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrSubjectNotFound is returned when the token's subject no longer
	// resolves in the authoritative store.
	ErrSubjectNotFound = errors.New("subject not found")

	// ErrForbidden covers CSRF mismatches and role rejections.
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited is returned when admission control denies a request.
	ErrRateLimited = errors.New("rate limited")

	// ErrRefreshInvalid is returned when a refresh token fails signature
	// verification or has no live persisted record.
	ErrRefreshInvalid = errors.New("invalid refresh token")

	// ErrOneTimeInvalid is returned when a one-time token is unknown,
	// expired, or already consumed. The three cases are deliberately
	// indistinguishable to the caller.
	ErrOneTimeInvalid = errors.New("one-time token invalid")

	// ErrStoreUnavailable wraps key-value or relational store failures.
	ErrStoreUnavailable = errors.New("store unavailable")
)
