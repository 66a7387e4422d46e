package admission

import (
	"bytes"
	"errors"
	"time"
)

// Environment selects the fail-open/fail-closed posture of the subsystem.
// It is evaluated exactly once, in NewEngine, and never re-derived from
// ambient process state afterwards.
type Environment int

const (
	// EnvDevelopment fails open when the key-value store is unreachable:
	// revocation lookups treat the token as not revoked.
	EnvDevelopment Environment = iota
	// EnvProduction fails closed: an unreachable revocation registry means
	// every token is treated as revoked.
	EnvProduction
)

// Config holds all tuning for the admission subsystem. Instances are
// validated once and treated as immutable afterwards.
type Config struct {
	Environment Environment
	RedisPrefix string

	JWT       JWTConfig
	RateLimit RateLimitConfig
	CSRF      CSRFConfig
	OneTime   OneTimeConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures token signing. Access and refresh tokens are signed
// with distinct secrets so the two kinds are never mutually forgeable.
type JWTConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig tunes the global sliding window plus the fixed-window
// budgets guarding the sensitive auth endpoints.
type RateLimitConfig struct {
	// Distributed must be true whenever more than one replica can run
	// concurrently; local counting multiplies the effective limit by the
	// replica count.
	Distributed bool
	MaxRequests int
	Window      time.Duration

	LoginMaxAttempts   int
	LoginCooldown      time.Duration
	RefreshMaxAttempts int
	RefreshCooldown    time.Duration
	ResetMaxAttempts   int
	ResetCooldown      time.Duration
}

// CSRFConfig tunes the double-submit cookie guard.
type CSRFConfig struct {
	CookieName string
	HeaderName string
	MaxAge     time.Duration
}

// OneTimeConfig sets lifetimes for single-use tokens.
type OneTimeConfig struct {
	ResetTTL        time.Duration
	VerificationTTL time.Duration
}

// DefaultConfig returns a development-oriented preset. Secrets must still be
// supplied by the caller.
func DefaultConfig() Config {
	return Config{
		Environment: EnvDevelopment,
		RedisPrefix: "hk",
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "havenkeep",
			Leeway:     30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Distributed:        false,
			MaxRequests:        300,
			Window:             time.Minute,
			LoginMaxAttempts:   5,
			LoginCooldown:      15 * time.Minute,
			RefreshMaxAttempts: 30,
			RefreshCooldown:    time.Minute,
			ResetMaxAttempts:   3,
			ResetCooldown:      time.Hour,
		},
		CSRF: CSRFConfig{
			CookieName: "hk_csrf",
			HeaderName: "X-CSRF-Token",
			MaxAge:     24 * time.Hour,
		},
		OneTime: OneTimeConfig{
			ResetTTL:        time.Hour,
			VerificationTTL: 24 * time.Hour,
		},
	}
}

// ProductionConfig returns the preset for clustered deployment: fail-closed
// revocation and mandatory distributed rate limiting.
func ProductionConfig() Config {
	cfg := DefaultConfig()
	cfg.Environment = EnvProduction
	cfg.RateLimit.Distributed = true
	cfg.RateLimit.MaxRequests = 100
	return cfg
}

// Validate checks invariants the rest of the subsystem relies on.
func (c *Config) Validate() error {
	if len(c.JWT.AccessSecret) == 0 || len(c.JWT.RefreshSecret) == 0 {
		return errors.New("access and refresh signing secrets are required")
	}
	if bytes.Equal(c.JWT.AccessSecret, c.JWT.RefreshSecret) {
		return errors.New("access and refresh signing secrets must differ")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.AccessTTL > time.Hour {
		return errors.New("access TTL must be in (0, 1h]")
	}
	if c.JWT.RefreshTTL < 7*24*time.Hour {
		return errors.New("refresh TTL must be at least 7 days")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("invalid leeway configuration")
	}
	if c.RateLimit.MaxRequests <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit window and budget must be positive")
	}
	if c.CSRF.CookieName == "" || c.CSRF.HeaderName == "" {
		return errors.New("csrf cookie and header names are required")
	}
	if c.CSRF.MaxAge <= 0 {
		return errors.New("csrf cookie lifetime must be positive")
	}
	if c.OneTime.ResetTTL <= 0 || c.OneTime.VerificationTTL <= 0 {
		return errors.New("one-time token lifetimes must be positive")
	}
	return nil
}
