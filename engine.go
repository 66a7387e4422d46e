package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pacomedomagni/havenkeep-admission/internal"
	"github.com/pacomedomagni/havenkeep-admission/internal/rate"
	"github.com/pacomedomagni/havenkeep-admission/internal/revocation"
	"github.com/pacomedomagni/havenkeep-admission/jwt"
)

// Deps are the externally owned collaborators injected into the engine.
// Nothing here is constructed implicitly; tests substitute fakes.
type Deps struct {
	Redis    redis.UniversalClient
	Subjects SubjectDirectory
	Refresh  RefreshTokenStore
	OneTime  OneTimeTokenStore
	Logger   *slog.Logger
}

// Engine is the session facade: token issuance, verification with
// revocation and subject re-resolution, refresh rotation, logout, and the
// one-time token flows.
type Engine struct {
	cfg      Config
	tokens   *jwt.Manager
	registry *revocation.Registry
	subjects SubjectDirectory
	refresh  RefreshTokenStore
	onetime  OneTimeTokenStore
	logger   *slog.Logger

	loginLimiter   *rate.EndpointLimiter
	refreshLimiter *rate.EndpointLimiter
	resetLimiter   *rate.EndpointLimiter
}

// NewEngine validates the config and wires the engine. The fail mode of the
// revocation registry is derived from the environment here, once.
func NewEngine(cfg Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if deps.Subjects == nil || deps.Refresh == nil || deps.OneTime == nil {
		return nil, errors.New("subject, refresh, and one-time stores are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	manager, err := jwt.NewManager(jwt.Config{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	mode := revocation.FailOpen
	if cfg.Environment == EnvProduction {
		mode = revocation.FailClosed
	}

	rl := cfg.RateLimit
	return &Engine{
		cfg:            cfg,
		tokens:         manager,
		registry:       revocation.New(deps.Redis, cfg.RedisPrefix+":rvk", mode),
		subjects:       deps.Subjects,
		refresh:        deps.Refresh,
		onetime:        deps.OneTime,
		logger:         deps.Logger,
		loginLimiter:   rate.NewEndpointLimiter(deps.Redis, cfg.RedisPrefix+":login", rl.LoginMaxAttempts, rl.LoginCooldown),
		refreshLimiter: rate.NewEndpointLimiter(deps.Redis, cfg.RedisPrefix+":refresh", rl.RefreshMaxAttempts, rl.RefreshCooldown),
		resetLimiter:   rate.NewEndpointLimiter(deps.Redis, cfg.RedisPrefix+":reset", rl.ResetMaxAttempts, rl.ResetCooldown),
	}, nil
}

// Issue signs a fresh access/refresh pair for the subject and persists the
// refresh-token record. Called on login, registration, and OAuth success.
func (e *Engine) Issue(ctx context.Context, subjectID, plan, role string) (*TokenPair, error) {
	access, accessExp, err := e.tokens.CreateAccess(subjectID, plan, role)
	if err != nil {
		return nil, err
	}

	refresh, refreshExp, err := e.tokens.CreateRefresh(subjectID)
	if err != nil {
		return nil, err
	}

	if err := e.refresh.Save(ctx, internal.HashToken(refresh), subjectID, refreshExp); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Verify checks an access token's signature and expiry, rejects revoked
// tokens, and re-resolves the subject from the authoritative store so that
// plan/role changes and account deletion take effect immediately.
//
// Every failure wraps ErrUnauthenticated; the specific reason is available
// through errors.Is but is never surfaced to clients.
func (e *Engine) Verify(ctx context.Context, accessToken string) (*Subject, error) {
	claims, err := e.tokens.ParseAccess(accessToken)
	if err != nil {
		if jwt.IsMalformed(err) {
			return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, ErrTokenMalformed)
		}
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, ErrTokenExpired)
	}

	revoked, err := e.registry.IsRevoked(ctx, accessToken)
	if err != nil {
		// The decision already reflects the configured fail mode; the error
		// is only for the log.
		e.logger.Warn("revocation lookup failed", "error", err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, ErrTokenRevoked)
	}

	subject, err := e.subjects.Lookup(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrSubjectNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, ErrSubjectNotFound)
		}
		return nil, err
	}
	return subject, nil
}

// Refresh verifies the refresh token against its persisted record and mints
// a new access token. The refresh token itself is not rotated: it survives
// until logout, password change, or expiry. When the superseded access
// token is supplied and still valid it is blacklisted for its remaining
// lifetime so it cannot be replayed after rotation.
func (e *Engine) Refresh(ctx context.Context, refreshToken, currentAccessToken string) (string, error) {
	claims, err := e.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRefreshInvalid, err)
	}

	if err := e.refreshLimiter.Increment(ctx, claims.Subject); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			return "", ErrRateLimited
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	record, err := e.refresh.Find(ctx, internal.HashToken(refreshToken))
	if err != nil {
		return "", err
	}
	if time.Now().After(record.ExpiresAt) {
		return "", ErrRefreshInvalid
	}

	if currentAccessToken != "" {
		e.revokeIfLive(ctx, currentAccessToken)
	}

	subject, err := e.subjects.Lookup(ctx, record.SubjectID)
	if err != nil {
		if errors.Is(err, ErrSubjectNotFound) {
			return "", fmt.Errorf("%w: %w", ErrUnauthenticated, ErrSubjectNotFound)
		}
		return "", err
	}

	access, _, err := e.tokens.CreateAccess(subject.ID, subject.Plan, subject.Role)
	if err != nil {
		return "", err
	}
	return access, nil
}

// Logout revokes the presented access token and deletes the refresh record
// for this session only. Other devices stay signed in.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) error {
	e.revokeIfLive(ctx, accessToken)
	return e.refresh.Delete(ctx, internal.HashToken(refreshToken))
}

// RevokeAll revokes the presented access token and deletes every persisted
// refresh-token record for the subject, forcing re-authentication
// everywhere. Used on password change and account deletion.
func (e *Engine) RevokeAll(ctx context.Context, subjectID, currentAccessToken string) error {
	e.revokeIfLive(ctx, currentAccessToken)

	n, err := e.refresh.DeleteAllForSubject(ctx, subjectID)
	if err != nil {
		return err
	}
	e.logger.Info("revoked all sessions", "subject", subjectID, "refresh_tokens", n)
	return nil
}

// revokeIfLive blacklists an access token for its remaining lifetime. An
// already-expired or unparsable token needs no registry entry: verification
// rejects it anyway.
func (e *Engine) revokeIfLive(ctx context.Context, accessToken string) {
	claims, err := e.tokens.ParseAccess(accessToken)
	if err != nil || claims.ExpiresAt == nil {
		return
	}
	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		return
	}
	if err := e.registry.Revoke(ctx, accessToken, remaining); err != nil {
		e.logger.Warn("access token revocation failed", "error", err)
	}
}

// IssuePasswordReset mints a single-use reset token for the subject,
// invalidating any earlier unconsumed reset tokens. The raw token is
// returned for delivery and only its hash is persisted.
func (e *Engine) IssuePasswordReset(ctx context.Context, subjectID string) (string, error) {
	return e.issueOneTime(ctx, PurposePasswordReset, subjectID, e.cfg.OneTime.ResetTTL)
}

// ConsumePasswordReset atomically consumes a reset token and returns its
// owner. The reset endpoint budget counts failed consumptions only.
func (e *Engine) ConsumePasswordReset(ctx context.Context, token string) (string, error) {
	if err := e.resetLimiter.Check(ctx, internal.HashToken(token)); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			return "", ErrRateLimited
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	subjectID, err := e.onetime.Consume(ctx, PurposePasswordReset, internal.HashToken(token))
	if err != nil {
		if errors.Is(err, ErrOneTimeInvalid) {
			if incErr := e.resetLimiter.Increment(ctx, internal.HashToken(token)); incErr != nil && !errors.Is(incErr, rate.ErrRateLimited) {
				e.logger.Warn("reset limiter increment failed", "error", incErr)
			}
		}
		return "", err
	}
	return subjectID, nil
}

// IssueEmailVerification mints a single-use verification token for the
// subject, invalidating earlier pending ones.
func (e *Engine) IssueEmailVerification(ctx context.Context, subjectID string) (string, error) {
	return e.issueOneTime(ctx, PurposeEmailVerification, subjectID, e.cfg.OneTime.VerificationTTL)
}

// ConsumeEmailVerification atomically consumes a verification token and
// deletes any other pending verification tokens for the subject.
func (e *Engine) ConsumeEmailVerification(ctx context.Context, token string) (string, error) {
	subjectID, err := e.onetime.Consume(ctx, PurposeEmailVerification, internal.HashToken(token))
	if err != nil {
		return "", err
	}
	if err := e.onetime.DeletePending(ctx, PurposeEmailVerification, subjectID); err != nil {
		e.logger.Warn("stale verification cleanup failed", "subject", subjectID, "error", err)
	}
	return subjectID, nil
}

func (e *Engine) issueOneTime(ctx context.Context, purpose OneTimePurpose, subjectID string, ttl time.Duration) (string, error) {
	token, err := internal.NewOpaqueToken()
	if err != nil {
		return "", err
	}
	if err := e.onetime.Issue(ctx, purpose, subjectID, internal.HashToken(token), time.Now().Add(ttl)); err != nil {
		return "", err
	}
	return token, nil
}

// SweepExpired deletes expired refresh and one-time token rows. Wired as
// the daily scheduler payload; failures are reported, not fatal.
func (e *Engine) SweepExpired(ctx context.Context) error {
	now := time.Now()

	refreshN, err := e.refresh.DeleteExpired(ctx, now)
	if err != nil {
		return err
	}
	onetimeN, err := e.onetime.DeleteExpired(ctx, now)
	if err != nil {
		return err
	}

	e.logger.Info("expired token sweep", "refresh_tokens", refreshN, "one_time_tokens", onetimeN)
	return nil
}

// CheckLogin returns ErrRateLimited when the identifier has exhausted its
// failed-login budget.
func (e *Engine) CheckLogin(ctx context.Context, identifier string) error {
	err := e.loginLimiter.Check(ctx, identifier)
	if errors.Is(err, rate.ErrRateLimited) {
		return ErrRateLimited
	}
	return err
}

// RecordLoginFailure counts a failed login attempt against the identifier.
func (e *Engine) RecordLoginFailure(ctx context.Context, identifier string) error {
	err := e.loginLimiter.Increment(ctx, identifier)
	if errors.Is(err, rate.ErrRateLimited) {
		return ErrRateLimited
	}
	return err
}

// RecordLoginSuccess clears the identifier's failure counter: successful
// logins never consume the budget.
func (e *Engine) RecordLoginSuccess(ctx context.Context, identifier string) error {
	return e.loginLimiter.Reset(ctx, identifier)
}
