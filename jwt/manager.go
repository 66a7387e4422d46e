// Package jwt signs and parses the access/refresh token pair. Access tokens
// carry subject plus plan/role claims; refresh tokens carry only the subject
// and are signed with a distinct secret so neither kind can stand in for the
// other.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Config holds signing material and lifetimes for both token kinds.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

// Manager issues and verifies tokens. Safe for concurrent use.
type Manager struct {
	config Config
}

// AccessClaims is the access-token payload.
type AccessClaims struct {
	Plan string `json:"plan,omitempty"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims is the refresh-token payload: registered claims only.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// NewManager validates the configuration and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if len(cfg.AccessSecret) == 0 {
		return nil, errors.New("hs256 requires an access secret")
	}
	if len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("hs256 requires a refresh secret")
	}
	return &Manager{config: cfg}, nil
}

// CreateAccess signs an access token for the subject with the given
// plan/role claims and returns the token plus its expiry.
func (m *Manager) CreateAccess(subjectID, plan, role string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.config.AccessTTL)

	claims := AccessClaims{
		Plan: plan,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			// The jti keeps tokens unique even when two are minted for the
			// same subject within one clock second.
			ID:        uuid.NewString(),
			Subject:   subjectID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.AccessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// CreateRefresh signs a refresh token carrying only the subject id.
func (m *Manager) CreateRefresh(subjectID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.config.RefreshTTL)

	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.RefreshSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ParseAccess verifies signature, expiry, and issuer of an access token.
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(tokenStr, claims, m.config.AccessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseRefresh verifies signature, expiry, and issuer of a refresh token.
func (m *Manager) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(tokenStr, claims, m.config.RefreshSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *Manager) parse(tokenStr string, claims jwt.Claims, secret []byte) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}

// IsMalformed reports whether the parse failure means the string is not a
// token at all, as opposed to a token failing validation.
func IsMalformed(err error) bool {
	return errors.Is(err, jwt.ErrTokenMalformed)
}

// IsExpired reports whether the parse failure is an expiry rejection.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
