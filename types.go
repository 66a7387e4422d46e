package admission

import (
	"context"
	"time"
)

// Subject is the authoritative view of a token's owner, re-resolved from the
// relational store on every verification so plan/role changes and account
// deletion take effect before token expiry.
type Subject struct {
	ID     string
	Email  string
	Role   string
	Plan   string
	Status string
}

// TokenPair is the result of a successful issuance.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// OneTimePurpose distinguishes the single-use token families sharing the
// ledger's atomic-consume discipline.
type OneTimePurpose string

const (
	// PurposePasswordReset marks tokens minted for password-reset links.
	PurposePasswordReset OneTimePurpose = "password_reset"
	// PurposeEmailVerification marks tokens minted for address verification.
	PurposeEmailVerification OneTimePurpose = "email_verification"
)

// SubjectDirectory resolves a subject id against the authoritative
// relational store. Lookup returns ErrSubjectNotFound when the account no
// longer exists.
type SubjectDirectory interface {
	Lookup(ctx context.Context, subjectID string) (*Subject, error)
}

// RefreshTokenRecord is the persisted half of a refresh token. Tokens are
// stored by hash, never raw.
type RefreshTokenRecord struct {
	SubjectID string
	ExpiresAt time.Time
}

// RefreshTokenStore persists refresh-token records. Find returns
// ErrRefreshInvalid when no record exists for the hash.
type RefreshTokenStore interface {
	Save(ctx context.Context, tokenHash, subjectID string, expiresAt time.Time) error
	Find(ctx context.Context, tokenHash string) (*RefreshTokenRecord, error)
	Delete(ctx context.Context, tokenHash string) error
	DeleteAllForSubject(ctx context.Context, subjectID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// OneTimeTokenStore is the ledger backing password-reset and
// email-verification tokens.
//
// Issue replaces any unconsumed tokens of the same purpose for the subject.
// Consume must be atomic: mark consumed and return the owner only if the
// token is unconsumed and unexpired; a racing second call sees zero rows and
// gets ErrOneTimeInvalid.
type OneTimeTokenStore interface {
	Issue(ctx context.Context, purpose OneTimePurpose, subjectID, tokenHash string, expiresAt time.Time) error
	Consume(ctx context.Context, purpose OneTimePurpose, tokenHash string) (subjectID string, err error)
	DeletePending(ctx context.Context, purpose OneTimePurpose, subjectID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
