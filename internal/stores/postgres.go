// Package stores provides the PostgreSQL-backed collaborators of the
// admission engine: subject lookup, refresh-token records, and the one-time
// token ledger.
package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	admission "github.com/pacomedomagni/havenkeep-admission"
)

var (
	_ admission.SubjectDirectory  = (*PostgresSubjectDirectory)(nil)
	_ admission.RefreshTokenStore = (*PostgresRefreshTokenStore)(nil)
	_ admission.OneTimeTokenStore = (*PostgresOneTimeTokenStore)(nil)
)

// PostgresSubjectDirectory resolves subject ids against the users table
// owned by the wider application.
type PostgresSubjectDirectory struct {
	db *pgxpool.Pool
}

// NewPostgresSubjectDirectory constructs a directory bound to the pool.
func NewPostgresSubjectDirectory(db *pgxpool.Pool) *PostgresSubjectDirectory {
	return &PostgresSubjectDirectory{db: db}
}

// Lookup returns the current view of the subject, or ErrSubjectNotFound.
func (d *PostgresSubjectDirectory) Lookup(ctx context.Context, subjectID string) (*admission.Subject, error) {
	query := `
		SELECT id, email, role, plan, status
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`
	subject := &admission.Subject{}
	err := d.db.QueryRow(ctx, query, subjectID).Scan(
		&subject.ID, &subject.Email, &subject.Role, &subject.Plan, &subject.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, admission.ErrSubjectNotFound
		}
		return nil, fmt.Errorf("%w: %v", admission.ErrStoreUnavailable, err)
	}
	return subject, nil
}

// PostgresRefreshTokenStore persists refresh-token records by token hash.
type PostgresRefreshTokenStore struct {
	db *pgxpool.Pool
}

// NewPostgresRefreshTokenStore constructs a store bound to the pool.
func NewPostgresRefreshTokenStore(db *pgxpool.Pool) *PostgresRefreshTokenStore {
	return &PostgresRefreshTokenStore{db: db}
}

// Save inserts a refresh-token record.
func (s *PostgresRefreshTokenStore) Save(ctx context.Context, tokenHash, subjectID string, expiresAt time.Time) error {
	query := `
		INSERT INTO refresh_tokens (token_hash, subject_id, expires_at)
		VALUES ($1, $2, $3)
	`
	if _, err := s.db.Exec(ctx, query, tokenHash, subjectID, expiresAt); err != nil {
		return fmt.Errorf("%w: %v", admission.ErrStoreUnavailable, err)
	}
	return nil
}

// Find returns the record for the hash, or ErrRefreshInvalid.
func (s *PostgresRefreshTokenStore) Find(ctx context.Context, tokenHash string) (*admission.RefreshTokenRecord, error) {
	query := `
		SELECT subject_id, expires_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	record := &admission.RefreshTokenRecord{}
	err := s.db.QueryRow(ctx, query, tokenHash).Scan(&record.SubjectID, &record.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, admission.ErrRefreshInvalid
		}
		return nil, fmt.Errorf("%w: %v", admission.ErrStoreUnavailable, err)
	}
	return record, nil
}

// Delete removes one record by hash. Deleting a missing record is a no-op.
func (s *PostgresRefreshTokenStore) Delete(ctx context.Context, tokenHash string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, tokenHash); err != nil {
		return fmt.Errorf("%w: %v", admission.ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteAllForSubject removes every record for the subject, forcing
// re-authentication on all devices.
func (s *PostgresRefreshTokenStore) DeleteAllForSubject(ctx context.Context, subjectID string) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE subject_id = $1`, subjectID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", admission.ErrStoreUnavailable, err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired removes records whose expiry precedes now.
func (s *PostgresRefreshTokenStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", admission.ErrStoreUnavailable, err)
	}
	return tag.RowsAffected(), nil
}

// PostgresOneTimeTokenStore is the ledger for password-reset and
// email-verification tokens.
type PostgresOneTimeTokenStore struct {
	db *pgxpool.Pool
}

// NewPostgresOneTimeTokenStore constructs a ledger bound to the pool.
func NewPostgresOneTimeTokenStore(db *pgxpool.Pool) *PostgresOneTimeTokenStore {
	return &PostgresOneTimeTokenStore{db: db}
}

// Issue invalidates any unconsumed tokens of the same purpose for the
// subject, then inserts the new one, all within a single transaction.
func (s *PostgresOneTimeTokenStore) Issue(ctx context.Context, purpose admission.OneTimePurpose, subjectID, tokenHash string, expiresAt time.Time) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", admission.ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		DELETE FROM one_time_tokens
		WHERE subject_id = $1 AND purpose = $2 AND consumed_at IS NULL
	`, subjectID, string(purpose))
	if err != nil {
		return fmt.Errorf("%w: %v", admission.ErrStoreUnavailable, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO one_time_tokens (token_hash, purpose, subject_id, expires_at)
		VALUES ($1, $2, $3, $4)
	`, tokenHash, string(purpose), subjectID, expiresAt)
	if err != nil {
		return fmt.Errorf("%w: %v", admission.ErrStoreUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", admission.ErrStoreUnavailable, err)
	}
	return nil
}

// Consume marks the token consumed and returns its owner in one statement.
// The conditional UPDATE is the whole point: a racing second caller matches
// zero rows and gets ErrOneTimeInvalid even though the row still exists.
func (s *PostgresOneTimeTokenStore) Consume(ctx context.Context, purpose admission.OneTimePurpose, tokenHash string) (string, error) {
	query := `
		UPDATE one_time_tokens
		SET consumed_at = now()
		WHERE token_hash = $1
		  AND purpose = $2
		  AND consumed_at IS NULL
		  AND expires_at > now()
		RETURNING subject_id
	`
	var subjectID string
	err := s.db.QueryRow(ctx, query, tokenHash, string(purpose)).Scan(&subjectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", admission.ErrOneTimeInvalid
		}
		return "", fmt.Errorf("%w: %v", admission.ErrStoreUnavailable, err)
	}
	return subjectID, nil
}

// DeletePending removes unconsumed tokens of the purpose for the subject.
// Email verification calls this on success so stale duplicates cannot
// linger.
func (s *PostgresOneTimeTokenStore) DeletePending(ctx context.Context, purpose admission.OneTimePurpose, subjectID string) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM one_time_tokens
		WHERE subject_id = $1 AND purpose = $2 AND consumed_at IS NULL
	`, subjectID, string(purpose))
	if err != nil {
		return fmt.Errorf("%w: %v", admission.ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteExpired removes tokens whose expiry precedes now, consumed or not.
func (s *PostgresOneTimeTokenStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM one_time_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", admission.ErrStoreUnavailable, err)
	}
	return tag.RowsAffected(), nil
}
