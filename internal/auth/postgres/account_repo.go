// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lusso Contributors

// Package postgres implements the account repository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/lusso/lusso/internal/auth"
)

// poolIface is the subset of pgxpool.Pool used by the repository. It exists
// so tests can substitute a pgxmock pool.
type poolIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountRepository implements auth.AccountRepository using PostgreSQL.
//
// All session-state writes are single UPDATE statements keyed by username,
// so the store's row-level atomicity is the synchronization between the
// login and verification surfaces. Reads always hit the pool directly;
// nothing here caches.
type AccountRepository struct {
	pool poolIface
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool poolIface) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// GetByUsername retrieves an account by exact username.
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, redirect_host, redirect_port,
		       session_key_hash, session_issued_at, created_at, updated_at
		FROM accounts
		WHERE username = $1
	`, username)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by username").
			With("username", username).
			Wrap(err)
	}
	return account, nil
}

// SetCredential atomically installs keyHash as the account's sole active
// credential. The unique index on session_key_hash makes cross-account
// credential collisions a typed conflict instead of a silent overlap.
func (r *AccountRepository) SetCredential(ctx context.Context, username, keyHash string, issuedAt time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET session_key_hash = $2, session_issued_at = $3, updated_at = NOW()
		WHERE username = $1
	`, username, keyHash, issuedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("CREDENTIAL_CONFLICT").
				With("username", username).
				Wrap(auth.ErrCredentialConflict)
		}
		return oops.Code("CREDENTIAL_SET_FAILED").
			With("operation", "set session credential").
			With("username", username).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdatePasswordHash replaces the stored password hash.
func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, username, passwordHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET password_hash = $2, updated_at = NOW()
		WHERE username = $1
	`, username, passwordHash)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update password hash").
			With("username", username).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// ReadForVerification retrieves the credential hash and redirect target.
// This read observes every committed SetCredential; pgx runs it against the
// live pool with no statement caching of results.
func (r *AccountRepository) ReadForVerification(ctx context.Context, username string) (*auth.VerificationRecord, error) {
	var (
		keyHash      *string
		issuedAt     *time.Time
		redirectHost string
		redirectPort int32
	)
	err := r.pool.QueryRow(ctx, `
		SELECT session_key_hash, session_issued_at, redirect_host, redirect_port
		FROM accounts
		WHERE username = $1
	`, username).Scan(&keyHash, &issuedAt, &redirectHost, &redirectPort)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_READ_FAILED").
			With("operation", "read for verification").
			With("username", username).
			Wrap(err)
	}

	return &auth.VerificationRecord{
		SessionKeyHash:  keyHash,
		SessionIssuedAt: issuedAt,
		RedirectHost:    redirectHost,
		RedirectPort:    uint16(redirectPort),
	}, nil
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		idStr        string
		username     string
		passwordHash string
		redirectHost string
		redirectPort int32
		keyHash      *string
		issuedAt     *time.Time
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := row.Scan(&idStr, &username, &passwordHash, &redirectHost, &redirectPort, &keyHash, &issuedAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("operation", "parse account id").
			With("id", idStr).
			Wrap(err)
	}

	return &auth.Account{
		ID:              id,
		Username:        username,
		PasswordHash:    passwordHash,
		RedirectHost:    redirectHost,
		RedirectPort:    uint16(redirectPort),
		SessionKeyHash:  keyHash,
		SessionIssuedAt: issuedAt,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
