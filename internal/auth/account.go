// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lusso Contributors

package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 33
)

// usernameRegex matches usernames that start with a letter and contain only
// letters, numbers, and underscores. Usernames are case-sensitive and
// immutable once provisioned.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Account is one row of the user record store. Rows are created by external
// provisioning; this core never inserts accounts.
type Account struct {
	ID           ulid.ULID
	Username     string
	PasswordHash string

	// Redirect target: the world server the account currently points to.
	// Mutable by the account owner through an external channel; read-only
	// here except that it is echoed on successful login and verification.
	RedirectHost string
	RedirectPort uint16

	// SessionKeyHash is the SHA-256 of the single currently active session
	// credential, or nil when no session is active.
	SessionKeyHash  *string
	SessionIssuedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasActiveSession reports whether a credential is currently installed.
func (a *Account) HasActiveSession() bool {
	return a.SessionKeyHash != nil
}

// ValidateUsername validates a username against provisioning rules.
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// VerificationRecord is the minimal read used by the verification surface.
// It never carries the password hash.
type VerificationRecord struct {
	SessionKeyHash  *string
	SessionIssuedAt *time.Time
	RedirectHost    string
	RedirectPort    uint16
}

// AccountRepository manages account persistence.
//
// All mutations are single-row and atomic; concurrent mutations on the same
// row serialize in the store. Reads used for verification observe every
// previously committed write (no caching layer is permitted in front of the
// store, since a stale read would let a revoked credential keep validating).
type AccountRepository interface {
	// GetByUsername retrieves an account by exact username.
	// Returns ErrNotFound if no such account exists.
	GetByUsername(ctx context.Context, username string) (*Account, error)

	// SetCredential atomically installs keyHash as the account's sole active
	// session credential, replacing whatever was there. This is the only
	// write path for session state. Returns ErrNotFound if the account does
	// not exist and ErrCredentialConflict if keyHash is already held by
	// another account.
	SetCredential(ctx context.Context, username, keyHash string, issuedAt time.Time) error

	// UpdatePasswordHash replaces the stored password hash. Used for
	// transparent hash upgrades after a successful login.
	UpdatePasswordHash(ctx context.Context, username, passwordHash string) error

	// ReadForVerification retrieves the fields needed to verify a presented
	// credential. Returns ErrNotFound if no such account exists.
	ReadForVerification(ctx context.Context, username string) (*VerificationRecord, error)
}
