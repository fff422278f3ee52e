// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lusso Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// maxCredentialAttempts bounds the issue-time retry loop on credential
// uniqueness conflicts. A conflict on a 256-bit draw is practically
// impossible; exhausting the attempts means the random source is broken.
const maxCredentialAttempts = 3

// dummyPasswordHash is verified when the username is unknown so that the
// response time of a failed login does not reveal whether the account exists.
// This is NOT a real credential; it can never match any password.
//
//nolint:gosec // G101: intentionally fake hash for timing-attack prevention.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Grant is the result of a successful login: the issued credential and the
// account's current redirect target.
type Grant struct {
	Credential   string
	RedirectHost string
	RedirectPort uint16
}

// VerifyStatus classifies the outcome of a verification call.
type VerifyStatus int

// Verification outcomes. Transient store failures are reported as errors,
// never as one of these, so a world server can't mistake an outage for a
// logged-out player.
const (
	StatusInvalid VerifyStatus = iota
	StatusValid
	StatusUnknownAccount
)

// Verification is the result of a verification call.
type Verification struct {
	Status       VerifyStatus
	RedirectHost string
	RedirectPort uint16
}

// Service implements the credential issuer and the verification check on top
// of a single AccountRepository.
type Service struct {
	accounts AccountRepository
	hasher   PasswordHasher
	lifetime time.Duration
	logger   *slog.Logger
}

// NewService creates a Service with a no-op logger. lifetime is the maximum
// session age enforced at verification; zero disables expiry.
func NewService(accounts AccountRepository, hasher PasswordHasher, lifetime time.Duration) (*Service, error) {
	return NewServiceWithLogger(accounts, hasher, lifetime, slog.New(slog.DiscardHandler))
}

// NewServiceWithLogger creates a Service with the provided logger.
func NewServiceWithLogger(accounts AccountRepository, hasher PasswordHasher, lifetime time.Duration, logger *slog.Logger) (*Service, error) {
	if accounts == nil {
		return nil, oops.Errorf("accounts repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if lifetime < 0 {
		return nil, oops.Errorf("session lifetime cannot be negative")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Service{
		accounts: accounts,
		hasher:   hasher,
		lifetime: lifetime,
		logger:   logger,
	}, nil
}

// Login authenticates an account and installs a fresh session credential as
// its sole active session. Unknown usernames and wrong passwords both fail
// with AUTH_INVALID_CREDENTIALS so the wire response cannot be used for
// account enumeration. The credential is durably committed before it is
// returned; a store failure means no credential was handed out.
//
// clientMeta is forwarded client/environment metadata, used for logging only.
func (s *Service) Login(ctx context.Context, username, password, clientMeta string) (*Grant, error) {
	// A username that fails provisioning rules can never name an account;
	// reject it before touching the store.
	if err := ValidateUsername(username); err != nil {
		s.logger.Warn("login rejected",
			"event", "login_rejected",
			"username", username,
			"client_meta", clientMeta,
		)
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid username or password")
	}

	account, lookupErr := s.accounts.GetByUsername(ctx, username)

	// Pick the hash to verify against; unknown users get the dummy hash so
	// verification work is done either way.
	targetHash := dummyPasswordHash
	accountExists := false
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("AUTH_STORE_UNAVAILABLE").
				With("operation", "get account by username").
				Wrap(lookupErr)
		}
	} else {
		targetHash = account.PasswordHash
		accountExists = true
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil && accountExists {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	if !accountExists || !valid {
		s.logger.Warn("login rejected",
			"event", "login_rejected",
			"username", username,
			"client_meta", clientMeta,
		)
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid username or password")
	}

	// Opportunistic hash upgrade (e.g. provisioned bcrypt -> argon2id).
	// Best effort; login succeeds regardless.
	if s.hasher.NeedsUpgrade(account.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(password); hashErr == nil {
			_ = s.accounts.UpdatePasswordHash(ctx, username, newHash) //nolint:errcheck // best effort
		}
	}

	grant, err := s.issueCredential(ctx, account)
	if err != nil {
		return nil, err
	}

	s.logger.Info("session credential issued",
		"event", "login_ok",
		"username", username,
		"redirect_host", grant.RedirectHost,
		"redirect_port", grant.RedirectPort,
	)
	return grant, nil
}

// issueCredential draws a credential and commits it via SetCredential, the
// sole write path for session state. Uniqueness conflicts trigger a fresh
// draw.
func (s *Service) issueCredential(ctx context.Context, account *Account) (*Grant, error) {
	for attempt := 0; attempt < maxCredentialAttempts; attempt++ {
		credential, keyHash, err := GenerateCredential()
		if err != nil {
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "generate credential").
				Wrap(err)
		}

		err = s.accounts.SetCredential(ctx, account.Username, keyHash, time.Now())
		if err == nil {
			return &Grant{
				Credential:   credential,
				RedirectHost: account.RedirectHost,
				RedirectPort: account.RedirectPort,
			}, nil
		}
		if errors.Is(err, ErrCredentialConflict) {
			s.logger.Warn("credential collision, redrawing",
				"event", "credential_conflict",
				"username", account.Username,
				"attempt", attempt+1,
			)
			continue
		}
		if errors.Is(err, ErrNotFound) {
			// Account deleted between lookup and install; report the same
			// generic failure the lookup would have.
			return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid username or password")
		}
		return nil, oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "set credential").
			Wrap(err)
	}
	return nil, oops.Code("AUTH_LOGIN_FAILED").
		With("attempts", maxCredentialAttempts).
		Errorf("could not issue a unique credential")
}

// Verify checks whether the presented credential is currently valid for the
// account and returns the redirect target on success. It performs no
// mutation and is safe to call concurrently with logins; it observes the
// credential of the most recently committed login or an earlier one, never a
// torn value.
func (s *Service) Verify(ctx context.Context, username, presented string) (Verification, error) {
	record, err := s.accounts.ReadForVerification(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Verification{Status: StatusUnknownAccount}, nil
		}
		return Verification{}, oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "read for verification").
			Wrap(err)
	}

	if record.SessionKeyHash == nil {
		return Verification{Status: StatusInvalid}, nil
	}
	if s.expired(record.SessionIssuedAt) {
		return Verification{Status: StatusInvalid}, nil
	}
	if !MatchCredential(presented, *record.SessionKeyHash) {
		return Verification{Status: StatusInvalid}, nil
	}

	return Verification{
		Status:       StatusValid,
		RedirectHost: record.RedirectHost,
		RedirectPort: record.RedirectPort,
	}, nil
}

// expired applies the fixed-at-issuance lifetime policy. Expiry is never
// extended by verification calls.
func (s *Service) expired(issuedAt *time.Time) bool {
	if s.lifetime == 0 {
		return false
	}
	if issuedAt == nil {
		// Lifetime enforcement is on but the row predates the issued_at
		// column; fail closed.
		return true
	}
	return time.Since(*issuedAt) > s.lifetime
}
