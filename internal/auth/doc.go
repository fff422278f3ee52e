// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lusso Contributors

// Package auth implements the credential lifecycle of the SSO authority.
//
// # Single-active-session policy
//
// Every successful login installs a fresh session credential as the account's
// only active one. Installing a new credential unconditionally invalidates the
// previous value for all subsequent verification calls; there is no grace
// window in which two credentials for the same account both validate. When two
// logins for the same account race, each client receives the credential its
// login was issued, but only the credential of the last committed login keeps
// validating. This bounds the blast radius of a leaked credential and matches
// the one-session-per-account product rule.
//
// # Surfaces
//
// Service.Login backs the binary login protocol and is the only write path
// for session state. Service.Verify backs the world-server verification
// interface and never mutates anything. Both funnel through AccountRepository,
// which is the single source of truth; the store's row-scoped atomicity is
// the only synchronization between the two surfaces.
package auth
