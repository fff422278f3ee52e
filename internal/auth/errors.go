// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lusso Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested account does not exist.
var ErrNotFound = errors.New("not found")

// ErrCredentialConflict is returned when a freshly drawn credential collides
// with one already held by another account. The issuer retries with a new
// draw; seeing this repeatedly means the random source is broken.
var ErrCredentialConflict = errors.New("credential conflict")
