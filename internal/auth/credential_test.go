// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lusso Contributors

package auth_test

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lusso/lusso/internal/auth"
)

func TestGenerateCredential(t *testing.T) {
	credential, keyHash, err := auth.GenerateCredential()
	require.NoError(t, err)

	assert.Len(t, credential, auth.CredentialLength)
	_, err = hex.DecodeString(credential)
	assert.NoError(t, err, "credential should be valid hex")

	assert.Equal(t, auth.HashCredential(credential), keyHash)
	assert.NotEqual(t, credential, keyHash)
}

func TestGenerateCredential_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		credential, _, err := auth.GenerateCredential()
		require.NoError(t, err)
		assert.False(t, seen[credential], "credential repeated")
		seen[credential] = true
	}
}

func TestHashCredential_Deterministic(t *testing.T) {
	assert.Equal(t, auth.HashCredential("abc123"), auth.HashCredential("abc123"))
	assert.NotEqual(t, auth.HashCredential("abc123"), auth.HashCredential("abc124"))
}

func TestMatchCredential(t *testing.T) {
	credential, keyHash, err := auth.GenerateCredential()
	require.NoError(t, err)

	assert.True(t, auth.MatchCredential(credential, keyHash))
	assert.False(t, auth.MatchCredential(credential+"0", keyHash))
	assert.False(t, auth.MatchCredential("", keyHash))

	// A presented value that equals the stored hash must not match; only the
	// preimage does.
	assert.False(t, auth.MatchCredential(keyHash, keyHash))
}
