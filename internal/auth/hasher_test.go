// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lusso Contributors

package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lusso/lusso/internal/auth"
	"github.com/lusso/lusso/pkg/errutil"
)

func TestArgon2idHasher_HashAndVerify(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	hash, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	valid, err := hasher.Verify("correct horse battery staple", hash)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = hasher.Verify("wrong password", hash)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestArgon2idHasher_HashEmptyPassword(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	_, err := hasher.Hash("")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_EMPTY_PASSWORD")
}

func TestArgon2idHasher_UniqueSalts(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	h1, err := hasher.Hash("password")
	require.NoError(t, err)
	h2, err := hasher.Hash("password")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestArgon2idHasher_VerifyBcrypt(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	bcryptHash, err := bcrypt.GenerateFromPassword([]byte("legacy password"), bcrypt.MinCost)
	require.NoError(t, err)

	valid, err := hasher.Verify("legacy password", string(bcryptHash))
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = hasher.Verify("not it", string(bcryptHash))
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestArgon2idHasher_VerifyMalformedHash(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"garbage", "not-a-hash"},
		{"wrong algorithm", "$scrypt$v=19$m=65536,t=1,p=4$c2FsdA$a2V5"},
		{"missing sections", "$argon2id$v=19"},
		{"bad salt encoding", "$argon2id$v=19$m=65536,t=1,p=4$!!!$a2V5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := hasher.Verify("password", tt.hash)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_HASH")
		})
	}
}

func TestArgon2idHasher_NeedsUpgrade(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	hash, err := hasher.Hash("password")
	require.NoError(t, err)
	assert.False(t, hasher.NeedsUpgrade(hash))

	assert.True(t, hasher.NeedsUpgrade("$2a$10$abcdefghijklmnopqrstuv"))
	assert.True(t, hasher.NeedsUpgrade("plaintext"))
}
