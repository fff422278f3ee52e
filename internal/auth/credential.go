// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lusso Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/samber/oops"
)

// Session credential configuration.
const (
	// CredentialBytes is the entropy of an issued credential. 32 bytes is far
	// beyond anything the verification endpoint's request rate could exhaust
	// by guessing.
	CredentialBytes = 32

	// CredentialLength is the length of the hex-encoded credential handed to
	// clients. Hex keeps the wire representation free of ambiguous characters.
	CredentialLength = CredentialBytes * 2
)

// GenerateCredential draws a fresh session credential from the CSPRNG.
// Returns the plaintext credential (sent to the client) and its SHA-256 hex
// digest (the only form ever stored).
func GenerateCredential() (credential, keyHash string, err error) {
	buf := make([]byte, CredentialBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", oops.Code("AUTH_CREDENTIAL_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			Wrap(err)
	}

	credential = hex.EncodeToString(buf)
	keyHash = HashCredential(credential)
	return credential, keyHash, nil
}

// HashCredential computes the SHA-256 hex digest of a credential.
func HashCredential(credential string) string {
	h := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(h[:])
}

// MatchCredential reports whether the presented credential matches the stored
// hash. The comparison runs over fixed-length digests and uses
// crypto/subtle, so its timing does not depend on which byte differs.
func MatchCredential(presented, storedHash string) bool {
	computed := HashCredential(presented)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
