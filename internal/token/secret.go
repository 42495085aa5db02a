// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/samber/oops"

	"github.com/bazaarcore/identity/internal/errkind"
)

// SecretBytes is the entropy of a generated secret.
const SecretBytes = 32

// GenerateSecret returns SecretBytes of randomness, base64url-encoded without
// padding.
func GenerateSecret() (string, error) {
	b := make([]byte, SecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code(errkind.CodeTokenGenerateFailed).
			In("token").
			With("operation", "crypto/rand.Read").
			Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashSecret returns the SHA-256 hex digest of secret. Only the digest is
// ever persisted.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
