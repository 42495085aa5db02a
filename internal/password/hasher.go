// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"

	"github.com/bazaarcore/identity/internal/errkind"
)

// Params are the argon2id cost parameters.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	SaltLen int
	KeyLen  uint32
}

// DefaultParams returns the OWASP-recommended argon2id parameters.
func DefaultParams() Params {
	return Params{
		Time:    1,
		Memory:  64 * 1024,
		Threads: 4,
		SaltLen: 16,
		KeyLen:  32,
	}
}

// ErrEmptyPassword is returned when hashing an empty password.
var ErrEmptyPassword = oops.Code(errkind.CodePasswordHashFailed).In("password").Wrapf(errkind.ErrValidation, "password cannot be empty")

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(password string) (string, error)

	// Verify returns (true, nil) on match, (false, nil) on mismatch and an
	// error for an unparseable hash.
	Verify(password, encoded string) (bool, error)

	// NeedsUpgrade reports whether encoded was produced with other parameters
	// or another algorithm and should be re-hashed on next login.
	NeedsUpgrade(encoded string) bool
}

// Argon2idHasher implements Hasher with argon2id in PHC string format.
type Argon2idHasher struct {
	params Params
}

// NewArgon2idHasher creates a hasher with the given parameters.
func NewArgon2idHasher(params Params) *Argon2idHasher {
	return &Argon2idHasher{params: params}
}

// Hash produces $argon2id$v=19$m=...,t=...,p=...$<salt>$<key>.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code(errkind.CodePasswordHashFailed).
			In("password").
			With("operation", "crypto/rand.Read").
			Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// phc is a decoded argon2id hash.
type phc struct {
	version int
	params  Params
	salt    []byte
	key     []byte
}

func decodePHC(encoded string) (phc, error) {
	errb := oops.Code(errkind.CodePasswordHashMalformed).In("password")

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return phc{}, errb.Wrapf(errkind.ErrCorrupt, "invalid hash format")
	}
	if parts[1] != "argon2id" {
		return phc{}, errb.With("algorithm", parts[1]).Wrapf(errkind.ErrCorrupt, "unsupported hash algorithm")
	}

	var out phc
	if _, err := fmt.Sscanf(parts[2], "v=%d", &out.version); err != nil {
		return phc{}, errb.Wrapf(errkind.ErrCorrupt, "invalid version segment: %v", err)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return phc{}, errb.Wrapf(errkind.ErrCorrupt, "invalid parameter segment: %v", err)
	}
	if threads == 0 || threads > 255 {
		return phc{}, errb.With("threads", threads).Wrapf(errkind.ErrCorrupt, "threads out of range")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return phc{}, errb.Wrapf(errkind.ErrCorrupt, "invalid salt: %v", err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return phc{}, errb.Wrapf(errkind.ErrCorrupt, "invalid key: %v", err)
	}
	if len(key) == 0 || len(key) > 1<<10 {
		return phc{}, errb.With("key_len", len(key)).Wrapf(errkind.ErrCorrupt, "key length out of range")
	}

	out.params = Params{
		Time:    time,
		Memory:  memory,
		Threads: uint8(threads),
		SaltLen: len(salt),
		KeyLen:  uint32(len(key)),
	}
	out.salt = salt
	out.key = key
	return out, nil
}

// Verify checks password against an encoded hash in constant time.
func (h *Argon2idHasher) Verify(password, encoded string) (bool, error) {
	decoded, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}
	p := decoded.params
	computed := argon2.IDKey([]byte(password), decoded.salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return subtle.ConstantTimeCompare(computed, decoded.key) == 1, nil
}

// NeedsUpgrade reports whether encoded should be re-hashed.
func (h *Argon2idHasher) NeedsUpgrade(encoded string) bool {
	decoded, err := decodePHC(encoded)
	if err != nil {
		return true
	}
	return decoded.version != argon2.Version || decoded.params != h.params
}
