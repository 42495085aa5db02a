// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

// Package session manages long-lived, rotating remember-me credentials.
//
// The raw secret is handed to the caller exactly once. Only its SHA-256 hash
// is persisted, as the key of a Record in a Store. Every successful
// redemption atomically replaces the record with a fresh one, so a secret can
// be used at most once.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/bazaarcore/identity/internal/errkind"
)

// ErrNotFound is returned by a Store when no record exists under the key, or
// when a conditional rotation lost to a concurrent writer.
var ErrNotFound = errors.New("session record not found")

// Record is the persisted remember-me record. It never contains the raw secret.
type Record struct {
	Hash        string      `json:"hash"`
	LineageID   string      `json:"lineage_id"`
	UserID      string      `json:"user_id"`
	Fingerprint Fingerprint `json:"fingerprint"`
	CreatedAt   time.Time   `json:"created_at"`
	RotatedAt   time.Time   `json:"rotated_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
	Generation  int         `json:"generation"`
}

// Store is the key-value contract the manager needs. Implementations map
// transport failures to STORE_UNAVAILABLE errors and never report them as
// ErrNotFound.
type Store interface {
	// Get returns the record stored under hash.
	Get(ctx context.Context, hash string) (Record, error)

	// Create writes rec under rec.Hash with the given TTL and adds it to the
	// user's index.
	Create(ctx context.Context, rec Record, ttl time.Duration) error

	// Rotate replaces the record under oldHash with next in one atomic step,
	// provided the stored record still equals expected. It returns ErrNotFound
	// if the record is gone or has changed.
	Rotate(ctx context.Context, oldHash string, expected, next Record, ttl time.Duration) error

	// Delete removes the record under hash. Deleting a missing record is not
	// an error.
	Delete(ctx context.Context, hash string) error

	// DeleteUser removes every record indexed for userID and returns how many
	// records existed.
	DeleteUser(ctx context.Context, userID string) (int, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

// EncodeRecord serializes rec. Encoding is deterministic, so two encodings of
// equal records compare equal byte for byte.
func EncodeRecord(rec Record) ([]byte, error) {
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.RotatedAt = rec.RotatedAt.UTC()
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, oops.Code(errkind.CodeSessionRecordCorrupt).
			In("session").
			With("lineage_id", rec.LineageID).
			Wrapf(errkind.ErrCorrupt, "encode record: %v", err)
	}
	return data, nil
}

// DecodeRecord parses a stored record. A record that does not decode, or that
// lacks its identifying fields, is corrupt.
func DecodeRecord(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, oops.Code(errkind.CodeSessionRecordCorrupt).
			In("session").
			Wrapf(errkind.ErrCorrupt, "decode record: %v", err)
	}
	if rec.Hash == "" || rec.UserID == "" || rec.ExpiresAt.IsZero() {
		return Record{}, oops.Code(errkind.CodeSessionRecordCorrupt).
			In("session").
			With("lineage_id", rec.LineageID).
			Wrapf(errkind.ErrCorrupt, "record is missing required fields")
	}
	return rec, nil
}

// Unavailable wraps a transport failure of a store operation.
func Unavailable(operation string, err error) error {
	return oops.Code(errkind.CodeStoreUnavailable).
		In("session").
		With("operation", operation).
		Wrapf(errkind.ErrStoreUnavailable, "%s: %v", operation, err)
}
