// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

// Package errkind defines the failure taxonomy shared by the identity core.
//
// Every error returned by the core is an oops error carrying a stable code
// (see the Code* constants) and wrapping exactly one of the kind sentinels
// below, so callers can branch with errors.Is without parsing messages.
package errkind

import (
	"errors"

	"github.com/samber/oops"
)

// Kind sentinels.
var (
	// ErrValidation marks malformed or disallowed user input. Recover by re-prompting.
	ErrValidation = errors.New("validation failed")

	// ErrAuth marks a credential that must not be accepted. Recover by re-authenticating.
	ErrAuth = errors.New("authentication failed")

	// ErrStoreUnavailable marks a transient infrastructure failure. Safe to retry with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrConfig marks unusable startup configuration. Fatal.
	ErrConfig = errors.New("invalid configuration")

	// ErrCorrupt marks unexpected state, such as a stored record that fails to decode.
	ErrCorrupt = errors.New("corrupt state")
)

// Stable reason codes.
const (
	CodePhoneNotANumber       = "PHONE_NOT_A_NUMBER"
	CodePhoneUnrecognizedArea = "PHONE_UNRECOGNIZED_AREA_CODE"
	CodePhoneWrongLength      = "PHONE_WRONG_LENGTH_FOR_AREA_CODE"
	CodePhoneDisallowed       = "PHONE_DISALLOWED_FOR_USE_CASE"
	CodePasswordTooWeak       = "PASSWORD_TOO_WEAK"
	CodeTokenMalformed        = "TOKEN_MALFORMED"
	CodeTokenExpired          = "TOKEN_EXPIRED"
	CodeTokenInvalidSignature = "TOKEN_INVALID_SIGNATURE"
	CodeTokenWrongAudience    = "TOKEN_WRONG_AUDIENCE"
	CodeSessionNotFound       = "SESSION_NOT_FOUND"
	CodeSessionExpired        = "SESSION_EXPIRED"
	CodeSessionDeviceMismatch = "SESSION_DEVICE_MISMATCH"
	CodeSessionInvalidContext = "SESSION_INVALID_CONTEXT"
	CodeSessionRecordCorrupt  = "SESSION_RECORD_CORRUPT"
	CodeStoreUnavailable      = "STORE_UNAVAILABLE"
	CodeConfigInvalid         = "CONFIG_INVALID"
	CodeTokenGenerateFailed   = "TOKEN_GENERATE_FAILED"
	CodePasswordHashFailed    = "PASSWORD_HASH_FAILED"
	CodePasswordHashMalformed = "PASSWORD_HASH_MALFORMED"
)

// Kind names returned by Name.
const (
	NameValidation       = "validation"
	NameAuth             = "auth"
	NameStoreUnavailable = "store_unavailable"
	NameConfig           = "config"
	NameCorrupt          = "corrupt"
	NameUnknown          = "unknown"
)

// Of returns the kind sentinel err wraps, or nil if it wraps none.
func Of(err error) error {
	for _, kind := range []error{ErrValidation, ErrAuth, ErrStoreUnavailable, ErrConfig, ErrCorrupt} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Name returns a short label for the kind of err, suitable for metrics.
func Name(err error) string {
	switch Of(err) {
	case ErrValidation:
		return NameValidation
	case ErrAuth:
		return NameAuth
	case ErrStoreUnavailable:
		return NameStoreUnavailable
	case ErrConfig:
		return NameConfig
	case ErrCorrupt:
		return NameCorrupt
	default:
		return NameUnknown
	}
}

// Code returns the oops code attached to err, or "" if there is none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	if code, ok := any(oopsErr.Code()).(string); ok {
		return code
	}
	return ""
}

// Retryable reports whether the coordinator may retry the failed call.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
