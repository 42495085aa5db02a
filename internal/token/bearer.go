// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

package token

import "strings"

// BearerScheme is the default Authorization scheme.
const BearerScheme = "Bearer"

// ExtractBearer returns the token from an "Authorization: Bearer <token>"
// header value. It returns ("", false) when the header is absent or malformed;
// deciding that a credential is missing is the caller's job.
func ExtractBearer(header string) (string, bool) {
	return ExtractCredential(header, BearerScheme)
}

// ExtractCredential is ExtractBearer for an arbitrary scheme. Scheme matching
// is case-insensitive.
func ExtractCredential(header, scheme string) (string, bool) {
	fields := strings.Fields(header)
	if len(fields) != 2 {
		return "", false
	}
	if !strings.EqualFold(fields[0], scheme) {
		return "", false
	}
	return fields[1], true
}
