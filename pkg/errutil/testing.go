// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

package errutil

import (
	"errors"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarcore/identity/internal/errkind"
)

// TestingT is the subset of *testing.T the assertions need. GinkgoT()
// satisfies it too.
type TestingT interface {
	require.TestingT
	Helper()
}

// AssertErrorCode asserts that err is a classified identity error: an oops
// error carrying code and wrapping one of the errkind sentinels.
func AssertErrorCode(t TestingT, err error, code string) {
	t.Helper()
	require.Error(t, err, "expected %s error", code)
	_, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, errkind.Code(err))
	assert.NotNil(t, errkind.Of(err), "%s error wraps no errkind sentinel: %v", code, err)
}

// AssertErrorKind asserts the kind sentinel and the code together.
func AssertErrorKind(t TestingT, err error, kind error, code string) {
	t.Helper()
	AssertErrorCode(t, err, code)
	assert.True(t, errors.Is(err, kind), "expected %s to be %q, got %q", code, kind, errkind.Of(err))
}

// AssertErrorContext asserts that err is an oops error with the given context key/value.
func AssertErrorContext(t TestingT, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	ctx := oopsErr.Context()
	assert.Contains(t, ctx, key)
	assert.Equal(t, value, ctx[key])
}
