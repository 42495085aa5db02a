// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/bazaarcore/identity/internal/errkind"
)

// LogError logs an error with structured context if it's an oops error.
// For oops errors, it extracts and logs the message, code, kind and context.
// For standard errors, it logs the error string.
func LogError(logger *slog.Logger, msg string, err error) {
	LogErrorContext(context.Background(), logger, msg, err)
}

// LogErrorContext is LogError with a context for trace correlation.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error) {
	logger.ErrorContext(ctx, msg, Attrs(err)...)
}

// Attrs returns the slog key/value pairs describing err.
func Attrs(err error) []any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []any{"error", err}
	}

	attrs := []any{
		"error", oopsErr.Error(),
		"kind", errkind.Name(err),
	}
	if code := errkind.Code(err); code != "" {
		attrs = append(attrs, "code", code)
	}
	if domain := oopsErr.Domain(); domain != "" {
		attrs = append(attrs, "domain", domain)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}
