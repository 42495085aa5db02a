// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

package main

import (
	"context"

	"github.com/bazaarcore/identity/internal/observability"
	"github.com/bazaarcore/identity/internal/session/redisstore"
)

// Deps contains injectable dependencies for commands that reach Redis or
// serve HTTP. All fields with nil values will use their default
// implementations.
type Deps struct {
	// Connect dials the session store.
	// Default: redisstore.Connect
	Connect func(ctx context.Context, opts redisstore.Options) (*redisstore.Store, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer
}

// withDefaults returns a copy of d with nil fields filled in. d may be nil.
func (d *Deps) withDefaults() *Deps {
	out := &Deps{}
	if d != nil {
		*out = *d
	}
	if out.Connect == nil {
		out.Connect = redisstore.Connect
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	return out
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}
