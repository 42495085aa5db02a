// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarcore/identity/internal/errkind"
	"github.com/bazaarcore/identity/internal/observability"
	"github.com/bazaarcore/identity/pkg/errutil"
)

// startedServer reports the observability server once serve has started it.
type startedServer struct {
	ObservabilityServer
	started chan<- ObservabilityServer
}

func (s startedServer) Start() (<-chan error, error) {
	errCh, err := s.ObservabilityServer.Start()
	if err == nil {
		s.started <- s.ObservabilityServer
	}
	return errCh, err
}

func probe(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServe_RunsUntilCancelled(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	mr := miniredis.RunT(t)
	path := writeConfig(t, mr.Addr())

	started := make(chan ObservabilityServer, 1)
	deps := &Deps{
		ObservabilityServerFactory: func(addr string, ready observability.ReadinessChecker) ObservabilityServer {
			return startedServer{
				ObservabilityServer: observability.NewServer(addr, ready),
				started:             started,
			}
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := newRootCmd(deps)
	var stdout, stderr syncBuffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"serve", "--config", path, "--metrics-addr", "127.0.0.1:0"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	var obs ObservabilityServer
	select {
	case obs = <-started:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for observability server")
	}

	status, body := probe(t, "http://"+obs.Addr()+"/healthz/readiness")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", strings.TrimSpace(body))

	mr.Close()
	status, _ = probe(t, "http://"+obs.Addr()+"/healthz/readiness")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	_, body = probe(t, "http://"+obs.Addr()+"/metrics")
	assert.Contains(t, body, "go_goroutines")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for serve to exit")
	}

	assert.Contains(t, stdout.String(), "identityd ready")
	assert.Contains(t, stderr.String(), "shutdown complete")
}

func TestServe_StoreUnavailable(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	res := execute(t, nil, "", "serve", "--config", writeConfig(t, addr))
	require.Error(t, res.err)
	errutil.AssertErrorCode(t, res.err, errkind.CodeStoreUnavailable)
	assert.Contains(t, res.stderr, "failed to connect to session store")
}

func TestServe_InvalidConfig(t *testing.T) {
	res := execute(t, nil, "", "serve")
	require.Error(t, res.err)
	errutil.AssertErrorCode(t, res.err, errkind.CodeConfigInvalid)
}
