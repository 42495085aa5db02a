// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// syncBuffer is a bytes.Buffer safe for the concurrent writes of serve.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type result struct {
	stdout string
	stderr string
	err    error
}

func execute(t *testing.T, deps *Deps, stdin string, args ...string) result {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cmd := newRootCmd(deps)
	var stdout, stderr syncBuffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// writeConfig writes a config file with a signing secret, the given Redis
// address and the metrics server disabled. extra is appended verbatim and must
// not repeat the token, redis or metrics sections.
func writeConfig(t *testing.T, redisAddr string, extra ...string) string {
	t.Helper()
	return writeTokenConfig(t, testSecret, "storefront", redisAddr, extra...)
}

func writeTokenConfig(t *testing.T, secret, audience, redisAddr string, extra ...string) string {
	t.Helper()
	body := `version: "1.0.0"
token:
  secret: "` + secret + `"
  audience: "` + audience + `"
redis:
  addr: "` + redisAddr + `"
  connect_attempts: 1
metrics:
  addr: ""
` + strings.Join(extra, "\n")
	path := filepath.Join(t.TempDir(), "identity.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}
