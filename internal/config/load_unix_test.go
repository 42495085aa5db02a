// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

//go:build unix

package config_test

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarcore/identity/internal/config"
)

// A named pipe yields its content exactly once, so loading only succeeds
// when the validated bytes are the bytes decoded.
func TestLoadFile_ReadsConfigOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.yaml")
	require.NoError(t, syscall.Mkfifo(path, 0o600))

	go func() {
		w, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err != nil {
			return
		}
		defer w.Close()
		_, _ = w.WriteString("version: \"1.0.0\"\nredis:\n  addr: redis.pipe:6379\n")
	}()

	type loaded struct {
		f   config.File
		err error
	}
	done := make(chan loaded, 1)
	go func() {
		f, err := config.LoadFile(path, nil)
		done <- loaded{f, err}
	}()

	select {
	case got := <-done:
		require.NoError(t, got.err)
		assert.Equal(t, "redis.pipe:6379", got.f.Redis.Addr)
	case <-time.After(5 * time.Second):
		t.Fatal("LoadFile blocked re-reading the config file")
	}
}
