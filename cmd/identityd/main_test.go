// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarcore/identity/internal/config"
	"github.com/bazaarcore/identity/internal/errkind"
	"github.com/bazaarcore/identity/pkg/errutil"
)

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	res := execute(t, nil, "", "--help")
	require.NoError(t, res.err)

	for _, sub := range []string{"serve", "config", "phone", "password", "token", "session", "status"} {
		assert.Contains(t, res.stdout, sub, "Help missing %q command", sub)
	}
}

func TestRootCommand_PersistentConfigFlags(t *testing.T) {
	cmd := NewRootCmd()
	for _, name := range []string{
		config.FlagConfig,
		config.FlagRedisAddr,
		config.FlagMetricsAddr,
		config.FlagLogFormat,
		config.FlagLogLevel,
		config.FlagFingerprintPolicy,
	} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing --%s", name)
	}
}

func TestRootCommand_VersionFlag(t *testing.T) {
	cmd := NewRootCmd()
	cmd.Version = "test-version"
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "test-version")
}

func TestConfigValidate(t *testing.T) {
	res := execute(t, nil, "", "config", "validate", "--config", writeConfig(t, "127.0.0.1:6379"))
	require.NoError(t, res.err)
	assert.Equal(t, "configuration valid (version 1.0.0)\n", res.stdout)
}

func TestConfigValidate_RequiresSecret(t *testing.T) {
	res := execute(t, nil, "", "config", "validate")
	require.Error(t, res.err)
	errutil.AssertErrorCode(t, res.err, errkind.CodeConfigInvalid)
	assert.Contains(t, res.stderr, "token.secret: required")
}

func TestConfigValidate_FlagOverride(t *testing.T) {
	path := writeConfig(t, "127.0.0.1:6379")

	res := execute(t, nil, "", "config", "validate", "--config", path, "--fingerprint-policy", "paranoid")
	require.Error(t, res.err)
	errutil.AssertErrorCode(t, res.err, errkind.CodeConfigInvalid)
}

func TestConfigPrint_RedactsSecrets(t *testing.T) {
	path := writeConfig(t, "redis.internal:6379")

	res := execute(t, nil, "", "config", "print", "--config", path, "--log-format", "text")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "secret: <redacted>")
	assert.Contains(t, res.stdout, "addr: redis.internal:6379")
	assert.Contains(t, res.stdout, "format: text")
	assert.NotContains(t, res.stdout, testSecret)
}

func TestConfigSchema(t *testing.T) {
	res := execute(t, nil, "", "config", "schema")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, config.SchemaID)
	assert.True(t, strings.HasPrefix(res.stdout, "{"))
}
