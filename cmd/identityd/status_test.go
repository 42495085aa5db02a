// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

package main

import (
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarcore/identity/internal/errkind"
	"github.com/bazaarcore/identity/pkg/errutil"
)

func TestStatus_Healthy(t *testing.T) {
	mr := miniredis.RunT(t)

	res := execute(t, nil, "", "status", "--config", writeConfig(t, mr.Addr()))
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "COMPONENT")
	assert.Regexp(t, `config\s+healthy\s+-\s+version 1\.0\.0`, res.stdout)
	assert.Regexp(t, `redis\s+healthy\s+\S+ms\s+`+mr.Addr(), res.stdout)
}

func TestStatus_JSON(t *testing.T) {
	mr := miniredis.RunT(t)

	res := execute(t, nil, "", "status", "--json", "--config", writeConfig(t, mr.Addr()))
	require.NoError(t, res.err)

	var statuses []ComponentStatus
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &statuses))
	require.Len(t, statuses, 2)
	assert.Equal(t, "config", statuses[0].Component)
	assert.True(t, statuses[0].Healthy)
	assert.Equal(t, "redis", statuses[1].Component)
	assert.True(t, statuses[1].Healthy)
	assert.Empty(t, statuses[1].Error)
}

func TestStatus_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	res := execute(t, nil, "", "status", "--config", writeConfig(t, addr))
	require.Error(t, res.err)
	errutil.AssertErrorCode(t, res.err, errkind.CodeStoreUnavailable)
	errutil.AssertErrorContext(t, res.err, "components", []string{"redis"})
	assert.Regexp(t, `config\s+healthy`, res.stdout)
	assert.Regexp(t, `redis\s+unhealthy`, res.stdout)
}

func TestStatus_InvalidConfig(t *testing.T) {
	res := execute(t, nil, "", "status")
	require.Error(t, res.err)
	errutil.AssertErrorContext(t, res.err, "components", []string{"config", "redis"})
	assert.Regexp(t, `redis\s+unhealthy\s+-\s+not checked`, res.stdout)
}
