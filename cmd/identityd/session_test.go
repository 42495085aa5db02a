// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarcore/identity/internal/errkind"
	"github.com/bazaarcore/identity/internal/session"
	"github.com/bazaarcore/identity/internal/session/redisstore"
	"github.com/bazaarcore/identity/pkg/errutil"
)

var testDevice = session.DeviceContext{
	RemoteAddr: "203.0.113.7:52100",
	UserAgent:  "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36",
}

// seedSessions creates remember-me tokens for userID in mr, one per lifetime.
func seedSessions(t *testing.T, mr *miniredis.Miniredis, userID string, lifetimes ...time.Duration) {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := redisstore.New(client, redisstore.DefaultPrefix)

	for _, lifetime := range lifetimes {
		mgr, err := session.NewManager(store, session.Config{Lifetime: lifetime})
		require.NoError(t, err)
		_, err = mgr.Create(context.Background(), userID, testDevice)
		require.NoError(t, err)
	}
}

func TestSessionRevokeAll(t *testing.T) {
	mr := miniredis.RunT(t)
	seedSessions(t, mr, "u-1", time.Hour, time.Hour)
	seedSessions(t, mr, "u-2", time.Hour)

	res := execute(t, nil, "", "session", "revoke-all", "--user", "u-1", "--config", writeConfig(t, mr.Addr()))
	require.NoError(t, res.err)
	assert.Equal(t, "revoked 2 remember-me tokens for user u-1\n", res.stdout)

	res = execute(t, nil, "", "session", "revoke-all", "--user", "u-1", "--config", writeConfig(t, mr.Addr()))
	require.NoError(t, res.err)
	assert.Equal(t, "revoked 0 remember-me tokens for user u-1\n", res.stdout)

	assert.True(t, mr.Exists(redisstore.DefaultPrefix+":user:u-2"))
}

func TestSessionRevokeAll_RequiresUser(t *testing.T) {
	mr := miniredis.RunT(t)

	res := execute(t, nil, "", "session", "revoke-all", "--config", writeConfig(t, mr.Addr()))
	require.Error(t, res.err)
}

func TestSessionRevokeAll_StoreDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	res := execute(t, nil, "", "session", "revoke-all", "--user", "u-1", "--config", writeConfig(t, addr))
	require.Error(t, res.err)
	errutil.AssertErrorCode(t, res.err, errkind.CodeStoreUnavailable)
	assert.ErrorIs(t, res.err, errkind.ErrStoreUnavailable)
}

func TestSessionSweep(t *testing.T) {
	mr := miniredis.RunT(t)
	seedSessions(t, mr, "u-1", time.Minute, time.Hour)
	mr.FastForward(2 * time.Minute)

	res := execute(t, nil, "", "session", "sweep", "--config", writeConfig(t, mr.Addr()))
	require.NoError(t, res.err)
	assert.Equal(t, "removed 1 stale index entries\n", res.stdout)

	res = execute(t, nil, "", "session", "sweep", "--config", writeConfig(t, mr.Addr()))
	require.NoError(t, res.err)
	assert.Equal(t, "removed 0 stale index entries\n", res.stdout)
}
