// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

// Package redisstore implements session.Store on Redis.
//
// Layout, for the default prefix:
//
//	rememberme:token:<hash>   JSON record, PX = time to expiry
//	rememberme:user:<userID>  set of hashes, TTL refreshed on every write
//
// Rotation and per-user revocation run as Lua scripts, so each is a single
// atomic step on the server. The scripts derive token keys from the user
// index, which requires a single-shard deployment (standalone or sentinel).
package redisstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/bazaarcore/identity/internal/session"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "rememberme"

// rotateScript swaps KEYS[1] for KEYS[2] if KEYS[1] still holds ARGV[1].
//
//	KEYS: old token key, new token key, user index key
//	ARGV: expected value, next value, ttl ms, old hash, new hash
//
// Returns 1 on success, 0 if the old key is gone, -1 if it changed.
var rotateScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
  return 0
end
if current ~= ARGV[1] then
  return -1
end
redis.call('DEL', KEYS[1])
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
redis.call('SREM', KEYS[3], ARGV[4])
redis.call('SADD', KEYS[3], ARGV[5])
redis.call('PEXPIRE', KEYS[3], ARGV[3])
return 1
`)

// deleteUserScript deletes every token listed in the index KEYS[1] and the
// index itself. ARGV[1] is the token key prefix. Returns the number of token
// keys that existed.
var deleteUserScript = redis.NewScript(`
local members = redis.call('SMEMBERS', KEYS[1])
local n = 0
for _, hash in ipairs(members) do
  n = n + redis.call('DEL', ARGV[1] .. hash)
end
redis.call('DEL', KEYS[1])
return n
`)

// Options configure a Redis connection.
type Options struct {
	Addr        string
	Username    string
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration

	// ConnectAttempts bounds the startup ping retries. Zero means 5.
	ConnectAttempts uint64
	// ConnectBackoff is the first retry delay, doubled per attempt. Zero means 200ms.
	ConnectBackoff time.Duration
}

// Store implements session.Store.
type Store struct {
	client redis.UniversalClient
	prefix string
}

var _ session.Store = (*Store)(nil)

// New wraps an existing client. An empty prefix uses DefaultPrefix.
func New(client redis.UniversalClient, prefix string) *Store {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Connect dials Redis and pings it with exponential backoff until it answers
// or the attempts run out.
func Connect(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Username:    opts.Username,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: opts.DialTimeout,
	})

	attempts := opts.ConnectAttempts
	if attempts == 0 {
		attempts = 5
	}
	base := opts.ConnectBackoff
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	backoff := retry.WithCappedDuration(5*time.Second, retry.WithMaxRetries(attempts-1, retry.NewExponential(base)))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, oops.In("redisstore").
			With("addr", opts.Addr).
			With("attempts", attempts).
			Wrap(session.Unavailable("connect", err))
	}
	return New(client, opts.KeyPrefix), nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Client returns the underlying client.
func (s *Store) Client() redis.UniversalClient {
	return s.client
}

func (s *Store) tokenPrefix() string {
	return s.prefix + ":token:"
}

func (s *Store) tokenKey(hash string) string {
	return s.tokenPrefix() + hash
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":user:" + userID
}

// Get implements session.Store.
func (s *Store) Get(ctx context.Context, hash string) (session.Record, error) {
	data, err := s.client.Get(ctx, s.tokenKey(hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return session.Record{}, session.ErrNotFound
	}
	if err != nil {
		return session.Record{}, session.Unavailable("get", err)
	}
	return session.DecodeRecord(data)
}

// Create implements session.Store.
func (s *Store) Create(ctx context.Context, rec session.Record, ttl time.Duration) error {
	data, err := session.EncodeRecord(rec)
	if err != nil {
		return err
	}
	userKey := s.userKey(rec.UserID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey(rec.Hash), data, ttl)
		pipe.SAdd(ctx, userKey, rec.Hash)
		pipe.PExpire(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return session.Unavailable("create", err)
	}
	return nil
}

// Rotate implements session.Store.
func (s *Store) Rotate(ctx context.Context, oldHash string, expected, next session.Record, ttl time.Duration) error {
	want, err := session.EncodeRecord(expected)
	if err != nil {
		return err
	}
	data, err := session.EncodeRecord(next)
	if err != nil {
		return err
	}

	keys := []string{s.tokenKey(oldHash), s.tokenKey(next.Hash), s.userKey(next.UserID)}
	res, err := rotateScript.Run(ctx, s.client, keys,
		want, data, ttl.Milliseconds(), oldHash, next.Hash).Int()
	if err != nil {
		return session.Unavailable("rotate", err)
	}
	if res != 1 {
		return session.ErrNotFound
	}
	return nil
}

// Delete implements session.Store.
func (s *Store) Delete(ctx context.Context, hash string) error {
	key := s.tokenKey(hash)
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return session.Unavailable("delete", err)
	}

	// An undecodable record is still deleted; only the index cleanup is
	// left to the sweeper.
	rec, decodeErr := session.DecodeRecord(data)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if decodeErr == nil {
			pipe.SRem(ctx, s.userKey(rec.UserID), hash)
		}
		return nil
	})
	if err != nil {
		return session.Unavailable("delete", err)
	}
	return nil
}

// DeleteUser implements session.Store.
func (s *Store) DeleteUser(ctx context.Context, userID string) (int, error) {
	n, err := deleteUserScript.Run(ctx, s.client, []string{s.userKey(userID)}, s.tokenPrefix()).Int()
	if err != nil {
		return 0, session.Unavailable("delete_user", err)
	}
	return n, nil
}

// Ping implements session.Store.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return session.Unavailable("ping", err)
	}
	return nil
}
