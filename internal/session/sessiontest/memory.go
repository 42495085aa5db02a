// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

// Package sessiontest provides an in-memory session.Store for tests.
package sessiontest

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/bazaarcore/identity/internal/session"
)

type entry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is a mutex-guarded session.Store. TTLs are enforced lazily
// against Now. The zero value is not usable; call NewMemoryStore.
type MemoryStore struct {
	mu    sync.Mutex
	now   func() time.Time
	items map[string]entry
	users map[string]map[string]struct{}
	fail  error

	// BeforeRotate, if set, runs after a Rotate call enters the store and
	// before it takes the lock. Tests use it to line up concurrent rotations.
	BeforeRotate func()
}

// NewMemoryStore creates an empty store. A nil now uses time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		now:   now,
		items: make(map[string]entry),
		users: make(map[string]map[string]struct{}),
	}
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// Len returns the number of live records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for hash := range s.items {
		if _, ok := s.liveLocked(hash); ok {
			n++
		}
	}
	return n
}

// Get implements session.Store.
func (s *MemoryStore) Get(ctx context.Context, hash string) (session.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(ctx, "get"); err != nil {
		return session.Record{}, err
	}
	e, ok := s.liveLocked(hash)
	if !ok {
		return session.Record{}, session.ErrNotFound
	}
	return session.DecodeRecord(e.data)
}

// Create implements session.Store.
func (s *MemoryStore) Create(ctx context.Context, rec session.Record, ttl time.Duration) error {
	data, err := session.EncodeRecord(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(ctx, "create"); err != nil {
		return err
	}
	s.putLocked(rec, data, ttl)
	return nil
}

// Rotate implements session.Store.
func (s *MemoryStore) Rotate(ctx context.Context, oldHash string, expected, next session.Record, ttl time.Duration) error {
	want, err := session.EncodeRecord(expected)
	if err != nil {
		return err
	}
	data, err := session.EncodeRecord(next)
	if err != nil {
		return err
	}
	if s.BeforeRotate != nil {
		s.BeforeRotate()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(ctx, "rotate"); err != nil {
		return err
	}
	e, ok := s.liveLocked(oldHash)
	if !ok || !bytes.Equal(e.data, want) {
		return session.ErrNotFound
	}
	s.deleteLocked(oldHash, expected.UserID)
	s.putLocked(next, data, ttl)
	return nil
}

// Delete implements session.Store.
func (s *MemoryStore) Delete(ctx context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(ctx, "delete"); err != nil {
		return err
	}
	e, ok := s.items[hash]
	if !ok {
		return nil
	}
	rec, err := session.DecodeRecord(e.data)
	if err != nil {
		delete(s.items, hash)
		return nil
	}
	s.deleteLocked(hash, rec.UserID)
	return nil
}

// DeleteUser implements session.Store.
func (s *MemoryStore) DeleteUser(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(ctx, "delete_user"); err != nil {
		return 0, err
	}
	n := 0
	for hash := range s.users[userID] {
		if _, ok := s.liveLocked(hash); ok {
			n++
		}
		delete(s.items, hash)
	}
	delete(s.users, userID)
	return n, nil
}

// Ping implements session.Store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkLocked(ctx, "ping")
}

func (s *MemoryStore) checkLocked(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return session.Unavailable(op, err)
	}
	if s.fail != nil {
		return session.Unavailable(op, s.fail)
	}
	return nil
}

// liveLocked returns the entry under hash, evicting it if its TTL has passed.
func (s *MemoryStore) liveLocked(hash string) (entry, bool) {
	e, ok := s.items[hash]
	if !ok {
		return entry{}, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.items, hash)
		return entry{}, false
	}
	return e, true
}

func (s *MemoryStore) putLocked(rec session.Record, data []byte, ttl time.Duration) {
	s.items[rec.Hash] = entry{data: data, expiresAt: s.now().Add(ttl)}
	set, ok := s.users[rec.UserID]
	if !ok {
		set = make(map[string]struct{})
		s.users[rec.UserID] = set
	}
	set[rec.Hash] = struct{}{}
}

func (s *MemoryStore) deleteLocked(hash, userID string) {
	delete(s.items, hash)
	if set, ok := s.users[userID]; ok {
		delete(set, hash)
		if len(set) == 0 {
			delete(s.users, userID)
		}
	}
}
