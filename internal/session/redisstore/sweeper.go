// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

package redisstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bazaarcore/identity/internal/session"
)

// DefaultSweepInterval is how often Sweeper.Run scans the user indexes.
const DefaultSweepInterval = 10 * time.Minute

// scanCount is the SCAN batch hint.
const scanCount = 200

// Sweeper removes index members whose token key has expired. Redis expires
// token keys on its own; nothing expires the set members pointing at them.
type Sweeper struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a sweeper over store. A non-positive interval uses
// DefaultSweepInterval.
func NewSweeper(store *Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// Run sweeps every interval until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.InfoContext(ctx, "session index sweeper started", "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(context.WithoutCancel(ctx), "session index sweeper stopped")
			return
		case <-ticker.C:
			removed, err := w.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				w.logger.WarnContext(ctx, "session index sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				w.logger.InfoContext(ctx, "session index swept", "removed", removed)
			}
		}
	}
}

// Sweep makes one pass over all user indexes and returns the number of stale
// members removed.
func (w *Sweeper) Sweep(ctx context.Context) (int, error) {
	s := w.store
	var cursor uint64
	removed := 0
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+":user:*", scanCount).Result()
		if err != nil {
			return removed, session.Unavailable("sweep_scan", err)
		}
		for _, userKey := range keys {
			n, err := w.sweepIndex(ctx, userKey)
			if err != nil {
				return removed, err
			}
			removed += n
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

func (w *Sweeper) sweepIndex(ctx context.Context, userKey string) (int, error) {
	s := w.store
	hashes, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, session.Unavailable("sweep_members", err)
	}
	if len(hashes) == 0 {
		return 0, nil
	}

	exists := make([]*redis.IntCmd, len(hashes))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, hash := range hashes {
			exists[i] = pipe.Exists(ctx, s.tokenKey(hash))
		}
		return nil
	})
	if err != nil {
		return 0, session.Unavailable("sweep_exists", err)
	}

	var stale []any
	for i, cmd := range exists {
		if cmd.Val() == 0 {
			stale = append(stale, hashes[i])
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := s.client.SRem(ctx, userKey, stale...).Err(); err != nil {
		return 0, session.Unavailable("sweep_remove", err)
	}
	return len(stale), nil
}
