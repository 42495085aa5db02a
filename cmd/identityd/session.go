// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bazaarcore/identity/internal/config"
	"github.com/bazaarcore/identity/internal/session"
	"github.com/bazaarcore/identity/internal/session/redisstore"
)

func newSessionCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage remember-me sessions",
	}
	cmd.AddCommand(newSessionRevokeAllCmd(deps))
	cmd.AddCommand(newSessionSweepCmd(deps))
	return cmd
}

func newSessionRevokeAllCmd(deps *Deps) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "revoke-all",
		Short: "Revoke every remember-me token of a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, deps, func(ctx context.Context, snap config.Snapshot, store *redisstore.Store) error {
				manager, err := session.NewManager(store, snap.Session, session.WithLogger(commandLogger(cmd, snap)))
				if err != nil {
					return err
				}
				n, err := manager.RevokeAll(ctx, userID)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "revoked %d remember-me tokens for user %s\n", n, userID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user ID (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newSessionSweepCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove stale entries from the per-user session indexes once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, deps, func(ctx context.Context, snap config.Snapshot, store *redisstore.Store) error {
				n, err := redisstore.NewSweeper(store, snap.SweepInterval, commandLogger(cmd, snap)).Sweep(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %d stale index entries\n", n)
				return nil
			})
		},
	}
}

// withStore loads the configuration, connects to Redis and runs fn.
func withStore(cmd *cobra.Command, deps *Deps, fn func(context.Context, config.Snapshot, *redisstore.Store) error) error {
	deps = deps.withDefaults()
	snap, err := loadSnapshot(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := deps.Connect(ctx, snap.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return fn(ctx, snap, store)
}
