// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/bazaarcore/identity/internal/logging"
	"github.com/bazaarcore/identity/internal/session"
	"github.com/bazaarcore/identity/internal/session/redisstore"
	"github.com/bazaarcore/identity/pkg/errutil"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the session index sweeper and the health endpoints",
		Long: `Connect to Redis, sweep stale remember-me index entries on an interval,
and serve /metrics and /healthz probes until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, deps)
		},
	}
}

// runServe runs the service with injectable dependencies.
// If deps is nil, default implementations are used.
func runServe(ctx context.Context, cmd *cobra.Command, deps *Deps) error {
	deps = deps.withDefaults()

	snap, err := loadSnapshot(cmd)
	if err != nil {
		return err
	}

	logger := logging.Setup(serviceName, version, snap.LogFormat, snap.LogLevel, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	logger.Info("starting identity service",
		"redis_addr", snap.Redis.Addr,
		"metrics_addr", snap.MetricsAddr,
		"fingerprint_policy", string(snap.Session.FingerprintPolicy),
	)

	store, err := deps.Connect(ctx, snap.Redis)
	if err != nil {
		errutil.LogErrorContext(ctx, logger, "failed to connect to session store", err)
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Debug("error closing session store", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	if snap.MetricsAddr != "" {
		// Ready while the session store answers within the operation timeout.
		var manager *session.Manager
		obsServer = deps.ObservabilityServerFactory(snap.MetricsAddr, func(ctx context.Context) bool {
			return manager.Ping(ctx) == nil
		})
		manager, err = session.NewManager(store, snap.Session,
			session.WithLogger(logger),
			session.WithRecorder(obsServer.Metrics()),
		)
		if err != nil {
			return err
		}

		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.In("cli").With("addr", snap.MetricsAddr).Wrapf(err, "start observability server")
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	sweeper := redisstore.NewSweeper(store, snap.SweepInterval, logger.With("component", "sweeper"))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "identityd ready")
	logger.Info("identity service ready", "sweep_interval", snap.SweepInterval.String())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	cancel()
	wg.Wait()

	if obsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// monitorServerErrors cancels ctx when the server reports an error. It exits
// when an error is received, the channel is closed, or ctx is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
