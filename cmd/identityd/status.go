// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/bazaarcore/identity/internal/errkind"
)

// ComponentStatus holds the status of one dependency.
type ComponentStatus struct {
	Component string  `json:"component"`
	Healthy   bool    `json:"healthy"`
	LatencyMS float64 `json:"latency_ms,omitempty"`
	Detail    string  `json:"detail,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
}

func newStatusCmd(deps *Deps) *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check the configuration and the session store",
		Long: `Validate the configuration and ping Redis once. Exits non-zero when a
component is unhealthy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg, deps)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig, deps *Deps) error {
	statuses := queryStatus(cmd, deps)

	if cfg.jsonOutput {
		data, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return oops.In("cli").Wrapf(err, "marshal status")
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		_, _ = fmt.Fprint(cmd.OutOrStdout(), formatStatusTable(statuses))
	}

	var unhealthy []string
	for _, s := range statuses {
		if !s.Healthy {
			unhealthy = append(unhealthy, s.Component)
		}
	}
	if len(unhealthy) > 0 {
		return oops.Code(errkind.CodeStoreUnavailable).
			In("cli").
			With("components", unhealthy).
			Wrapf(errkind.ErrStoreUnavailable, "unhealthy: %s", strings.Join(unhealthy, ", "))
	}
	return nil
}

// queryStatus checks the configuration, then Redis if the configuration is
// usable.
func queryStatus(cmd *cobra.Command, deps *Deps) []ComponentStatus {
	deps = deps.withDefaults()

	cfgStatus := ComponentStatus{Component: "config"}
	snap, err := loadSnapshot(cmd)
	if err != nil {
		cfgStatus.Error = err.Error()
		return []ComponentStatus{cfgStatus, {Component: "redis", Error: "not checked"}}
	}
	cfgStatus.Healthy = true
	cfgStatus.Detail = "version " + snap.Version

	redisStatus := ComponentStatus{Component: "redis", Detail: snap.Redis.Addr}
	opts := snap.Redis
	opts.ConnectAttempts = 1

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := deps.Connect(ctx, opts)
	if err != nil {
		redisStatus.Error = err.Error()
		return []ComponentStatus{cfgStatus, redisStatus}
	}
	defer func() { _ = store.Close() }()

	pingCtx, cancel := context.WithTimeout(ctx, snap.Session.OpTimeout)
	defer cancel()
	start := time.Now()
	if err := store.Ping(pingCtx); err != nil {
		redisStatus.Error = err.Error()
		return []ComponentStatus{cfgStatus, redisStatus}
	}
	redisStatus.Healthy = true
	redisStatus.LatencyMS = float64(time.Since(start).Microseconds()) / 1000

	return []ComponentStatus{cfgStatus, redisStatus}
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(statuses []ComponentStatus) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "COMPONENT\tSTATUS\tLATENCY\tDETAIL")
	_, _ = fmt.Fprintln(w, "---------\t------\t-------\t------")

	for _, s := range statuses {
		if s.Healthy {
			latency := "-"
			if s.LatencyMS > 0 {
				latency = fmt.Sprintf("%.2fms", s.LatencyMS)
			}
			_, _ = fmt.Fprintf(w, "%s\thealthy\t%s\t%s\n", s.Component, latency, s.Detail)
		} else {
			_, _ = fmt.Fprintf(w, "%s\tunhealthy\t-\t%s\n", s.Component, s.Error)
		}
	}

	_ = w.Flush()
	return b.String()
}
