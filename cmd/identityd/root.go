// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

package main

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/bazaarcore/identity/internal/config"
	"github.com/bazaarcore/identity/internal/logging"
)

// NewRootCmd creates the root command for the identityd CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identityd",
		Short: "Identity and session service",
		Long: `identityd validates phone numbers and passwords, issues and verifies
access tokens, and manages remember-me sessions stored in Redis.`,
		SilenceUsage: true,
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newServeCmd(deps))
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newPhoneCmd())
	cmd.AddCommand(newPasswordCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newSessionCmd(deps))
	cmd.AddCommand(newStatusCmd(deps))

	return cmd
}

// loadSnapshot resolves the configuration from --config and the changed flags.
func loadSnapshot(cmd *cobra.Command) (config.Snapshot, error) {
	return config.Load("", cmd.Flags())
}

// loadFile resolves the configuration without the cross-field checks, for
// commands that only need part of it.
func loadFile(cmd *cobra.Command) (config.File, error) {
	return config.LoadFile("", cmd.Flags())
}

// commandLogger logs to the command's error stream so one-shot commands keep
// stdout for their result.
func commandLogger(cmd *cobra.Command, snap config.Snapshot) *slog.Logger {
	return logging.Setup(serviceName, version, snap.LogFormat, snap.LogLevel, cmd.ErrOrStderr())
}

// readLine reads the first line of r without its line ending.
func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", oops.In("cli").Wrapf(err, "read input")
	}
	return strings.TrimRight(line, "\r\n"), nil
}
