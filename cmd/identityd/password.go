// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bazaarcore/identity/internal/password"
)

func newPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Check and hash passwords",
	}
	cmd.AddCommand(newPasswordCheckCmd())
	cmd.AddCommand(newPasswordHashCmd())
	return cmd
}

func newPasswordCheckCmd() *cobra.Command {
	var info password.PersonalInfo

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check a password read from stdin against the strength policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := loadFile(cmd)
			if err != nil {
				return err
			}
			engine, err := password.NewEngine(f.PasswordPolicy())
			if err != nil {
				return err
			}
			pw, err := readLine(cmd.InOrStdin())
			if err != nil {
				return err
			}

			result := engine.ValidateStrength(pw, info)
			if result.Valid {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "password accepted")
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "password rejected:")
			for _, v := range result.Violations {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", v)
			}
			return result.Err()
		},
	}

	cmd.Flags().StringVar(&info.FirstName, "first-name", "", "account holder's first name")
	cmd.Flags().StringVar(&info.LastName, "last-name", "", "account holder's last name")
	cmd.Flags().StringVar(&info.Email, "email", "", "account email address")
	cmd.Flags().StringVar(&info.Phone, "phone", "", "account phone number")
	return cmd
}

func newPasswordHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash",
		Short: "Hash a password read from stdin with argon2id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := readLine(cmd.InOrStdin())
			if err != nil {
				return err
			}
			encoded, err := password.NewArgon2idHasher(password.DefaultParams()).Hash(pw)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), encoded)
			return nil
		},
	}
}
