// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/bazaarcore/identity/internal/errkind"
	"github.com/bazaarcore/identity/internal/token"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and verify access tokens",
	}
	cmd.AddCommand(newTokenIssueCmd())
	cmd.AddCommand(newTokenVerifyCmd())
	cmd.AddCommand(newTokenSecretCmd())
	return cmd
}

func newTokenIssueCmd() *cobra.Command {
	var (
		principal token.Principal
		ttl       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue an access token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := tokenService(cmd)
			if err != nil {
				return err
			}
			raw, claims, err := svc.Issue(principal, ttl)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), raw)
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", claims.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&principal.UserID, "user", "", "user ID (required)")
	cmd.Flags().StringVar(&principal.Role, "role", "customer", "user role")
	cmd.Flags().StringVar(&principal.SessionID, "session", "", "session ID to embed")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: token.access_ttl)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newTokenVerifyCmd() *cobra.Command {
	var header string

	cmd := &cobra.Command{
		Use:   "verify [token]",
		Short: "Verify an access token and print its claims",
		Long: `Verify an access token given as an argument, or taken from an
Authorization header value with --header "Bearer <token>".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := tokenArg(args, header)
			if err != nil {
				return err
			}
			svc, err := tokenService(cmd)
			if err != nil {
				return err
			}
			claims, err := svc.Verify(raw)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "user:\t%s\n", claims.UserID)
			_, _ = fmt.Fprintf(w, "role:\t%s\n", claims.Role)
			if claims.SessionID != "" {
				_, _ = fmt.Fprintf(w, "session:\t%s\n", claims.SessionID)
			}
			_, _ = fmt.Fprintf(w, "issuer:\t%s\n", claims.Issuer)
			_, _ = fmt.Fprintf(w, "audience:\t%s\n", claims.Audience)
			_, _ = fmt.Fprintf(w, "issued:\t%s\n", claims.IssuedAt.Format(time.RFC3339))
			_, _ = fmt.Fprintf(w, "expires:\t%s\n", claims.ExpiresAt.Format(time.RFC3339))
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&header, "header", "", "Authorization header value")
	return cmd
}

func newTokenSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "secret",
		Short: "Generate a random signing secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := token.GenerateSecret()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}
}

func tokenService(cmd *cobra.Command) (*token.Service, error) {
	snap, err := loadSnapshot(cmd)
	if err != nil {
		return nil, err
	}
	return token.New(snap.Token)
}

// tokenArg picks the token from the positional argument or the header flag.
func tokenArg(args []string, header string) (string, error) {
	switch {
	case len(args) == 1 && header != "":
		return "", oops.Code(errkind.CodeTokenMalformed).In("cli").
			Wrapf(errkind.ErrValidation, "pass the token as an argument or with --header, not both")
	case len(args) == 1:
		return args[0], nil
	case header != "":
		raw, ok := token.ExtractBearer(header)
		if !ok {
			return "", oops.Code(errkind.CodeTokenMalformed).In("cli").
				Wrapf(errkind.ErrAuth, "header is not a bearer credential")
		}
		return raw, nil
	default:
		return "", oops.Code(errkind.CodeTokenMalformed).In("cli").
			Wrapf(errkind.ErrValidation, "no token given")
	}
}
