// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bazaarcore/identity/internal/phone"
)

func newPhoneCmd() *cobra.Command {
	var useCase string

	cmd := &cobra.Command{
		Use:   "phone <number>",
		Short: "Normalize and classify a phone number",
		Long: `Normalize a phone number, classify it as mobile or landline, and check
it against a use case's accepted classes. Exits non-zero when rejected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFile(cmd)
			if err != nil {
				return err
			}
			plan, err := f.PhonePlan()
			if err != nil {
				return err
			}
			v, err := phone.NewValidator(plan)
			if err != nil {
				return err
			}

			out := v.ValidateForUseCase(args[0], phone.UseCase(useCase))

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "input:\t%s\n", out.Number.Raw)
			if out.Number.Normalized != "" {
				_, _ = fmt.Fprintf(w, "normalized:\t%s\n", out.Number.Normalized)
				_, _ = fmt.Fprintf(w, "class:\t%s\n", out.Number.Class)
			}
			if out.Number.Class == phone.Landline {
				_, _ = fmt.Fprintf(w, "area code:\t%s (%s)\n", out.Number.AreaCode, out.Number.Region)
			}
			_, _ = fmt.Fprintf(w, "use case:\t%s\n", out.UseCase)
			if out.OK() {
				_, _ = fmt.Fprintln(w, "result:\taccepted")
			} else {
				_, _ = fmt.Fprintf(w, "result:\trejected (%s)\n", out.Reason)
			}
			_ = w.Flush()

			return out.Err()
		},
	}

	cmd.Flags().StringVar(&useCase, "use-case", string(phone.UseCaseRegistration), "use case to check (registration, login, contact)")
	return cmd
}
