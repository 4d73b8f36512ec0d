// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"sfkit/cli/internal/keychain"
)

var logoutAll bool

// logoutCmd revokes the stored session on the org and removes it locally.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke and remove the stored session",
	Long: `The logout command revokes the stored refresh token on the org (best-effort)
and removes the session from the OS keychain. With --all the saved database
connection is removed too.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newAuthService().Logout(cmd.Context()); err != nil {
			return err
		}
		if logoutAll {
			km, err := keychain.GetManager()
			if err != nil {
				return err
			}
			if err := km.ClearDB(); err != nil {
				return err
			}
			pterm.Success.Println("Session and database connection removed")
			return nil
		}
		pterm.Success.Println("Session removed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "Also remove the saved database connection")
}
