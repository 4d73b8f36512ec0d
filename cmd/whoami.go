// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"sfkit/cli/internal/keychain"
)

// whoamiCmd shows the stored session and the identity behind it.
var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	Aliases: []string{"me"},
	Short:   "Show current authenticated account",
	Long: `The whoami command validates the stored session against the org's userinfo
endpoint and shows the account, org and API version in use. An expired access
token is refreshed on the way when a refresh token is stored.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, me, err := newAuthService().WhoAmI(cmd.Context())
		if errors.Is(err, keychain.ErrNotLoggedIn) {
			pterm.Println("🔒 You're not logged in yet!")
			pterm.Println("   Run 'sfkit login' to get started.")
			return nil
		}
		if err != nil {
			return networkError(err, "checking the session", sess.InstanceURL)
		}

		refresh := "no"
		if sess.CanRefresh() {
			refresh = "yes"
		}
		rows := pterm.TableData{
			{"Account", me.Account()},
			{"User ID", me.UserID},
			{"Org ID", me.OrganizationID},
			{"Instance", sess.InstanceURL},
			{"API version", sess.Version()},
			{"Refreshable", refresh},
		}
		return pterm.DefaultTable.WithData(rows).Render()
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
