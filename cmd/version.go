// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"sfkit/cli/internal/backend"
	"sfkit/cli/internal/discovery"
)

var (
	// Version holds the CLI version information.
	// This value is typically set at build time using -ldflags.
	Version = "0.0.0-dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show CLI version and the API versions of the logged-in org",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		printVersion(cmd)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// printVersion prints the CLI version and, when a session is stored, the
// API version in use next to the newest one the org serves. Org lookups
// are best-effort.
func printVersion(cmd *cobra.Command) {
	pterm.Printf("sfkit %s\n", Version)

	tr, err := newAuthService().Transport()
	if err != nil {
		return
	}
	sess := tr.Session()
	latest, err := discovery.Latest(cmd.Context(), backend.New(tr), sess.InstanceURL)
	if err != nil {
		logger.Debug("api version lookup failed", "error", err)
		latest = "unknown"
	}
	pterm.Printf("api %s (org latest %s)\n", sess.Version(), latest)
	if latest != "unknown" && latest != sess.Version() {
		pterm.Info.Printf("A newer API version is available; pass --api-version %s to use it\n", latest)
	}
}
