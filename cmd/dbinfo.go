// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"sfkit/cli/internal/keychain"
	"sfkit/cli/internal/sqlsource"
)

// dbinfoCmd shows the batch source database with the password masked.
var dbinfoCmd = &cobra.Command{
	Use:   "dbinfo",
	Short: "Show the batch source database connection",
	Long: `The dbinfo command displays the database connection string (DSN) used as the
batch source, with the password masked. SFKIT_DSN and DATABASE_URL take
precedence over the DSN saved by 'sfkit connect'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, source, err := resolveDSN("")
		if err != nil {
			return err
		}
		if dsn == "" {
			pterm.Warning.Println("No database connection configured")
			pterm.Println("   Please run: sfkit connect")
			return nil
		}
		d, err := sqlsource.ParseDSN(dsn)
		if err != nil {
			return err
		}
		pterm.Println("Using DSN from " + source)
		pterm.Println()
		pterm.DefaultBox.
			WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("Database Connection")).
			WithPadding(1).
			Println(d.Redacted())
		pterm.Println()
		pterm.Println("To update this connection, run: sfkit connect")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbinfoCmd)
}

// resolveDSN picks the source database: an explicit value, then SFKIT_DSN,
// then DATABASE_URL, then the keychain. It also names where the DSN came
// from. An empty DSN with a nil error means nothing is configured.
func resolveDSN(explicit string) (dsn, source string, err error) {
	if v := strings.TrimSpace(explicit); v != "" {
		return v, "--dsn", nil
	}
	for _, env := range []string{"SFKIT_DSN", "DATABASE_URL"} {
		if v := strings.TrimSpace(getenv(env)); v != "" {
			return v, env + " environment variable", nil
		}
	}
	km, err := keychain.GetManager()
	if err != nil {
		return "", "", err
	}
	dsn, err = km.LoadDBDSN()
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(dsn), "OS keychain", nil
}
