// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for sfkit.
// It implements subcommands for authentication, SOQL queries, bulk ingest
// jobs, file archives and deploy status using the Cobra CLI framework, with
// pterm for terminal output.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"sfkit/cli/internal/config"
	sferrors "sfkit/cli/internal/errors"
	"sfkit/cli/internal/logging"
)

var (
	showVersion bool
	logLevel    string
	apiVersion  string

	// cfg and logger are set before any subcommand runs.
	cfg    = config.Defaults()
	logger = slog.Default()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:           "sfkit",
	Short:         "sfkit is a command-line client for CRM platform orgs",
	Long:          `sfkit runs SOQL queries, drives bulk ingest jobs, streams file archives and reports deploy status against a CRM platform org.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		if apiVersion != "" {
			cfg.APIVersion = apiVersion
		}
		logger = logging.NewLogger(cfg.LogLevel, os.Stderr)
		slog.SetDefault(logger)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			printVersion(cmd)
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the CLI application. An interrupt cancels the command's
// context; in-flight downloads and polls stop without further output.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if merr := writeMetrics(metricsFile, prometheus.DefaultGatherer); merr != nil {
		logger.Warn("could not write metrics", "path", metricsFile, "error", merr)
	}
	if err == nil {
		return
	}
	if sferrors.IsKind(err, sferrors.Canceled) || errors.Is(err, context.Canceled) {
		os.Exit(130)
	}
	if msg := logging.FormatError(err); msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(1)
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show CLI and org API version information")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write request and archive metrics to this file on exit (Prometheus text format)")
	rootCmd.PersistentFlags().StringVar(&apiVersion, "api-version", "", "API version to call, e.g. 60.0 (overrides the stored session)")
	pterm.Error.Prefix = pterm.Prefix{Text: "ERROR", Style: pterm.NewStyle(pterm.BgRed, pterm.FgLightWhite)}
}
