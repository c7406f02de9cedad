// Package main provides the entry point for the gitperf CLI tool.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gitperf/cmd/gitperf/commands"
	"github.com/Sumatoshi-tech/gitperf/internal/config"
	"github.com/Sumatoshi-tech/gitperf/internal/observability"
	"github.com/Sumatoshi-tech/gitperf/internal/vcs"
	"github.com/Sumatoshi-tech/gitperf/pkg/version"
)

var (
	logLevel    string
	logFormat   string
	metricsAddr string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "gitperf",
		Short: "Store and consolidate performance measurements as git notes",
		Long: `gitperf records numeric performance measurements as git-notes
annotations on commits, consolidating concurrent writers through a
commutative merge strategy.

Commands:
  add               Add a single measurement against HEAD
  add-multiple      Add several values for one measurement
  push              Publish local measurements to the remote
  pull              Fetch measurements from the remote
  log               Print recorded measurements as a table
  report            Render an HTML performance report
  bump-epoch        Start a new epoch for a measurement at HEAD
  remove-older-than Remove measurements for commits older than a threshold
  prune             Remove measurements for unreachable commits`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cobraCmd *cobra.Command, _ []string) error {
			level, format := logLevel, logFormat
			if cfg, err := config.Load(filepath.Join(commands.RepoDir, config.DefaultPath)); err == nil {
				if !cobraCmd.Flags().Changed("log-level") && cfg.Logging.Level != "" {
					level = cfg.Logging.Level
				}

				if !cobraCmd.Flags().Changed("log-format") && cfg.Logging.Format != "" {
					format = cfg.Logging.Format
				}
			}

			logger := observability.NewLogger(observability.LoggerConfig{Level: level, Format: format})
			slog.SetDefault(logger)

			metrics, reg := observability.NewMetrics()
			commands.EngineMetrics = metrics

			if metricsAddr != "" {
				go func() {
					if err := observability.ServeMetrics(ctx, metricsAddr, reg); err != nil {
						logger.Error("metrics listener stopped", "error", err)
					}
				}()
			}

			runner := vcs.NewRunner(commands.RepoDir)

			return runner.CheckVersion(cobraCmd.Context())
		},
	}

	rootCmd.SetContext(ctx)

	rootCmd.PersistentFlags().StringVar(&commands.RepoDir, "repo", ".", "path to the git repository")
	rootCmd.PersistentFlags().StringVar(&commands.Remote, "remote", "", "remote to push/pull/prune against (default: auto-provisioned from origin)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text, json")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (disabled if empty)")

	rootCmd.AddCommand(commands.NewAddCommand())
	rootCmd.AddCommand(commands.NewAddMultipleCommand())
	rootCmd.AddCommand(commands.NewPushCommand())
	rootCmd.AddCommand(commands.NewPullCommand())
	rootCmd.AddCommand(commands.NewLogCommand())
	rootCmd.AddCommand(commands.NewReportCommand())
	rootCmd.AddCommand(commands.NewBumpEpochCommand())
	rootCmd.AddCommand(commands.NewRemoveOlderThanCommand())
	rootCmd.AddCommand(commands.NewPruneCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		if vcs.IsTransient(err) {
			os.Exit(2)
		}

		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "gitperf %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
