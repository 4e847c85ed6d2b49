// filedrive is a per-user virtual file drive on top of an object store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	cfgFile     string
	logLevel    string
	userFlag    string
	metricsFile string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "filedrive",
		Short: "filedrive - folders and files on top of an object store",
		Long: `filedrive presents a per-user folder tree on a flat object store
(local disk, S3 or MinIO). Folders are derived from key prefixes; empty
folders are kept with a hidden placeholder object.

Examples:
  # List the root folder of user 42
  filedrive --user 42 ls

  # Upload a file into a folder, then rename it
  filedrive --user 42 put ./report.pdf docs/
  filedrive --user 42 mv docs/report.pdf report-2024.pdf

  # Search by name, case-insensitively
  filedrive --user 42 search report

For more help on any command, use: filedrive <command> --help`,
		Version:      fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime),
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "user whose drive to operate on (overrides config)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile after the command")

	rootCmd.AddCommand(
		newLsCmd(),
		newSearchCmd(),
		newPutCmd(),
		newGetCmd(),
		newRmCmd(),
		newMvCmd(),
		newMkdirCmd(),
	)

	return rootCmd
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}
