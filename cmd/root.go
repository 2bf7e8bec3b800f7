package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/okian/csvmerge/pkg/logger"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

// newRootCmd builds the csvmerge command tree.
func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "csvmerge",
		Short: "Merge sparse daily company values into a dense lag-differenced series",
		Long: `csvmerge joins a daily values table (company id, M/D/YY date, integer value)
with a companies table (company id, name) and produces one row per company per
day of a date window, with zero-filled gaps and an n-day difference column.

Examples:
  csvmerge serve --config csvmerge.yaml
  csvmerge merge --daily daily.csv --companies companies.csv --start 3/1/20 --end 3/31/20 -n 7
  csvmerge probe --url http://localhost:9080 --cases 200`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Logs go to stderr so `merge` can write its output to stdout.
			if err := logger.Init(logger.WithFormat(flags.logFormat), logger.WithWriter(cmd.ErrOrStderr())); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			if err := logger.SetLevelString(flags.logLevel); err != nil {
				return fmt.Errorf("invalid --log-level: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "YAML config file (default $CSVMERGE_CONFIG)")
	pf.StringVar(&flags.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&flags.logFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(
		newServeCmd(flags),
		newMergeCmd(),
		newProbeCmd(),
		newVersionCmd(),
	)
	return root
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
