package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/csvmerge/internal/adapters/codec"
	"github.com/okian/csvmerge/internal/domain/merge"
	"github.com/okian/csvmerge/pkg/logger"
)

const outputPermission = 0o644

type mergeFlags struct {
	daily, companies string
	start, end       string
	lag              string
	format           string
	output           string
	hasHeader        bool
	policy           string
	strict           bool
	maxWindowDays    int
}

// newMergeCmd merges two local files without running the service.
func newMergeCmd() *cobra.Command {
	f := &mergeFlags{}
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge local daily and companies files",
		Long: `Merge reads the daily values and companies tables from disk (CSV, or XLSX when
the file name ends in .xlsx), merges them over [--start, --end] and writes the
result to --output or stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMerge(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.daily, "daily", "", "daily values file: company id, M/D/YY date, integer value")
	fl.StringVar(&f.companies, "companies", "", "companies file: company id, name")
	fl.StringVar(&f.start, "start", "", "first day of the window, M/D/YY")
	fl.StringVar(&f.end, "end", "", "last day of the window, M/D/YY")
	fl.StringVarP(&f.lag, "lag", "n", "0", "lag in days for the difference column")
	fl.StringVar(&f.format, "format", "csv", "output format: csv or xlsx")
	fl.StringVarP(&f.output, "output", "o", "", "output file (default stdout)")
	fl.BoolVar(&f.hasHeader, "has-header", false, "skip the first row of both input files")
	fl.StringVar(&f.policy, "duplicate-policy", "first", "same-day rows of one company: first, last or sum")
	fl.BoolVar(&f.strict, "strict", false, "reject daily rows for companies missing from the companies file")
	fl.IntVar(&f.maxWindowDays, "max-window-days", 0, "reject longer windows; 0 disables the cap")
	for _, name := range []string{"daily", "companies", "start", "end"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runMerge(cmd *cobra.Command, f *mergeFlags) error {
	ctx := cmd.Context()
	started := time.Now()

	format, err := codec.ParseFormat(f.format)
	if err != nil {
		return err
	}
	policy, err := merge.ParseDuplicatePolicy(f.policy)
	if err != nil {
		return err
	}
	params, err := merge.ParseParams(f.start, f.end, f.lag)
	if err != nil {
		return err
	}
	daily, err := readFile(f.daily, f.hasHeader)
	if err != nil {
		return err
	}
	companies, err := readFile(f.companies, f.hasHeader)
	if err != nil {
		return err
	}

	m := merge.New(
		merge.WithDuplicatePolicy(policy),
		merge.WithStrictEntities(f.strict),
		merge.WithMaxWindowDays(f.maxWindowDays),
	)
	res, err := m.Merge(ctx, daily, companies, params)
	if err != nil {
		return err
	}

	if err := writeOutput(cmd.OutOrStdout(), f.output, format, res.Rows); err != nil {
		return err
	}
	logger.Get().Info(ctx, "merge completed",
		logger.Int("entities", res.Stats.Entities),
		logger.Int("days", res.Stats.Days),
		logger.Int("rows", res.Stats.Rows),
		logger.Int("outOfWindow", res.Stats.OutOfWindow),
		logger.Int("unknownEntity", res.Stats.UnknownEntity),
		logger.Int("duplicates", res.Stats.Duplicates),
		logger.Duration("elapsed", time.Since(started)))
	return nil
}

func readFile(path string, skipHeader bool) ([][]string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	return codec.Decode(path, file, codec.WithSkipHeader(skipHeader))
}

// writeOutput encodes rows to path, or to stdout when path is empty.
func writeOutput(stdout io.Writer, path string, format codec.Format, rows []merge.Row) error {
	if path == "" {
		return format.Encode(stdout, rows)
	}
	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, outputPermission)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := format.Encode(file, rows); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
