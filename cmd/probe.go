package main

import (
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/csvmerge/internal/probe"
)

// Probe defaults.
const (
	defaultBaseURL      = "http://localhost:9080"
	defaultProbeCases   = 100
	defaultCompanies    = 10
	defaultWindowDays   = 60
	defaultMaxLag       = 10
	defaultProbeTimeout = 30 * time.Second
	workerMultiplier    = 2
)

func newProbeCmd() *cobra.Command {
	cfg := &probe.Config{}
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Send generated merges to a running service and verify the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			if !cmd.Flags().Changed("seed") {
				cfg.Seed = uint64(time.Now().UnixNano())
			}
			_, err := probe.Run(ctx, cfg)
			return err
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&cfg.BaseURL, "url", defaultBaseURL, "base URL of the service")
	fl.IntVar(&cfg.Cases, "cases", defaultProbeCases, "number of merge requests")
	fl.IntVar(&cfg.Companies, "companies", defaultCompanies, "companies per request")
	fl.IntVar(&cfg.WindowDays, "window-days", defaultWindowDays, "longest generated window")
	fl.IntVar(&cfg.MaxLag, "max-lag", defaultMaxLag, "largest generated lag")
	fl.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*workerMultiplier, "concurrent requests")
	fl.DurationVar(&cfg.Timeout, "timeout", defaultProbeTimeout, "HTTP request timeout")
	fl.Uint64Var(&cfg.Seed, "seed", 0, "fixture seed (default: time based)")
	fl.StringVar(&cfg.OutputFile, "output", "", "save generated cases as JSON")
	fl.BoolVar(&cfg.Cleanup, "cleanup", false, "delete stored records after verifying them")
	return cmd
}
