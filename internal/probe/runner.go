package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/csvmerge/pkg/logger"
)

const (
	directoryPermission = 0750
	filePermission      = 0600
	percentage          = 100
)

// Run generates cases, submits them to the service concurrently and verifies
// every merged body and stored record. It returns ErrVerification when any
// case fails.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting csvmerge probe",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("cases", cfg.Cases),
		logger.Int("companies", cfg.Companies),
		logger.Int("windowDays", cfg.WindowDays),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout))

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check service health
	if err := client.health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate cases
	cases := generateCases(cfg)
	stats.CasesGenerated = len(cases)

	// Step 3: Save cases so a failing run can be replayed
	if cfg.OutputFile != "" {
		if err := saveCases(ctx, cfg.OutputFile, cases); err != nil {
			logger.Get().Warn(ctx, "failed to save cases to file", logger.Error(err))
		}
	}

	// Step 4: Submit and verify concurrently
	failures := runCases(ctx, cfg, client, cases, stats)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if len(failures) > 0 {
		return stats, fmt.Errorf("%w: %d of %d cases failed: %w",
			ErrVerification, len(failures), len(cases), errors.Join(failures...))
	}
	logger.Get().Info(ctx, "probe completed successfully")
	return stats, nil
}

// runCases fans cases out to cfg.Workers goroutines. A failed case does not
// stop the others; its error is collected.
func runCases(ctx context.Context, cfg *Config, client *httpClient, cases []Case, stats *Stats) []error {
	var (
		submitted, passed, failed, records, rows atomic.Int64

		mu       sync.Mutex
		failures []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for _, tc := range cases {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			submitted.Add(1)
			n, checked, err := runCase(gctx, cfg, client, tc)
			rows.Add(int64(n))
			if checked {
				records.Add(1)
			}
			if err != nil {
				failed.Add(1)
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
				logger.Get().Warn(gctx, "case failed", logger.String("case", tc.ID), logger.Error(err))
				return nil
			}
			passed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	stats.Submitted = int(submitted.Load())
	stats.Passed = int(passed.Load())
	stats.Failed = int(failed.Load())
	stats.RecordsChecked = int(records.Load())
	stats.RowsVerified = int(rows.Load())
	return failures
}

// runCase submits one case and checks both the body and the stored record.
func runCase(ctx context.Context, cfg *Config, client *httpClient, tc Case) (int, bool, error) {
	resp, err := client.submit(ctx, tc)
	if err != nil {
		return 0, false, fmt.Errorf("case %s: %w", tc.ID, err)
	}
	rows, err := verifyBody(tc, resp.Body)
	if err != nil {
		return 0, false, err
	}
	rec, err := client.record(ctx, resp.RecordID)
	if err != nil {
		return rows, false, fmt.Errorf("case %s: %w", tc.ID, err)
	}
	if err := verifyRecord(tc, resp.RecordID, rows, rec); err != nil {
		return rows, true, fmt.Errorf("case %s: %w", tc.ID, err)
	}
	if cfg.Cleanup {
		if err := client.deleteRecord(ctx, resp.RecordID); err != nil {
			return rows, true, fmt.Errorf("case %s: %w", tc.ID, err)
		}
	}
	return rows, true, nil
}

// saveCases writes the generated cases as a JSON array.
func saveCases(ctx context.Context, filename string, cases []Case) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(cases, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cases: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Get().Info(ctx, "cases saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final probe statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var passRate, casesPerSecond float64
	if stats.Submitted > 0 {
		passRate = float64(stats.Passed) / float64(stats.Submitted) * percentage
	}
	if stats.Duration > 0 {
		casesPerSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("casesGenerated", stats.CasesGenerated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("passed", stats.Passed),
		logger.Int("failed", stats.Failed),
		logger.Int("recordsChecked", stats.RecordsChecked),
		logger.Int("rowsVerified", stats.RowsVerified),
		logger.Duration("duration", stats.Duration),
		logger.Float64("passRate", passRate),
		logger.Float64("casesPerSecond", casesPerSecond))
}
