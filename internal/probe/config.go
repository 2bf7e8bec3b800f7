// Package probe drives a running csvmerge service with generated fixtures and
// checks every response against an independent computation of the expected
// series.
package probe

import (
	"time"
)

// Config holds configuration for a probe run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Cases      int           // Number of merge requests to generate
	Companies  int           // Companies per request
	WindowDays int           // Longest window to generate
	MaxLag     int           // Largest lag to request
	Workers    int           // Concurrent submitters
	Timeout    time.Duration // HTTP request timeout
	Seed       uint64        // Fixture generator seed
	OutputFile string        // Where to save generated cases; empty skips saving
	Cleanup    bool          // Delete stored records after verifying them
}

// Stats holds probe statistics.
type Stats struct {
	CasesGenerated int
	Submitted      int
	Passed         int
	Failed         int
	RecordsChecked int
	RowsVerified   int
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}
