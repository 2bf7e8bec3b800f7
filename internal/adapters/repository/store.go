// Package repository defines the record store interface and its backends.
package repository

import (
	"context"
	"time"

	"github.com/okian/csvmerge/internal/domain/model"
	"github.com/okian/csvmerge/pkg/metrics"
)

// Record is the stored shape of a completed merge request.
type Record = model.Record

// Store keeps completed merge requests keyed by an integer id.
type Store interface {
	// Create assigns the next id to rec, stores it and returns the id.
	// Ids are non-negative, increase monotonically and are never reused.
	Create(ctx context.Context, rec Record) (int64, error)

	// Get returns the record for id, or ErrNotFound.
	Get(ctx context.Context, id int64) (Record, error)

	// Delete removes the record for id and returns it, or ErrNotFound.
	Delete(ctx context.Context, id int64) (Record, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// DeleteOlderThan removes records created before cutoff and returns how
	// many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// Close releases backend resources.
	Close() error
}

// Supported backend names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// observe records the latency of one store operation.
func observe(backend, op string, start time.Time) {
	metrics.RecordStoreLatency(backend, op, float64(time.Since(start).Microseconds())/1000)
}
