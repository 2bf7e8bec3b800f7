// Package service provides the business service behind the HTTP API: it
// runs merges, keeps a record of each request and sweeps expired records.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/csvmerge/internal/adapters/codec"
	"github.com/okian/csvmerge/internal/adapters/repository"
	"github.com/okian/csvmerge/internal/domain/merge"
	"github.com/okian/csvmerge/internal/domain/model"
	"github.com/okian/csvmerge/pkg/logger"
	"github.com/okian/csvmerge/pkg/metrics"
)

// Request is one merge submission as received at the boundary.
type Request struct {
	StartDate string
	EndDate   string
	Lag       string
	Format    codec.Format
	Daily     [][]string
	Companies [][]string
	SenderIP  string
	RequestID string
}

// Outcome is a completed merge and the id of its stored record.
type Outcome struct {
	ID     int64
	Format codec.Format
	Rows   []merge.Row
	Stats  merge.Stats
}

// Stats reports service state for monitoring.
type Stats struct {
	Started       bool   `json:"started"`
	Backend       string `json:"backend"`
	Records       int    `json:"records"`
	MergesOK      int64  `json:"merges_ok"`
	MergesInvalid int64  `json:"merges_invalid"`
	MergesFailed  int64  `json:"merges_failed"`
	Swept         int64  `json:"swept"`
	RetentionMin  int    `json:"retention_minutes"`
}

// Service implements the API dependencies for the merge system.
type Service struct {
	mu sync.RWMutex

	store         repository.Store
	storeSettings repository.Settings
	mergeOpts     []merge.Option
	merger        *merge.Merger
	scheduler     *cron.Cron

	retention     time.Duration
	sweepSchedule string
	now           func() time.Time

	started bool

	mergesOK      atomic.Int64
	mergesInvalid atomic.Int64
	mergesFailed  atomic.Int64
	swept         atomic.Int64

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		storeSettings: repository.Settings{Backend: repository.BackendMemory},
		sweepSchedule: "@every 1m",
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store and schedules the retention sweep.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting merge service...")

	if s.store == nil {
		store, err := repository.Open(ctx, s.storeSettings)
		if err != nil {
			return fmt.Errorf("open %s store: %w", s.backend(), err)
		}
		s.store = store
	}
	s.merger = merge.New(s.mergeOpts...)

	if s.retention > 0 {
		s.scheduler = cron.New()
		if _, err := s.scheduler.AddFunc(s.sweepSchedule, func() {
			if _, err := s.Sweep(context.Background()); err != nil {
				s.logger.Error(context.Background(), "retention sweep failed", logger.Error(err))
			}
		}); err != nil {
			_ = s.store.Close()
			s.store = nil
			return fmt.Errorf("schedule sweep %q: %w", s.sweepSchedule, err)
		}
		s.scheduler.Start()
	}

	if n, err := s.store.Count(ctx); err == nil {
		metrics.UpdateStoredRecords(n)
	}

	s.started = true
	s.logger.Info(ctx, "merge service started",
		logger.String("backend", s.backend()),
		logger.Duration("retention", s.retention),
		logger.String("sweepSchedule", s.sweepSchedule),
	)
	return nil
}

// Stop halts the sweep scheduler and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.logger.Info(context.Background(), "stopping merge service...")
	scheduler := s.scheduler
	s.scheduler = nil
	s.mu.Unlock()

	// A running sweep needs the read lock, so wait for it outside the lock.
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(context.Background(), "closing store", logger.Error(err))
		}
		s.store = nil
	}
	s.started = false
	s.logger.Info(context.Background(), "merge service stopped")
}

func (s *Service) backend() string {
	if s.storeSettings.Backend == "" {
		return repository.BackendMemory
	}
	return s.storeSettings.Backend
}

// running returns the store and merger, or ErrNotStarted.
func (s *Service) running() (repository.Store, *merge.Merger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.store, s.merger, nil
}

// CreateMerge validates and merges req, then stores a record of it. Invalid
// input yields an error matching merge.ErrInvalidInput and stores nothing.
func (s *Service) CreateMerge(ctx context.Context, req Request) (Outcome, error) {
	store, merger, err := s.running()
	if err != nil {
		return Outcome{}, err
	}

	start := time.Now()
	params, err := merge.ParseParams(req.StartDate, req.EndDate, req.Lag)
	if err != nil {
		s.mergesInvalid.Add(1)
		metrics.RecordMerge("invalid")
		return Outcome{}, err
	}

	res, err := merger.Merge(ctx, req.Daily, req.Companies, params)
	if err != nil {
		if errors.Is(err, merge.ErrInvalidInput) {
			s.mergesInvalid.Add(1)
			metrics.RecordMerge("invalid")
		} else {
			s.mergesFailed.Add(1)
			metrics.RecordMerge("error")
		}
		return Outcome{}, err
	}
	metrics.RecordMergeLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordMergeShape(res.Stats.Entities, res.Stats.Days, res.Stats.Rows)
	metrics.RecordRowsDiscarded("out_of_window", res.Stats.OutOfWindow)
	metrics.RecordRowsDiscarded("unknown_entity", res.Stats.UnknownEntity)
	metrics.RecordRowsDiscarded("duplicate", res.Stats.Duplicates)

	rec := model.Record{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Lag:       params.Lag,
		Format:    string(req.Format),
		Daily:     req.Daily,
		Companies: req.Companies,
		SenderIP:  req.SenderIP,
		RequestID: req.RequestID,
		RowCount:  res.Stats.Rows,
		CreatedAt: s.now().UTC(),
	}
	id, err := store.Create(ctx, rec)
	if err != nil {
		s.mergesFailed.Add(1)
		metrics.RecordMerge("error")
		metrics.RecordErrorByComponent("service", "store_create")
		return Outcome{}, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	s.mergesOK.Add(1)
	metrics.RecordMerge("ok")
	s.refreshStoredGauge(ctx, store)

	s.logger.Info(ctx, "merge completed",
		logger.Int64("id", id),
		logger.String("sender", req.SenderIP),
		logger.Int("entities", res.Stats.Entities),
		logger.Int("days", res.Stats.Days),
		logger.Int("rows", res.Stats.Rows),
		logger.Int("outOfWindow", res.Stats.OutOfWindow),
		logger.Int("unknownEntity", res.Stats.UnknownEntity),
		logger.Int("duplicates", res.Stats.Duplicates),
	)
	return Outcome{ID: id, Format: req.Format, Rows: res.Rows, Stats: res.Stats}, nil
}

// GetRecord returns the stored record for id.
func (s *Service) GetRecord(ctx context.Context, id int64) (model.Record, error) {
	store, _, err := s.running()
	if err != nil {
		return model.Record{}, err
	}
	return store.Get(ctx, id)
}

// DeleteRecord removes and returns the stored record for id.
func (s *Service) DeleteRecord(ctx context.Context, id int64) (model.Record, error) {
	store, _, err := s.running()
	if err != nil {
		return model.Record{}, err
	}
	rec, err := store.Delete(ctx, id)
	if err != nil {
		return model.Record{}, err
	}
	s.refreshStoredGauge(ctx, store)
	s.logger.Info(ctx, "record deleted", logger.Int64("id", id))
	return rec, nil
}

// Sweep deletes records older than the retention period and returns how
// many were removed. It is a no-op when retention is disabled.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	store, _, err := s.running()
	if err != nil {
		return 0, err
	}
	if s.retention <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.retention)
	n, err := store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		metrics.RecordErrorByComponent("service", "sweep")
		return 0, err
	}
	s.swept.Add(int64(n))
	metrics.RecordSweptRecords(n)
	s.refreshStoredGauge(ctx, store)
	if n > 0 {
		s.logger.Info(ctx, "retention sweep removed records",
			logger.Int("removed", n),
			logger.String("cutoff", cutoff.Format(time.RFC3339)),
		)
	}
	return n, nil
}

func (s *Service) refreshStoredGauge(ctx context.Context, store repository.Store) {
	if n, err := store.Count(ctx); err == nil {
		metrics.UpdateStoredRecords(n)
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Started:       s.started,
		Backend:       s.backend(),
		MergesOK:      s.mergesOK.Load(),
		MergesInvalid: s.mergesInvalid.Load(),
		MergesFailed:  s.mergesFailed.Load(),
		Swept:         s.swept.Load(),
		RetentionMin:  int(s.retention / time.Minute),
	}
	if s.started {
		if n, err := s.store.Count(ctx); err == nil {
			stats.Records = n
			metrics.UpdateStoredRecords(n)
		}
	}
	return stats
}
