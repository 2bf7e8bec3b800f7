package service

import (
	"time"

	"github.com/okian/csvmerge/internal/adapters/repository"
	"github.com/okian/csvmerge/internal/domain/merge"
	"github.com/okian/csvmerge/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore uses an already opened store instead of opening one on Start.
// The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithStoreSettings selects the backend opened on Start.
func WithStoreSettings(settings repository.Settings) Option {
	return func(s *Service) { s.storeSettings = settings }
}

// WithMergeOptions configures the merger.
func WithMergeOptions(opts ...merge.Option) Option {
	return func(s *Service) { s.mergeOpts = append(s.mergeOpts, opts...) }
}

// WithRetention drops records older than d on every sweep; 0 disables sweeping.
func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.retention = d
		}
	}
}

// WithSweepSchedule sets the cron spec of the retention sweep.
func WithSweepSchedule(spec string) Option {
	return func(s *Service) {
		if spec != "" {
			s.sweepSchedule = spec
		}
	}
}

// WithClock overrides the time source used for record timestamps and sweeps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
