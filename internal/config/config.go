// Package config defines service configuration and its loading hooks.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// MaxUploadBytes caps the size of one multipart upload.
	MaxUploadBytes int64 `koanf:"max_upload_bytes" validate:"min=1"`

	// MaxWindowDays caps end-start+1; 0 disables the cap.
	MaxWindowDays int `koanf:"max_window_days" validate:"min=0"`

	// MergeParallelism bounds concurrent per-entity fills; 0 means NumCPU.
	MergeParallelism int `koanf:"merge_parallelism" validate:"min=0"`

	// DuplicatePolicy resolves repeated (entity, date) rows: first, last or sum.
	DuplicatePolicy string `koanf:"duplicate_policy" validate:"oneof=first last sum"`

	// StrictEntities rejects daily rows whose entity is not in the directory.
	StrictEntities bool `koanf:"strict_entities"`

	// StoreBackend picks the record store: memory, sqlite or redis.
	StoreBackend string `koanf:"store_backend" validate:"oneof=memory sqlite redis"`

	SQLitePath     string `koanf:"sqlite_path" validate:"required_if=StoreBackend sqlite"`
	RedisAddr      string `koanf:"redis_addr" validate:"required_if=StoreBackend redis"`
	RedisPassword  string `koanf:"redis_password"`
	RedisDB        int    `koanf:"redis_db" validate:"min=0"`
	RedisKeyPrefix string `koanf:"redis_key_prefix"`

	// RetentionMinutes drops records older than this; 0 keeps them forever.
	RetentionMinutes int `koanf:"retention_minutes" validate:"min=0"`

	// SweepSchedule is the cron spec for retention sweeps.
	SweepSchedule string `koanf:"sweep_schedule" validate:"required"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		MaxUploadBytes:   32 << 20,
		MaxWindowDays:    3660,
		MergeParallelism: 0,
		DuplicatePolicy:  "first",
		StoreBackend:     "memory",
		SQLitePath:       "csvmerge.db",
		RedisAddr:        "localhost:6379",
		RedisKeyPrefix:   "csvmerge",
		RetentionMinutes: 0,
		SweepSchedule:    "@every 1m",
	}
}
