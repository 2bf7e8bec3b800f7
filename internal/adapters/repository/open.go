package repository

import (
	"context"
	"fmt"
)

// Settings selects and configures a Store backend.
type Settings struct {
	Backend       string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// Open builds the backend named by s.Backend.
func Open(ctx context.Context, s Settings) (Store, error) {
	switch s.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite:
		return NewSQLiteStore(ctx, s.SQLitePath)
	case BackendRedis:
		return NewRedisStore(ctx,
			WithRedisAddr(s.RedisAddr),
			WithRedisPassword(s.RedisPassword),
			WithRedisDB(s.RedisDB),
			WithRedisKeyPrefix(s.RedisPrefix),
		)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, s.Backend)
	}
}
