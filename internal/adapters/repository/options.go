package repository

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// redisConfig holds connection settings for RedisStore.
type redisConfig struct {
	Addr        string
	Password    string
	DB          int
	Prefix      string
	PoolSize    int
	DialTimeout time.Duration
	client      *redis.Client
}

// RedisOption configures a RedisStore.
type RedisOption func(*redisConfig)

// WithRedisAddr sets the host:port of the server.
func WithRedisAddr(addr string) RedisOption {
	return func(c *redisConfig) {
		if addr != "" {
			c.Addr = addr
		}
	}
}

// WithRedisPassword sets the AUTH password.
func WithRedisPassword(password string) RedisOption {
	return func(c *redisConfig) { c.Password = password }
}

// WithRedisDB selects the logical database.
func WithRedisDB(db int) RedisOption {
	return func(c *redisConfig) {
		if db >= 0 {
			c.DB = db
		}
	}
}

// WithRedisKeyPrefix namespaces every key the store writes.
func WithRedisKeyPrefix(prefix string) RedisOption {
	return func(c *redisConfig) {
		if prefix != "" {
			c.Prefix = prefix
		}
	}
}

// WithRedisPoolSize sets the connection pool size.
func WithRedisPoolSize(n int) RedisOption {
	return func(c *redisConfig) {
		if n > 0 {
			c.PoolSize = n
		}
	}
}

// WithRedisClient uses an existing client instead of dialing a new one.
func WithRedisClient(client *redis.Client) RedisOption {
	return func(c *redisConfig) { c.client = client }
}
