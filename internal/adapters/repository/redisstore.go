package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps records as JSON strings in Redis. Ids come from INCR on a
// counter key; a sorted set scored by creation time drives retention sweeps.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, opts ...RedisOption) (*RedisStore, error) {
	cfg := &redisConfig{
		Addr:        "localhost:6379",
		Prefix:      "csvmerge",
		PoolSize:    10,
		DialTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client := cfg.client
	if client == nil {
		client = redis.NewClient(&redis.Options{
			Addr:        cfg.Addr,
			Password:    cfg.Password,
			DB:          cfg.DB,
			PoolSize:    cfg.PoolSize,
			DialTimeout: cfg.DialTimeout,
		})
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return &RedisStore{client: client, prefix: cfg.Prefix}, nil
}

func (s *RedisStore) seqKey() string     { return s.prefix + ":seq" }
func (s *RedisStore) createdKey() string { return s.prefix + ":created" }
func (s *RedisStore) recordKey(id int64) string {
	return s.prefix + ":record:" + strconv.FormatInt(id, 10)
}

func (s *RedisStore) Create(ctx context.Context, rec Record) (int64, error) {
	defer observe(BackendRedis, "create", time.Now())

	n, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: incr: %v", ErrStore, err)
	}
	id := n - 1
	rec.ID = id
	data, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("%w: encode record: %v", ErrStore, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(id), data, 0)
		pipe.ZAdd(ctx, s.createdKey(), redis.Z{Score: float64(rec.CreatedAt.UnixMilli()), Member: id})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: store record %d: %v", ErrStore, id, err)
	}
	return id, nil
}

func (s *RedisStore) Get(ctx context.Context, id int64) (Record, error) {
	defer observe(BackendRedis, "get", time.Now())

	data, err := s.client.Get(ctx, s.recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("%w: get %d: %v", ErrStore, id, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: decode record %d: %v", ErrStore, id, err)
	}
	rec.ID = id
	return rec, nil
}

func (s *RedisStore) Delete(ctx context.Context, id int64) (Record, error) {
	defer observe(BackendRedis, "delete", time.Now())

	data, err := s.client.GetDel(ctx, s.recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("%w: delete %d: %v", ErrStore, id, err)
	}
	if err := s.client.ZRem(ctx, s.createdKey(), id).Err(); err != nil {
		return Record{}, fmt.Errorf("%w: unindex %d: %v", ErrStore, id, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: decode record %d: %v", ErrStore, id, err)
	}
	rec.ID = id
	return rec, nil
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.ZCard(ctx, s.createdKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrStore, err)
	}
	return int(n), nil
}

func (s *RedisStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	defer observe(BackendRedis, "sweep", time.Now())

	members, err := s.client.ZRangeByScore(ctx, s.createdKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: sweep scan: %v", ErrStore, err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(members))
	zmembers := make([]any, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		keys = append(keys, s.recordKey(id))
		zmembers = append(zmembers, m)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	var removed *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, s.createdKey(), zmembers...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: sweep delete: %v", ErrStore, err)
	}
	return int(removed.Val()), nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
