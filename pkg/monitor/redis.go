package monitor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces counter hashes in Redis.
const DefaultKeyPrefix = "pagetable"

// RedisCounter stores counts in a Redis hash, one field per endpoint key.
type RedisCounter struct {
	redis *redis.Client
	hash  string
}

// NewRedisCounter creates a counter storing its counts under "<prefix>:requests".
func NewRedisCounter(client *redis.Client, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisCounter{
		redis: client,
		hash:  prefix + ":requests",
	}
}

// Hash returns the Redis key holding the counts.
func (r *RedisCounter) Hash() string {
	return r.hash
}

// Inc implements Counter.
func (r *RedisCounter) Inc(ctx context.Context, key string) error {
	if err := r.redis.HIncrBy(ctx, r.hash, key, 1).Err(); err != nil {
		return fmt.Errorf("redis hincrby: %w", err)
	}
	return nil
}

// Count implements Counter.
func (r *RedisCounter) Count(ctx context.Context, key string) (int64, error) {
	n, err := r.redis.HGet(ctx, r.hash, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis hget: %w", err)
	}
	return n, nil
}

// Snapshot implements Counter.
func (r *RedisCounter) Snapshot(ctx context.Context) (map[string]int64, error) {
	raw, err := r.redis.HGetAll(ctx, r.hash).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}

	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse count for %q: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}

// Reset implements Counter.
func (r *RedisCounter) Reset(ctx context.Context) error {
	if err := r.redis.Del(ctx, r.hash).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
