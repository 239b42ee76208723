package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/facturasegura/backend/internal/domain/validation"
	"github.com/facturasegura/backend/internal/infrastructure/config"
)

const redisKeyPrefix = "validation:cache:"

// RedisStore is the Redis-backed cache tier, suitable for deployments where
// multiple instances share cached validation results.
type RedisStore struct {
	client    *redis.Client
	policy    TTLPolicy
	keyPrefix string
}

var _ validation.CacheStore = (*RedisStore)(nil)

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg config.RedisConfig, policy TTLPolicy) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, validation.WrapError(validation.KindCache, "connecting to redis", err)
	}

	return &RedisStore{client: client, policy: policy, keyPrefix: redisKeyPrefix}, nil
}

// NewRedisStoreWithClient wraps an existing client, used by tests and when
// sharing a client across components.
func NewRedisStoreWithClient(client *redis.Client, policy TTLPolicy) *RedisStore {
	return &RedisStore{client: client, policy: policy, keyPrefix: redisKeyPrefix}
}

// Get returns the cached value; Redis expires entries server-side.
func (s *RedisStore) Get(ctx context.Context, key string, _ validation.CacheType) (json.RawMessage, bool, error) {
	raw, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, validation.WrapError(validation.KindCache, "redis get", err)
	}
	return json.RawMessage(raw), true, nil
}

// Set stores the value with the TTL of its cache type.
func (s *RedisStore) Set(ctx context.Context, key string, value json.RawMessage, ctype validation.CacheType) error {
	err := s.client.Set(ctx, s.keyPrefix+key, []byte(value), s.policy.TTLFor(ctype)).Err()
	if err != nil {
		return validation.WrapError(validation.KindCache, "redis set", err)
	}
	return nil
}

// Clear removes entries whose keys match the glob pattern using SCAN, so a
// large keyspace never blocks the server the way KEYS would.
func (s *RedisStore) Clear(ctx context.Context, pattern string) error {
	if pattern == "" {
		pattern = "*"
	}
	match := s.keyPrefix + pattern

	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return validation.WrapError(validation.KindCache, "redis scan", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return validation.WrapError(validation.KindCache, "redis del", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
