// Package cache implements an exact-match response cache for model replies.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abdhe/bedrock-inference-function/pkg/provider"
)

// DefaultKeyPrefix namespaces cache entries in a shared Redis.
const DefaultKeyPrefix = "bedrock_cache:"

// RedisCache wraps a Redis client for storing and retrieving model replies.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// Options configures a RedisCache.
type Options struct {
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration
	KeyPrefix string
}

// NewRedisCache creates a new Redis-backed response cache.
func NewRedisCache(opts Options) *RedisCache {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultKeyPrefix
	}
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		ttl:    opts.TTL,
		prefix: opts.KeyPrefix,
	}
}

// Key derives a deterministic cache key from the model and the full payload,
// so any change to prompt, max_tokens or temperature is a different entry.
func (r *RedisCache) Key(modelID string, payload provider.Payload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("redis_cache: marshal key: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(modelID))
	h.Write([]byte{0})
	h.Write(data)
	return fmt.Sprintf("%s%x", r.prefix, h.Sum(nil)[:16]), nil
}

// Get retrieves a cached reply by key.
// Returns the reply and true if found, or zero value and false if not.
func (r *RedisCache) Get(ctx context.Context, key string) (provider.Result, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return provider.Result{}, false, nil
	}
	if err != nil {
		return provider.Result{}, false, fmt.Errorf("redis_cache: get: %w", err)
	}

	res, err := provider.DecodeResult(val)
	if err != nil {
		return provider.Result{}, false, fmt.Errorf("redis_cache: unmarshal: %w", err)
	}

	return res, true, nil
}

// Set stores a reply in the cache with the configured TTL.
func (r *RedisCache) Set(ctx context.Context, key string, res provider.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("redis_cache: marshal: %w", err)
	}

	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis_cache: set: %w", err)
	}

	return nil
}

// Ping checks the Redis connection.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
