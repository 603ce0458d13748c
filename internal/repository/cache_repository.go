package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/Flexitaim/api-flexitaim/pkg/errors"
)

const defaultCacheNamespace = "flexitaim:"

// CacheRepository stores JSON payloads in Redis under a namespace so several
// deployments can share one instance. A nil client behaves as an always-empty cache.
type CacheRepository struct {
	client    redis.UniversalClient
	namespace string
	logger    *zap.Logger
}

// NewCacheRepository constructs a cache repository using the default namespace.
func NewCacheRepository(client redis.UniversalClient, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, namespace: defaultCacheNamespace, logger: logger}
}

// WithNamespace returns a copy writing under namespace.
func (r *CacheRepository) WithNamespace(namespace string) *CacheRepository {
	clone := *r
	clone.namespace = namespace
	return &clone
}

func (r *CacheRepository) key(key string) string {
	return r.namespace + key
}

// Get retrieves and unmarshals the cached value into dest. A missing key is
// reported as ErrCacheMiss.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return appErrors.ErrCacheMiss
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		// corrupt entries are dropped so the next read repopulates them
		_ = r.client.Unlink(ctx, r.key(key)).Err()
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}
	return nil
}

// Set marshals value and stores it with ttl.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	if err := r.client.Set(ctx, r.key(key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete unlinks the given keys in one round trip.
func (r *CacheRepository) Delete(ctx context.Context, keys ...string) error {
	if r.client == nil || len(keys) == 0 {
		return nil
	}
	namespaced := make([]string, len(keys))
	for i, k := range keys {
		namespaced[i] = r.key(k)
	}
	if err := r.client.Unlink(ctx, namespaced...).Err(); err != nil {
		return fmt.Errorf("redis unlink %v: %w", keys, err)
	}
	r.logger.Debug("cache keys evicted", zap.Strings("keys", keys))
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
