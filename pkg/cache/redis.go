package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Flexitaim/api-flexitaim/pkg/config"
)

// NewRedis returns a Redis client that answered a ping within the dial timeout.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}

	return client, nil
}

// Health adapts a Redis client to readiness probes.
type Health struct {
	Client redis.UniversalClient
}

// PingContext reports whether Redis answers.
func (h Health) PingContext(ctx context.Context) error {
	if h.Client == nil {
		return fmt.Errorf("redis client not configured")
	}
	return h.Client.Ping(ctx).Err()
}
