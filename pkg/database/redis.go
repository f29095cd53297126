package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/boreallogic/delphi-app/pkg/config"
)

// redisOptions maps the redis config section onto client options.
// The client never retries; events.RetryingPublisher owns retries.
func redisOptions(cfg *config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		ClientName:   ApplicationName,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   -1,
	}
}

// NewRedisClient connects the client used for round event publication.
// Returns nil if Redis is not configured (host is empty).
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg.Host == "" {
		return nil, nil
	}

	client := redis.NewClient(redisOptions(cfg))

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", client.Options().Addr, err)
	}

	return client, nil
}
