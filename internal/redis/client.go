package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-scheduling/internal/config"
)

// Options builds the client options for cfg. Read and write timeouts are capped at half
// of LockTTL.
func Options(cfg config.Config) *redis.Options {
	timeout := 2 * time.Second
	if cfg.LockTTL > 0 && cfg.LockTTL/2 < timeout {
		timeout = cfg.LockTTL / 2
	}

	return &redis.Options{
		Addr:         cfg.RedisAddr,
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		DB:           0,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		PoolSize:     cfg.RedisPoolSize,
		MinIdleConns: 1,
	}
}

// NewRedisClient connects and pings Redis before returning.
func NewRedisClient(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(Options(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}

	return rdb, nil
}
