package redis

import (
	"context"
	"fmt"
	"time"

	"wisefido-records/internal/common/config"

	"github.com/go-redis/redis/v8"
)

// Client aliases the go-redis client so callers need a single import.
type Client = redis.Client

// pingTimeout bounds Ping when the caller's context has no deadline.
const pingTimeout = 5 * time.Second

// NewRedisClient creates a client from cfg. Blocking stream reads extend
// the read deadline by their block time, so ReadTimeout only bounds
// ordinary commands.
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(options(cfg))
}

func options(cfg *config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// Ping checks connectivity, giving up after pingTimeout unless ctx ends sooner.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pingTimeout)
		defer cancel()
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis at %s: %w", client.Options().Addr, err)
	}
	return nil
}

// Close closes the client. A nil client is ignored.
func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
