package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"

	"service-dispatcher/internal/cache"
	"service-dispatcher/internal/config"
	"service-dispatcher/internal/logx"
	"service-dispatcher/internal/repository"
	"service-dispatcher/internal/retry"
)

const attemptTimeout = 3 * time.Second

var (
	newPool        = repository.NewPool
	ensureSchema   = repository.EnsureSchema
	newRedisClient = cache.NewClient
)

// startupPolicy retries infrastructure connections while the service boots.
func startupPolicy(onRetry func(int, time.Duration, error)) retry.Policy {
	return retry.Policy{
		MaxAttempts: 10,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		OnRetry:     onRetry,
	}
}

func connectDbWithRetry(ctx context.Context, logger logx.Logger, dsn string, policy retry.Policy) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	attempt := 0
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		defer cancel()

		p, err := newPool(attemptCtx, dsn)
		if err != nil {
			logger.Warn("db connect failed", logx.Int("attempt", attempt), logx.Err(err))
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	logger.Info("db connected", logx.Int("attempt", attempt))

	if err := ensureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return pool, nil
}

func connectRedisWithRetry(ctx context.Context, logger logx.Logger, cfg config.Redis, policy retry.Policy) (*redis.Client, error) {
	var client *redis.Client
	attempt := 0
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		attempt++
		c, err := newRedisClient(ctx, cfg.Addr, cfg.Password, cfg.DB)
		if err != nil {
			logger.Warn("redis connect failed", logx.Int("attempt", attempt), logx.String("addr", cfg.Addr), logx.Err(err))
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	logger.Info("redis connected", logx.String("addr", cfg.Addr))
	return client, nil
}
