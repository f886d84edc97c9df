package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/mystique/backend/internal/domain/shared"
	"github.com/mystique/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Connect opens a Redis client and pings it. An empty host returns a nil client
// and no error, meaning Redis is disabled
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Host == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}
	return client, nil
}

// IdempotencyStoreFactory picks the idempotency store implementation
type IdempotencyStoreFactory struct {
	config                shared.IdempotencyConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// IdempotencyStoreFactoryOption configures the factory
type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether a missing Redis client falls back to
// the in-memory store. Default is true
func WithInMemoryFallback(allow bool) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewIdempotencyStoreFactory creates a new factory
func NewIdempotencyStoreFactory(cfg shared.IdempotencyConfig, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{
		config:                cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore returns a Redis store when client is set, otherwise the
// in-memory store if fallback is allowed
func (f *IdempotencyStoreFactory) CreateStore(client redis.UniversalClient) (shared.IdempotencyStore, error) {
	if client != nil {
		f.logger.Info("using Redis idempotency store", zap.String("prefix", f.config.KeyPrefix))
		return NewRedisIdempotencyStore(client, f.config.KeyPrefix), nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis is required for idempotency but is not configured")
	}
	f.logger.Warn("Redis not configured, using in-memory idempotency store. " +
		"Duplicate checkouts are only detected within this instance.")
	return NewInMemoryIdempotencyStore(), nil
}
