package cache

import (
	"fmt"

	"github.com/erp/deposits/internal/domain/deposit"
	"github.com/erp/deposits/internal/domain/shared"
	"github.com/erp/deposits/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Stores bundles the session and idempotency stores used by the service
type Stores struct {
	Sessions    deposit.SessionStore
	Idempotency shared.IdempotencyStore
	client      *redis.Client
}

// Shared reports whether the stores are backed by Redis
func (s *Stores) Shared() bool {
	return s.client != nil
}

// Close releases the idempotency store and the Redis client
func (s *Stores) Close() error {
	err := s.Idempotency.Close()
	if s.client != nil {
		if cerr := s.client.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// StoreFactory creates stores based on configuration
type StoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// StoreFactoryOption is a functional option for configuring the factory
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// in-memory stores. Default is true.
func WithInMemoryFallback(allow bool) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewStoreFactory creates a new factory
func NewStoreFactory(cfg config.RedisConfig, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// InMemory creates process-local stores
func (f *StoreFactory) InMemory() *Stores {
	return &Stores{
		Sessions:    NewInMemorySessionStore(),
		Idempotency: NewInMemoryIdempotencyStore(),
	}
}

// Create uses Redis when it is configured and reachable. Without Redis,
// webhook deduplication only holds within one process.
func (f *StoreFactory) Create() (*Stores, error) {
	if f.redisConfig.RedisAddr() == "" {
		f.logger.Info("redis not configured, using in-memory session and idempotency stores")
		return f.InMemory(), nil
	}

	client, err := NewRedisClient(f.redisConfig)
	if err != nil {
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("redis required but unavailable: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory stores. "+
			"Webhook deliveries may be processed twice across instances.",
			zap.Error(err),
		)
		return f.InMemory(), nil
	}

	f.logger.Info("using Redis session and idempotency stores", zap.String("addr", f.redisConfig.RedisAddr()))
	return &Stores{
		Sessions:    NewRedisSessionStore(client, DefaultSessionTTL),
		Idempotency: NewRedisIdempotencyStore(client, ""),
		client:      client,
	}, nil
}
