package cache

import (
	"context"

	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewIdempotencyStore returns a Redis-backed store when Redis is enabled and
// an in-memory store otherwise.
func NewIdempotencyStore(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) (shared.IdempotencyStore, error) {
	if !cfg.Enabled {
		log.Info("Using in-memory webhook idempotency store")
		return NewInMemoryIdempotencyStore(), nil
	}

	store, err := NewRedisIdempotencyStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("Using redis webhook idempotency store", zap.String("addr", cfg.Addr()))
	return store, nil
}
