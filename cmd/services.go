package cmd

import (
	"context"

	"sjsage522/propertyworker/config"
	"sjsage522/propertyworker/logger"
	"sjsage522/propertyworker/services/cache"
	"sjsage522/propertyworker/services/publisher"
	"sjsage522/propertyworker/services/store"
)

// Services holds all the initialized services
type Services struct {
	Store     store.Store
	Cache     cache.CacheService
	Publisher publisher.Publisher
}

// Cleanup closes every opened service
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			logger.LogError("publisher", err, "failed to close publisher")
		}
	}
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			logger.LogError("store", err, "failed to close store")
		}
	}
}

// initializeServices opens the store and, when configured, the rate-limit
// cache and the change-event publisher. Cache and publisher are optional: an
// unreachable server disables them with a warning.
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	log := logger.Default
	services := &Services{}

	st, err := store.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	services.Store = st
	log.Info().Str("backend", cfg.StoreBackend).Msg("Store opened")

	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := mc.Ping(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache disabled")
		} else {
			services.Cache = mc
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	}

	if cfg.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(
			ctx,
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Change events disabled")
			_ = redisPublisher.Close()
		} else {
			services.Publisher = redisPublisher
			logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
				cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
		}
	}

	return services, nil
}
