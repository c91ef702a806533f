// Package app wires configuration into a ready-to-serve handler. It is shared
// by the Lambda entry point and the local runners.
package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/abdhe/bedrock-inference-function/pkg/cache"
	"github.com/abdhe/bedrock-inference-function/pkg/config"
	"github.com/abdhe/bedrock-inference-function/pkg/provider"
	"github.com/abdhe/bedrock-inference-function/pkg/proxy"
)

const pingTimeout = 5 * time.Second

// App holds the handler and the resources it owns.
type App struct {
	Handler *proxy.Handler

	cache *cache.RedisCache
}

// New builds the handler described by cfg. An unreachable Redis disables
// the cache with a warning instead of failing startup.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *App {
	invoker := provider.NewBedrock(provider.BedrockConfig{
		Region:      cfg.Bedrock.Region,
		ModelID:     cfg.Bedrock.ModelID,
		Endpoint:    cfg.Bedrock.Endpoint,
		MaxAttempts: cfg.Bedrock.MaxAttempts,
	})

	a := &App{}
	hcfg := proxy.Config{
		Invoker:            invoker,
		Logger:             logger,
		DefaultMaxTokens:   cfg.Defaults.MaxTokens,
		DefaultTemperature: cfg.Defaults.Temperature,
		PreviewLength:      cfg.Defaults.PreviewLength,
	}

	if cfg.Cache.Enabled {
		rc := cache.NewRedisCache(cache.Options{
			Addr:      cfg.Cache.Address,
			Password:  cfg.Cache.Password,
			DB:        cfg.Cache.DB,
			TTL:       cfg.Cache.TTL,
			KeyPrefix: cfg.Cache.KeyPrefix,
		})

		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := rc.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Str("address", cfg.Cache.Address).Msg("Redis connection failed, cache disabled")
			_ = rc.Close()
		} else {
			a.cache = rc
			hcfg.Cache = rc
			logger.Info().Str("address", cfg.Cache.Address).Dur("ttl", cfg.Cache.TTL).Msg("Response cache enabled")
		}
	}

	a.Handler = proxy.NewHandler(hcfg)

	logger.Info().
		Str("region", cfg.Bedrock.Region).
		Str("model_id", invoker.ModelID()).
		Bool("cache", a.cache != nil).
		Msg("Handler initialized")

	return a
}

// CacheEnabled reports whether the response cache is attached.
func (a *App) CacheEnabled() bool { return a.cache != nil }

// Close releases the Redis connection, if any.
func (a *App) Close() error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Close()
}
