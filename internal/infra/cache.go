package infra

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/otel"
)

var (
	cacheOnce sync.Once
	cache     *redis.Client
)

// NewCacheClient connects the process wide redis client used for cart storage and the catalog
// cache.
func NewCacheClient(c context.Context, cfg config.Cache) *redis.Client {
	c, span := otel.Tracer.Start(c, "infra NewCacheClient")
	defer span.End()

	cacheOnce.Do(func() {
		logger := zerolog.Ctx(c).
			With().
			Str(log.KeyTag, "infra NewCacheClient").
			Str("addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)).
			Logger()

		logger = logger.With().Str(log.KeyProcess, "initializing redis client").Logger()
		logger.Info().Msg("initializing redis client")
		cache = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.Database,
		})
		logger.Info().Msg("initialized redis client")

		logger = logger.With().Str(log.KeyProcess, "instrumenting redis client").Logger()
		logger.Info().Msg("instrumenting redis client")
		err := InstrumentCache(cache)
		if err != nil {
			otel.RecordError(err, span)
			logger.Fatal().Err(err).Msg(err.Error())
		}
		logger.Info().Msg("instrumented redis client")

		logger = logger.With().Str(log.KeyProcess, "pinging connection to redis").Logger()
		logger.Info().Msg("pinging connection to redis")
		err = cache.Ping(c).Err()
		if err != nil {
			err = fmt.Errorf("failed pinging redis with error=%w", err)
			otel.RecordError(err, span)
			logger.Fatal().Err(err).Msg(err.Error())
		}
		logger.Info().Msg("pinged connection to redis")
	})
	return cache
}

// InstrumentCache attaches otel tracing and metrics to client.
func InstrumentCache(client *redis.Client) error {
	err := redisotel.InstrumentTracing(client, redisotel.WithAttributes(semconv.DBSystemRedis))
	if err != nil {
		return fmt.Errorf("failed initializing otel redis tracing with error=%w", err)
	}
	err = redisotel.InstrumentMetrics(client, redisotel.WithAttributes(semconv.DBSystemRedis))
	if err != nil {
		return fmt.Errorf("failed initializing otel redis metric with error=%w", err)
	}
	return nil
}
