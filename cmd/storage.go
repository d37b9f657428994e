package cmd

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/cart/repository"
	"github.com/Alturino/storefront/cart/service"
	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/infra"
	"github.com/Alturino/storefront/internal/log"
)

const (
	driverRedis    = "redis"
	driverPostgres = "postgres"
	driverSqlite   = "sqlite"
)

// newStorage builds the cart storage selected by storage.driver. The returned func releases it.
func newStorage(
	c context.Context,
	cfg *config.Config,
	cache *redis.Client,
) (service.Storage, func(), error) {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "main newStorage").
		Str("driver", cfg.Storage.Driver).
		Logger()

	name := cfg.Storage.Name
	switch cfg.Storage.Driver {
	case driverRedis, "":
		if cache == nil {
			return nil, nil, fmt.Errorf("failed creating redis storage with error=missing cache config")
		}
		logger.Info().Msg("using redis storage")
		return repository.NewRedisStorage(cache, name, cfg.Storage.TTL), func() {}, nil
	case driverPostgres:
		pool := infra.NewDatabaseClient(c, cfg.Database)
		logger.Info().Msg("using postgres storage")
		return repository.NewPostgresStorage(pool, name), pool.Close, nil
	case driverSqlite:
		db := infra.NewSqliteClient(c, cfg.Sqlite)
		logger.Info().Msg("using sqlite storage")
		return repository.NewSqliteStorage(db, name), func() {
			if err := db.Close(); err != nil {
				logger.Error().Err(err).Msg(err.Error())
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf(
			"failed creating storage with error=unknown driver=%s",
			cfg.Storage.Driver,
		)
	}
}
