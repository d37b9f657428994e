package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/constants"
	"github.com/Alturino/storefront/internal/infra"
	"github.com/Alturino/storefront/internal/log"
)

// runMigrate brings the sql schema of the configured driver up to date.
func runMigrate(c context.Context, f flags) {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyAppName, constants.AppStorefrontMigrate).
		Str(log.KeyTag, "main runMigrate").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "init config").Logger()
	cfg := config.InitConfig(logger.WithContext(c), f.config)

	logger = logger.With().
		Str(log.KeyProcess, "migrating").
		Str("driver", cfg.Storage.Driver).
		Logger()
	c = logger.WithContext(c)
	switch cfg.Storage.Driver {
	case driverPostgres:
		pool := infra.NewDatabaseClient(c, cfg.Database)
		pool.Close()
	case driverSqlite:
		db := infra.NewSqliteClient(c, cfg.Sqlite)
		db.Close()
	default:
		err := fmt.Errorf("failed migrating with error=driver %s has no schema", cfg.Storage.Driver)
		logger.Warn().Err(err).Msg(err.Error())
		return
	}
	logger.Info().Msg("migrated")
}
