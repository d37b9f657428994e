package infra

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/otel"
)

// NewSqliteClient opens the single file cart database and migrates it. Failures are fatal.
func NewSqliteClient(c context.Context, cfg config.Sqlite) *sql.DB {
	c, span := otel.Tracer.Start(c, "infra NewSqliteClient")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "infra NewSqliteClient").
		Str("path", cfg.Path).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "opening sqlite").Logger()
	logger.Info().Msg("opening sqlite")
	db, err := OpenSqlite(c, cfg.Path)
	if err != nil {
		otel.RecordError(err, span)
		logger.Fatal().Err(err).Msg(err.Error())
	}
	logger.Info().Msg("opened sqlite")

	logger = logger.With().Str(log.KeyProcess, "migration up").Logger()
	err = MigrateSqlite(c, db, cfg.MigrationPath)
	if err != nil {
		otel.RecordError(err, span)
		logger.Fatal().Err(err).Msg(err.Error())
	}

	return db
}

func OpenSqlite(c context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed opening sqlite path=%s with error=%w", path, err)
	}
	// sqlite serializes writers, a single connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	err = db.PingContext(c)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed ping sqlite with error=%w", err)
	}
	return db, nil
}

func MigrateSqlite(c context.Context, db *sql.DB, migrationPath string) error {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "infra MigrateSqlite").
		Str("migrationPath", migrationPath).
		Logger()

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed creating sqlite driver to do migration with error=%w", err)
	}
	// the sqlite driver closes db on Close, so it is left open here
	return migrateUp(logger, migrationPath, "sqlite", driver)
}
