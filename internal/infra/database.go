package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	pgxuuid "github.com/vgarvardt/pgx-google-uuid/v5"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/otel"
)

func PostgresURL(cfg config.Database) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable&timezone=%s",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		cfg.TimeZone,
	)
}

// NewDatabaseClient opens the pgx pool and brings the schema up to date. Failures are fatal.
func NewDatabaseClient(c context.Context, cfg config.Database) *pgxpool.Pool {
	c, span := otel.Tracer.Start(c, "infra NewDatabaseClient")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "infra NewDatabaseClient").
		Str("host", cfg.Host).
		Str("database", cfg.Name).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "connecting to database").Logger()
	logger.Info().Msg("connecting to database")
	pool, err := NewPool(c, PostgresURL(cfg), cfg.MaxConnections, cfg.MinConnections)
	if err != nil {
		otel.RecordError(err, span)
		logger.Fatal().Err(err).Msg(err.Error())
	}
	logger.Info().Msg("connected to database")

	logger = logger.With().Str(log.KeyProcess, "migration up").Logger()
	logger.Info().Msg("migration up")
	err = MigratePostgres(c, pool, cfg.MigrationPath)
	if err != nil {
		otel.RecordError(err, span)
		logger.Fatal().Err(err).Msg(err.Error())
	}
	logger.Info().Msg("successed migration up")

	return pool
}

// NewPool creates an instrumented pool whose connections understand google uuids.
func NewPool(c context.Context, url string, maxConns, minConns int) (*pgxpool.Pool, error) {
	pgxConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed creating pgx config with error=%w", err)
	}
	pgxConfig.ConnConfig.Tracer = otelpgx.NewTracer(
		otelpgx.WithAttributes(semconv.DBSystemPostgreSQL),
	)
	pgxConfig.AfterConnect = func(c context.Context, conn *pgx.Conn) error {
		pgxuuid.Register(conn.TypeMap())
		return nil
	}
	pgxConfig.MaxConnLifetime = 15 * time.Minute
	pgxConfig.MaxConnIdleTime = 5 * time.Minute
	if maxConns > 0 {
		pgxConfig.MaxConns = int32(maxConns)
	}
	if minConns > 0 {
		pgxConfig.MinConns = int32(minConns)
	}

	pool, err := pgxpool.NewWithConfig(c, pgxConfig)
	if err != nil {
		return nil, fmt.Errorf("failed creating connection pool with error=%w", err)
	}
	err = pool.Ping(c)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed ping db with error=%w", err)
	}
	return pool, nil
}

// MigratePostgres applies every pending up migration found at migrationPath.
func MigratePostgres(c context.Context, pool *pgxpool.Pool, migrationPath string) error {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "infra MigratePostgres").
		Str("migrationPath", migrationPath).
		Logger()

	db := stdlib.OpenDBFromPool(pool)

	logger.Trace().Msg("initializing postgres migration driver")
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed creating postgres driver to do migration with error=%w", err)
	}
	// releases the connection held by the driver, the pool stays open
	defer driver.Close()

	return migrateUp(logger, migrationPath, "postgres", driver)
}

func migrateUp(
	logger zerolog.Logger,
	migrationPath, databaseName string,
	driver database.Driver,
) error {
	migration, err := migrate.NewWithDatabaseInstance(migrationPath, databaseName, driver)
	if err != nil {
		return fmt.Errorf("failed migration %s with error=%w", databaseName, err)
	}

	logger.Info().Msg("migration up")
	err = migration.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed migration up with error=%w", err)
	}
	logger.Info().Msg("successed migration up")

	return nil
}
