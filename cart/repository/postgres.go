package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Alturino/storefront/cart/domain"
	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/otel"
)

const (
	selectCartPostgres = `SELECT payload FROM cart_sessions WHERE session_id = $1`
	upsertCartPostgres = `INSERT INTO cart_sessions (session_id, storage_name, payload, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (session_id) DO UPDATE
SET storage_name = EXCLUDED.storage_name, payload = EXCLUDED.payload, updated_at = NOW()`
)

type PostgresStorage struct {
	pool *pgxpool.Pool
	name string
}

func NewPostgresStorage(pool *pgxpool.Pool, name string) *PostgresStorage {
	return &PostgresStorage{pool: pool, name: name}
}

func (p *PostgresStorage) Name() string {
	return p.name
}

func (p *PostgresStorage) Load(c context.Context, sessionID uuid.UUID) ([]domain.Line, error) {
	c, span := otel.Tracer.Start(
		c,
		"PostgresStorage Load",
		trace.WithAttributes(attribute.String(log.KeySessionID, sessionID.String())),
	)
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "PostgresStorage Load").
		Str(log.KeySessionID, sessionID.String()).
		Logger()

	logger.Trace().Msg("selecting cart")
	var payload []byte
	err := p.pool.QueryRow(c, selectCartPostgres, sessionID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		logger.Trace().Msg("cart not found")
		return nil, fmt.Errorf(
			"failed selecting sessionId=%s with error=%w",
			sessionID.String(),
			inErrors.ErrCartNotFound,
		)
	}
	if err != nil {
		err = fmt.Errorf("failed selecting sessionId=%s with error=%w", sessionID.String(), err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}

	lines, err := decode(payload)
	if err != nil {
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger.Trace().Int(log.KeyCartLines, len(lines)).Msg("selected cart")

	return lines, nil
}

func (p *PostgresStorage) Save(c context.Context, sessionID uuid.UUID, lines []domain.Line) error {
	c, span := otel.Tracer.Start(
		c,
		"PostgresStorage Save",
		trace.WithAttributes(attribute.String(log.KeySessionID, sessionID.String())),
	)
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "PostgresStorage Save").
		Str(log.KeySessionID, sessionID.String()).
		Int(log.KeyCartLines, len(lines)).
		Logger()

	payload, err := encode(p.name, lines)
	if err != nil {
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}

	logger.Trace().Msg("upserting cart")
	_, err = p.pool.Exec(c, upsertCartPostgres, sessionID, p.name, payload)
	if err != nil {
		err = fmt.Errorf("failed upserting sessionId=%s with error=%w", sessionID.String(), err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Trace().Msg("upserted cart")

	return nil
}
