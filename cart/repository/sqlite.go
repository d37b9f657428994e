package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Alturino/storefront/cart/domain"
	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/otel"
)

const (
	selectCartSqlite = `SELECT payload FROM cart_sessions WHERE session_id = ?`
	upsertCartSqlite = `INSERT INTO cart_sessions (session_id, storage_name, payload, updated_at)
VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (session_id) DO UPDATE
SET storage_name = excluded.storage_name, payload = excluded.payload, updated_at = CURRENT_TIMESTAMP`
)

// SqliteStorage is the single node backend, handy for local runs.
type SqliteStorage struct {
	db   *sql.DB
	name string
}

func NewSqliteStorage(db *sql.DB, name string) *SqliteStorage {
	return &SqliteStorage{db: db, name: name}
}

func (s *SqliteStorage) Name() string {
	return s.name
}

func (s *SqliteStorage) Load(c context.Context, sessionID uuid.UUID) ([]domain.Line, error) {
	c, span := otel.Tracer.Start(
		c,
		"SqliteStorage Load",
		trace.WithAttributes(attribute.String(log.KeySessionID, sessionID.String())),
	)
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "SqliteStorage Load").
		Str(log.KeySessionID, sessionID.String()).
		Logger()

	var payload string
	err := s.db.QueryRowContext(c, selectCartSqlite, sessionID.String()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
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

	lines, err := decode([]byte(payload))
	if err != nil {
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}

	return lines, nil
}

func (s *SqliteStorage) Save(c context.Context, sessionID uuid.UUID, lines []domain.Line) error {
	c, span := otel.Tracer.Start(
		c,
		"SqliteStorage Save",
		trace.WithAttributes(attribute.String(log.KeySessionID, sessionID.String())),
	)
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "SqliteStorage Save").
		Str(log.KeySessionID, sessionID.String()).
		Logger()

	payload, err := encode(s.name, lines)
	if err != nil {
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}

	_, err = s.db.ExecContext(c, upsertCartSqlite, sessionID.String(), s.name, string(payload))
	if err != nil {
		err = fmt.Errorf("failed upserting sessionId=%s with error=%w", sessionID.String(), err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}

	return nil
}
