package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Alturino/storefront/cart/domain"
	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/otel"
)

// RedisStorage keeps each cart as one JSON value under "<name>:<sessionId>". A zero ttl keeps
// carts forever.
type RedisStorage struct {
	client *redis.Client
	name   string
	ttl    time.Duration
}

func NewRedisStorage(client *redis.Client, name string, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, name: name, ttl: ttl}
}

func (r *RedisStorage) Name() string {
	return r.name
}

func (r *RedisStorage) Load(c context.Context, sessionID uuid.UUID) ([]domain.Line, error) {
	key := r.key(sessionID)
	c, span := otel.Tracer.Start(
		c,
		"RedisStorage Load",
		trace.WithAttributes(attribute.String(log.KeyCacheKey, key)),
	)
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "RedisStorage Load").
		Str(log.KeyCacheKey, key).
		Logger()

	logger.Trace().Msg("getting cart from redis")
	data, err := r.client.Get(c, key).Bytes()
	if errors.Is(err, redis.Nil) {
		logger.Trace().Msg("cart not found in redis")
		return nil, fmt.Errorf("failed getting key=%s with error=%w", key, inErrors.ErrCartNotFound)
	}
	if err != nil {
		err = fmt.Errorf("failed getting key=%s with error=%w", key, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}

	lines, err := decode(data)
	if err != nil {
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger.Trace().Int(log.KeyCartLines, len(lines)).Msg("got cart from redis")

	return lines, nil
}

func (r *RedisStorage) Save(c context.Context, sessionID uuid.UUID, lines []domain.Line) error {
	key := r.key(sessionID)
	c, span := otel.Tracer.Start(
		c,
		"RedisStorage Save",
		trace.WithAttributes(attribute.String(log.KeyCacheKey, key)),
	)
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "RedisStorage Save").
		Str(log.KeyCacheKey, key).
		Int(log.KeyCartLines, len(lines)).
		Logger()

	data, err := encode(r.name, lines)
	if err != nil {
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}

	logger.Trace().Msg("setting cart in redis")
	err = r.client.Set(c, key, data, r.ttl).Err()
	if err != nil {
		err = fmt.Errorf("failed setting key=%s with error=%w", key, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Trace().Msg("set cart in redis")

	return nil
}

func (r *RedisStorage) key(sessionID uuid.UUID) string {
	return r.name + ":" + sessionID.String()
}
