package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/constants"
	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/otel"
)

// Principal is what the identity provider told us about the caller. The zero value is a guest.
type Principal struct {
	Subject       uuid.UUID
	Token         string
	Authenticated bool
}

func VerifyToken(c context.Context, token string, secretKey string) (Principal, error) {
	c, span := otel.Tracer.Start(c, "auth VerifyToken")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "auth VerifyToken").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "parsing claims").Logger()
	logger.Trace().Msg("parsing claims")
	jwtToken, err := jwt.ParseWithClaims(token,
		&jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			return []byte(secretKey), nil
		},
		jwt.WithAudience(constants.AudienceUser),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithIssuer(constants.IssuerUser),
	)
	if err != nil {
		err = fmt.Errorf("failed parsing claims with error=%w: %w", inErrors.ErrTokenInvalid, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Principal{}, err
	}
	logger.Trace().Msg("parsed claims")

	logger = logger.With().Str(log.KeyProcess, "validating token").Logger()
	logger.Trace().Msg("validating token")
	if !jwtToken.Valid {
		err = fmt.Errorf("failed validating token with error=%w", inErrors.ErrTokenInvalid)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Principal{}, err
	}
	logger.Trace().Msg("validated token")

	logger = logger.With().Str(log.KeyProcess, "parsing subject").Logger()
	subject, err := jwtToken.Claims.GetSubject()
	if err != nil || subject == "" {
		err = fmt.Errorf("failed getting subject with error=%w", inErrors.ErrEmptySubject)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Principal{}, err
	}
	userId, err := uuid.Parse(subject)
	if err != nil {
		err = fmt.Errorf("failed parsing subject=%s with error=%w: %w", subject, inErrors.ErrTokenInvalid, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Principal{}, err
	}
	logger.Info().Str(log.KeySubject, userId.String()).Msg("verified token")

	return Principal{Subject: userId, Token: token, Authenticated: true}, nil
}

type principalKey struct{}

func AttachPrincipal(c context.Context, p Principal) context.Context {
	return context.WithValue(c, principalKey{}, p)
}

// PrincipalFromContext returns a guest principal when nothing was attached.
func PrincipalFromContext(c context.Context) Principal {
	p, _ := c.Value(principalKey{}).(Principal)
	return p
}
