package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/auth"
	inErrors "github.com/Alturino/storefront/internal/errors"
	inHttp "github.com/Alturino/storefront/internal/http"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/otel"
)

// Identity attaches the caller's principal to the request context. Requests without an
// Authorization header continue as guests; a present but invalid token is rejected.
func Identity(secretKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, span := otel.Tracer.Start(r.Context(), "middleware Identity")
			defer span.End()

			logger := zerolog.Ctx(c).With().Str(log.KeyTag, "middleware Identity").Logger()

			authorization := r.Header.Get(inHttp.HeaderAuthorization)
			if authorization == "" {
				logger.Trace().Msg("no authorization, continuing as guest")
				next.ServeHTTP(w, r.WithContext(auth.AttachPrincipal(c, auth.Principal{})))
				return
			}

			if len(authorization) < len(inHttp.BearerPrefix) ||
				!strings.EqualFold(authorization[:len(inHttp.BearerPrefix)], inHttp.BearerPrefix) {
				err := fmt.Errorf("failed reading authorization with error=%w", inErrors.ErrTokenInvalid)
				otel.RecordError(err, span)
				logger.Error().Err(err).Msg(err.Error())
				unauthorized(w, r, err)
				return
			}

			principal, err := auth.VerifyToken(c, authorization[len(inHttp.BearerPrefix):], secretKey)
			if err != nil {
				otel.RecordError(err, span)
				logger.Error().Err(err).Msg(err.Error())
				unauthorized(w, r, err)
				return
			}
			logger.Trace().Str(log.KeySubject, principal.Subject.String()).Msg("verified token")

			next.ServeHTTP(w, r.WithContext(auth.AttachPrincipal(c, principal)))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	inHttp.WriteJsonResponse(r.Context(), w, map[string]string{}, map[string]interface{}{
		"status":     inHttp.StatusFailed,
		"statusCode": http.StatusUnauthorized,
		"message":    err.Error(),
	})
}
