package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alturino/storefront/internal/constants"
	inErrors "github.com/Alturino/storefront/internal/errors"
)

const secret = "test-secret"

func signToken(t *testing.T, claims jwt.RegisteredClaims, key string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func validClaims(subject string) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Issuer:    constants.IssuerUser,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{constants.AudienceUser},
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
	}
}

func TestVerifyToken(t *testing.T) {
	userId := uuid.New()

	tests := []struct {
		name        string
		token       func() string
		expected    Principal
		expectedErr error
	}{
		{
			name:  "given valid token should return authenticated principal",
			token: func() string { return signToken(t, validClaims(userId.String()), secret) },
			expected: Principal{
				Subject:       userId,
				Authenticated: true,
			},
		},
		{
			name:        "given token signed with other key should return ErrTokenInvalid",
			token:       func() string { return signToken(t, validClaims(userId.String()), "other") },
			expectedErr: inErrors.ErrTokenInvalid,
		},
		{
			name: "given expired token should return ErrTokenInvalid",
			token: func() string {
				claims := validClaims(userId.String())
				claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
				return signToken(t, claims, secret)
			},
			expectedErr: inErrors.ErrTokenInvalid,
		},
		{
			name:        "given non uuid subject should return ErrTokenInvalid",
			token:       func() string { return signToken(t, validClaims("shopper"), secret) },
			expectedErr: inErrors.ErrTokenInvalid,
		},
		{
			name:        "given empty subject should return ErrEmptySubject",
			token:       func() string { return signToken(t, validClaims(""), secret) },
			expectedErr: inErrors.ErrEmptySubject,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			token := test.token()
			actual, err := VerifyToken(context.Background(), token, secret)
			if test.expectedErr != nil {
				assert.ErrorIs(t, err, test.expectedErr)
				assert.False(t, actual.Authenticated)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expected.Subject, actual.Subject)
			assert.Equal(t, token, actual.Token)
			assert.True(t, actual.Authenticated)
		})
	}
}

func TestPrincipalFromContext(t *testing.T) {
	assert.False(t, PrincipalFromContext(context.Background()).Authenticated)

	p := Principal{Subject: uuid.New(), Token: "raw", Authenticated: true}
	c := AttachPrincipal(context.Background(), p)
	assert.Equal(t, p, PrincipalFromContext(c))
}
