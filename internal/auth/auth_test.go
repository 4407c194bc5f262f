package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-service/internal/errs"
	"dispatch-service/internal/models"
)

const secret = "test-secret"

func TestJWTValidator(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	id := Identity{UserID: uuid.New(), Role: models.RoleResponder}
	v := NewJWTValidator(secret, "identity")
	v.now = func() time.Time { return now }

	sign := func(t *testing.T, secret, issuer string, id Identity, ttl time.Duration) string {
		t.Helper()
		tok, err := Sign(secret, issuer, id, ttl, now)
		require.NoError(t, err)
		return tok
	}

	t.Run("valid token", func(t *testing.T) {
		got, err := v.Validate(context.Background(), sign(t, secret, "identity", id, time.Hour))
		require.NoError(t, err)
		assert.Equal(t, id, got)
	})

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{"empty", func(*testing.T) string { return "  " }},
		{"garbage", func(*testing.T) string { return "not.a.jwt" }},
		{"wrong secret", func(t *testing.T) string { return sign(t, "other", "identity", id, time.Hour) }},
		{"wrong issuer", func(t *testing.T) string { return sign(t, secret, "elsewhere", id, time.Hour) }},
		{"expired", func(t *testing.T) string { return sign(t, secret, "identity", id, -time.Minute) }},
		{"bad subject", func(t *testing.T) string {
			tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
				RegisteredClaims: jwt.RegisteredClaims{
					Subject:   "42",
					Issuer:    "identity",
					ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
				},
				Role: "USER",
			}).SignedString([]byte(secret))
			require.NoError(t, err)
			return tok
		}},
		{"unknown role", func(t *testing.T) string {
			return sign(t, secret, "identity", Identity{UserID: uuid.New(), Role: "ADMIN"}, time.Hour)
		}},
		{"wrong algorithm", func(t *testing.T) string {
			tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims{
				RegisteredClaims: jwt.RegisteredClaims{
					Subject:   id.UserID.String(),
					Issuer:    "identity",
					ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
				},
				Role: "RESPONDER",
			}).SignedString([]byte(secret))
			require.NoError(t, err)
			return tok
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(context.Background(), tt.token(t))
			assert.ErrorIs(t, err, errs.ErrUnauthenticated)
		})
	}
}

func TestJWTValidatorWithoutIssuer(t *testing.T) {
	v := NewJWTValidator(secret, "")
	tok, err := Sign(secret, "anyone", Identity{UserID: uuid.New(), Role: models.RoleUser}, time.Hour, time.Now())
	require.NoError(t, err)
	got, err := v.Validate(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, got.Role)
}
