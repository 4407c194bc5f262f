// Package auth validates bearer tokens issued by the identity service.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"dispatch-service/internal/errs"
	"dispatch-service/internal/models"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID uuid.UUID
	Role   models.Role
}

// Validator turns a raw bearer token into an Identity. Every failure wraps
// errs.ErrUnauthenticated.
type Validator interface {
	Validate(ctx context.Context, token string) (Identity, error)
}

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// JWTValidator checks HS256 tokens signed with a shared secret.
type JWTValidator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewJWTValidator(secret, issuer string) *JWTValidator {
	return &JWTValidator{secret: []byte(secret), issuer: issuer, now: time.Now}
}

func (v *JWTValidator) Validate(_ context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, fmt.Errorf("%w: token is required", errs.ErrUnauthenticated)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %s", errs.ErrUnauthenticated, describe(err))
	}

	userID, err := uuid.Parse(parsed.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: subject is not a user id", errs.ErrUnauthenticated)
	}
	role := models.Role(strings.ToUpper(parsed.Role))
	switch role {
	case models.RoleUser, models.RoleResponder:
	default:
		return Identity{}, fmt.Errorf("%w: unknown role %q", errs.ErrUnauthenticated, parsed.Role)
	}
	return Identity{UserID: userID, Role: role}, nil
}

// Sign issues an HS256 token for id. It is used by local tooling and tests;
// production tokens come from the identity service.
func Sign(secret, issuer string, id Identity, ttl time.Duration, now time.Time) (string, error) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: string(id.Role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

func describe(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token is expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature is invalid"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "issuer mismatch"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "token is malformed"
	default:
		return "token is invalid"
	}
}
