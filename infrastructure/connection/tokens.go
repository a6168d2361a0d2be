package connection

import (
	"context"
	"errors"
	"strings"

	"crewlink/infrastructure"
	"crewlink/internal/models"
	"crewlink/pkg/jwt"
)

// Directory resolves the current identity of a user id.
type Directory interface {
	GetIdentity(ctx context.Context, userID int64) (*models.Identity, error)
}

// TokenVerifier turns a bearer token into the identity a connection acts as.
// Role and scope always come from the directory, not from the token, so a
// reassignment takes effect on the next connection.
type TokenVerifier struct {
	jwt   *jwt.JWT
	users Directory
}

func NewTokenVerifier(j *jwt.JWT, users Directory) *TokenVerifier {
	return &TokenVerifier{jwt: j, users: users}
}

func (v *TokenVerifier) Verify(ctx context.Context, token string) (*models.Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, infrastructure.Authentication("authentication required", infrastructure.ErrMissingToken)
	}

	claims, err := v.jwt.ValidateToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, infrastructure.Authentication("token expired", infrastructure.ErrTokenExpired)
		}
		return nil, infrastructure.Authentication("invalid token", infrastructure.ErrInvalidToken)
	}

	identity, err := v.users.GetIdentity(ctx, claims.UserID)
	if err != nil {
		if infrastructure.IsNotFound(err) {
			return nil, infrastructure.Authentication("unknown user", err)
		}
		return nil, err
	}
	if identity.CompanyID != claims.CompanyID {
		return nil, infrastructure.Authentication("invalid token", infrastructure.ErrInvalidToken)
	}
	return identity, nil
}
