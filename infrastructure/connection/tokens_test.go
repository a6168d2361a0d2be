package connection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"crewlink/infrastructure"
	"crewlink/internal/models"
	"crewlink/pkg/jwt"
)

type directory map[int64]models.Identity

func (d directory) GetIdentity(_ context.Context, id int64) (*models.Identity, error) {
	u, ok := d[id]
	if !ok {
		return nil, infrastructure.ErrUserNotFound
	}
	return &u, nil
}

func TestTokenVerifier_Verify(t *testing.T) {
	issuer := jwt.NewJWT([]byte("secret"), 60)
	users := directory{5: {UserID: 5, Name: "otto", Role: models.RoleHSEOfficer, CompanyID: 3}}
	v := NewTokenVerifier(issuer, users)

	t.Run("valid", func(t *testing.T) {
		token, err := issuer.GenerateToken(5, "crew", 3)
		require.NoError(t, err)

		id, err := v.Verify(context.Background(), "Bearer "+token)
		require.NoError(t, err)
		assert.Equal(t, models.RoleHSEOfficer, id.Role)
	})

	rejected := map[string]func() string{
		"missing": func() string { return "" },
		"garbage": func() string { return "abc.def.ghi" },
		"expired": func() string {
			tok, _ := jwt.NewJWT([]byte("secret"), -5).GenerateToken(5, "crew", 3)
			return tok
		},
		"unknown user": func() string {
			tok, _ := issuer.GenerateToken(6, "crew", 3)
			return tok
		},
		"company mismatch": func() string {
			tok, _ := issuer.GenerateToken(5, "crew", 4)
			return tok
		},
	}
	for name, token := range rejected {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), token())
			assert.Equal(t, codes.Unauthenticated, infrastructure.CodeOf(err))
		})
	}
}
