package jwt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWT_RoundTrip(t *testing.T) {
	j := NewJWT([]byte("secret"), 60)

	token, err := j.GenerateToken(42, "crew", 7)
	require.NoError(t, err)

	claims, err := j.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "crew", claims.Role)
	assert.Equal(t, int64(7), claims.CompanyID)
}

func TestJWT_Rejects(t *testing.T) {
	j := NewJWT([]byte("secret"), 60)

	t.Run("wrong key", func(t *testing.T) {
		token, err := NewJWT([]byte("other"), 60).GenerateToken(1, "crew", 1)
		require.NoError(t, err)
		_, err = j.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := NewJWT([]byte("secret"), -60).GenerateToken(1, "crew", 1)
		require.NoError(t, err)
		_, err = j.ValidateToken(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := j.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
