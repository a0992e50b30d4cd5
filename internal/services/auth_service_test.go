package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policygraph/policygraph/internal/config"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	db := setupTestDB(t)
	return NewAuthService(db, config.Config{JWTSecret: "test-secret"})
}

func TestAuthService_EnsureAdmin(t *testing.T) {
	s := newAuthService(t)

	created, err := s.EnsureAdmin("admin@example.com", "hunter22secret")
	require.NoError(t, err)
	assert.True(t, created)

	t.Run("second call is a no-op", func(t *testing.T) {
		created, err := s.EnsureAdmin("other@example.com", "irrelevant")
		require.NoError(t, err)
		assert.False(t, created)
	})
}

func TestAuthService_Login(t *testing.T) {
	s := newAuthService(t)
	_, err := s.EnsureAdmin("admin@example.com", "hunter22secret")
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		token, user, err := s.Login("admin@example.com", "hunter22secret")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, "admin@example.com", user.Email)
		assert.NotNil(t, user.LastLogin)

		claims, err := s.VerifyToken(token)
		require.NoError(t, err)
		assert.Equal(t, user.UUID, claims.UserUUID)
		assert.Equal(t, "admin", claims.Role)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := s.Login("admin@example.com", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, _, err := s.Login("nobody@example.com", "hunter22secret")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestAuthService_VerifyToken_Garbage(t *testing.T) {
	s := newAuthService(t)
	_, err := s.VerifyToken("not.a.token")
	assert.Error(t, err)
}

func TestAuthService_VerifyToken_WrongSecret(t *testing.T) {
	db := setupTestDB(t)
	issuer := NewAuthService(db, config.Config{JWTSecret: "secret-a"})
	verifier := NewAuthService(db, config.Config{JWTSecret: "secret-b"})

	_, err := issuer.EnsureAdmin("admin@example.com", "hunter22secret")
	require.NoError(t, err)
	token, _, err := issuer.Login("admin@example.com", "hunter22secret")
	require.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	assert.Error(t, err)
}
