package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policygraph/policygraph/internal/config"
	"github.com/policygraph/policygraph/internal/services"
)

func TestAuthHandler_Login(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openTestDB(t)

	authService := services.NewAuthService(db, config.Config{JWTSecret: "test-secret"})
	_, err := authService.EnsureAdmin("admin@example.com", "hunter22secret")
	require.NoError(t, err)

	router := gin.New()
	router.POST("/api/v1/auth/login", NewAuthHandler(authService).Login)

	t.Run("valid credentials", func(t *testing.T) {
		w := postJSON(t, router, "/api/v1/auth/login", map[string]string{
			"email":    "admin@example.com",
			"password": "hunter22secret",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), "token")
	})

	t.Run("wrong password", func(t *testing.T) {
		w := postJSON(t, router, "/api/v1/auth/login", map[string]string{
			"email":    "admin@example.com",
			"password": "nope",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		w := postJSON(t, router, "/api/v1/auth/login", map[string]string{"email": "admin@example.com"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
