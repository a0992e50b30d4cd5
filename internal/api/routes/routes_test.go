package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policygraph/policygraph/internal/config"
	"github.com/policygraph/policygraph/internal/database"
	"github.com/policygraph/policygraph/internal/models"
	"github.com/policygraph/policygraph/internal/services"
)

// setupAPI boots the full route surface against a throwaway file-backed
// store, with one administrator provisioned.
func setupAPI(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(filepath.Join(t.TempDir(), "policygraph.db"))
	require.NoError(t, err)

	cfg := config.Config{Environment: "test", JWTSecret: "test-secret"}
	router := gin.New()
	require.NoError(t, Register(router, db, cfg))

	_, err = services.NewAuthService(db, cfg).EnsureAdmin("admin@example.com", "hunter22secret")
	require.NoError(t, err)

	return router
}

func login(t *testing.T, router *gin.Engine) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{
		"email":    "admin@example.com",
		"password": "hunter22secret",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestRoutes_HealthIsPublic(t *testing.T) {
	router := setupAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "PolicyGraph")
}

func TestRoutes_MetricsExposed(t *testing.T) {
	router := setupAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_PoliciesRequireAuth(t *testing.T) {
	router := setupAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/policies", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoutes_AuthenticatedPolicyLifecycle(t *testing.T) {
	router := setupAPI(t)
	token := login(t, router)

	body, _ := json.Marshal(models.Policy{
		RuleName:   "Block evil host",
		URLPattern: "https://evil.example/%",
		Action:     models.ActionBlock,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/policies", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.Policy
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	// The authenticated admin becomes the creating actor.
	assert.Equal(t, "admin@example.com", created.CreatedBy)

	matchBody, _ := json.Marshal(models.ThreatMetadata{URL: "https://evil.example/payload"})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/policies/match", bytes.NewReader(matchBody))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"matched":true`)
}

func TestRoutes_BuiltinTemplatesSeeded(t *testing.T) {
	router := setupAPI(t)
	token := login(t, router)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/templates?category=download_protection", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var templates []models.PolicyTemplate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &templates))
	require.NotEmpty(t, templates)
	for _, tmpl := range templates {
		assert.True(t, tmpl.IsBuiltin)
	}
}
