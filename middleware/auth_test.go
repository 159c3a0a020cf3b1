package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"math-tutor-backend/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	prev := config.Cfg
	cfg := *config.Default()
	cfg.JWT.SecretKey = "test-secret"
	config.Cfg = &cfg
	t.Cleanup(func() { config.Cfg = prev })

	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUserID)+":"+c.GetString(ContextRole))
	})
	r.GET("/teacher", RequireTeacher(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := setupRouter(t)

	token, err := GenerateToken("alice", RoleStudent)
	require.NoError(t, err)

	w := do(r, "/me", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice:student", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", token).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "Bearer not-a-token").Code)
}

func TestAuthMiddlewareRejectsForeignSecret(t *testing.T) {
	r := setupRouter(t)

	token, err := GenerateToken("alice", RoleTeacher)
	require.NoError(t, err)
	config.Cfg.JWT.SecretKey = "rotated"

	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "Bearer "+token).Code)
}

func TestRequireTeacher(t *testing.T) {
	r := setupRouter(t)

	student, err := GenerateToken("alice", RoleStudent)
	require.NoError(t, err)
	teacher, err := GenerateToken("mr-smith", RoleTeacher)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, do(r, "/teacher", "Bearer "+student).Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/teacher", "Bearer "+teacher).Code)
}

func TestGenerateTokenRejectsUnknownRole(t *testing.T) {
	_, err := GenerateToken("alice", "admin")
	assert.ErrorIs(t, err, ErrInvalidRole)
}
