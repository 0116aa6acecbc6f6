package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosspost/infrastructure/utils"
	"crosspost/interfaces/middleware"
)

const testSecret = "middleware-test-secret"

func newSessionRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.Session(testSecret))
	router.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id")})
	})
	return router
}

func issueToken(t *testing.T, secret string, exp time.Time) string {
	t.Helper()
	token, err := utils.GenerateToken(map[string]interface{}{
		"user_id": "12345",
		"handle":  "jodoe",
		"iat":     time.Now().Unix(),
		"exp":     exp.Unix(),
	}, secret)
	require.NoError(t, err)
	return token
}

func TestSessionAcceptsValidToken(t *testing.T) {
	router := newSessionRouter()
	token := issueToken(t, testSecret, time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"user_id":"12345"`)
}

func TestSessionRejectsMissingHeader(t *testing.T) {
	router := newSessionRouter()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionRejectsNonBearerScheme(t *testing.T) {
	router := newSessionRouter()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionRejectsGarbageToken(t *testing.T) {
	router := newSessionRouter()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "That's not even a token")
}

func TestSessionRejectsExpiredToken(t *testing.T) {
	router := newSessionRouter()
	token := issueToken(t, testSecret, time.Now().Add(-time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionRejectsWrongSignature(t *testing.T) {
	router := newSessionRouter()
	token := issueToken(t, "some-other-secret", time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
