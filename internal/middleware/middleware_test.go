package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/nyasabox/nyasabox-api/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimiterRejectsBurst(t *testing.T) {
	limiter := NewRateLimiter(rate.Every(time.Hour), 2)
	router := gin.New()
	router.GET("/", limiter.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		router.ServeHTTP(last, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, last.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "3600", last.Header().Get("Retry-After"))
	assert.Contains(t, last.Body.String(), "RATE_LIMITED")
}

func TestRateLimiterKeysByUser(t *testing.T) {
	limiter := NewRateLimiter(rate.Every(time.Hour), 1)
	router := gin.New()
	router.GET("/", func(c *gin.Context) {
		c.Set("user_id", c.GetHeader("X-User"))
		c.Next()
	}, limiter.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, user := range []string{"a", "b"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-User", user)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, user)
	}
}

func TestAuthRequiredRejectsMissingToken(t *testing.T) {
	router := gin.New()
	router.GET("/", AuthRequired(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token abc")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRequired(t *testing.T) {
	router := gin.New()
	router.GET("/", func(c *gin.Context) {
		c.Set("user_type", c.GetHeader("X-Type"))
		c.Next()
	}, AdminRequired(), func(c *gin.Context) { c.Status(http.StatusOK) })

	for userType, want := range map[string]int{"admin": http.StatusOK, "user": http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Type", userType)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, userType)
	}
}

func TestOptionalAuthSetsClaimsOnlyForValidTokens(t *testing.T) {
	utils.SetJWTSecret("middleware-secret")
	userID := uuid.New()
	token, err := utils.GenerateJWT(userID, "tamanda", "user", "verified", 1)
	require.NoError(t, err)

	router := gin.New()
	router.GET("/", OptionalAuth(), func(c *gin.Context) {
		id, _ := utils.GetUserIDFromContext(c)
		c.String(http.StatusOK, id)
	})

	for header, want := range map[string]string{
		"":                 "",
		"Bearer garbage":   "",
		"Bearer " + token: userID.String(),
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, want, w.Body.String(), header)
	}
}

func TestResolveLanguageFallsBackToDefault(t *testing.T) {
	assert.Equal(t, "en", resolveLanguage("", "en"))
	assert.Equal(t, "en", resolveLanguage("xx-YY,zz;q=0.9", "en"))
}

func TestExtractResource(t *testing.T) {
	assert.Equal(t, "distribution", extractResourceType("/v1/distribution/requests"))
	assert.Equal(t, "users", extractResourceType("/v1/admin/users/123/status"))
	assert.Equal(t, "health", extractResourceType("/health"))
	assert.Equal(t, "3f2504e0-4f89-11d3-9a0c-0305e82c3301",
		extractResourceID("/v1/distribution/requests/3f2504e0-4f89-11d3-9a0c-0305e82c3301/tracks"))
	assert.Empty(t, extractResourceID("/v1/tracks"))
}
