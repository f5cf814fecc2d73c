package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	"github.com/lekenzi/QuizNexus/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockVisitTracker struct {
	mock.Mock
}

func (m *MockVisitTracker) TouchLastVisit(ctx context.Context, userID uint) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func newTestJWT(t *testing.T) *auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService("test-secret", 1)
	require.NoError(t, err)
	return svc
}

func newProtectedRouter(m *AuthMiddleware, role string) *gin.Engine {
	r := gin.New()
	group := r.Group("/api", m.RequireAuth())
	if role != "" {
		group.Use(m.RequireRole(role))
	}
	group.GET("/me", func(c *gin.Context) {
		id, _ := UserID(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "role": c.GetString(ContextRole)})
	})
	return r
}

func TestRequireAuth_MissingAndMalformedHeader(t *testing.T) {
	// Arrange
	router := newProtectedRouter(NewAuthMiddleware(newTestJWT(t), nil), "")
	cases := map[string]string{
		"":               "token_missing",
		"Token abc":      "token_format",
		"Bearer":         "token_format",
		"Bearer not.jwt": "token_invalid",
	}

	for header, errorType := range cases {
		// Act
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		router.ServeHTTP(w, req)

		// Assert
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		assert.Contains(t, w.Body.String(), errorType, header)
	}
}

func TestRequireAuth_TouchesLastVisit(t *testing.T) {
	// Arrange
	jwtSvc := newTestJWT(t)
	visits := new(MockVisitTracker)
	visits.On("TouchLastVisit", mock.Anything, uint(7)).Return(errors.New("db down")).Once()
	router := newProtectedRouter(NewAuthMiddleware(jwtSvc, visits), entity.RoleUser)
	token, err := jwtSvc.GenerateToken(&entity.User{ID: 7, Username: "u@example.com", Role: entity.RoleUser})
	require.NoError(t, err)

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	// Assert: ошибка обновления визита не мешает запросу
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":7,"role":"user"}`, w.Body.String())
	visits.AssertExpectations(t)
}

func TestRequireRole_RejectsOtherRole(t *testing.T) {
	// Arrange
	jwtSvc := newTestJWT(t)
	router := newProtectedRouter(NewAuthMiddleware(jwtSvc, nil), entity.RoleAdmin)
	token, err := jwtSvc.GenerateToken(&entity.User{ID: 3, Username: "u@example.com", Role: entity.RoleUser})
	require.NoError(t, err)

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestExtractUintParam(t *testing.T) {
	// Arrange
	r := gin.New()
	r.GET("/quizzes/:id", ExtractUintParam("id", "quizID"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.MustGet("quizID").(uint)})
	})
	cases := map[string]int{
		"/quizzes/12":  http.StatusOK,
		"/quizzes/0":   http.StatusBadRequest,
		"/quizzes/-1":  http.StatusBadRequest,
		"/quizzes/abc": http.StatusBadRequest,
	}

	for path, status := range cases {
		// Act
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		// Assert
		assert.Equal(t, status, w.Code, path)
	}
}

func TestRateLimiter_Limit(t *testing.T) {
	// Arrange
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	limiter := NewRateLimiter(client)
	r := gin.New()
	r.POST("/api/auth/login", limiter.Limit(RateLimitConfig{MaxRequests: 2, Window: time.Minute, KeyPrefix: "rl:test", PerPath: true}), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	// Act
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
		codes = append(codes, w.Code)
	}

	// Assert
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
	assert.Equal(t, time.Minute, mr.TTL("rl:test:ip:192.0.2.1:/api/auth/login"))
}

func TestRateLimiter_KeysByAuthenticatedUser(t *testing.T) {
	// Arrange
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	r := gin.New()
	r.POST("/jobs", func(c *gin.Context) {
		c.Set(ContextUserID, uint(42))
		c.Next()
	}, NewRateLimiter(client).Limit(AdminJobsRateLimitConfig()), func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})

	// Act
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/jobs", nil))

	// Assert
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "9", w.Header().Get("X-RateLimit-Remaining"))
	assert.True(t, mr.Exists("rl:admin:jobs:user:42"))
}

func TestRateLimiter_FailOpen(t *testing.T) {
	// Arrange
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()
	r := gin.New()
	r.GET("/x", NewRateLimiter(client).Limit(AuthRateLimitConfig()), func(c *gin.Context) { c.Status(http.StatusOK) })

	// Act
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
}
