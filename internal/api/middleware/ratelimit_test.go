package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logitrack/pkg/jwt"
	"logitrack/pkg/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestMiddleware(t *testing.T) (*gin.Engine, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	config := ratelimit.DefaultConfig()
	config.RedisKeyPrefix = "test_ratelimit:"
	config.DefaultLimits["reads"] = ratelimit.RateLimit{RequestsPerMinute: 5, BurstSize: 2, WindowSize: time.Minute}
	config.DefaultLimits["writes"] = ratelimit.RateLimit{RequestsPerMinute: 1, BurstSize: 1, WindowSize: time.Minute}

	limiter := ratelimit.NewRedisRateLimiter(client, config)

	router := gin.New()
	router.Use(RateLimitMiddleware(limiter))
	router.GET("/api/v1/vehicles", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": []string{}})
	})
	router.GET("/api/v1/vehicles/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": c.Param("id")})
	})
	router.POST("/api/v1/alerts", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"success": true})
	})

	return router, mr
}

func do(router http.Handler, method, path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-Forwarded-For", ip)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware_Headers(t *testing.T) {
	router, _ := setupTestMiddleware(t)

	w := do(router, http.MethodGet, "/api/v1/vehicles", "192.168.1.1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Burst"))
	assert.Equal(t, "60", w.Header().Get("X-RateLimit-Window"))
	assert.Empty(t, w.Header().Get("Retry-After"))
}

func TestRateLimitMiddleware_RateLimitExceeded(t *testing.T) {
	router, _ := setupTestMiddleware(t)

	w := do(router, http.MethodPost, "/api/v1/alerts", "192.168.1.2")
	assert.Equal(t, http.StatusCreated, w.Code)

	w = do(router, http.MethodPost, "/api/v1/alerts", "192.168.1.2")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")

	// a different client still gets through
	w = do(router, http.MethodPost, "/api/v1/alerts", "192.168.1.3")
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRateLimitMiddleware_IdsShareABucket(t *testing.T) {
	router, _ := setupTestMiddleware(t)
	ip := "10.1.1.1"

	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/api/v1/vehicles/3f0c6a52-6f1f-4d7e-9d9b-0a3b1c2d4e5f", ip).Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/api/v1/vehicles/another", ip).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(router, http.MethodGet, "/api/v1/vehicles", ip).Code)
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	router, mr := setupTestMiddleware(t)
	mr.Close()

	w := do(router, http.MethodGet, "/api/v1/vehicles", "192.168.1.4")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Rate limiter unavailable", w.Header().Get("X-RateLimit-Error"))
}

func TestRateLimitMiddleware_KeysByUser(t *testing.T) {
	limiter := ratelimit.NewMemoryRateLimiter(func() *ratelimit.Config {
		c := ratelimit.DefaultConfig()
		c.CleanupInterval = 0
		c.DefaultLimits["reads"] = ratelimit.RateLimit{RequestsPerMinute: 1, BurstSize: 1, WindowSize: time.Minute}
		return c
	}())
	defer limiter.Close()

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextUserID, c.GetHeader("X-Test-User"))
		c.Next()
	}, RateLimitMiddleware(limiter))
	router.GET("/api/v1/alerts", func(c *gin.Context) { c.Status(http.StatusOK) })

	get := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
		req.Header.Set("X-Test-User", user)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	// all requests come from the same address
	assert.Equal(t, http.StatusOK, get("u1"))
	assert.Equal(t, http.StatusTooManyRequests, get("u1"))
	assert.Equal(t, http.StatusOK, get("u2"))
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/api/v1/vehicles/:id/telemetry", normalizePath("/api/v1/vehicles/3f0c6a52-6f1f-4d7e-9d9b-0a3b1c2d4e5f/telemetry"))
	assert.Equal(t, "/api/v1/routes/:id", normalizePath("/api/v1/routes/42"))
	assert.Equal(t, "/api/v1/vehicles/latest", normalizePath("/api/v1/vehicles/latest"))
}

func TestRetrySeconds(t *testing.T) {
	assert.Equal(t, 1, retrySeconds(0))
	assert.Equal(t, 1, retrySeconds(300*time.Millisecond))
	assert.Equal(t, 2, retrySeconds(1500*time.Millisecond))
}

func TestAuthMiddleware(t *testing.T) {
	verifier, err := jwt.NewVerifier("test-secret", "")
	require.NoError(t, err)
	token, err := verifier.Sign("u1", "ops@example.com", "dispatcher", time.Hour)
	require.NoError(t, err)

	router := gin.New()
	router.Use(AuthMiddleware(verifier))
	router.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c)+"/"+c.GetString(ContextRole))
	})

	tests := []struct {
		name   string
		header string
		query  string
		status int
		body   string
	}{
		{"bearer", "Bearer " + token, "", http.StatusOK, "u1/dispatcher"},
		{"raw header", token, "", http.StatusOK, "u1/dispatcher"},
		{"query param", "", "?token=" + token, http.StatusOK, "u1/dispatcher"},
		{"missing", "", "", http.StatusUnauthorized, ""},
		{"invalid", "Bearer nope", "", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}
