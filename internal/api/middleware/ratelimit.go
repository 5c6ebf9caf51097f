package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"logitrack/pkg/log"
	"logitrack/pkg/metrics"
	"logitrack/pkg/ratelimit"
)

// RateLimitMiddleware creates a rate limiting middleware. A limiter failure
// lets the request through.
func RateLimitMiddleware(limiter ratelimit.RateLimiter) gin.HandlerFunc {
	logger := log.WithComponent("ratelimit")

	return func(c *gin.Context) {
		clientID := getClientID(c)
		endpoint := getEndpointID(c)

		allowed, resetTime, err := limiter.Allow(c.Request.Context(), clientID, endpoint)
		if err != nil {
			logger.Warn().Err(err).Str("client", clientID).Msg("Rate limiter unavailable")
			c.Header("X-RateLimit-Error", "Rate limiter unavailable")
			c.Next()
			return
		}

		category, limit := limiter.LimitFor(clientID, endpoint)
		setRateLimitHeaders(c, limit, allowed, resetTime)

		if !allowed {
			metrics.RateLimitedTotal.WithLabelValues(category).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":    false,
				"message":    fmt.Sprintf("Too many requests. Try again in %v", resetTime.Round(time.Millisecond)),
				"error":      "RATE_LIMIT_EXCEEDED",
				"retryAfter": retrySeconds(resetTime),
			})
			return
		}

		c.Next()
	}
}

// getClientID keys authenticated callers by user and everyone else by IP.
func getClientID(c *gin.Context) string {
	if uid := UserID(c); uid != "" {
		return "user:" + uid
	}
	return "ip:" + getClientIP(c)
}

// getClientIP extracts the real client IP address
func getClientIP(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		return strings.TrimSpace(ips[0])
	}
	if realIP := c.GetHeader("X-Real-IP"); realIP != "" {
		return realIP
	}
	return c.ClientIP()
}

// getEndpointID uses the matched route template so every id shares a
// bucket; unmatched paths fall back to a normalized URL path.
func getEndpointID(c *gin.Context) string {
	path := c.FullPath()
	if path == "" {
		path = normalizePath(c.Request.URL.Path)
	}
	return c.Request.Method + ":" + path
}

// normalizePath replaces id-looking segments with ":id"
func normalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if isID(segment) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

func isID(s string) bool {
	if s == "" {
		return false
	}
	if _, err := uuid.Parse(s); err == nil {
		return true
	}
	_, err := strconv.Atoi(s)
	return err == nil
}

func retrySeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// setRateLimitHeaders sets standard rate limiting headers
func setRateLimitHeaders(c *gin.Context, limit ratelimit.RateLimit, allowed bool, resetTime time.Duration) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit.RequestsPerMinute))
	c.Header("X-RateLimit-Window", strconv.Itoa(int(limit.WindowSize.Seconds())))
	c.Header("X-RateLimit-Burst", strconv.Itoa(limit.BurstSize))

	if !allowed {
		c.Header("Retry-After", strconv.Itoa(retrySeconds(resetTime)))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(resetTime).Unix(), 10))
	}
}
