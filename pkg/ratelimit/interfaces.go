package ratelimit

import (
	"context"
	"time"
)

// RateLimiter decides whether a client may call an endpoint. Endpoints are
// "METHOD:/route/template" strings.
type RateLimiter interface {
	Allow(ctx context.Context, clientID string, endpoint string) (bool, time.Duration, error)
	LimitFor(clientID string, endpoint string) (string, RateLimit)
	SetCustomLimit(ctx context.Context, clientID string, category string, limit RateLimit) error
	GetStats() RateLimiterStats
	Close() error
}

// RateLimit defines the configuration for rate limiting
type RateLimit struct {
	RequestsPerMinute int           `json:"requestsPerMinute"`
	BurstSize         int           `json:"burstSize"`
	WindowSize        time.Duration `json:"windowSize"`
}

// RateLimiterStats provides statistics about rate limiting
type RateLimiterStats struct {
	TotalRequests   int64   `json:"totalRequests"`
	BlockedRequests int64   `json:"blockedRequests"`
	BlockRate       float64 `json:"blockRate"`
	ActiveClients   int     `json:"activeClients"`
}

// TokenBucket is the per client and category state of the memory limiter.
type TokenBucket struct {
	Capacity   int       `json:"capacity"`
	Tokens     float64   `json:"tokens"`
	RefillRate float64   `json:"refillRate"` // tokens per second
	LastRefill time.Time `json:"lastRefill"`
}

func (l RateLimit) refillPerSecond() float64 {
	return float64(l.RequestsPerMinute) / 60
}

func (l RateLimit) capacity() int {
	if l.BurstSize > 0 {
		return l.BurstSize
	}
	return 1
}

// retryAfter is how long until one token is available again given the
// current (fractional) token count.
func (l RateLimit) retryAfter(tokens float64) time.Duration {
	rate := l.refillPerSecond()
	if rate <= 0 {
		return l.WindowSize
	}
	missing := 1 - tokens
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / rate * float64(time.Second))
}
