package ratelimit

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryRateLimiter implements RateLimiter with per-process token buckets.
// It backs single-instance deployments and falls in when Redis is absent.
type MemoryRateLimiter struct {
	config *Config
	now    func() time.Time

	total   atomic.Int64
	blocked atomic.Int64

	customLimits map[string]map[string]RateLimit // clientID -> category -> limit
	tokens       map[string]*TokenBucket         // clientID:category -> bucket
	mu           sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryRateLimiter creates a new in-memory rate limiter
func NewMemoryRateLimiter(config *Config) *MemoryRateLimiter {
	if config == nil {
		config = DefaultConfig()
	}

	limiter := &MemoryRateLimiter{
		config:       config,
		now:          time.Now,
		customLimits: make(map[string]map[string]RateLimit),
		tokens:       make(map[string]*TokenBucket),
		stop:         make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		go limiter.cleanupExpiredTokens()
	}

	return limiter
}

// Allow takes one token from the client's bucket for the endpoint category.
func (r *MemoryRateLimiter) Allow(_ context.Context, clientID string, endpoint string) (bool, time.Duration, error) {
	if !r.config.Enabled {
		return true, 0, nil
	}

	r.total.Add(1)
	category, limit := r.LimitFor(clientID, endpoint)

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	bucket := r.getOrCreateTokenBucket(clientID+":"+category, limit, now)

	elapsed := now.Sub(bucket.LastRefill).Seconds()
	if elapsed > 0 {
		bucket.Tokens = math.Min(float64(bucket.Capacity), bucket.Tokens+elapsed*bucket.RefillRate)
		bucket.LastRefill = now
	}

	if bucket.Tokens >= 1 {
		bucket.Tokens--
		return true, 0, nil
	}

	r.blocked.Add(1)
	return false, limit.retryAfter(bucket.Tokens), nil
}

// LimitFor resolves the category and the effective limit for a client.
func (r *MemoryRateLimiter) LimitFor(clientID, endpoint string) (string, RateLimit) {
	category := r.config.Category(endpoint)

	r.mu.Lock()
	defer r.mu.Unlock()
	if clientLimits, exists := r.customLimits[clientID]; exists {
		if limit, exists := clientLimits[category]; exists {
			return category, limit
		}
	}
	return category, r.config.Limit(category)
}

func (r *MemoryRateLimiter) getOrCreateTokenBucket(key string, limit RateLimit, now time.Time) *TokenBucket {
	if bucket, exists := r.tokens[key]; exists {
		return bucket
	}

	bucket := &TokenBucket{
		Capacity:   limit.capacity(),
		Tokens:     float64(limit.capacity()),
		RefillRate: limit.refillPerSecond(),
		LastRefill: now,
	}
	r.tokens[key] = bucket
	return bucket
}

// SetCustomLimit overrides a category limit for one client. The client's
// existing bucket for that category is reset to the new capacity.
func (r *MemoryRateLimiter) SetCustomLimit(_ context.Context, clientID string, category string, limit RateLimit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.customLimits[clientID] == nil {
		r.customLimits[clientID] = make(map[string]RateLimit)
	}
	r.customLimits[clientID][category] = limit
	delete(r.tokens, clientID+":"+category)
	return nil
}

// GetStats returns current rate limiter statistics
func (r *MemoryRateLimiter) GetStats() RateLimiterStats {
	r.mu.Lock()
	clients := make(map[string]struct{})
	for key := range r.tokens {
		clients[clientOf(key)] = struct{}{}
	}
	r.mu.Unlock()

	stats := RateLimiterStats{
		TotalRequests:   r.total.Load(),
		BlockedRequests: r.blocked.Load(),
		ActiveClients:   len(clients),
	}
	if stats.TotalRequests > 0 {
		stats.BlockRate = float64(stats.BlockedRequests) / float64(stats.TotalRequests)
	}
	return stats
}

func (r *MemoryRateLimiter) Close() error {
	r.stopOnce.Do(func() { close(r.stop) })
	return nil
}

// cleanupExpiredTokens drops buckets that have been idle long enough to be
// full again, so forgetting them changes nothing.
func (r *MemoryRateLimiter) cleanupExpiredTokens() {
	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.prune()
		case <-r.stop:
			return
		}
	}
}

func (r *MemoryRateLimiter) prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for key, bucket := range r.tokens {
		refilled := bucket.Tokens + now.Sub(bucket.LastRefill).Seconds()*bucket.RefillRate
		if refilled >= float64(bucket.Capacity) {
			delete(r.tokens, key)
			removed++
		}
	}
	return removed
}

// clientOf strips the category suffix from a bucket key. Client ids may
// contain ':' themselves ("user:42").
func clientOf(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return key
}
