package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"logitrack/pkg/log"
)

// tokenBucketScript refills and takes one token atomically. State is a hash
// of the fractional token count and the last refill time in milliseconds.
// It returns {allowed, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local tokens = tonumber(redis.call('HGET', key, 'tokens'))
local ts = tonumber(redis.call('HGET', key, 'ts'))
if tokens == nil or ts == nil then
	tokens = capacity
	ts = now
end

if now > ts then
	tokens = math.min(capacity, tokens + (now - ts) * rate)
	ts = now
end

local allowed = 0
local retry = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
elseif rate > 0 then
	retry = math.ceil((1 - tokens) / rate)
else
	retry = ttl
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'ts', tostring(ts))
redis.call('PEXPIRE', key, ttl)

return {allowed, retry}
`)

// RedisRateLimiter implements RateLimiter on Redis so every API instance
// shares the same buckets.
type RedisRateLimiter struct {
	client *redis.Client
	config *Config
	logger zerolog.Logger
	now    func() time.Time

	total   atomic.Int64
	blocked atomic.Int64

	customLimits map[string]map[string]RateLimit // clientID -> category -> limit
	mu           sync.RWMutex
}

// NewRedisRateLimiter creates a new Redis-backed rate limiter
func NewRedisRateLimiter(client *redis.Client, config *Config) *RedisRateLimiter {
	if config == nil {
		config = DefaultConfig()
	}

	return &RedisRateLimiter{
		client:       client,
		config:       config,
		logger:       log.WithComponent("ratelimit"),
		now:          time.Now,
		customLimits: make(map[string]map[string]RateLimit),
	}
}

// Allow checks if a request should be allowed based on rate limits
func (r *RedisRateLimiter) Allow(ctx context.Context, clientID string, endpoint string) (bool, time.Duration, error) {
	if !r.config.Enabled {
		return true, 0, nil
	}

	r.total.Add(1)
	category, limit := r.LimitFor(clientID, endpoint)
	key := r.bucketKey(clientID, category)

	allowed, retryAfter, err := r.checkTokenBucket(ctx, key, limit)
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check failed: %w", err)
	}
	if !allowed {
		r.blocked.Add(1)
		return false, retryAfter, nil
	}
	return true, 0, nil
}

func (r *RedisRateLimiter) checkTokenBucket(ctx context.Context, key string, limit RateLimit) (bool, time.Duration, error) {
	// the bucket is full again after capacity/rate; keep it a little longer
	ttl := limit.WindowSize
	if rate := limit.refillPerSecond(); rate > 0 {
		if full := time.Duration(float64(limit.capacity()) / rate * float64(time.Second)); full > ttl {
			ttl = full
		}
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	result, err := tokenBucketScript.Run(ctx, r.client, []string{key},
		limit.capacity(),
		strconvRate(limit.refillPerSecond()/1000),
		r.now().UnixMilli(),
		ttl.Milliseconds()+1000,
	).Int64Slice()
	if err != nil {
		return false, 0, err
	}
	if len(result) != 2 {
		return false, 0, fmt.Errorf("unexpected script result %v", result)
	}

	return result[0] == 1, time.Duration(result[1]) * time.Millisecond, nil
}

// LimitFor resolves the category and the effective limit for a client.
func (r *RedisRateLimiter) LimitFor(clientID, endpoint string) (string, RateLimit) {
	category := r.config.Category(endpoint)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if clientLimits, exists := r.customLimits[clientID]; exists {
		if limit, exists := clientLimits[category]; exists {
			return category, limit
		}
	}
	return category, r.config.Limit(category)
}

// SetCustomLimit overrides a category limit for one client and persists the
// override so other instances pick it up through LoadCustomLimits.
func (r *RedisRateLimiter) SetCustomLimit(ctx context.Context, clientID string, category string, limit RateLimit) error {
	r.mu.Lock()
	if r.customLimits[clientID] == nil {
		r.customLimits[clientID] = make(map[string]RateLimit)
	}
	r.customLimits[clientID][category] = limit
	data, err := json.Marshal(r.customLimits[clientID])
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal custom limits: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.customKey(clientID), data, 24*time.Hour)
	pipe.Del(ctx, r.bucketKey(clientID, category))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to persist custom limits: %w", err)
	}
	return nil
}

// LoadCustomLimits loads persisted overrides, typically on startup.
func (r *RedisRateLimiter) LoadCustomLimits(ctx context.Context) error {
	prefix := r.customKey("")
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()

	loaded := make(map[string]map[string]RateLimit)
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := r.client.Get(ctx, key).Bytes()
		if err != nil {
			r.logger.Warn().Err(err).Str("key", key).Msg("Skipping unreadable custom limit")
			continue
		}

		var limits map[string]RateLimit
		if err := json.Unmarshal(data, &limits); err != nil {
			r.logger.Warn().Err(err).Str("key", key).Msg("Skipping malformed custom limit")
			continue
		}
		loaded[strings.TrimPrefix(key, prefix)] = limits
	}
	if err := iter.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	for clientID, limits := range loaded {
		r.customLimits[clientID] = limits
	}
	r.mu.Unlock()

	r.logger.Info().Int("clients", len(loaded)).Msg("Loaded custom rate limits")
	return nil
}

// GetStats returns current rate limiter statistics. Buckets live in Redis,
// so ActiveClients only counts clients with overrides.
func (r *RedisRateLimiter) GetStats() RateLimiterStats {
	r.mu.RLock()
	clients := len(r.customLimits)
	r.mu.RUnlock()

	stats := RateLimiterStats{
		TotalRequests:   r.total.Load(),
		BlockedRequests: r.blocked.Load(),
		ActiveClients:   clients,
	}
	if stats.TotalRequests > 0 {
		stats.BlockRate = float64(stats.BlockedRequests) / float64(stats.TotalRequests)
	}
	return stats
}

// Close is a no-op; the Redis client is owned by the caller. Bucket keys
// expire on their own.
func (r *RedisRateLimiter) Close() error {
	return nil
}

func (r *RedisRateLimiter) bucketKey(clientID, category string) string {
	return fmt.Sprintf("%sbucket:%s:%s", r.config.RedisKeyPrefix, clientID, category)
}

func (r *RedisRateLimiter) customKey(clientID string) string {
	return r.config.RedisKeyPrefix + "custom:" + clientID
}

func strconvRate(v float64) string {
	return fmt.Sprintf("%.9f", v)
}
