package ratelimit

import (
	"strings"
	"time"
)

// Rule maps an endpoint pattern onto a limit category. A trailing '*'
// matches any suffix.
type Rule struct {
	Pattern  string `json:"pattern"`
	Category string `json:"category"`
}

// Config holds the configuration for rate limiting
type Config struct {
	// Default rate limits per endpoint category
	DefaultLimits map[string]RateLimit `json:"defaultLimits"`

	// Rules are checked in order; the first match wins
	Rules []Rule `json:"rules"`

	// Redis key prefix for rate limiting data
	RedisKeyPrefix string `json:"redisKeyPrefix"`

	// Cleanup interval for idle buckets
	CleanupInterval time.Duration `json:"cleanupInterval"`

	// Enable/disable rate limiting
	Enabled bool `json:"enabled"`
}

const CategoryDefault = "default"

// DefaultConfig returns a default rate limiting configuration
func DefaultConfig() *Config {
	return &Config{
		DefaultLimits: map[string]RateLimit{
			// vehicle units post telemetry continuously
			"telemetry_ingest": {RequestsPerMinute: 600, BurstSize: 100, WindowSize: time.Minute},

			// dashboards poll KPIs and activity on every tab
			"dashboard": {RequestsPerMinute: 300, BurstSize: 60, WindowSize: time.Minute},

			"reads":  {RequestsPerMinute: 200, BurstSize: 50, WindowSize: time.Minute},
			"writes": {RequestsPerMinute: 60, BurstSize: 15, WindowSize: time.Minute},

			// websocket upgrades
			"ws": {RequestsPerMinute: 20, BurstSize: 5, WindowSize: time.Minute},

			"health": {RequestsPerMinute: 1000, BurstSize: 100, WindowSize: time.Minute},

			CategoryDefault: {RequestsPerMinute: 60, BurstSize: 15, WindowSize: time.Minute},
		},
		Rules: []Rule{
			{Pattern: "GET:/health", Category: "health"},
			{Pattern: "GET:/ws", Category: "ws"},
			{Pattern: "POST:/api/v1/telemetry", Category: "telemetry_ingest"},
			{Pattern: "GET:/api/v1/dashboard/*", Category: "dashboard"},
			{Pattern: "GET:/api/v1/*", Category: "reads"},
			{Pattern: "POST:/api/v1/*", Category: "writes"},
			{Pattern: "PATCH:/api/v1/*", Category: "writes"},
			{Pattern: "DELETE:/api/v1/*", Category: "writes"},
		},
		RedisKeyPrefix:  "logitrack-ratelimit:",
		CleanupInterval: 5 * time.Minute,
		Enabled:         true,
	}
}

// Category returns the limit category for an endpoint
func (c *Config) Category(endpoint string) string {
	for _, rule := range c.Rules {
		if matchesPattern(endpoint, rule.Pattern) {
			return rule.Category
		}
	}
	return CategoryDefault
}

// Limit returns the default limit for a category
func (c *Config) Limit(category string) RateLimit {
	if limit, exists := c.DefaultLimits[category]; exists {
		return limit
	}
	if limit, exists := c.DefaultLimits[CategoryDefault]; exists {
		return limit
	}
	return RateLimit{RequestsPerMinute: 60, BurstSize: 15, WindowSize: time.Minute}
}

// matchesPattern checks if a key matches a pattern with wildcards
func matchesPattern(key, pattern string) bool {
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(key, strings.TrimSuffix(pattern, "*"))
	}
	return key == pattern
}
