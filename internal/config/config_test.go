package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("CACHE_STALE_TIME", "")
	t.Setenv("ONTIME_DEFAULT_RATE", "")

	cfg := Load()
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, FeedStore, cfg.ChangeFeed)
	assert.Equal(t, 30*time.Second, cfg.Cache.StaleTime)
	assert.Equal(t, 10*time.Second, cfg.Cache.FetchTimeout)
	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
	assert.Equal(t, 95, cfg.OnTimeDefaultRate)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CACHE_STALE_TIME", "5s")
	t.Setenv("CACHE_MAX_ENTRIES", "20")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("APP_TIMEZONE", "America/Sao_Paulo")
	t.Setenv("LOG_JSON", "true")

	cfg := Load()
	assert.Equal(t, 5*time.Second, cfg.Cache.StaleTime)
	assert.Equal(t, 20, cfg.Cache.MaxEntries)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, "America/Sao_Paulo", cfg.Timezone.String())
	assert.True(t, cfg.LogJSON)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"mongo without uri", func(c *Config) { c.StoreDriver = DriverMongo; c.MongoURI = "" }, ErrMissingMongo},
		{"unknown driver", func(c *Config) { c.StoreDriver = "postgres" }, ErrUnknownDriver},
		{"redis feed without redis", func(c *Config) { c.ChangeFeed = FeedRedis }, ErrMissingRedis},
		{"mqtt feed without broker", func(c *Config) { c.ChangeFeed = FeedMQTT }, ErrMissingBroker},
		{"shared cache without redis", func(c *Config) { c.Cache.Shared = true }, ErrMissingRedis},
		{"on-time out of range", func(c *Config) { c.OnTimeDefaultRate = 120 }, ErrInvalidOnTime},
		{"zero entries", func(c *Config) { c.Cache.MaxEntries = 0 }, ErrInvalidEntries},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{StoreDriver: DriverMemory, ChangeFeed: FeedStore, Cache: CacheConfig{MaxEntries: 10}, OnTimeDefaultRate: 95}
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}

	t.Run("redis feed with url", func(t *testing.T) {
		cfg := &Config{StoreDriver: DriverMemory, ChangeFeed: FeedRedis, Redis: RedisConfig{URL: "redis://localhost:6379"}, Cache: CacheConfig{MaxEntries: 1}}
		assert.NoError(t, cfg.Validate())
	})
}
