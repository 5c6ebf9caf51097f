package redis

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logitrack/internal/config"
)

func testConfig(mr *miniredis.Miniredis) config.RedisConfig {
	return config.RedisConfig{
		Host:               mr.Host(),
		Port:               mr.Port(),
		PoolSize:           10,
		MinIdleConns:       1,
		MaxRetries:         1,
		RetryDelay:         10 * time.Millisecond,
		DialTimeout:        time.Second,
		ReadTimeout:        time.Second,
		WriteTimeout:       time.Second,
		PoolTimeout:        time.Second,
		IdleTimeout:        time.Minute,
		IdleCheckFrequency: time.Minute,
	}
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client := NewClient(testConfig(mr))
	defer client.Close()

	require.NotNil(t, client.GetClient())
	assert.True(t, client.IsConnected())
}

func TestNewClient_FromURL(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(mr)
	cfg.Host = ""
	cfg.URL = "redis://" + mr.Addr()
	client := NewClient(cfg)
	defer client.Close()

	assert.True(t, client.IsConnected())
	assert.Equal(t, cfg.URL, client.HealthCheck().ConnectionInfo)
}

func TestHealthCheck(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())

	client := NewClient(testConfig(mr))
	defer client.Close()

	status := client.HealthCheck()
	assert.True(t, status.IsConnected)
	assert.Equal(t, mr.Addr(), status.ConnectionInfo)
	assert.False(t, status.LastPing.IsZero())
	assert.Empty(t, status.Error)

	mr.Close()
	status = client.HealthCheck()
	assert.False(t, status.IsConnected)
	assert.NotEmpty(t, status.Error)
}

func TestWrap(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	client := Wrap(rdb)
	defer client.Close()

	assert.True(t, client.IsConnected())
	assert.Equal(t, mr.Addr(), client.HealthCheck().ConnectionInfo)
}

func TestGetConnectionStats(t *testing.T) {
	mr := miniredis.RunT(t)

	client := NewClient(testConfig(mr))
	defer client.Close()

	stats := client.GetConnectionStats()
	for _, key := range []string{"hits", "misses", "timeouts", "totalConns", "idleConns", "staleConns", "isConnected"} {
		assert.Contains(t, stats, key)
	}
}
