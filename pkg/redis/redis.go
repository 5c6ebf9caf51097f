package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"logitrack/internal/config"
	"logitrack/pkg/log"
)

// Client wraps a go-redis client with health tracking and background reconnects.
type Client struct {
	client        *redis.Client
	config        config.RedisConfig
	logger        zerolog.Logger
	mu            sync.RWMutex
	isConnected   bool
	reconnectChan chan struct{}
	ctx           context.Context
	cancel        context.CancelFunc
}

type HealthStatus struct {
	IsConnected    bool          `json:"isConnected"`
	LastPing       time.Time     `json:"lastPing"`
	ResponseTime   time.Duration `json:"responseTime"`
	ConnectionInfo string        `json:"connectionInfo"`
	Error          string        `json:"error,omitempty"`
}

// NewClient creates a new Redis client with connection pooling
func NewClient(cfg config.RedisConfig) *Client {
	c := newClient(cfg)
	c.connect()
	go c.healthCheckLoop()
	go c.reconnectLoop()
	return c
}

// Wrap adopts an already configured go-redis client. No reconnect loop runs.
func Wrap(rdb *redis.Client) *Client {
	c := newClient(config.RedisConfig{Host: rdb.Options().Addr})
	c.client = rdb
	c.isConnected = rdb.Ping(context.Background()).Err() == nil
	return c
}

func newClient(cfg config.RedisConfig) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		config:        cfg,
		logger:        log.WithComponent("redis"),
		reconnectChan: make(chan struct{}, 1),
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (c *Client) options() *redis.Options {
	if c.config.URL != "" {
		opt, err := redis.ParseURL(c.config.URL)
		if err == nil {
			opt.PoolSize = c.config.PoolSize
			opt.MinIdleConns = c.config.MinIdleConns
			opt.MaxRetries = c.config.MaxRetries
			opt.MinRetryBackoff = c.config.RetryDelay
			opt.DialTimeout = c.config.DialTimeout
			opt.ReadTimeout = c.config.ReadTimeout
			opt.WriteTimeout = c.config.WriteTimeout
			opt.PoolTimeout = c.config.PoolTimeout
			opt.ConnMaxIdleTime = c.config.IdleTimeout
			return opt
		}
		c.logger.Warn().Err(err).Msg("Failed to parse Redis URL, falling back to host:port")
	}

	return &redis.Options{
		Addr:            c.address(),
		Password:        c.config.Password,
		DB:              c.config.DB,
		PoolSize:        c.config.PoolSize,
		MinIdleConns:    c.config.MinIdleConns,
		MaxRetries:      c.config.MaxRetries,
		MinRetryBackoff: c.config.RetryDelay,
		DialTimeout:     c.config.DialTimeout,
		ReadTimeout:     c.config.ReadTimeout,
		WriteTimeout:    c.config.WriteTimeout,
		PoolTimeout:     c.config.PoolTimeout,
		ConnMaxIdleTime: c.config.IdleTimeout,
	}
}

func (c *Client) address() string {
	if c.config.URL != "" && c.config.Host == "" {
		return c.config.URL
	}
	if c.config.Port == "" {
		return c.config.Host
	}
	return fmt.Sprintf("%s:%s", c.config.Host, c.config.Port)
}

// connect establishes the Redis connection with configured options
func (c *Client) connect() {
	rdb := redis.NewClient(c.options())

	c.mu.Lock()
	c.client = rdb
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := rdb.Ping(ctx).Err()
	c.mu.Lock()
	c.isConnected = err == nil
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Str("addr", c.address()).Msg("Redis connection test failed")
		return
	}
	c.logger.Info().Str("addr", c.address()).Msg("Redis connected")
}

// GetClient returns the Redis client instance (thread-safe)
func (c *Client) GetClient() *redis.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

// HealthCheck performs a health check and returns detailed status
func (c *Client) HealthCheck() HealthStatus {
	client := c.GetClient()

	status := HealthStatus{
		IsConnected:    c.IsConnected(),
		ConnectionInfo: c.address(),
	}
	if client == nil {
		status.Error = "Redis client not initialized"
		return status
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	start := time.Now()
	err := client.Ping(ctx).Err()
	status.ResponseTime = time.Since(start)
	status.LastPing = time.Now()

	c.mu.Lock()
	c.isConnected = err == nil
	c.mu.Unlock()

	if err != nil {
		status.IsConnected = false
		status.Error = err.Error()
		c.triggerReconnect()
		return status
	}
	status.IsConnected = true
	return status
}

func (c *Client) triggerReconnect() {
	select {
	case c.reconnectChan <- struct{}{}:
	default:
	}
}

func (c *Client) healthCheckLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if status := c.HealthCheck(); !status.IsConnected {
				c.logger.Warn().Str("error", status.Error).Msg("Redis health check failed")
			}
		}
	}
}

// reconnectLoop handles automatic reconnection with exponential backoff
func (c *Client) reconnectLoop() {
	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.reconnectChan:
			if c.IsConnected() {
				continue
			}

			c.logger.Info().Msg("Attempting to reconnect to Redis")
			if old := c.GetClient(); old != nil {
				old.Close()
			}
			c.connect()

			if c.IsConnected() {
				backoff = 1 * time.Second
				continue
			}

			c.logger.Warn().Dur("backoff", backoff).Msg("Reconnection failed")
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			c.triggerReconnect()
		}
	}
}

// Close gracefully shuts down the Redis client
func (c *Client) Close() error {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// GetConnectionStats returns connection pool statistics
func (c *Client) GetConnectionStats() map[string]interface{} {
	client := c.GetClient()
	if client == nil {
		return map[string]interface{}{
			"error": "Redis client not initialized",
		}
	}

	stats := client.PoolStats()
	return map[string]interface{}{
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"totalConns":  stats.TotalConns,
		"idleConns":   stats.IdleConns,
		"staleConns":  stats.StaleConns,
		"isConnected": c.IsConnected(),
	}
}
