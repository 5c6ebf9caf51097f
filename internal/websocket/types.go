package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"logitrack/pkg/cache"
)

// ClientMessage is what dashboard clients send.
type ClientMessage struct {
	Type   string   `json:"type"`
	Topics []string `json:"topics,omitempty"`
}

// ServerMessage is what the server pushes. Invalidated messages carry the
// cache key the client should refetch.
type ServerMessage struct {
	Type   string   `json:"type"`
	Key    string   `json:"key,omitempty"`
	Topic  string   `json:"topic,omitempty"`
	Topics []string `json:"topics,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// Topics resolves watch topics for a user. *services.Service implements it.
type Topics interface {
	Watch(ctx context.Context, topic, userID string) (release func(), err error)
	TopicKeys(topic, userID string) ([]cache.Key, error)
}

// InvalidationSource reports every invalidated cache key. *cache.Cache
// implements it.
type InvalidationSource interface {
	OnInvalidate(fn func(cache.Key)) func()
}

type watch struct {
	keys    []cache.Key
	release func()
}

// Client represents a WebSocket client connection
type Client struct {
	ID       string
	UserID   string
	Conn     *websocket.Conn
	Send     chan ServerMessage
	LastPing time.Time

	mu       sync.Mutex
	isActive bool
	watches  map[string]watch
}

func (c *Client) active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isActive
}

func (c *Client) setActive(v bool) {
	c.mu.Lock()
	c.isActive = v
	c.mu.Unlock()
}

// wants reports whether an invalidated key falls under a watched topic.
func (c *Client) wants(key cache.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range c.watches {
		for _, k := range w.keys {
			if key.HasPrefix(k) {
				return true
			}
		}
	}
	return false
}

func (c *Client) watching() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	topics := make([]string, 0, len(c.watches))
	for t := range c.watches {
		topics = append(topics, t)
	}
	return topics
}

// ClientStats provides statistics about connected clients
type ClientStats struct {
	TotalClients    int `json:"totalClients"`
	ActiveClients   int `json:"activeClients"`
	InactiveClients int `json:"inactiveClients"`
	Watches         int `json:"watches"`
}

// Message types for WebSocket communication
const (
	MessageTypeWatch       = "watch"
	MessageTypeUnwatch     = "unwatch"
	MessageTypeWatching    = "watching"
	MessageTypeInvalidated = "invalidated"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
	MessageTypeError       = "error"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	idleTimeout  = 90 * time.Second
	sendBuffer   = 256
	pushBuffer   = 1000
	healthPeriod = 30 * time.Second
)
