// Package websocket pushes cache invalidation notices to dashboard clients.
// A client watches topics; the manager holds the matching realtime channels
// for as long as the client is connected and forwards every invalidated key
// that falls under them.
package websocket

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"logitrack/pkg/cache"
	"logitrack/pkg/log"
	"logitrack/pkg/metrics"
)

var ErrStopped = errors.New("websocket manager stopped")

type Manager struct {
	topics Topics
	source InvalidationSource
	logger zerolog.Logger

	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan cache.Key
	mutex      sync.RWMutex
	upgrader   websocket.Upgrader

	ctx        context.Context
	cancel     context.CancelFunc
	stopListen func()
	done       chan struct{}
	stopOnce   sync.Once
}

// NewManager creates a manager. An empty origin list, or one containing "*",
// accepts every origin.
func NewManager(topics Topics, source InvalidationSource, allowedOrigins []string) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		topics:     topics,
		source:     source,
		logger:     log.WithComponent("websocket"),
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan cache.Key, pushBuffer),
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return len(set) == 0 || origin == "" || set[origin]
	}
}

// Start begins the WebSocket manager's main loop
func (m *Manager) Start() error {
	m.stopListen = m.source.OnInvalidate(m.enqueue)
	go m.run()
	m.logger.Info().Msg("WebSocket manager started")
	return nil
}

// Stop closes every client and releases their watches.
func (m *Manager) Stop() error {
	m.stopOnce.Do(func() {
		if m.stopListen != nil {
			m.stopListen()
		}
		close(m.done)
		m.cancel()

		m.mutex.Lock()
		clients := make([]*Client, 0, len(m.clients))
		for id, client := range m.clients {
			delete(m.clients, id)
			clients = append(clients, client)
		}
		metrics.WebSocketClients.Set(0)
		m.mutex.Unlock()

		for _, client := range clients {
			m.closeClient(client)
		}
		m.logger.Info().Msg("WebSocket manager stopped")
	})
	return nil
}

func (m *Manager) run() {
	ticker := time.NewTicker(healthPeriod)
	defer ticker.Stop()

	for {
		select {
		case client := <-m.register:
			m.mutex.Lock()
			m.clients[client.ID] = client
			metrics.WebSocketClients.Set(float64(len(m.clients)))
			m.mutex.Unlock()
			m.logger.Debug().Str("client", client.ID).Str("user", client.UserID).Msg("Client registered")
			go m.handleClient(client)

		case client := <-m.unregister:
			m.remove(client)

		case key := <-m.broadcast:
			m.broadcastToClients(key)

		case <-ticker.C:
			m.healthCheck()

		case <-m.done:
			return
		}
	}
}

// RegisterClient hands an upgraded connection to the manager.
func (m *Manager) RegisterClient(clientID, userID string, conn *websocket.Conn) error {
	client := &Client{
		ID:       clientID,
		UserID:   userID,
		Conn:     conn,
		Send:     make(chan ServerMessage, sendBuffer),
		LastPing: time.Now(),
		isActive: true,
		watches:  make(map[string]watch),
	}
	select {
	case m.register <- client:
		return nil
	case <-m.done:
		return ErrStopped
	}
}

// UnregisterClient removes a WebSocket client
func (m *Manager) UnregisterClient(clientID string) error {
	m.mutex.RLock()
	client, exists := m.clients[clientID]
	m.mutex.RUnlock()

	if exists {
		m.requestRemove(client)
	}
	return nil
}

func (m *Manager) requestRemove(client *Client) {
	select {
	case m.unregister <- client:
	case <-m.done:
	}
}

// remove drops client if it is still registered, then releases its watches.
func (m *Manager) remove(client *Client) {
	m.mutex.Lock()
	current, ok := m.clients[client.ID]
	if ok && current == client {
		delete(m.clients, client.ID)
		metrics.WebSocketClients.Set(float64(len(m.clients)))
	}
	m.mutex.Unlock()

	if ok && current == client {
		m.closeClient(client)
		m.logger.Debug().Str("client", client.ID).Msg("Client unregistered")
	}
}

func (m *Manager) closeClient(client *Client) {
	client.mu.Lock()
	watches := client.watches
	client.watches = nil
	client.mu.Unlock()
	for _, w := range watches {
		w.release()
	}

	close(client.Send)
	if client.Conn != nil {
		client.Conn.Close()
	}
}

// enqueue runs inside the cache's invalidation path and must not block.
func (m *Manager) enqueue(key cache.Key) {
	select {
	case m.broadcast <- key:
	default:
		m.logger.Warn().Str("key", key.String()).Msg("Push queue full, dropping invalidation notice")
	}
}

// GetConnectedClients returns the number of connected clients
func (m *Manager) GetConnectedClients() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

// GetClientStats returns detailed client statistics
func (m *Manager) GetClientStats() ClientStats {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	stats := ClientStats{
		TotalClients: len(m.clients),
	}
	for _, client := range m.clients {
		if client.active() {
			stats.ActiveClients++
		} else {
			stats.InactiveClients++
		}
		stats.Watches += len(client.watching())
	}
	return stats
}

// GetUpgrader returns the WebSocket upgrader for external use
func (m *Manager) GetUpgrader() *websocket.Upgrader {
	return &m.upgrader
}

func (m *Manager) broadcastToClients(key cache.Key) {
	msg := ServerMessage{Type: MessageTypeInvalidated, Key: key.String()}

	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for _, client := range m.clients {
		if !client.wants(key) {
			continue
		}
		select {
		case client.Send <- msg:
		default:
			client.setActive(false)
			m.logger.Warn().Str("client", client.ID).Msg("Client send buffer full, marking inactive")
		}
	}
}

// send queues msg for client unless it has been removed.
func (m *Manager) send(client *Client, msg ServerMessage) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.clients[client.ID] != client {
		return
	}
	select {
	case client.Send <- msg:
	default:
		client.setActive(false)
	}
}

func (m *Manager) handleClient(client *Client) {
	defer m.requestRemove(client)

	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		m.touch(client)
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go m.writeMessages(client)

	for {
		var message ClientMessage
		if err := client.Conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Debug().Err(err).Str("client", client.ID).Msg("WebSocket read failed")
			}
			return
		}
		m.touch(client)
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))

		switch message.Type {
		case MessageTypeWatch:
			m.watch(client, message.Topics)
		case MessageTypeUnwatch:
			m.unwatch(client, message.Topics)
		case MessageTypePing:
			m.send(client, ServerMessage{Type: MessageTypePong})
		default:
			m.send(client, ServerMessage{Type: MessageTypeError, Error: "unknown message type " + message.Type})
		}
	}
}

func (m *Manager) touch(client *Client) {
	m.mutex.Lock()
	client.LastPing = time.Now()
	m.mutex.Unlock()
	client.setActive(true)
}

func (m *Manager) watch(client *Client, topics []string) {
	for _, topic := range topics {
		client.mu.Lock()
		_, already := client.watches[topic]
		client.mu.Unlock()
		if already {
			continue
		}

		keys, err := m.topics.TopicKeys(topic, client.UserID)
		if err != nil {
			m.send(client, ServerMessage{Type: MessageTypeError, Topic: topic, Error: err.Error()})
			continue
		}
		release, err := m.topics.Watch(m.ctx, topic, client.UserID)
		if err != nil {
			m.send(client, ServerMessage{Type: MessageTypeError, Topic: topic, Error: err.Error()})
			continue
		}

		client.mu.Lock()
		if _, raced := client.watches[topic]; raced || client.watches == nil {
			client.mu.Unlock()
			release()
			continue
		}
		client.watches[topic] = watch{keys: keys, release: release}
		client.mu.Unlock()
	}
	m.sendWatching(client)
}

func (m *Manager) unwatch(client *Client, topics []string) {
	for _, topic := range topics {
		client.mu.Lock()
		w, ok := client.watches[topic]
		delete(client.watches, topic)
		client.mu.Unlock()
		if ok {
			w.release()
		}
	}
	m.sendWatching(client)
}

func (m *Manager) sendWatching(client *Client) {
	topics := client.watching()
	sort.Strings(topics)
	m.send(client, ServerMessage{Type: MessageTypeWatching, Topics: topics})
}

func (m *Manager) writeMessages(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteJSON(msg); err != nil {
				m.logger.Debug().Err(err).Str("client", client.ID).Msg("WebSocket write failed")
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				m.logger.Debug().Err(err).Str("client", client.ID).Msg("WebSocket ping failed")
				return
			}
		}
	}
}

// healthCheck removes clients that have not answered a ping in time.
func (m *Manager) healthCheck() {
	now := time.Now()
	m.mutex.RLock()
	var stale []*Client
	for _, client := range m.clients {
		if now.Sub(client.LastPing) > idleTimeout {
			stale = append(stale, client)
		}
	}
	m.mutex.RUnlock()

	for _, client := range stale {
		m.logger.Info().Str("client", client.ID).Msg("Client timed out, removing")
		m.remove(client)
	}
}
