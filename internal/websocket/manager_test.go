package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logitrack/pkg/cache"
)

type fakeTopics struct {
	mu   sync.Mutex
	refs map[string]int
}

func newFakeTopics() *fakeTopics {
	return &fakeTopics{refs: make(map[string]int)}
}

var errForeign = errors.New("topic belongs to another user")

func (f *fakeTopics) TopicKeys(topic, userID string) ([]cache.Key, error) {
	if strings.HasPrefix(topic, "notifications:") && topic != "notifications:"+userID {
		return nil, errForeign
	}
	return []cache.Key{cache.K(strings.Split(topic, ":")...)}, nil
}

func (f *fakeTopics) Watch(_ context.Context, topic, userID string) (func(), error) {
	if _, err := f.TopicKeys(topic, userID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.refs[topic]++
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.refs[topic]--
			f.mu.Unlock()
		})
	}, nil
}

func (f *fakeTopics) held(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refs[topic]
}

type harness struct {
	manager *Manager
	topics  *fakeTopics
	qc      *cache.Cache
	url     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	qc := cache.New(cache.DefaultCacheConfig())
	topics := newFakeTopics()
	manager := NewManager(topics, qc, nil)
	require.NoError(t, manager.Start())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := manager.GetUpgrader().Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if err := manager.RegisterClient(r.URL.Query().Get("id"), "u1", conn); err != nil {
			conn.Close()
		}
	}))
	t.Cleanup(func() {
		manager.Stop()
		server.Close()
		qc.Close()
	})
	return &harness{manager: manager, topics: topics, qc: qc, url: "ws" + strings.TrimPrefix(server.URL, "http")}
}

func (h *harness) dial(t *testing.T, id string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(h.url+"?id="+id, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool {
		h.manager.mutex.RLock()
		defer h.manager.mutex.RUnlock()
		_, ok := h.manager.clients[id]
		return ok
	}, time.Second, 5*time.Millisecond)
	return conn
}

func (h *harness) prime(t *testing.T, keys ...cache.Key) {
	t.Helper()
	for _, k := range keys {
		res := cache.Query(context.Background(), h.qc, k, func(context.Context) (int, error) { return 1, nil }, cache.Options{})
		require.True(t, res.OK())
	}
}

func read(t *testing.T, conn *websocket.Conn) ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg ServerMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestNewManager(t *testing.T) {
	manager := NewManager(newFakeTopics(), cache.New(cache.DefaultCacheConfig()), []string{"https://ops.example"})

	assert.NotNil(t, manager.clients)
	assert.NotNil(t, manager.register)
	assert.NotNil(t, manager.unregister)
	assert.Equal(t, pushBuffer, cap(manager.broadcast))
	assert.Zero(t, manager.GetConnectedClients())
}

func TestManagerStartStop(t *testing.T) {
	manager := NewManager(newFakeTopics(), cache.New(cache.DefaultCacheConfig()), nil)
	require.NoError(t, manager.Start())
	assert.NoError(t, manager.Stop())
	assert.NoError(t, manager.Stop(), "stop is idempotent")
	assert.ErrorIs(t, manager.RegisterClient("late", "u1", nil), ErrStopped)
}

func TestOriginChecker(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	open := originChecker(nil)
	assert.True(t, open(req("https://anything.example")))

	wildcard := originChecker([]string{"https://ops.example", "*"})
	assert.True(t, wildcard(req("https://other.example")))

	strict := originChecker([]string{"https://ops.example"})
	assert.True(t, strict(req("https://ops.example")))
	assert.True(t, strict(req("")), "non-browser clients send no origin")
	assert.False(t, strict(req("https://evil.example")))
}

func TestManager_PushesInvalidationsForWatchedKeys(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, "c1")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeWatch, Topics: []string{"telemetry:V"}}))
	msg := read(t, conn)
	assert.Equal(t, MessageTypeWatching, msg.Type)
	assert.Equal(t, []string{"telemetry:V"}, msg.Topics)
	assert.Equal(t, 1, h.topics.held("telemetry:V"))

	h.prime(t, cache.K("telemetry", "V", "recent", "10"), cache.K("telemetry", "W", "recent", "10"))

	h.qc.Invalidate(cache.K("telemetry", "W"))
	h.qc.Invalidate(cache.K("telemetry", "V"))

	msg = read(t, conn)
	assert.Equal(t, MessageTypeInvalidated, msg.Type)
	assert.Equal(t, "telemetry:V:recent:10", msg.Key, "keys of other vehicles are not pushed")
}

func TestManager_UnwatchStopsPushes(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, "c1")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeWatch, Topics: []string{"alerts", "vehicles"}}))
	msg := read(t, conn)
	assert.Equal(t, []string{"alerts", "vehicles"}, msg.Topics)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeUnwatch, Topics: []string{"alerts"}}))
	msg = read(t, conn)
	assert.Equal(t, []string{"vehicles"}, msg.Topics)
	assert.Zero(t, h.topics.held("alerts"))

	h.prime(t, cache.K("alerts", "all"), cache.K("vehicles", "all"))
	h.qc.Invalidate(cache.K("alerts"))
	h.qc.Invalidate(cache.K("vehicles"))

	msg = read(t, conn)
	assert.Equal(t, "vehicles:all", msg.Key)
}

func TestManager_RejectedTopicReportsError(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, "c1")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeWatch, Topics: []string{"notifications:u2", "notifications:u1"}}))
	msg := read(t, conn)
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Equal(t, "notifications:u2", msg.Topic)

	msg = read(t, conn)
	assert.Equal(t, MessageTypeWatching, msg.Type)
	assert.Equal(t, []string{"notifications:u1"}, msg.Topics)
	assert.Zero(t, h.topics.held("notifications:u2"))
}

func TestManager_PingPong(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, "c1")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypePing}))
	assert.Equal(t, MessageTypePong, read(t, conn).Type)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "subscribe"}))
	assert.Equal(t, MessageTypeError, read(t, conn).Type)
}

func TestManager_DisconnectReleasesWatches(t *testing.T) {
	h := newHarness(t)
	first := h.dial(t, "c1")
	second := h.dial(t, "c2")

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeWatch, Topics: []string{"dashboard"}}))
		read(t, conn)
	}
	assert.Equal(t, 2, h.topics.held("dashboard"))
	assert.Equal(t, 2, h.manager.GetClientStats().Watches)

	first.Close()
	require.Eventually(t, func() bool { return h.topics.held("dashboard") == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, h.manager.GetConnectedClients())

	require.NoError(t, h.manager.UnregisterClient("c2"))
	require.Eventually(t, func() bool { return h.topics.held("dashboard") == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, h.manager.GetConnectedClients())
}

func TestManager_StopReleasesEverything(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, "c1")
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeWatch, Topics: []string{"alerts"}}))
	read(t, conn)

	require.NoError(t, h.manager.Stop())
	assert.Zero(t, h.topics.held("alerts"))
	assert.Zero(t, h.manager.GetConnectedClients())
}
