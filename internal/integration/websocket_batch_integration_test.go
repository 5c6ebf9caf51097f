package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"logitrack/internal/models"
	"logitrack/internal/realtime"
	"logitrack/internal/repository"
	"logitrack/internal/services"
	"logitrack/internal/store/memstore"
	"logitrack/internal/websocket"
	"logitrack/pkg/batch"
	"logitrack/pkg/cache"
)

// MockInvalidator records every key the coalescer forwards from the hub and
// passes it on to the real cache.
type MockInvalidator struct {
	mock.Mock
	mu    sync.Mutex
	next  *cache.Cache
	calls map[string]int
}

func (m *MockInvalidator) Invalidate(prefix cache.Key) int {
	m.Called(prefix.String())
	m.mu.Lock()
	m.calls[prefix.String()]++
	m.mu.Unlock()
	return m.next.Invalidate(prefix)
}

func (m *MockInvalidator) count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[key]
}

type stack struct {
	svc       *services.Service
	qc        *cache.Cache
	coalescer *batch.Coalescer
	spy       *MockInvalidator
	url       string
}

func newStack(t *testing.T, window time.Duration) *stack {
	t.Helper()

	ms := memstore.New()
	qc := cache.New(cache.DefaultCacheConfig())
	spy := &MockInvalidator{next: qc, calls: make(map[string]int)}
	spy.On("Invalidate", mock.Anything).Return()

	config := batch.DefaultBatchConfig()
	config.BatchInterval = window
	coalescer := batch.NewCoalescer(config, spy)
	require.NoError(t, coalescer.Start())

	bus := realtime.NewBus(ms)
	hub := realtime.NewHub(bus, coalescer)
	svc := services.NewService(repository.New(ms), qc)
	svc.SetRealtime(bus, hub)

	manager := websocket.NewManager(svc, qc, nil)
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
		server.Close()
		manager.Stop()
		coalescer.Stop()
		bus.Close()
		qc.Close()
	})

	return &stack{
		svc:       svc,
		qc:        qc,
		coalescer: coalescer,
		spy:       spy,
		url:       "ws" + strings.TrimPrefix(server.URL, "http"),
	}
}

func (s *stack) watch(t *testing.T, id string, topics ...string) *gorilla.Conn {
	t.Helper()
	conn, _, err := gorilla.DefaultDialer.Dial(s.url+"?id="+id, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteJSON(websocket.ClientMessage{Type: websocket.MessageTypeWatch, Topics: topics}))
	msg := readMessage(t, conn, 2*time.Second)
	require.Equal(t, websocket.MessageTypeWatching, msg.Type)
	return conn
}

func readMessage(t *testing.T, conn *gorilla.Conn, wait time.Duration) websocket.ServerMessage {
	t.Helper()
	var msg websocket.ServerMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func alert(i int) *models.Alert {
	return &models.Alert{
		AlertType: "speeding",
		Level:     models.AlertLevelWarning,
		Title:     fmt.Sprintf("Speeding %d", i),
		Message:   "Over the posted limit",
	}
}

// A burst of writes inside one window reaches the cache from the feed as far
// fewer invalidations than writes. The watching client hears about the KPI
// key and reads see every write straight away.
func TestWebSocketBatchIntegration(t *testing.T) {
	s := newStack(t, 100*time.Millisecond)
	ctx := context.Background()

	kpis := s.svc.DashboardKPIs(ctx)
	require.NoError(t, kpis.Err)

	conn := s.watch(t, "dash", services.TopicDashboard)

	const writes = 10
	for i := 0; i < writes; i++ {
		_, err := s.svc.CreateAlert(ctx, alert(i))
		require.NoError(t, err)
	}

	fresh := s.svc.DashboardKPIs(ctx)
	require.NoError(t, fresh.Err)
	assert.Equal(t, writes, fresh.Data.TotalAlerts)

	for {
		msg := readMessage(t, conn, 2*time.Second)
		require.Equal(t, websocket.MessageTypeInvalidated, msg.Type)
		if msg.Key == services.QueryDashboardKPIs {
			break
		}
	}

	require.Eventually(t, func() bool {
		return s.spy.count(services.QueryDashboardKPIs) > 0
	}, 2*time.Second, 10*time.Millisecond)

	stats := s.coalescer.GetBatchStats()
	assert.GreaterOrEqual(t, stats.TotalReceived, int64(writes))
	assert.Less(t, s.spy.count(services.QueryDashboardKPIs), writes, "feed invalidations were coalesced")
	s.spy.AssertCalled(t, "Invalidate", services.QueryDashboardKPIs)
}

func TestWebSocketBatchIntegration_UnwatchedTopicsStayQuiet(t *testing.T) {
	s := newStack(t, 20*time.Millisecond)
	ctx := context.Background()

	_ = s.svc.DashboardKPIs(ctx)
	conn := s.watch(t, "notes", "notifications:u1")

	_, err := s.svc.CreateAlert(ctx, alert(0))
	require.NoError(t, err)

	snap, ok := s.qc.Peek(cache.K(services.QueryDashboardKPIs))
	require.True(t, ok)
	assert.True(t, snap.IsStale, "the write itself invalidates")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	var msg websocket.ServerMessage
	err = conn.ReadJSON(&msg)
	assert.Error(t, err, "no push for keys outside the watched topic, got %+v", msg)
	assert.Zero(t, s.spy.count(services.QueryDashboardKPIs), "no hub channel covers alerts")
}

// The coalescer holds feed invalidations until its window closes, but a
// write is visible to the next read regardless.
func TestWebSocketBatchIntegration_StopFlushesPending(t *testing.T) {
	s := newStack(t, time.Hour)
	ctx := context.Background()

	_ = s.svc.DashboardKPIs(ctx)
	release, err := s.svc.Watch(ctx, services.TopicAlerts, "u1")
	require.NoError(t, err)
	defer release()

	_, err = s.svc.CreateAlert(ctx, alert(0))
	require.NoError(t, err)

	snap, ok := s.qc.Peek(cache.K(services.QueryDashboardKPIs))
	require.True(t, ok)
	assert.True(t, snap.IsStale)
	fresh := s.svc.DashboardKPIs(ctx)
	require.NoError(t, fresh.Err)
	assert.Equal(t, 1, fresh.Data.TotalAlerts)

	require.Eventually(t, func() bool {
		return s.coalescer.GetBatchStats().TotalReceived > 0
	}, time.Second, 10*time.Millisecond)
	assert.Zero(t, s.spy.count(services.QueryDashboardKPIs), "held until the window closes")

	require.NoError(t, s.coalescer.Stop())
	assert.Positive(t, s.spy.count(services.QueryDashboardKPIs))
}
