package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logitrack/internal/models"
	"logitrack/internal/realtime"
	"logitrack/internal/repository"
	"logitrack/internal/services"
	"logitrack/internal/store/memstore"
	"logitrack/internal/websocket"
	"logitrack/pkg/cache"
	"logitrack/pkg/jwt"
	"logitrack/pkg/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	IsLoading bool            `json:"isLoading"`
	Stale     bool            `json:"stale"`
	Error     json.RawMessage `json:"error"`
}

type apiHarness struct {
	router   *gin.Engine
	verifier *jwt.Verifier
	svc      *services.Service
	ws       *websocket.Manager
}

func newHarness(t *testing.T) *apiHarness {
	t.Helper()

	ms := memstore.New(memstore.WithUnique(models.TableVehicles, "plate"))
	repos := repository.New(ms)
	qc := cache.New(cache.DefaultCacheConfig())
	bus := realtime.NewBus(ms)
	hub := realtime.NewHub(bus, qc)

	svc := services.NewService(repos, qc)
	svc.SetRealtime(bus, hub)

	verifier, err := jwt.NewVerifier("test-secret", "")
	require.NoError(t, err)

	ws := websocket.NewManager(svc, qc, nil)
	require.NoError(t, ws.Start())

	limiterConfig := ratelimit.DefaultConfig()
	limiterConfig.CleanupInterval = 0
	limiter := ratelimit.NewMemoryRateLimiter(limiterConfig)

	t.Cleanup(func() {
		ws.Stop()
		limiter.Close()
		bus.Close()
		qc.Close()
	})

	router := gin.New()
	SetupRoutes(router, Deps{
		Service:     svc,
		Store:       ms,
		StoreDriver: "memory",
		Verifier:    verifier,
		Limiter:     limiter,
		WebSocket:   ws,
	})
	return &apiHarness{router: router, verifier: verifier, svc: svc, ws: ws}
}

func (h *apiHarness) token(t *testing.T, userID string) string {
	token, err := h.verifier.Sign(userID, userID+"@example.com", "dispatcher", time.Hour)
	require.NoError(t, err)
	return token
}

func (h *apiHarness) call(t *testing.T, method, path, userID string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+h.token(t, userID))
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func vehicleBody(plate string) map[string]interface{} {
	return map[string]interface{}{
		"plate":    plate,
		"brand":    "Volvo",
		"model":    "FH16",
		"year":     2024,
		"fuelType": "diesel",
		"status":   "active",
	}
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	h := newHarness(t)

	w, _ := h.call(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w, _ = h.call(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "logitrack_websocket_clients")
}

func TestAPIRequiresToken(t *testing.T) {
	h := newHarness(t)

	w, _ := h.call(t, http.MethodGet, "/api/v1/vehicles", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVehicleLifecycle(t *testing.T) {
	h := newHarness(t)

	w, env := h.call(t, http.MethodPost, "/api/v1/vehicles", "u1", vehicleBody("LOG-001"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Vehicle
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.ID)

	w, env = h.call(t, http.MethodGet, "/api/v1/vehicles?status=active", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.False(t, env.Stale)
	assert.False(t, env.IsLoading)
	var list []models.Vehicle
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)

	w, env = h.call(t, http.MethodPatch, "/api/v1/vehicles/"+created.ID, "u1", map[string]interface{}{"status": "maintenance"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = h.call(t, http.MethodGet, "/api/v1/vehicles?status=active", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Empty(t, list, "the update invalidated the filtered list")

	w, _ = h.call(t, http.MethodDelete, "/api/v1/vehicles/"+created.ID, "u1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = h.call(t, http.MethodGet, "/api/v1/vehicles/"+created.ID, "u1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = h.call(t, http.MethodDelete, "/api/v1/vehicles/"+created.ID, "u1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVehicleValidation(t *testing.T) {
	h := newHarness(t)

	body := vehicleBody("")
	body["year"] = 1800
	w, env := h.call(t, http.MethodPost, "/api/v1/vehicles", "u1", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Validation failed", env.Message)
	assert.Contains(t, string(env.Error), "Plate is required")
	assert.Contains(t, string(env.Error), "Year must be at least 1900")

	w, _ = h.call(t, http.MethodPost, "/api/v1/vehicles", "u1", vehicleBody("DUP-1"))
	require.Equal(t, http.StatusCreated, w.Code)
	w, env = h.call(t, http.MethodPost, "/api/v1/vehicles", "u1", vehicleBody("DUP-1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, string(env.Error), "duplicate value for plate")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/vehicles", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+h.token(t, "u1"))
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardEndpoints(t *testing.T) {
	h := newHarness(t)

	h.call(t, http.MethodPost, "/api/v1/vehicles", "u1", vehicleBody("KPI-1"))
	w, _ := h.call(t, http.MethodPost, "/api/v1/alerts", "u1", map[string]interface{}{
		"alertType": "speeding",
		"level":     "critical",
		"title":     "Over the limit",
		"message":   "92 km/h in a 60 zone",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env := h.call(t, http.MethodGet, "/api/v1/dashboard/kpis", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var kpis map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &kpis))
	assert.EqualValues(t, 1, kpis["totalVehicles"])
	assert.EqualValues(t, 1, kpis["criticalAlerts"])

	w, env = h.call(t, http.MethodGet, "/api/v1/dashboard/activity", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "Over the limit")
}

func TestNotificationsAreScopedToTheCaller(t *testing.T) {
	h := newHarness(t)

	w, _ := h.call(t, http.MethodPost, "/api/v1/notifications", "u1", map[string]interface{}{
		"userId":           "u2",
		"notificationType": "route",
		"title":            "Route assigned",
		"message":          "R-12 starts at 06:00",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	_, env := h.call(t, http.MethodGet, "/api/v1/notifications", "u1", nil)
	assert.JSONEq(t, "[]", string(env.Data))

	_, env = h.call(t, http.MethodGet, "/api/v1/notifications/unread-count", "u2", nil)
	assert.JSONEq(t, "1", string(env.Data))

	w, env = h.call(t, http.MethodPatch, "/api/v1/notifications/read", "u2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"updated":1}`, string(env.Data))

	_, env = h.call(t, http.MethodGet, "/api/v1/notifications/unread-count", "u2", nil)
	assert.JSONEq(t, "0", string(env.Data))
}

func TestSendMessageUsesTheCallerAsSender(t *testing.T) {
	h := newHarness(t)

	w, env := h.call(t, http.MethodPost, "/api/v1/messages", "u1", map[string]interface{}{
		"senderId":   "someone-else",
		"receiverId": "u2",
		"content":    "Loading dock 4 is free",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var m models.Message
	require.NoError(t, json.Unmarshal(env.Data, &m))
	assert.Equal(t, "u1", m.SenderID)

	_, env = h.call(t, http.MethodGet, "/api/v1/messages/thread/u1", "u2", nil)
	var thread []models.Message
	require.NoError(t, json.Unmarshal(env.Data, &thread))
	assert.Len(t, thread, 1)
}

func TestMarkThreadReadClearsUnreadCount(t *testing.T) {
	h := newHarness(t)

	for _, content := range []string{"At the gate", "Dock 4 please"} {
		w, _ := h.call(t, http.MethodPost, "/api/v1/messages", "u2", map[string]interface{}{
			"receiverId": "u1",
			"content":    content,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	conversations := func(userID string) []models.Conversation {
		_, env := h.call(t, http.MethodGet, "/api/v1/messages/conversations", userID, nil)
		var out []models.Conversation
		require.NoError(t, json.Unmarshal(env.Data, &out))
		return out
	}
	before := conversations("u1")
	require.Len(t, before, 1)
	assert.Equal(t, 2, before[0].UnreadCount)

	w, env := h.call(t, http.MethodPatch, "/api/v1/messages/thread/u2/read", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result struct {
		Updated int64 `json:"updated"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, int64(2), result.Updated)

	after := conversations("u1")
	require.Len(t, after, 1)
	assert.Zero(t, after[0].UnreadCount)

	// the sender cannot clear the receiver's unread messages
	_, env = h.call(t, http.MethodPatch, "/api/v1/messages/thread/u1/read", "u2", nil)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Zero(t, result.Updated)
}

func TestDriverRankingRoute(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i, rating := range []float64{4.1, 4.8} {
		_, err := h.svc.CreateDriver(ctx, &models.Driver{
			FullName:        fmt.Sprintf("Driver %d", i),
			Phone:           "+55 11 90000-0000",
			LicenseNumber:   fmt.Sprintf("CNH-%d", i),
			LicenseCategory: "E",
			LicenseExpiry:   time.Now().AddDate(2, 0, 0),
			Status:          models.DriverStatusAvailable,
			Rating:          &rating,
		})
		require.NoError(t, err)
	}

	w, env := h.call(t, http.MethodGet, "/api/v1/drivers/ranking", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ranking []struct {
		FullName    string  `json:"fullName"`
		Rating      float64 `json:"rating"`
		TotalPoints int     `json:"totalPoints"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &ranking))
	require.Len(t, ranking, 2)
	assert.Equal(t, "Driver 1", ranking[0].FullName)
	assert.Equal(t, 4.8, ranking[0].Rating)
}

func TestRoutesWithStatusFilterAndActive(t *testing.T) {
	h := newHarness(t)

	w, _ := h.call(t, http.MethodPost, "/api/v1/routes", "u1", map[string]interface{}{
		"name":            "North loop",
		"originName":      "Depot A",
		"originLat":       52.37,
		"originLng":       4.89,
		"destinationName": "Depot B",
		"destinationLat":  51.92,
		"destinationLng":  4.48,
		"status":          "planned",
		"priority":        2,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	_, env := h.call(t, http.MethodGet, "/api/v1/routes/active", "u1", nil)
	var active []models.Route
	require.NoError(t, json.Unmarshal(env.Data, &active))
	assert.Len(t, active, 1)

	_, env = h.call(t, http.MethodGet, "/api/v1/routes?status=completed", "u1", nil)
	var done []models.Route
	require.NoError(t, json.Unmarshal(env.Data, &done))
	assert.Empty(t, done)
}

func TestWebSocketPushesInvalidations(t *testing.T) {
	h := newHarness(t)
	server := httptest.NewServer(h.router)
	defer server.Close()

	// populate the KPI entry so its invalidation has something to mark
	w, _ := h.call(t, http.MethodGet, "/api/v1/dashboard/kpis", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + h.token(t, "u1")
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() websocket.ServerMessage {
		var msg websocket.ServerMessage
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	require.NoError(t, conn.WriteJSON(websocket.ClientMessage{Type: websocket.MessageTypeWatch, Topics: []string{"dashboard"}}))
	msg := read()
	require.Equal(t, websocket.MessageTypeWatching, msg.Type)
	assert.Equal(t, []string{"dashboard"}, msg.Topics)

	w, _ = h.call(t, http.MethodPost, "/api/v1/alerts", "u1", map[string]interface{}{
		"alertType": "geofence",
		"level":     "warning",
		"title":     "Left the yard",
		"message":   "Vehicle exited Depot A",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	for {
		msg = read()
		require.Equal(t, websocket.MessageTypeInvalidated, msg.Type)
		if msg.Key == "dashboard-kpis" {
			break
		}
	}
}

func TestWebSocketRequiresToken(t *testing.T) {
	h := newHarness(t)
	server := httptest.NewServer(h.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	_, resp, err := gorilla.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
