package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"logitrack/internal/store"
	"logitrack/internal/websocket"
	"logitrack/pkg/cache"
	"logitrack/pkg/redis"
)

type HealthHandler struct {
	db          store.Store
	driver      string
	redisClient *redis.Client
	cache       *cache.Cache
	ws          *websocket.Manager
}

type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Services  map[string]interface{} `json:"services"`
}

// NewHealthHandler reports on the store and, when configured, Redis. The
// cache and websocket stats are informational and never fail the check.
func NewHealthHandler(db store.Store, driver string, redisClient *redis.Client, qc *cache.Cache, ws *websocket.Manager) *HealthHandler {
	return &HealthHandler{
		db:          db,
		driver:      driver,
		redisClient: redisClient,
		cache:       qc,
		ws:          ws,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Timestamp: time.Now(),
		Services:  make(map[string]interface{}),
	}

	overallHealthy := true

	storeStatus := h.checkStore(c.Request.Context())
	response.Services["store"] = storeStatus
	if !storeStatus["healthy"].(bool) {
		overallHealthy = false
	}

	if h.redisClient != nil {
		redisStatus := h.checkRedis()
		response.Services["redis"] = redisStatus
		if !redisStatus["healthy"].(bool) {
			overallHealthy = false
		}
	}

	if h.cache != nil {
		response.Services["cache"] = h.cache.Stats()
	}
	if h.ws != nil {
		response.Services["websocket"] = h.ws.GetClientStats()
	}

	if overallHealthy {
		response.Status = "healthy"
		c.JSON(http.StatusOK, response)
	} else {
		response.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
	}
}

func (h *HealthHandler) checkStore(ctx context.Context) map[string]interface{} {
	status := map[string]interface{}{
		"service": h.driver,
		"healthy": false,
	}

	if h.db == nil {
		status["error"] = "Store not initialized"
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := h.db.Ping(ctx); err != nil {
		status["error"] = err.Error()
		return status
	}
	status["healthy"] = true
	status["message"] = "Connected"
	status["responseTime"] = time.Since(start).String()
	return status
}

func (h *HealthHandler) checkRedis() map[string]interface{} {
	status := map[string]interface{}{
		"service": "redis",
		"healthy": false,
	}

	healthStatus := h.redisClient.HealthCheck()
	status["healthy"] = healthStatus.IsConnected
	status["connectionInfo"] = healthStatus.ConnectionInfo
	status["responseTime"] = healthStatus.ResponseTime.String()
	status["lastPing"] = healthStatus.LastPing
	if healthStatus.Error != "" {
		status["error"] = healthStatus.Error
	}
	status["connectionStats"] = h.redisClient.GetConnectionStats()

	return status
}
