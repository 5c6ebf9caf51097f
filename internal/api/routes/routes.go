package routes

import (
	"github.com/gin-gonic/gin"

	"logitrack/internal/api/handlers"
	"logitrack/internal/api/middleware"
	"logitrack/internal/services"
	"logitrack/internal/store"
	"logitrack/internal/websocket"
	"logitrack/pkg/jwt"
	"logitrack/pkg/metrics"
	"logitrack/pkg/ratelimit"
	"logitrack/pkg/redis"
)

// Deps is everything the HTTP surface needs. Redis, Limiter and WebSocket
// are optional.
type Deps struct {
	Service     *services.Service
	Store       store.Store
	StoreDriver string
	Redis       *redis.Client
	Verifier    *jwt.Verifier
	Limiter     ratelimit.RateLimiter
	WebSocket   *websocket.Manager
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	health := handlers.NewHealthHandler(deps.Store, deps.StoreDriver, deps.Redis, deps.Service.Cache(), deps.WebSocket)
	fleet := handlers.NewFleetHandler(deps.Service)
	tracking := handlers.NewTrackingHandler(deps.Service)
	ops := handlers.NewOperationsHandler(deps.Service)
	people := handlers.NewPeopleHandler(deps.Service)
	dashboard := handlers.NewDashboardHandler(deps.Service)

	limit := func(c *gin.Context) { c.Next() }
	if deps.Limiter != nil {
		limit = middleware.RateLimitMiddleware(deps.Limiter)
	}

	// Public routes
	router.GET("/health", limit, health.HealthCheck)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	auth := middleware.AuthMiddleware(deps.Verifier)

	if deps.WebSocket != nil {
		ws := handlers.NewWebSocketHandler(deps.WebSocket)
		router.GET("/ws", auth, limit, ws.HandleWebSocket)
		router.GET("/api/v1/ws/clients", auth, limit, ws.GetConnectedClients)
	}

	// Protected routes
	api := router.Group("/api/v1")
	api.Use(auth, limit)
	{
		d := api.Group("/dashboard")
		{
			d.GET("/kpis", dashboard.GetKPIs)
			d.GET("/activity", dashboard.GetRecentActivity)
		}

		vehicles := api.Group("/vehicles")
		{
			vehicles.GET("", fleet.GetVehicles)
			vehicles.POST("", fleet.CreateVehicle)
			vehicles.GET("/:id", fleet.GetVehicle)
			vehicles.PATCH("/:id", fleet.UpdateVehicle)
			vehicles.DELETE("/:id", fleet.DeleteVehicle)
			vehicles.GET("/:id/telemetry", tracking.GetVehicleTelemetry)
			vehicles.GET("/:id/telemetry/history", tracking.GetTelemetryHistory)
			vehicles.GET("/:id/fuel-records", ops.GetVehicleFuelRecords)
			vehicles.GET("/:id/maintenance", ops.GetVehicleMaintenance)
		}

		drivers := api.Group("/drivers")
		{
			drivers.GET("", fleet.GetDrivers)
			drivers.POST("", fleet.CreateDriver)
			drivers.GET("/ranking", people.GetDriverRanking)
			drivers.GET("/:id", fleet.GetDriver)
			drivers.PATCH("/:id", fleet.UpdateDriver)
			drivers.DELETE("/:id", fleet.DeleteDriver)
			drivers.GET("/:id/performance", fleet.GetDriverPerformance)
			drivers.GET("/:id/challenges", people.GetDriverChallenges)
			drivers.POST("/:id/challenges/:challengeId/progress", people.RecordChallengeProgress)
			drivers.GET("/:id/points", people.GetDriverPoints)
			drivers.POST("/:id/points", people.AwardPoints)
		}

		routes := api.Group("/routes")
		{
			routes.GET("", fleet.GetRoutes)
			routes.GET("/active", fleet.GetActiveRoutes)
			routes.POST("", fleet.CreateRoute)
			routes.GET("/:id", fleet.GetRoute)
			routes.PATCH("/:id", fleet.UpdateRoute)
			routes.DELETE("/:id", fleet.DeleteRoute)
			routes.POST("/:id/stops", fleet.AddRouteStop)
		}

		telemetry := api.Group("/telemetry")
		{
			telemetry.GET("/latest", tracking.GetLatestTelemetry)
			telemetry.POST("", tracking.RecordTelemetry)
		}

		geofences := api.Group("/geofences")
		{
			geofences.GET("", tracking.GetGeofences)
			geofences.POST("", tracking.CreateGeofence)
			geofences.GET("/events", tracking.GetGeofenceEvents)
			geofences.GET("/:id", tracking.GetGeofence)
			geofences.PATCH("/:id", tracking.UpdateGeofence)
			geofences.DELETE("/:id", tracking.DeleteGeofence)
			geofences.GET("/:id/events", tracking.GetGeofenceEvents)
			geofences.POST("/:id/events", tracking.RecordGeofenceEvent)
		}

		alerts := api.Group("/alerts")
		{
			alerts.GET("", ops.GetAlerts)
			alerts.GET("/unread", ops.GetUnreadAlerts)
			alerts.GET("/critical", ops.GetCriticalAlerts)
			alerts.POST("", ops.CreateAlert)
			alerts.PATCH("/read", ops.MarkAllAlertsRead)
			alerts.GET("/:id", ops.GetAlert)
			alerts.PATCH("/:id", ops.UpdateAlert)
			alerts.PATCH("/:id/read", ops.MarkAlertRead)
			alerts.PATCH("/:id/resolve", ops.ResolveAlert)
			alerts.DELETE("/:id", ops.DeleteAlert)
		}

		cargos := api.Group("/cargos")
		{
			cargos.GET("", ops.GetCargos)
			cargos.POST("", ops.CreateCargo)
			cargos.GET("/:id", ops.GetCargo)
			cargos.PATCH("/:id", ops.UpdateCargo)
			cargos.DELETE("/:id", ops.DeleteCargo)
			cargos.GET("/:id/conditions", ops.GetCargoConditions)
			cargos.POST("/:id/conditions", ops.RecordCargoCondition)
		}

		fuel := api.Group("/fuel-records")
		{
			fuel.GET("", ops.GetFuelRecords)
			fuel.GET("/stats", ops.GetFuelStats)
			fuel.GET("/analysis", ops.GetFuelAnalysis)
			fuel.POST("", ops.CreateFuelRecord)
			fuel.PATCH("/:id", ops.UpdateFuelRecord)
			fuel.DELETE("/:id", ops.DeleteFuelRecord)
		}

		maintenance := api.Group("/maintenance")
		{
			maintenance.GET("", ops.GetMaintenance)
			maintenance.POST("", ops.CreateMaintenance)
			maintenance.GET("/:id", ops.GetMaintenanceRecord)
			maintenance.PATCH("/:id", ops.UpdateMaintenance)
			maintenance.PATCH("/:id/complete", ops.CompleteMaintenance)
			maintenance.DELETE("/:id", ops.DeleteMaintenance)
		}

		safety := api.Group("/safety")
		{
			safety.GET("/speed-violations", ops.GetSpeedViolations)
			safety.GET("/driving-events", ops.GetDrivingEvents)
		}

		notifications := api.Group("/notifications")
		{
			notifications.GET("", people.GetNotifications)
			notifications.GET("/unread-count", people.GetUnreadNotificationCount)
			notifications.POST("", people.CreateNotification)
			notifications.PATCH("/read", people.MarkAllNotificationsRead)
			notifications.PATCH("/:id/read", people.MarkNotificationRead)
		}

		messages := api.Group("/messages")
		{
			messages.GET("", people.GetMessages)
			messages.GET("/conversations", people.GetConversations)
			messages.GET("/thread/:partnerId", people.GetThread)
			messages.PATCH("/thread/:partnerId/read", people.MarkThreadRead)
			messages.POST("", people.SendMessage)
			messages.PATCH("/:id/read", people.MarkMessageRead)
		}

		challenges := api.Group("/challenges")
		{
			challenges.GET("", people.GetChallenges)
			challenges.POST("", people.CreateChallenge)
			challenges.PATCH("/:id", people.UpdateChallenge)
		}

		api.GET("/leaderboard", people.GetLeaderboard)
	}
}
