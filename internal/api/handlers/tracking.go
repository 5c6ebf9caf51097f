package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"logitrack/internal/models"
	"logitrack/internal/services"
	"logitrack/pkg/utils"
)

// maxHistoryHours bounds ?hours= on telemetry history.
const maxHistoryHours = 24 * 7

// TrackingHandler serves telemetry and geofences.
type TrackingHandler struct {
	svc *services.Service
}

func NewTrackingHandler(svc *services.Service) *TrackingHandler {
	return &TrackingHandler{svc: svc}
}

// GetLatestTelemetry returns the newest sample of every vehicle
func (h *TrackingHandler) GetLatestTelemetry(c *gin.Context) {
	utils.QueryResponse(c, "Latest telemetry", h.svc.LatestTelemetry(c.Request.Context()))
}

func (h *TrackingHandler) GetVehicleTelemetry(c *gin.Context) {
	limit := ParseLimit(c, services.DefaultTelemetryLimit)
	utils.QueryResponse(c, "Vehicle telemetry", h.svc.VehicleTelemetry(c.Request.Context(), c.Param("id"), limit))
}

func (h *TrackingHandler) GetTelemetryHistory(c *gin.Context) {
	hours := parsePositive(c.Query("hours"), 24, maxHistoryHours)
	utils.QueryResponse(c, "Telemetry history", h.svc.TelemetryHistory(c.Request.Context(), c.Param("id"), hours))
}

// RecordTelemetry appends one sample. Samples are never updated.
func (h *TrackingHandler) RecordTelemetry(c *gin.Context) {
	var req models.TelemetryData
	if !bindModel(c, &req) {
		return
	}
	sample, err := h.svc.RecordTelemetry(c.Request.Context(), &req)
	mutated(c, http.StatusCreated, "Telemetry recorded", sample, err, "Failed to record telemetry")
}

// GetGeofences lists geofences; ?active=true keeps the enabled ones
func (h *TrackingHandler) GetGeofences(c *gin.Context) {
	if flag(c, "active") {
		utils.QueryResponse(c, "Active geofences", h.svc.ActiveGeofences(c.Request.Context()))
		return
	}
	utils.QueryResponse(c, "Geofences", h.svc.Geofences(c.Request.Context()))
}

func (h *TrackingHandler) GetGeofence(c *gin.Context) {
	single(c, "Geofence", h.svc.Geofence(c.Request.Context(), c.Param("id")))
}

func (h *TrackingHandler) CreateGeofence(c *gin.Context) {
	var req models.Geofence
	if !bindModel(c, &req) {
		return
	}
	geofence, err := h.svc.CreateGeofence(c.Request.Context(), &req)
	mutated(c, http.StatusCreated, "Geofence created successfully", geofence, err, "Failed to create geofence")
}

func (h *TrackingHandler) UpdateGeofence(c *gin.Context) {
	var req models.GeofenceUpdate
	if !bindModel(c, &req) {
		return
	}
	geofence, err := h.svc.UpdateGeofence(c.Request.Context(), c.Param("id"), req)
	mutated(c, http.StatusOK, "Geofence updated successfully", geofence, err, "Failed to update geofence")
}

func (h *TrackingHandler) DeleteGeofence(c *gin.Context) {
	err := h.svc.DeleteGeofence(c.Request.Context(), c.Param("id"))
	mutated(c, http.StatusOK, "Geofence deleted successfully", nil, err, "Failed to delete geofence")
}

// GetGeofenceEvents lists entry/exit events, of one geofence when the path
// carries an id and of all geofences otherwise.
func (h *TrackingHandler) GetGeofenceEvents(c *gin.Context) {
	utils.QueryResponse(c, "Geofence events", h.svc.GeofenceEvents(c.Request.Context(), c.Param("id")))
}

func (h *TrackingHandler) RecordGeofenceEvent(c *gin.Context) {
	var req models.GeofenceEvent
	if !bindModel(c, &req) {
		return
	}
	req.GeofenceID = c.Param("id")
	event, err := h.svc.RecordGeofenceEvent(c.Request.Context(), &req)
	mutated(c, http.StatusCreated, "Geofence event recorded", event, err, "Failed to record geofence event")
}
