package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"logitrack/internal/models"
	"logitrack/internal/repository"
	"logitrack/internal/services"
	"logitrack/pkg/utils"
)

// FleetHandler serves vehicles, drivers and routes.
type FleetHandler struct {
	svc *services.Service
}

func NewFleetHandler(svc *services.Service) *FleetHandler {
	return &FleetHandler{svc: svc}
}

// GetVehicles lists vehicles, optionally filtered by ?status=active,in_transit
func (h *FleetHandler) GetVehicles(c *gin.Context) {
	filter := repository.VehicleFilter{Status: statuses[models.VehicleStatus](c)}
	utils.QueryResponse(c, "Vehicles", h.svc.Vehicles(c.Request.Context(), filter))
}

func (h *FleetHandler) GetVehicle(c *gin.Context) {
	single(c, "Vehicle", h.svc.Vehicle(c.Request.Context(), c.Param("id")))
}

func (h *FleetHandler) CreateVehicle(c *gin.Context) {
	var req models.Vehicle
	if !bindModel(c, &req) {
		return
	}
	vehicle, err := h.svc.CreateVehicle(c.Request.Context(), &req)
	mutated(c, http.StatusCreated, "Vehicle created successfully", vehicle, err, "Failed to create vehicle")
}

func (h *FleetHandler) UpdateVehicle(c *gin.Context) {
	var req models.VehicleUpdate
	if !bindModel(c, &req) {
		return
	}
	vehicle, err := h.svc.UpdateVehicle(c.Request.Context(), c.Param("id"), req)
	mutated(c, http.StatusOK, "Vehicle updated successfully", vehicle, err, "Failed to update vehicle")
}

func (h *FleetHandler) DeleteVehicle(c *gin.Context) {
	err := h.svc.DeleteVehicle(c.Request.Context(), c.Param("id"))
	mutated(c, http.StatusOK, "Vehicle deleted successfully", nil, err, "Failed to delete vehicle")
}

// GetDrivers lists drivers, optionally filtered by ?status=
func (h *FleetHandler) GetDrivers(c *gin.Context) {
	filter := repository.DriverFilter{Status: statuses[models.DriverStatus](c)}
	utils.QueryResponse(c, "Drivers", h.svc.Drivers(c.Request.Context(), filter))
}

func (h *FleetHandler) GetDriver(c *gin.Context) {
	single(c, "Driver", h.svc.Driver(c.Request.Context(), c.Param("id")))
}

func (h *FleetHandler) GetDriverPerformance(c *gin.Context) {
	utils.QueryResponse(c, "Driver performance", h.svc.DriverPerformance(c.Request.Context(), c.Param("id")))
}

func (h *FleetHandler) CreateDriver(c *gin.Context) {
	var req models.Driver
	if !bindModel(c, &req) {
		return
	}
	driver, err := h.svc.CreateDriver(c.Request.Context(), &req)
	mutated(c, http.StatusCreated, "Driver created successfully", driver, err, "Failed to create driver")
}

func (h *FleetHandler) UpdateDriver(c *gin.Context) {
	var req models.DriverUpdate
	if !bindModel(c, &req) {
		return
	}
	driver, err := h.svc.UpdateDriver(c.Request.Context(), c.Param("id"), req)
	mutated(c, http.StatusOK, "Driver updated successfully", driver, err, "Failed to update driver")
}

func (h *FleetHandler) DeleteDriver(c *gin.Context) {
	err := h.svc.DeleteDriver(c.Request.Context(), c.Param("id"))
	mutated(c, http.StatusOK, "Driver deleted successfully", nil, err, "Failed to delete driver")
}

// GetRoutes lists routes with their vehicle and driver, optionally filtered by ?status=
func (h *FleetHandler) GetRoutes(c *gin.Context) {
	filter := repository.RouteFilter{Status: statuses[models.RouteStatus](c)}
	utils.QueryResponse(c, "Routes", h.svc.Routes(c.Request.Context(), filter))
}

func (h *FleetHandler) GetActiveRoutes(c *gin.Context) {
	utils.QueryResponse(c, "Active routes", h.svc.ActiveRoutes(c.Request.Context()))
}

func (h *FleetHandler) GetRoute(c *gin.Context) {
	single(c, "Route", h.svc.Route(c.Request.Context(), c.Param("id")))
}

func (h *FleetHandler) CreateRoute(c *gin.Context) {
	var req models.Route
	if !bindModel(c, &req) {
		return
	}
	route, err := h.svc.CreateRoute(c.Request.Context(), &req)
	mutated(c, http.StatusCreated, "Route created successfully", route, err, "Failed to create route")
}

func (h *FleetHandler) UpdateRoute(c *gin.Context) {
	var req models.RouteUpdate
	if !bindModel(c, &req) {
		return
	}
	route, err := h.svc.UpdateRoute(c.Request.Context(), c.Param("id"), req)
	mutated(c, http.StatusOK, "Route updated successfully", route, err, "Failed to update route")
}

func (h *FleetHandler) DeleteRoute(c *gin.Context) {
	err := h.svc.DeleteRoute(c.Request.Context(), c.Param("id"))
	mutated(c, http.StatusOK, "Route deleted successfully", nil, err, "Failed to delete route")
}

// AddRouteStop appends a stop to the route in the path.
func (h *FleetHandler) AddRouteStop(c *gin.Context) {
	var req models.RouteStop
	if !bindModel(c, &req) {
		return
	}
	req.RouteID = c.Param("id")
	stop, err := h.svc.AddRouteStop(c.Request.Context(), &req)
	mutated(c, http.StatusCreated, "Route stop added successfully", stop, err, "Failed to add route stop")
}
