package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"logitrack/internal/api/middleware"
	"logitrack/internal/models"
	"logitrack/internal/services"
	"logitrack/pkg/utils"
)

// OperationsHandler serves alerts, cargo, fuel, maintenance and safety.
type OperationsHandler struct {
	svc *services.Service
}

func NewOperationsHandler(svc *services.Service) *OperationsHandler {
	return &OperationsHandler{svc: svc}
}

func (h *OperationsHandler) GetAlerts(c *gin.Context) {
	utils.QueryResponse(c, "Alerts", h.svc.Alerts(c.Request.Context()))
}

func (h *OperationsHandler) GetUnreadAlerts(c *gin.Context) {
	utils.QueryResponse(c, "Unread alerts", h.svc.UnreadAlerts(c.Request.Context()))
}

func (h *OperationsHandler) GetCriticalAlerts(c *gin.Context) {
	utils.QueryResponse(c, "Critical alerts", h.svc.CriticalAlerts(c.Request.Context()))
}

func (h *OperationsHandler) GetAlert(c *gin.Context) {
	single(c, "Alert", h.svc.Alert(c.Request.Context(), c.Param("id")))
}

func (h *OperationsHandler) CreateAlert(c *gin.Context) {
	var req models.Alert
	if !bindModel(c, &req) {
		return
	}
	alert, err := h.svc.CreateAlert(c.Request.Context(), &req)
	mutated(c, http.StatusCreated, "Alert created successfully", alert, err, "Failed to create alert")
}

func (h *OperationsHandler) UpdateAlert(c *gin.Context) {
	var req models.AlertUpdate
	if !bindModel(c, &req) {
		return
	}
	alert, err := h.svc.UpdateAlert(c.Request.Context(), c.Param("id"), req)
	mutated(c, http.StatusOK, "Alert updated successfully", alert, err, "Failed to update alert")
}

func (h *OperationsHandler) MarkAlertRead(c *gin.Context) {
	alert, err := h.svc.MarkAlertRead(c.Request.Context(), c.Param("id"))
	mutated(c, http.StatusOK, "Alert marked as read", alert, err, "Failed to mark alert as read")
}

// ResolveAlert resolves the alert on behalf of the caller.
func (h *OperationsHandler) ResolveAlert(c *gin.Context) {
	alert, err := h.svc.ResolveAlert(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	mutated(c, http.StatusOK, "Alert resolved successfully", alert, err, "Failed to resolve alert")
}

func (h *OperationsHandler) MarkAllAlertsRead(c *gin.Context) {
	n, err := h.svc.MarkAllAlertsRead(c.Request.Context())
	mutated(c, http.StatusOK, "Alerts marked as read", gin.H{"updated": n}, err, "Failed to mark alerts as read")
}

func (h *OperationsHandler) DeleteAlert(c *gin.Context) {
	err := h.svc.DeleteAlert(c.Request.Context(), c.Param("id"))
	mutated(c, http.StatusOK, "Alert deleted successfully", nil, err, "Failed to delete alert")
}

// GetCargos lists cargo; ?active=true keeps loaded and in-transit loads
func (h *OperationsHandler) GetCargos(c *gin.Context) {
	if flag(c, "active") {
		utils.QueryResponse(c, "Active cargos", h.svc.ActiveCargos(c.Request.Context()))
		return
	}
	utils.QueryResponse(c, "Cargos", h.svc.Cargos(c.Request.Context()))
}

func (h *OperationsHandler) GetCargo(c *gin.Context) {
	single(c, "Cargo", h.svc.Cargo(c.Request.Context(), c.Param("id")))
}

func (h *OperationsHandler) GetCargoConditions(c *gin.Context) {
	utils.QueryResponse(c, "Cargo conditions", h.svc.CargoConditions(c.Request.Context(), c.Param("id")))
}

func (h *OperationsHandler) CreateCargo(c *gin.Context) {
	var req models.Cargo
	if !bindModel(c, &req) {
		return
	}
	cargo, err := h.svc.CreateCargo(c.Request.Context(), &req)
	mutated(c, http.StatusCreated, "Cargo created successfully", cargo, err, "Failed to create cargo")
}

func (h *OperationsHandler) UpdateCargo(c *gin.Context) {
	var req models.CargoUpdate
	if !bindModel(c, &req) {
		return
	}
	cargo, err := h.svc.UpdateCargo(c.Request.Context(), c.Param("id"), req)
	mutated(c, http.StatusOK, "Cargo updated successfully", cargo, err, "Failed to update cargo")
}

func (h *OperationsHandler) DeleteCargo(c *gin.Context) {
	err := h.svc.DeleteCargo(c.Request.Context(), c.Param("id"))
	mutated(c, http.StatusOK, "Cargo deleted successfully", nil, err, "Failed to delete cargo")
}

func (h *OperationsHandler) RecordCargoCondition(c *gin.Context) {
	var req models.CargoCondition
	if !bindModel(c, &req) {
		return
	}
	req.CargoID = c.Param("id")
	condition, err := h.svc.RecordCargoCondition(c.Request.Context(), &req)
	mutated(c, http.StatusCreated, "Cargo condition recorded", condition, err, "Failed to record cargo condition")
}

func (h *OperationsHandler) GetFuelRecords(c *gin.Context) {
	utils.QueryResponse(c, "Fuel records", h.svc.FuelRecords(c.Request.Context()))
}

func (h *OperationsHandler) GetVehicleFuelRecords(c *gin.Context) {
	utils.QueryResponse(c, "Vehicle fuel records", h.svc.VehicleFuelRecords(c.Request.Context(), c.Param("id")))
}

func (h *OperationsHandler) GetFuelStats(c *gin.Context) {
	utils.QueryResponse(c, "Fuel stats", h.svc.FuelStats(c.Request.Context()))
}

func (h *OperationsHandler) GetFuelAnalysis(c *gin.Context) {
	utils.QueryResponse(c, "Fuel analysis", h.svc.FuelAnalysis(c.Request.Context()))
}

func (h *OperationsHandler) CreateFuelRecord(c *gin.Context) {
	var req models.FuelRecord
	if !bindModel(c, &req) {
		return
	}
	record, err := h.svc.CreateFuelRecord(c.Request.Context(), &req)
	mutated(c, http.StatusCreated, "Fuel record created successfully", record, err, "Failed to create fuel record")
}

func (h *OperationsHandler) UpdateFuelRecord(c *gin.Context) {
	var req models.FuelRecordUpdate
	if !bindModel(c, &req) {
		return
	}
	record, err := h.svc.UpdateFuelRecord(c.Request.Context(), c.Param("id"), req)
	mutated(c, http.StatusOK, "Fuel record updated successfully", record, err, "Failed to update fuel record")
}

func (h *OperationsHandler) DeleteFuelRecord(c *gin.Context) {
	err := h.svc.DeleteFuelRecord(c.Request.Context(), c.Param("id"))
	mutated(c, http.StatusOK, "Fuel record deleted successfully", nil, err, "Failed to delete fuel record")
}

// GetMaintenance lists maintenance by schedule; ?pending=true keeps open work
func (h *OperationsHandler) GetMaintenance(c *gin.Context) {
	if flag(c, "pending") {
		utils.QueryResponse(c, "Pending maintenance", h.svc.PendingMaintenance(c.Request.Context()))
		return
	}
	utils.QueryResponse(c, "Maintenance records", h.svc.Maintenance(c.Request.Context()))
}

func (h *OperationsHandler) GetVehicleMaintenance(c *gin.Context) {
	utils.QueryResponse(c, "Vehicle maintenance", h.svc.VehicleMaintenance(c.Request.Context(), c.Param("id")))
}

func (h *OperationsHandler) GetMaintenanceRecord(c *gin.Context) {
	single(c, "Maintenance record", h.svc.MaintenanceRecord(c.Request.Context(), c.Param("id")))
}

func (h *OperationsHandler) CreateMaintenance(c *gin.Context) {
	var req models.MaintenanceRecord
	if !bindModel(c, &req) {
		return
	}
	record, err := h.svc.CreateMaintenance(c.Request.Context(), &req)
	mutated(c, http.StatusCreated, "Maintenance scheduled successfully", record, err, "Failed to schedule maintenance")
}

func (h *OperationsHandler) UpdateMaintenance(c *gin.Context) {
	var req models.MaintenanceUpdate
	if !bindModel(c, &req) {
		return
	}
	record, err := h.svc.UpdateMaintenance(c.Request.Context(), c.Param("id"), req)
	mutated(c, http.StatusOK, "Maintenance updated successfully", record, err, "Failed to update maintenance")
}

func (h *OperationsHandler) CompleteMaintenance(c *gin.Context) {
	record, err := h.svc.CompleteMaintenance(c.Request.Context(), c.Param("id"))
	mutated(c, http.StatusOK, "Maintenance completed", record, err, "Failed to complete maintenance")
}

func (h *OperationsHandler) DeleteMaintenance(c *gin.Context) {
	err := h.svc.DeleteMaintenance(c.Request.Context(), c.Param("id"))
	mutated(c, http.StatusOK, "Maintenance deleted successfully", nil, err, "Failed to delete maintenance")
}

func (h *OperationsHandler) GetSpeedViolations(c *gin.Context) {
	utils.QueryResponse(c, "Speed violations", h.svc.SpeedViolations(c.Request.Context()))
}

func (h *OperationsHandler) GetDrivingEvents(c *gin.Context) {
	utils.QueryResponse(c, "Driving events", h.svc.DrivingEvents(c.Request.Context()))
}
