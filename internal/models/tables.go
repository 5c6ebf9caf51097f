package models

// Collection names shared by every store backend.
const (
	TableVehicles          = "vehicles"
	TableDrivers           = "drivers"
	TableDriverPerformance = "driver_performance"
	TableRoutes            = "routes"
	TableRouteStops        = "route_stops"
	TableAlerts            = "alerts"
	TableCargos            = "cargos"
	TableCargoConditions   = "cargo_conditions"
	TableTelemetry         = "telemetry_data"
	TableMaintenance       = "maintenance_records"
	TableFuelRecords       = "fuel_records"
	TableFuelAnalysis      = "fuel_analysis"
	TableGeofences         = "geofences"
	TableGeofenceEvents    = "geofence_events"
	TableDriverPoints      = "driver_points"
	TableChallenges        = "challenges"
	TableDriverChallenges  = "driver_challenges"
	TableNotifications     = "notifications"
	TableMessages          = "messages"
	TableProfiles          = "profiles"
	TableDrivingEvents     = "driving_events"
	TableSpeedViolations   = "speed_violations"
)

// Tables lists every collection, used for index creation and schema setup.
var Tables = []string{
	TableVehicles, TableDrivers, TableDriverPerformance, TableRoutes, TableRouteStops,
	TableAlerts, TableCargos, TableCargoConditions, TableTelemetry, TableMaintenance,
	TableFuelRecords, TableFuelAnalysis, TableGeofences, TableGeofenceEvents,
	TableDriverPoints, TableChallenges, TableDriverChallenges, TableNotifications,
	TableMessages, TableProfiles, TableDrivingEvents, TableSpeedViolations,
}
