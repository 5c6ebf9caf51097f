package services

import (
	"sort"
	"strconv"
	"strings"

	"logitrack/internal/models"
	"logitrack/internal/store"
	"logitrack/pkg/cache"
)

// Query names. A cache key starts with one of these, followed by its
// parameters.
const (
	QueryDashboardKPIs      = "dashboard-kpis"
	QueryRecentActivity     = "recent-activity"
	QueryVehicles           = "vehicles"
	QueryDrivers            = "drivers"
	QueryDriverPerformance  = "driver-performance"
	QueryRoutes             = "routes"
	QueryActiveRoutes       = "active-routes"
	QueryAlerts             = "alerts"
	QueryCargos             = "cargos"
	QueryActiveCargos       = "active-cargos"
	QueryCargoConditions    = "cargo-conditions"
	QueryFuelRecords        = "fuel-records"
	QueryFuelStats          = "fuel-stats"
	QueryFuelAnalysis       = "fuel-analysis"
	QueryMaintenance        = "maintenance"
	QueryPendingMaintenance = "pending-maintenance"
	QueryGeofences          = "geofences"
	QueryActiveGeofences    = "active-geofences"
	QueryGeofenceEvents     = "geofence-events"
	QueryTelemetry          = "telemetry"
	QuerySpeedViolations    = "speed-violations"
	QueryDrivingEvents      = "driving-events"
	QueryNotifications      = "notifications"
	QueryMessages           = "messages"
	QueryConversations      = "conversations"
	QueryChallenges         = "challenges"
	QueryActiveChallenges   = "active-challenges"
	QueryDriverChallenges   = "driver-challenges"
	QueryDriverPoints       = "driver-points"
	QueryLeaderboard        = "driver-leaderboard"
	QueryDriverRanking      = "driver-ranking"
)

const latest = "latest"

func TelemetryLatestKey() cache.Key { return cache.K(QueryTelemetry, latest) }

// TelemetryKey covers every telemetry query of one vehicle.
func TelemetryKey(vehicleID string) cache.Key { return cache.K(QueryTelemetry, vehicleID) }

func telemetryRecentKey(vehicleID string, limit int) cache.Key {
	return cache.K(QueryTelemetry, vehicleID, "recent", strconv.Itoa(limit))
}

func telemetryHistoryKey(vehicleID string, hours int) cache.Key {
	return cache.K(QueryTelemetry, vehicleID, "history", strconv.Itoa(hours))
}

func NotificationsKey(userID string) cache.Key  { return cache.K(QueryNotifications, userID) }
func MessagesKey(userID string) cache.Key       { return cache.K(QueryMessages, userID) }
func ConversationsKey(userID string) cache.Key  { return cache.K(QueryConversations, userID) }
func threadKey(userID, partnerID string) cache.Key {
	return cache.K(QueryMessages, userID, partnerID)
}

// filterKey serialises a status filter so equal filters share a key.
func filterKey[S ~string](name string, statuses []S) cache.Key {
	if len(statuses) == 0 {
		return cache.K(name, "all")
	}
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	sort.Strings(parts)
	return cache.K(name, "status="+strings.Join(parts, ","))
}

func byIDKey(name, id string) cache.Key { return cache.K(name, "id", id) }

// dependents lists the cached queries that read each table, directly or
// through a join.
var dependents = map[string][]string{
	models.TableVehicles: {
		QueryVehicles, QueryDashboardKPIs, QueryRecentActivity, QueryRoutes, QueryActiveRoutes,
		QueryAlerts, QueryCargos, QueryActiveCargos, QueryFuelRecords, QueryFuelAnalysis,
		QueryMaintenance, QueryPendingMaintenance, QueryGeofenceEvents, QuerySpeedViolations, QueryDrivingEvents,
	},
	models.TableDrivers: {
		QueryDrivers, QueryDashboardKPIs, QueryRecentActivity, QueryRoutes, QueryActiveRoutes,
		QueryAlerts, QueryCargos, QueryActiveCargos, QueryFuelRecords, QueryLeaderboard,
		QueryDriverRanking, QuerySpeedViolations, QueryDrivingEvents,
	},
	models.TableDriverPerformance: {QueryDriverPerformance},
	models.TableRoutes:            {QueryRoutes, QueryActiveRoutes, QueryDashboardKPIs, QueryRecentActivity, QueryCargos, QueryActiveCargos},
	models.TableRouteStops:        {QueryRoutes},
	models.TableAlerts:            {QueryAlerts, QueryDashboardKPIs, QueryRecentActivity},
	models.TableCargos:            {QueryCargos, QueryActiveCargos},
	models.TableCargoConditions:   {QueryCargoConditions},
	models.TableTelemetry:         {QueryTelemetry, QueryDashboardKPIs},
	models.TableMaintenance:       {QueryMaintenance, QueryPendingMaintenance, QueryRecentActivity},
	models.TableFuelRecords:       {QueryFuelRecords, QueryFuelStats, QueryDashboardKPIs},
	models.TableFuelAnalysis:      {QueryFuelAnalysis},
	models.TableGeofences:         {QueryGeofences, QueryActiveGeofences, QueryGeofenceEvents},
	models.TableGeofenceEvents:    {QueryGeofenceEvents},
	models.TableDriverPoints:      {QueryDriverPoints, QueryLeaderboard, QueryDriverRanking},
	models.TableChallenges:        {QueryChallenges, QueryActiveChallenges, QueryDriverChallenges},
	models.TableDriverChallenges:  {QueryDriverChallenges},
	models.TableNotifications:     {QueryNotifications},
	models.TableMessages:          {QueryMessages, QueryConversations},
	models.TableProfiles:          {QueryConversations},
	models.TableDrivingEvents:     {QueryDrivingEvents, QueryDashboardKPIs},
	models.TableSpeedViolations:   {QuerySpeedViolations},
}

// TableKeys returns every key prefix a change on table can make stale.
func TableKeys(table string) []cache.Key {
	names := dependents[table]
	keys := make([]cache.Key, len(names))
	for i, name := range names {
		keys[i] = cache.K(name)
	}
	return keys
}

// KeysFor narrows TableKeys using the row carried by a change when the table
// is partitioned per vehicle or per user.
func KeysFor(c store.Change) []cache.Key {
	switch c.Table {
	case models.TableTelemetry:
		if v := rowString(c.Row, "vehicle_id"); v != "" {
			return []cache.Key{TelemetryKey(v), TelemetryLatestKey(), cache.K(QueryDashboardKPIs)}
		}
	case models.TableNotifications:
		if u := rowString(c.Row, "user_id"); u != "" {
			return []cache.Key{NotificationsKey(u)}
		}
	case models.TableMessages:
		sender, receiver := rowString(c.Row, "sender_id"), rowString(c.Row, "receiver_id")
		if sender != "" && receiver != "" {
			return []cache.Key{MessagesKey(sender), MessagesKey(receiver), ConversationsKey(sender), ConversationsKey(receiver)}
		}
	}
	return TableKeys(c.Table)
}

func rowString(row map[string]interface{}, field string) string {
	if row == nil {
		return ""
	}
	switch v := row[field].(type) {
	case string:
		return v
	case *string:
		if v != nil {
			return *v
		}
	}
	return ""
}
