package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logitrack/internal/models"
)

var base = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func TestKPIs_ActiveVehicleScenario(t *testing.T) {
	var vehicles []models.Vehicle
	add := func(n int, status models.VehicleStatus) {
		for i := 0; i < n; i++ {
			vehicles = append(vehicles, models.Vehicle{Status: status})
		}
	}
	add(32, models.VehicleStatusActive)
	add(6, models.VehicleStatusInTransit)
	add(7, models.VehicleStatusMaintenance)
	add(3, models.VehicleStatusInactive)
	require.Len(t, vehicles, 48)

	k := KPIs(KPIInput{Vehicles: vehicles, OnTimeDefault: DefaultOnTimeRate})
	assert.Equal(t, 48, k.TotalVehicles)
	assert.Equal(t, 38, k.ActiveVehicles)
}

func TestKPIs_AlertsToday(t *testing.T) {
	alerts := make([]models.Alert, 7)
	for i := range alerts {
		alerts[i] = models.Alert{Level: models.AlertLevelWarning, CreatedAt: base.Add(-time.Duration(i) * time.Minute)}
	}
	alerts[1].Level = models.AlertLevelCritical
	alerts[4].Level = models.AlertLevelCritical

	k := KPIs(KPIInput{AlertsToday: alerts})
	assert.Equal(t, 7, k.TotalAlerts)
	assert.Equal(t, 2, k.CriticalAlerts)
}

func TestKPIs_DriversAndRoutes(t *testing.T) {
	k := KPIs(KPIInput{
		Drivers: []models.Driver{
			{Status: models.DriverStatusDriving},
			{Status: models.DriverStatusAvailable},
			{Status: models.DriverStatusResting},
			{Status: models.DriverStatusOffline},
		},
		Routes: []models.Route{
			{Status: models.RouteStatusPlanned},
			{Status: models.RouteStatusInProgress},
			{Status: models.RouteStatusDelayed},
		},
		IncidentsToday: 4,
		OnTimeDefault:  DefaultOnTimeRate,
	})
	assert.Equal(t, 4, k.TotalDrivers)
	assert.Equal(t, 2, k.ActiveDrivers)
	assert.Equal(t, 2, k.ActiveRoutes)
	assert.Equal(t, 1, k.DelayedRoutes)
	assert.Equal(t, 4, k.IncidentsToday)
	assert.Equal(t, 95, k.OnTimeRate)
}

func TestOnTimeRate(t *testing.T) {
	planned := base
	early := base.Add(-time.Hour)
	late := base.Add(time.Hour)

	tests := []struct {
		name   string
		routes []models.Route
		want   int
	}{
		{"no sample uses default", nil, 95},
		{"all on time", []models.Route{{PlannedEnd: &planned, ActualEnd: &early}, {PlannedEnd: &planned, ActualEnd: &planned}}, 100},
		{"one of three late", []models.Route{
			{PlannedEnd: &planned, ActualEnd: &early},
			{PlannedEnd: &planned, ActualEnd: &late},
			{PlannedEnd: &planned, ActualEnd: &early},
		}, 67},
		{"missing plan counts as on time", []models.Route{{ActualEnd: &late}, {PlannedEnd: &planned, ActualEnd: &late}}, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OnTimeRate(tt.routes, DefaultOnTimeRate))
		})
	}

	assert.Equal(t, 80, OnTimeRate(nil, 80), "fallback is configurable")
}

func TestKmToday(t *testing.T) {
	samples := []models.TelemetryData{
		{VehicleID: "V", Odometer: ptr(1000.0)},
		{VehicleID: "V", Odometer: ptr(1120.5)},
		{VehicleID: "V", Odometer: ptr(1050.0)},
		{VehicleID: "W", Odometer: ptr(500.0)},
		{VehicleID: "W", Odometer: ptr(530.0)},
		{VehicleID: "W"},
		{VehicleID: "X", Odometer: ptr(42.0)},
	}
	assert.InDelta(t, 150.5, KmToday(samples), 1e-9)
	assert.Zero(t, KmToday(nil))
}

func TestFuelConsumption(t *testing.T) {
	records := []models.FuelRecord{
		{VehicleID: "V", Quantity: 40, Odometer: ptr(10000.0)},
		{VehicleID: "V", Quantity: 60, Odometer: ptr(10340.0)},
	}
	assert.InDelta(t, 3.4, FuelConsumption(records), 1e-9)
	assert.Zero(t, FuelConsumption(nil))
}

func TestFuelStats(t *testing.T) {
	stats := Fuel([]models.FuelRecord{
		{Quantity: 50, TotalCost: 300},
		{Quantity: 30, TotalCost: 180},
	})
	assert.Equal(t, 80.0, stats.TotalFuel)
	assert.Equal(t, 480.0, stats.TotalCost)
	assert.InDelta(t, 6.0, stats.AvgCostPerLiter, 1e-9)
	assert.Equal(t, 2, stats.RecordCount)

	empty := Fuel(nil)
	assert.Zero(t, empty.AvgCostPerLiter)
}

func TestLeaderboard(t *testing.T) {
	drivers := []models.Driver{
		{ID: "a", FullName: "Ana"},
		{ID: "b", FullName: "Bruno"},
		{ID: "c", FullName: "Carla"},
		{ID: "d", FullName: "Davi"},
	}
	points := []models.DriverPoints{
		{DriverID: "b", Points: 10},
		{DriverID: "c", Points: 30},
		{DriverID: "b", Points: 20},
		{DriverID: "a", Points: 5},
		{DriverID: "ghost", Points: 100},
	}

	board := Leaderboard(drivers, points)
	require.Len(t, board, 4)
	assert.Equal(t, "b", board[0].ID)
	assert.Equal(t, 30, board[0].TotalPoints)
	assert.Equal(t, "c", board[1].ID, "tie keeps input order")
	assert.Equal(t, "a", board[2].ID)
	assert.Equal(t, "d", board[3].ID)
	assert.Zero(t, board[3].TotalPoints)
}

func TestRanking_KeepsRatingOrder(t *testing.T) {
	high, low := 4.9, 3.2
	drivers := []models.Driver{
		{ID: "b", FullName: "Bruno", Rating: &high},
		{ID: "a", FullName: "Ana", Rating: &low},
	}
	points := []models.DriverPoints{
		{DriverID: "a", Points: 50},
		{DriverID: "b", Points: 5},
		{DriverID: "a", Points: 10},
	}

	ranked := Ranking(drivers, points)
	require.Len(t, ranked, 2)
	assert.Equal(t, "b", ranked[0].ID, "points do not reorder")
	assert.Equal(t, 5, ranked[0].TotalPoints)
	assert.Equal(t, 60, ranked[1].TotalPoints)
	require.NotNil(t, ranked[1].Rating)
	assert.InDelta(t, 3.2, *ranked[1].Rating, 1e-9)
}

func TestRecentActivity_MergesAndTruncates(t *testing.T) {
	var alerts []models.Alert
	var routes []models.Route
	var maintenance []models.MaintenanceRecord
	for i := 0; i < 5; i++ {
		alerts = append(alerts, models.Alert{ID: "a", Title: "alert", Level: models.AlertLevelInfo, CreatedAt: base.Add(-time.Duration(3*i) * time.Minute)})
		routes = append(routes, models.Route{ID: "r", Status: models.RouteStatusPlanned, UpdatedAt: base.Add(-time.Duration(3*i+1) * time.Minute)})
		maintenance = append(maintenance, models.MaintenanceRecord{ID: "m", Title: "svc", Status: models.MaintenanceStatusPending, CreatedAt: base.Add(-time.Duration(3*i+2) * time.Minute)})
	}

	items := RecentActivity(alerts, routes, maintenance, ActivityLimit)
	require.Len(t, items, 10)
	for i := 1; i < len(items); i++ {
		assert.False(t, items[i].Timestamp.After(items[i-1].Timestamp), "non-increasing timestamps")
	}
	assert.Equal(t, ActivityAlert, items[0].Type)
	assert.Equal(t, ActivityRoute, items[1].Type)
	assert.Equal(t, "Unnamed route", items[1].Title)
	assert.Equal(t, ActivityMaintenance, items[2].Type)
}

func TestRecentActivity_Subtitles(t *testing.T) {
	items := RecentActivity(
		[]models.Alert{{ID: "a1", Title: "Low fuel", CreatedAt: base, Vehicle: &models.VehicleRef{Plate: "ABC-1234"}}},
		[]models.Route{{ID: "r1", Name: ptr("Santos"), UpdatedAt: base.Add(-time.Minute), Driver: &models.DriverRef{FullName: "Ana"}}},
		nil, ActivityLimit)
	require.Len(t, items, 2)
	assert.Equal(t, "ABC-1234", items[0].Subtitle)
	assert.Equal(t, "Santos", items[1].Title)
	assert.Equal(t, "Ana", items[1].Subtitle)
}

func TestConversations(t *testing.T) {
	msgs := []models.Message{
		{ID: "m4", SenderID: "u2", ReceiverID: ptr("u1"), Content: "newest from u2"},
		{ID: "m3", SenderID: "u1", ReceiverID: ptr("u3"), Content: "to u3"},
		{ID: "m2", SenderID: "u2", ReceiverID: ptr("u1"), Content: "older", IsRead: true},
		{ID: "m1", SenderID: "u2", ReceiverID: ptr("u1"), Content: "oldest"},
		{ID: "m0", SenderID: "u1", ReceiverID: ptr("u2"), Content: "mine"},
	}
	profiles := map[string]models.Profile{"u2": {ID: "u2", Email: "u2@example.com"}}

	convs := Conversations("u1", msgs, profiles)
	require.Len(t, convs, 2)
	assert.Equal(t, "u2", convs[0].PartnerID)
	assert.Equal(t, "m4", convs[0].LastMessage.ID)
	assert.Equal(t, 2, convs[0].UnreadCount)
	require.NotNil(t, convs[0].Partner)
	assert.Equal(t, "u3", convs[1].PartnerID)
	assert.Nil(t, convs[1].Partner)
	assert.Zero(t, convs[1].UnreadCount)

	assert.Empty(t, Conversations("u9", nil, nil))
}

func TestChallengeProgress(t *testing.T) {
	assert.Equal(t, 40.0, ChallengeProgress(ptr(40.0), ptr(100.0)))
	assert.Equal(t, 100.0, ChallengeProgress(ptr(150.0), ptr(100.0)))
	assert.Zero(t, ChallengeProgress(ptr(10.0), nil))
	assert.Zero(t, ChallengeProgress(ptr(10.0), ptr(0.0)))
	assert.Zero(t, ChallengeProgress(nil, ptr(10.0)))
}

func TestLocalMidnight(t *testing.T) {
	saoPaulo := time.FixedZone("BRT", -3*3600)
	now := time.Date(2026, 3, 11, 1, 0, 0, 0, time.UTC) // 22:00 on the 10th in BRT

	midnight := LocalMidnight(now, saoPaulo)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, saoPaulo), midnight)
	assert.True(t, midnight.Before(now))
}
