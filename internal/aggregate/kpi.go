// Package aggregate holds the dashboard reducers. Every function here is a
// pure function of the rows it is given.
package aggregate

import (
	"math"
	"time"

	"logitrack/internal/models"
)

// DefaultOnTimeRate is reported when no completed route is available.
const DefaultOnTimeRate = 95

type DashboardKPIs struct {
	TotalVehicles      int     `json:"totalVehicles"`
	ActiveVehicles     int     `json:"activeVehicles"`
	TotalDrivers       int     `json:"totalDrivers"`
	ActiveDrivers      int     `json:"activeDrivers"`
	ActiveRoutes       int     `json:"activeRoutes"`
	DelayedRoutes      int     `json:"delayedRoutes"`
	AvgFuelConsumption float64 `json:"avgFuelConsumption"`
	TotalAlerts        int     `json:"totalAlerts"`
	CriticalAlerts     int     `json:"criticalAlerts"`
	TotalKmToday       float64 `json:"totalKmToday"`
	OnTimeRate         int     `json:"onTimeRate"`
	IncidentsToday     int     `json:"incidentsToday"`
}

// KPIInput carries the rows the KPI reducer works on. Routes holds the
// planned, in-progress and delayed routes; AlertsToday, TelemetryToday and
// IncidentsToday are already bounded by local midnight.
type KPIInput struct {
	Vehicles        []models.Vehicle
	Drivers         []models.Driver
	Routes          []models.Route
	CompletedRoutes []models.Route
	AlertsToday     []models.Alert
	TelemetryToday  []models.TelemetryData
	FuelWindow      []models.FuelRecord
	IncidentsToday  int
	OnTimeDefault   int
}

func KPIs(in KPIInput) DashboardKPIs {
	k := DashboardKPIs{
		TotalVehicles:      len(in.Vehicles),
		TotalDrivers:       len(in.Drivers),
		TotalAlerts:        len(in.AlertsToday),
		IncidentsToday:     in.IncidentsToday,
		OnTimeRate:         OnTimeRate(in.CompletedRoutes, in.OnTimeDefault),
		TotalKmToday:       KmToday(in.TelemetryToday),
		AvgFuelConsumption: FuelConsumption(in.FuelWindow),
	}
	for _, v := range in.Vehicles {
		if v.IsActive() {
			k.ActiveVehicles++
		}
	}
	for _, d := range in.Drivers {
		if d.IsActive() {
			k.ActiveDrivers++
		}
	}
	for _, r := range in.Routes {
		switch r.Status {
		case models.RouteStatusInProgress, models.RouteStatusPlanned:
			k.ActiveRoutes++
		case models.RouteStatusDelayed:
			k.DelayedRoutes++
		}
	}
	for _, a := range in.AlertsToday {
		if a.Level == models.AlertLevelCritical {
			k.CriticalAlerts++
		}
	}
	return k
}

// OnTimeRate is the rounded percentage of completed routes that finished by
// their planned end. Routes missing either timestamp count as on time.
func OnTimeRate(completed []models.Route, fallback int) int {
	if len(completed) == 0 {
		return fallback
	}
	onTime := 0
	for _, r := range completed {
		if r.OnTime() {
			onTime++
		}
	}
	return int(math.Round(100 * float64(onTime) / float64(len(completed))))
}

// KmToday sums, per vehicle, the odometer span covered by the samples.
func KmToday(samples []models.TelemetryData) float64 {
	spans := make(map[string]*span)
	for _, s := range samples {
		if s.Odometer == nil {
			continue
		}
		extend(spans, s.VehicleID, *s.Odometer)
	}
	return round1(total(spans))
}

// FuelConsumption is distance per unit of fuel over the records, where the
// distance of a vehicle is the odometer span across its records.
func FuelConsumption(records []models.FuelRecord) float64 {
	spans := make(map[string]*span)
	var quantity float64
	for _, r := range records {
		quantity += r.Quantity
		if r.Odometer != nil {
			extend(spans, r.VehicleID, *r.Odometer)
		}
	}
	if quantity <= 0 {
		return 0
	}
	return round1(total(spans) / quantity)
}

type span struct{ min, max float64 }

func extend(spans map[string]*span, vehicleID string, odometer float64) {
	s, ok := spans[vehicleID]
	if !ok {
		spans[vehicleID] = &span{min: odometer, max: odometer}
		return
	}
	s.min = math.Min(s.min, odometer)
	s.max = math.Max(s.max, odometer)
}

func total(spans map[string]*span) float64 {
	var sum float64
	for _, s := range spans {
		sum += s.max - s.min
	}
	return sum
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// LocalMidnight returns the start of now's day in loc.
func LocalMidnight(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t := now.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
