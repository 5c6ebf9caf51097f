package models

import "time"

type RouteStatus string

const (
	RouteStatusPlanned    RouteStatus = "planned"
	RouteStatusInProgress RouteStatus = "in_progress"
	RouteStatusCompleted  RouteStatus = "completed"
	RouteStatusCancelled  RouteStatus = "cancelled"
	RouteStatusDelayed    RouteStatus = "delayed"
)

type Route struct {
	ID              string      `bson:"_id" json:"id"`
	Name            *string     `bson:"name,omitempty" json:"name,omitempty"`
	VehicleID       *string     `bson:"vehicle_id,omitempty" json:"vehicleId,omitempty"`
	DriverID        *string     `bson:"driver_id,omitempty" json:"driverId,omitempty"`
	OriginName      string      `bson:"origin_name" json:"originName" validate:"required"`
	OriginLat       float64     `bson:"origin_lat" json:"originLat" validate:"latitude"`
	OriginLng       float64     `bson:"origin_lng" json:"originLng" validate:"longitude"`
	DestinationName string      `bson:"destination_name" json:"destinationName" validate:"required"`
	DestinationLat  float64     `bson:"destination_lat" json:"destinationLat" validate:"latitude"`
	DestinationLng  float64     `bson:"destination_lng" json:"destinationLng" validate:"longitude"`
	Status          RouteStatus `bson:"status" json:"status" validate:"required,oneof=planned in_progress completed cancelled delayed"`
	Priority        *int        `bson:"priority,omitempty" json:"priority,omitempty"`
	PlannedDistance *float64    `bson:"planned_distance,omitempty" json:"plannedDistance,omitempty" validate:"omitempty,gte=0"`
	PlannedDuration *float64    `bson:"planned_duration,omitempty" json:"plannedDuration,omitempty" validate:"omitempty,gte=0"`
	PlannedStart    *time.Time  `bson:"planned_start,omitempty" json:"plannedStart,omitempty"`
	PlannedEnd      *time.Time  `bson:"planned_end,omitempty" json:"plannedEnd,omitempty"`
	ActualDistance  *float64    `bson:"actual_distance,omitempty" json:"actualDistance,omitempty" validate:"omitempty,gte=0"`
	ActualDuration  *float64    `bson:"actual_duration,omitempty" json:"actualDuration,omitempty" validate:"omitempty,gte=0"`
	ActualStart     *time.Time  `bson:"actual_start,omitempty" json:"actualStart,omitempty"`
	ActualEnd       *time.Time  `bson:"actual_end,omitempty" json:"actualEnd,omitempty"`
	ETA             *time.Time  `bson:"eta,omitempty" json:"eta,omitempty"`
	FuelConsumed    *float64    `bson:"fuel_consumed,omitempty" json:"fuelConsumed,omitempty"`
	CO2Emitted      *float64    `bson:"co2_emitted,omitempty" json:"co2Emitted,omitempty"`
	IsOptimized     bool        `bson:"is_optimized" json:"isOptimized"`
	Notes           *string     `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt       time.Time   `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time   `bson:"updated_at" json:"updatedAt"`

	Vehicle *VehicleRef `bson:"-" json:"vehicle,omitempty" validate:"-"`
	Driver  *DriverRef  `bson:"-" json:"driver,omitempty" validate:"-"`
	Stops   []RouteStop `bson:"-" json:"stops,omitempty" validate:"-"`
}

type RouteUpdate struct {
	Name            *string      `bson:"name,omitempty" json:"name,omitempty"`
	VehicleID       *string      `bson:"vehicle_id,omitempty" json:"vehicleId,omitempty"`
	DriverID        *string      `bson:"driver_id,omitempty" json:"driverId,omitempty"`
	Status          *RouteStatus `bson:"status,omitempty" json:"status,omitempty" validate:"omitempty,oneof=planned in_progress completed cancelled delayed"`
	Priority        *int         `bson:"priority,omitempty" json:"priority,omitempty"`
	PlannedStart    *time.Time   `bson:"planned_start,omitempty" json:"plannedStart,omitempty"`
	PlannedEnd      *time.Time   `bson:"planned_end,omitempty" json:"plannedEnd,omitempty"`
	ActualDistance  *float64     `bson:"actual_distance,omitempty" json:"actualDistance,omitempty" validate:"omitempty,gte=0"`
	ActualDuration  *float64     `bson:"actual_duration,omitempty" json:"actualDuration,omitempty" validate:"omitempty,gte=0"`
	ActualStart     *time.Time   `bson:"actual_start,omitempty" json:"actualStart,omitempty"`
	ActualEnd       *time.Time   `bson:"actual_end,omitempty" json:"actualEnd,omitempty"`
	ETA             *time.Time   `bson:"eta,omitempty" json:"eta,omitempty"`
	FuelConsumed    *float64     `bson:"fuel_consumed,omitempty" json:"fuelConsumed,omitempty"`
	CO2Emitted      *float64     `bson:"co2_emitted,omitempty" json:"co2Emitted,omitempty"`
	Notes           *string      `bson:"notes,omitempty" json:"notes,omitempty"`
}

// OnTime reports whether a completed route finished within its plan.
// Routes missing either timestamp count as on time.
func (r Route) OnTime() bool {
	if r.ActualEnd == nil || r.PlannedEnd == nil {
		return true
	}
	return !r.ActualEnd.After(*r.PlannedEnd)
}

type RouteRef struct {
	ID              string      `json:"id"`
	Name            *string     `json:"name,omitempty"`
	OriginName      string      `json:"originName"`
	DestinationName string      `json:"destinationName"`
	Status          RouteStatus `json:"status"`
	Vehicle         *VehicleRef `json:"vehicle,omitempty"`
	Driver          *DriverRef  `json:"driver,omitempty"`
}

func (r Route) Ref() *RouteRef {
	return &RouteRef{
		ID:              r.ID,
		Name:            r.Name,
		OriginName:      r.OriginName,
		DestinationName: r.DestinationName,
		Status:          r.Status,
		Vehicle:         r.Vehicle,
		Driver:          r.Driver,
	}
}

type RouteStop struct {
	ID               string     `bson:"_id" json:"id"`
	RouteID          string     `bson:"route_id" json:"routeId" validate:"required"`
	StopOrder        int        `bson:"stop_order" json:"stopOrder" validate:"gte=0"`
	Name             string     `bson:"name" json:"name" validate:"required"`
	Latitude         float64    `bson:"latitude" json:"latitude" validate:"latitude"`
	Longitude        float64    `bson:"longitude" json:"longitude" validate:"longitude"`
	PlannedArrival   *time.Time `bson:"planned_arrival,omitempty" json:"plannedArrival,omitempty"`
	PlannedDeparture *time.Time `bson:"planned_departure,omitempty" json:"plannedDeparture,omitempty"`
	ActualArrival    *time.Time `bson:"actual_arrival,omitempty" json:"actualArrival,omitempty"`
	ActualDeparture  *time.Time `bson:"actual_departure,omitempty" json:"actualDeparture,omitempty"`
	StopDuration     *float64   `bson:"stop_duration,omitempty" json:"stopDuration,omitempty"`
	Notes            *string    `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt        time.Time  `bson:"created_at" json:"createdAt"`
}
