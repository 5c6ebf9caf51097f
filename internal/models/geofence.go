package models

import "time"

type GeoPoint struct {
	Lat float64 `bson:"lat" json:"lat" validate:"latitude"`
	Lng float64 `bson:"lng" json:"lng" validate:"longitude"`
}

type Geofence struct {
	ID           string     `bson:"_id" json:"id"`
	Name         string     `bson:"name" json:"name" validate:"required"`
	Description  *string    `bson:"description,omitempty" json:"description,omitempty"`
	GeofenceType string     `bson:"geofence_type" json:"geofenceType" validate:"required,oneof=circle polygon"`
	Coordinates  []GeoPoint `bson:"coordinates" json:"coordinates" validate:"required,min=1,dive"`
	Radius       *float64   `bson:"radius,omitempty" json:"radius,omitempty" validate:"omitempty,gt=0"`
	SpeedLimit   *float64   `bson:"speed_limit,omitempty" json:"speedLimit,omitempty" validate:"omitempty,gt=0"`
	AlertOnEnter bool       `bson:"alert_on_enter" json:"alertOnEnter"`
	AlertOnExit  bool       `bson:"alert_on_exit" json:"alertOnExit"`
	IsActive     bool       `bson:"is_active" json:"isActive"`
	CreatedBy    *string    `bson:"created_by,omitempty" json:"createdBy,omitempty"`
	CreatedAt    time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updatedAt"`
}

type GeofenceUpdate struct {
	Name         *string     `bson:"name,omitempty" json:"name,omitempty" validate:"omitempty,min=1"`
	Description  *string     `bson:"description,omitempty" json:"description,omitempty"`
	Coordinates  *[]GeoPoint `bson:"coordinates,omitempty" json:"coordinates,omitempty" validate:"omitempty,min=1,dive"`
	Radius       *float64    `bson:"radius,omitempty" json:"radius,omitempty" validate:"omitempty,gt=0"`
	SpeedLimit   *float64    `bson:"speed_limit,omitempty" json:"speedLimit,omitempty" validate:"omitempty,gt=0"`
	AlertOnEnter *bool       `bson:"alert_on_enter,omitempty" json:"alertOnEnter,omitempty"`
	AlertOnExit  *bool       `bson:"alert_on_exit,omitempty" json:"alertOnExit,omitempty"`
	IsActive     *bool       `bson:"is_active,omitempty" json:"isActive,omitempty"`
}

type GeofenceEventType string

const (
	GeofenceEventEnter GeofenceEventType = "enter"
	GeofenceEventExit  GeofenceEventType = "exit"
)

// GeofenceEvent is an immutable record of a vehicle crossing a geofence.
type GeofenceEvent struct {
	ID         string            `bson:"_id" json:"id"`
	GeofenceID string            `bson:"geofence_id" json:"geofenceId" validate:"required"`
	VehicleID  string            `bson:"vehicle_id" json:"vehicleId" validate:"required"`
	EventType  GeofenceEventType `bson:"event_type" json:"eventType" validate:"required,oneof=enter exit"`
	Latitude   *float64          `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude  *float64          `bson:"longitude,omitempty" json:"longitude,omitempty"`
	Notes      *string           `bson:"notes,omitempty" json:"notes,omitempty"`
	OccurredAt time.Time         `bson:"occurred_at" json:"occurredAt"`

	Geofence *GeofenceRef `bson:"-" json:"geofence,omitempty" validate:"-"`
	Vehicle  *VehicleRef  `bson:"-" json:"vehicle,omitempty" validate:"-"`
}

type GeofenceRef struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	GeofenceType string `json:"geofenceType"`
}

func (g Geofence) Ref() *GeofenceRef {
	return &GeofenceRef{ID: g.ID, Name: g.Name, GeofenceType: g.GeofenceType}
}
