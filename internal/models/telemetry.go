package models

import "time"

// TelemetryData is an immutable sample reported by a vehicle.
type TelemetryData struct {
	ID            string    `bson:"_id" json:"id"`
	VehicleID     string    `bson:"vehicle_id" json:"vehicleId" validate:"required"`
	Latitude      float64   `bson:"latitude" json:"latitude" validate:"latitude"`
	Longitude     float64   `bson:"longitude" json:"longitude" validate:"longitude"`
	Altitude      *float64  `bson:"altitude,omitempty" json:"altitude,omitempty"`
	Heading       *float64  `bson:"heading,omitempty" json:"heading,omitempty" validate:"omitempty,gte=0,lt=360"`
	Speed         *float64  `bson:"speed,omitempty" json:"speed,omitempty" validate:"omitempty,gte=0"`
	Odometer      *float64  `bson:"odometer,omitempty" json:"odometer,omitempty" validate:"omitempty,gte=0"`
	FuelLevel     *float64  `bson:"fuel_level,omitempty" json:"fuelLevel,omitempty" validate:"omitempty,gte=0"`
	BatteryLevel  *float64  `bson:"battery_level,omitempty" json:"batteryLevel,omitempty" validate:"omitempty,gte=0,lte=100"`
	EngineStatus  *bool     `bson:"engine_status,omitempty" json:"engineStatus,omitempty"`
	EngineRPM     *float64  `bson:"engine_rpm,omitempty" json:"engineRpm,omitempty" validate:"omitempty,gte=0"`
	EngineTemp    *float64  `bson:"engine_temp,omitempty" json:"engineTemp,omitempty"`
	CargoTemp     *float64  `bson:"cargo_temp,omitempty" json:"cargoTemp,omitempty"`
	CargoHumidity *float64  `bson:"cargo_humidity,omitempty" json:"cargoHumidity,omitempty"`
	RecordedAt    time.Time `bson:"recorded_at" json:"recordedAt"`
}

type DrivingEvent struct {
	ID         string                 `bson:"_id" json:"id"`
	VehicleID  string                 `bson:"vehicle_id" json:"vehicleId"`
	DriverID   *string                `bson:"driver_id,omitempty" json:"driverId,omitempty"`
	EventType  string                 `bson:"event_type" json:"eventType"`
	Severity   *string                `bson:"severity,omitempty" json:"severity,omitempty"`
	Speed      *float64               `bson:"speed,omitempty" json:"speed,omitempty"`
	GForce     *float64               `bson:"g_force,omitempty" json:"gForce,omitempty"`
	Latitude   *float64               `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude  *float64               `bson:"longitude,omitempty" json:"longitude,omitempty"`
	Details    map[string]interface{} `bson:"details,omitempty" json:"details,omitempty"`
	OccurredAt time.Time              `bson:"occurred_at" json:"occurredAt"`

	Vehicle *VehicleRef `bson:"-" json:"vehicle,omitempty"`
	Driver  *DriverRef  `bson:"-" json:"driver,omitempty"`
}

type SpeedViolation struct {
	ID              string    `bson:"_id" json:"id"`
	VehicleID       string    `bson:"vehicle_id" json:"vehicleId"`
	DriverID        *string   `bson:"driver_id,omitempty" json:"driverId,omitempty"`
	RecordedSpeed   float64   `bson:"recorded_speed" json:"recordedSpeed"`
	SpeedLimit      float64   `bson:"speed_limit" json:"speedLimit"`
	DurationSeconds *int      `bson:"duration_seconds,omitempty" json:"durationSeconds,omitempty"`
	Latitude        *float64  `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude       *float64  `bson:"longitude,omitempty" json:"longitude,omitempty"`
	OccurredAt      time.Time `bson:"occurred_at" json:"occurredAt"`

	Vehicle *VehicleRef `bson:"-" json:"vehicle,omitempty"`
	Driver  *DriverRef  `bson:"-" json:"driver,omitempty"`
}
