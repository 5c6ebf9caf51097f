package models

import "time"

type FuelRecord struct {
	ID             string    `bson:"_id" json:"id"`
	VehicleID      string    `bson:"vehicle_id" json:"vehicleId" validate:"required"`
	DriverID       *string   `bson:"driver_id,omitempty" json:"driverId,omitempty"`
	FuelType       FuelType  `bson:"fuel_type" json:"fuelType" validate:"required,oneof=gasoline diesel ethanol electric hybrid"`
	Quantity       float64   `bson:"quantity" json:"quantity" validate:"gt=0"`
	UnitPrice      float64   `bson:"unit_price" json:"unitPrice" validate:"gte=0"`
	TotalCost      float64   `bson:"total_cost" json:"totalCost" validate:"gte=0"`
	Odometer       *float64  `bson:"odometer,omitempty" json:"odometer,omitempty" validate:"omitempty,gte=0"`
	IsFullTank     bool      `bson:"is_full_tank" json:"isFullTank"`
	FuelStation    *string   `bson:"fuel_station,omitempty" json:"fuelStation,omitempty"`
	FuelCardNumber *string   `bson:"fuel_card_number,omitempty" json:"fuelCardNumber,omitempty"`
	Latitude       *float64  `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude      *float64  `bson:"longitude,omitempty" json:"longitude,omitempty"`
	ReceiptURL     *string   `bson:"receipt_url,omitempty" json:"receiptUrl,omitempty"`
	Notes          *string   `bson:"notes,omitempty" json:"notes,omitempty"`
	RecordedAt     time.Time `bson:"recorded_at" json:"recordedAt"`

	Vehicle *VehicleRef `bson:"-" json:"vehicle,omitempty" validate:"-"`
	Driver  *DriverRef  `bson:"-" json:"driver,omitempty" validate:"-"`
}

type FuelRecordUpdate struct {
	Quantity    *float64 `bson:"quantity,omitempty" json:"quantity,omitempty" validate:"omitempty,gt=0"`
	UnitPrice   *float64 `bson:"unit_price,omitempty" json:"unitPrice,omitempty" validate:"omitempty,gte=0"`
	TotalCost   *float64 `bson:"total_cost,omitempty" json:"totalCost,omitempty" validate:"omitempty,gte=0"`
	Odometer    *float64 `bson:"odometer,omitempty" json:"odometer,omitempty" validate:"omitempty,gte=0"`
	FuelStation *string  `bson:"fuel_station,omitempty" json:"fuelStation,omitempty"`
	Notes       *string  `bson:"notes,omitempty" json:"notes,omitempty"`
}

// FuelAnalysis is a per-vehicle consumption summary produced upstream.
type FuelAnalysis struct {
	ID              string    `bson:"_id" json:"id"`
	VehicleID       string    `bson:"vehicle_id" json:"vehicleId"`
	PeriodStart     time.Time `bson:"period_start" json:"periodStart"`
	PeriodEnd       time.Time `bson:"period_end" json:"periodEnd"`
	TotalFuel       *float64  `bson:"total_fuel,omitempty" json:"totalFuel,omitempty"`
	TotalCost       *float64  `bson:"total_cost,omitempty" json:"totalCost,omitempty"`
	TotalDistance   *float64  `bson:"total_distance,omitempty" json:"totalDistance,omitempty"`
	AvgConsumption  *float64  `bson:"avg_consumption,omitempty" json:"avgConsumption,omitempty"`
	EfficiencyScore *float64  `bson:"efficiency_score,omitempty" json:"efficiencyScore,omitempty"`
	AnomalyDetected bool      `bson:"anomaly_detected" json:"anomalyDetected"`
	Notes           *string   `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt       time.Time `bson:"created_at" json:"createdAt"`

	Vehicle *VehicleRef `bson:"-" json:"vehicle,omitempty"`
}
