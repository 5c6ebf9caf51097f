package models

import "time"

type VehicleStatus string

const (
	VehicleStatusActive      VehicleStatus = "active"
	VehicleStatusMaintenance VehicleStatus = "maintenance"
	VehicleStatusInactive    VehicleStatus = "inactive"
	VehicleStatusInTransit   VehicleStatus = "in_transit"
)

type FuelType string

const (
	FuelTypeGasoline FuelType = "gasoline"
	FuelTypeDiesel   FuelType = "diesel"
	FuelTypeEthanol  FuelType = "ethanol"
	FuelTypeElectric FuelType = "electric"
	FuelTypeHybrid   FuelType = "hybrid"
)

type Vehicle struct {
	ID                     string        `bson:"_id" json:"id"`
	Plate                  string        `bson:"plate" json:"plate" validate:"required"`
	VIN                    *string       `bson:"vin,omitempty" json:"vin,omitempty"`
	Brand                  string        `bson:"brand" json:"brand" validate:"required"`
	Model                  string        `bson:"model" json:"model" validate:"required"`
	Year                   int           `bson:"year" json:"year" validate:"required,min=1900,max=2100"`
	Color                  *string       `bson:"color,omitempty" json:"color,omitempty"`
	FuelType               FuelType      `bson:"fuel_type" json:"fuelType" validate:"required,oneof=gasoline diesel ethanol electric hybrid"`
	IsElectric             bool          `bson:"is_electric" json:"isElectric"`
	Status                 VehicleStatus `bson:"status" json:"status" validate:"required,oneof=active maintenance inactive in_transit"`
	CurrentFuelLevel       *float64      `bson:"current_fuel_level,omitempty" json:"currentFuelLevel,omitempty" validate:"omitempty,gte=0"`
	TankCapacity           *float64      `bson:"tank_capacity,omitempty" json:"tankCapacity,omitempty" validate:"omitempty,gt=0"`
	CurrentBatteryLevel    *float64      `bson:"current_battery_level,omitempty" json:"currentBatteryLevel,omitempty" validate:"omitempty,gte=0,lte=100"`
	BatteryCapacity        *float64      `bson:"battery_capacity,omitempty" json:"batteryCapacity,omitempty" validate:"omitempty,gt=0"`
	AvgConsumption         *float64      `bson:"avg_consumption,omitempty" json:"avgConsumption,omitempty"`
	CO2EmissionRate        *float64      `bson:"co2_emission_rate,omitempty" json:"co2EmissionRate,omitempty"`
	MaxLoadCapacity        *float64      `bson:"max_load_capacity,omitempty" json:"maxLoadCapacity,omitempty"`
	TotalMileage           *float64      `bson:"total_mileage,omitempty" json:"totalMileage,omitempty" validate:"omitempty,gte=0"`
	PartialMileage         *float64      `bson:"partial_mileage,omitempty" json:"partialMileage,omitempty" validate:"omitempty,gte=0"`
	LastMaintenanceDate    *time.Time    `bson:"last_maintenance_date,omitempty" json:"lastMaintenanceDate,omitempty"`
	NextMaintenanceDate    *time.Time    `bson:"next_maintenance_date,omitempty" json:"nextMaintenanceDate,omitempty"`
	NextMaintenanceMileage *float64      `bson:"next_maintenance_mileage,omitempty" json:"nextMaintenanceMileage,omitempty"`
	InsuranceExpiry        *time.Time    `bson:"insurance_expiry,omitempty" json:"insuranceExpiry,omitempty"`
	IPVAExpiry             *time.Time    `bson:"ipva_expiry,omitempty" json:"ipvaExpiry,omitempty"`
	LicenseExpiry          *time.Time    `bson:"license_expiry,omitempty" json:"licenseExpiry,omitempty"`
	ImageURL               *string       `bson:"image_url,omitempty" json:"imageUrl,omitempty"`
	Notes                  *string       `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt              time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt              time.Time     `bson:"updated_at" json:"updatedAt"`
}

// VehicleUpdate carries a partial update; nil fields are left untouched.
type VehicleUpdate struct {
	Plate                  *string        `bson:"plate,omitempty" json:"plate,omitempty" validate:"omitempty,min=1"`
	VIN                    *string        `bson:"vin,omitempty" json:"vin,omitempty"`
	Brand                  *string        `bson:"brand,omitempty" json:"brand,omitempty" validate:"omitempty,min=1"`
	Model                  *string        `bson:"model,omitempty" json:"model,omitempty" validate:"omitempty,min=1"`
	Year                   *int           `bson:"year,omitempty" json:"year,omitempty" validate:"omitempty,min=1900,max=2100"`
	Color                  *string        `bson:"color,omitempty" json:"color,omitempty"`
	FuelType               *FuelType      `bson:"fuel_type,omitempty" json:"fuelType,omitempty" validate:"omitempty,oneof=gasoline diesel ethanol electric hybrid"`
	Status                 *VehicleStatus `bson:"status,omitempty" json:"status,omitempty" validate:"omitempty,oneof=active maintenance inactive in_transit"`
	CurrentFuelLevel       *float64       `bson:"current_fuel_level,omitempty" json:"currentFuelLevel,omitempty" validate:"omitempty,gte=0"`
	TankCapacity           *float64       `bson:"tank_capacity,omitempty" json:"tankCapacity,omitempty" validate:"omitempty,gt=0"`
	CurrentBatteryLevel    *float64       `bson:"current_battery_level,omitempty" json:"currentBatteryLevel,omitempty" validate:"omitempty,gte=0,lte=100"`
	TotalMileage           *float64       `bson:"total_mileage,omitempty" json:"totalMileage,omitempty" validate:"omitempty,gte=0"`
	PartialMileage         *float64       `bson:"partial_mileage,omitempty" json:"partialMileage,omitempty" validate:"omitempty,gte=0"`
	NextMaintenanceDate    *time.Time     `bson:"next_maintenance_date,omitempty" json:"nextMaintenanceDate,omitempty"`
	NextMaintenanceMileage *float64       `bson:"next_maintenance_mileage,omitempty" json:"nextMaintenanceMileage,omitempty"`
	InsuranceExpiry        *time.Time     `bson:"insurance_expiry,omitempty" json:"insuranceExpiry,omitempty"`
	LicenseExpiry          *time.Time     `bson:"license_expiry,omitempty" json:"licenseExpiry,omitempty"`
	Notes                  *string        `bson:"notes,omitempty" json:"notes,omitempty"`
}

// IsActive reports whether the vehicle counts towards the active fleet.
func (v Vehicle) IsActive() bool {
	return v.Status == VehicleStatusActive || v.Status == VehicleStatusInTransit
}

// VehicleRef is the subset of a vehicle embedded into joined rows.
type VehicleRef struct {
	ID    string `json:"id"`
	Plate string `json:"plate"`
	Brand string `json:"brand,omitempty"`
	Model string `json:"model,omitempty"`
}

func (v Vehicle) Ref() *VehicleRef {
	return &VehicleRef{ID: v.ID, Plate: v.Plate, Brand: v.Brand, Model: v.Model}
}
