package models

import "time"

type DriverStatus string

const (
	DriverStatusAvailable DriverStatus = "available"
	DriverStatusDriving   DriverStatus = "driving"
	DriverStatusResting   DriverStatus = "resting"
	DriverStatusOffline   DriverStatus = "offline"
	DriverStatusOnBreak   DriverStatus = "on_break"
)

type Driver struct {
	ID               string       `bson:"_id" json:"id"`
	UserID           *string      `bson:"user_id,omitempty" json:"userId,omitempty"`
	FullName         string       `bson:"full_name" json:"fullName" validate:"required"`
	Email            *string      `bson:"email,omitempty" json:"email,omitempty" validate:"omitempty,email"`
	Phone            string       `bson:"phone" json:"phone" validate:"required"`
	LicenseNumber    string       `bson:"license_number" json:"licenseNumber" validate:"required"`
	LicenseCategory  string       `bson:"license_category" json:"licenseCategory" validate:"required"`
	LicenseExpiry    time.Time    `bson:"license_expiry" json:"licenseExpiry" validate:"required"`
	Status           DriverStatus `bson:"status" json:"status" validate:"required,oneof=available driving resting offline on_break"`
	Rating           *float64     `bson:"rating,omitempty" json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	TotalTrips       *int         `bson:"total_trips,omitempty" json:"totalTrips,omitempty" validate:"omitempty,gte=0"`
	TotalDistance    *float64     `bson:"total_distance,omitempty" json:"totalDistance,omitempty" validate:"omitempty,gte=0"`
	TotalHoursWorked *float64     `bson:"total_hours_worked,omitempty" json:"totalHoursWorked,omitempty" validate:"omitempty,gte=0"`
	HireDate         *time.Time   `bson:"hire_date,omitempty" json:"hireDate,omitempty"`
	BirthDate        *time.Time   `bson:"birth_date,omitempty" json:"birthDate,omitempty"`
	Address          *string      `bson:"address,omitempty" json:"address,omitempty"`
	EmergencyContact *string      `bson:"emergency_contact,omitempty" json:"emergencyContact,omitempty"`
	EmergencyPhone   *string      `bson:"emergency_phone,omitempty" json:"emergencyPhone,omitempty"`
	AvatarURL        *string      `bson:"avatar_url,omitempty" json:"avatarUrl,omitempty"`
	Notes            *string      `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt        time.Time    `bson:"created_at" json:"createdAt"`
	UpdatedAt        time.Time    `bson:"updated_at" json:"updatedAt"`
}

type DriverUpdate struct {
	FullName        *string       `bson:"full_name,omitempty" json:"fullName,omitempty" validate:"omitempty,min=1"`
	Email           *string       `bson:"email,omitempty" json:"email,omitempty" validate:"omitempty,email"`
	Phone           *string       `bson:"phone,omitempty" json:"phone,omitempty" validate:"omitempty,min=1"`
	LicenseNumber   *string       `bson:"license_number,omitempty" json:"licenseNumber,omitempty"`
	LicenseCategory *string       `bson:"license_category,omitempty" json:"licenseCategory,omitempty"`
	LicenseExpiry   *time.Time    `bson:"license_expiry,omitempty" json:"licenseExpiry,omitempty"`
	Status          *DriverStatus `bson:"status,omitempty" json:"status,omitempty" validate:"omitempty,oneof=available driving resting offline on_break"`
	Rating          *float64      `bson:"rating,omitempty" json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	TotalTrips      *int          `bson:"total_trips,omitempty" json:"totalTrips,omitempty" validate:"omitempty,gte=0"`
	TotalDistance   *float64      `bson:"total_distance,omitempty" json:"totalDistance,omitempty" validate:"omitempty,gte=0"`
	Address         *string       `bson:"address,omitempty" json:"address,omitempty"`
	Notes           *string       `bson:"notes,omitempty" json:"notes,omitempty"`
}

// IsActive reports whether the driver counts towards the active workforce.
func (d Driver) IsActive() bool {
	return d.Status == DriverStatusDriving || d.Status == DriverStatusAvailable
}

type DriverRef struct {
	ID        string  `json:"id"`
	FullName  string  `json:"fullName"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

func (d Driver) Ref() *DriverRef {
	return &DriverRef{ID: d.ID, FullName: d.FullName, AvatarURL: d.AvatarURL}
}

// DriverPerformance is a per-period scorecard computed upstream.
type DriverPerformance struct {
	ID                  string    `bson:"_id" json:"id"`
	DriverID            string    `bson:"driver_id" json:"driverId"`
	PeriodStart         time.Time `bson:"period_start" json:"periodStart"`
	PeriodEnd           time.Time `bson:"period_end" json:"periodEnd"`
	TripsCompleted      *int      `bson:"trips_completed,omitempty" json:"tripsCompleted,omitempty"`
	OnTimeDeliveries    *int      `bson:"on_time_deliveries,omitempty" json:"onTimeDeliveries,omitempty"`
	LateDeliveries      *int      `bson:"late_deliveries,omitempty" json:"lateDeliveries,omitempty"`
	SafetyScore         *float64  `bson:"safety_score,omitempty" json:"safetyScore,omitempty"`
	FuelEfficiencyScore *float64  `bson:"fuel_efficiency_score,omitempty" json:"fuelEfficiencyScore,omitempty"`
	CustomerRating      *float64  `bson:"customer_rating,omitempty" json:"customerRating,omitempty"`
	HardBrakes          *int      `bson:"hard_brakes,omitempty" json:"hardBrakes,omitempty"`
	RapidAccelerations  *int      `bson:"rapid_accelerations,omitempty" json:"rapidAccelerations,omitempty"`
	SpeedingViolations  *int      `bson:"speeding_violations,omitempty" json:"speedingViolations,omitempty"`
	IncidentsCount      *int      `bson:"incidents_count,omitempty" json:"incidentsCount,omitempty"`
	PointsEarned        *int      `bson:"points_earned,omitempty" json:"pointsEarned,omitempty"`
	CreatedAt           time.Time `bson:"created_at" json:"createdAt"`
}
