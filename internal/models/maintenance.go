package models

import "time"

type MaintenanceType string

const (
	MaintenanceTypePreventive MaintenanceType = "preventive"
	MaintenanceTypeCorrective MaintenanceType = "corrective"
	MaintenanceTypeScheduled  MaintenanceType = "scheduled"
	MaintenanceTypeEmergency  MaintenanceType = "emergency"
)

type MaintenanceStatus string

const (
	MaintenanceStatusPending    MaintenanceStatus = "pending"
	MaintenanceStatusInProgress MaintenanceStatus = "in_progress"
	MaintenanceStatusCompleted  MaintenanceStatus = "completed"
	MaintenanceStatusCancelled  MaintenanceStatus = "cancelled"
)

type MaintenanceRecord struct {
	ID                 string            `bson:"_id" json:"id"`
	VehicleID          string            `bson:"vehicle_id" json:"vehicleId" validate:"required"`
	Title              string            `bson:"title" json:"title" validate:"required"`
	Description        *string           `bson:"description,omitempty" json:"description,omitempty"`
	MaintenanceType    MaintenanceType   `bson:"maintenance_type" json:"maintenanceType" validate:"required,oneof=preventive corrective scheduled emergency"`
	Status             MaintenanceStatus `bson:"status" json:"status" validate:"required,oneof=pending in_progress completed cancelled"`
	ScheduledDate      *time.Time        `bson:"scheduled_date,omitempty" json:"scheduledDate,omitempty"`
	CompletedDate      *time.Time        `bson:"completed_date,omitempty" json:"completedDate,omitempty"`
	Cost               *float64          `bson:"cost,omitempty" json:"cost,omitempty" validate:"omitempty,gte=0"`
	MileageAtService   *float64          `bson:"mileage_at_service,omitempty" json:"mileageAtService,omitempty" validate:"omitempty,gte=0"`
	NextServiceDate    *time.Time        `bson:"next_service_date,omitempty" json:"nextServiceDate,omitempty"`
	NextServiceMileage *float64          `bson:"next_service_mileage,omitempty" json:"nextServiceMileage,omitempty"`
	ServiceProvider    *string           `bson:"service_provider,omitempty" json:"serviceProvider,omitempty"`
	PartsReplaced      []string          `bson:"parts_replaced,omitempty" json:"partsReplaced,omitempty"`
	Notes              *string           `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt          time.Time         `bson:"created_at" json:"createdAt"`
	UpdatedAt          time.Time         `bson:"updated_at" json:"updatedAt"`

	Vehicle *VehicleRef `bson:"-" json:"vehicle,omitempty" validate:"-"`
}

type MaintenanceUpdate struct {
	Title           *string            `bson:"title,omitempty" json:"title,omitempty"`
	Description     *string            `bson:"description,omitempty" json:"description,omitempty"`
	Status          *MaintenanceStatus `bson:"status,omitempty" json:"status,omitempty" validate:"omitempty,oneof=pending in_progress completed cancelled"`
	ScheduledDate   *time.Time         `bson:"scheduled_date,omitempty" json:"scheduledDate,omitempty"`
	CompletedDate   *time.Time         `bson:"completed_date,omitempty" json:"completedDate,omitempty"`
	Cost            *float64           `bson:"cost,omitempty" json:"cost,omitempty" validate:"omitempty,gte=0"`
	ServiceProvider *string            `bson:"service_provider,omitempty" json:"serviceProvider,omitempty"`
	Notes           *string            `bson:"notes,omitempty" json:"notes,omitempty"`
}

// ActivityTime is the timestamp used to place the record in activity feeds.
func (m MaintenanceRecord) ActivityTime() time.Time {
	return m.CreatedAt
}
