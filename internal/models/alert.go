package models

import "time"

type AlertLevel string

const (
	AlertLevelCritical AlertLevel = "critical"
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelInfo     AlertLevel = "info"
)

type Alert struct {
	ID         string                 `bson:"_id" json:"id"`
	AlertType  string                 `bson:"alert_type" json:"alertType" validate:"required"`
	Level      AlertLevel             `bson:"level" json:"level" validate:"required,oneof=critical warning info"`
	Title      string                 `bson:"title" json:"title" validate:"required"`
	Message    string                 `bson:"message" json:"message" validate:"required"`
	VehicleID  *string                `bson:"vehicle_id,omitempty" json:"vehicleId,omitempty"`
	DriverID   *string                `bson:"driver_id,omitempty" json:"driverId,omitempty"`
	RouteID    *string                `bson:"route_id,omitempty" json:"routeId,omitempty"`
	IsRead     bool                   `bson:"is_read" json:"isRead"`
	IsResolved bool                   `bson:"is_resolved" json:"isResolved"`
	ResolvedAt *time.Time             `bson:"resolved_at,omitempty" json:"resolvedAt,omitempty"`
	ResolvedBy *string                `bson:"resolved_by,omitempty" json:"resolvedBy,omitempty"`
	Metadata   map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt  time.Time              `bson:"created_at" json:"createdAt"`

	Vehicle *VehicleRef `bson:"-" json:"vehicle,omitempty" validate:"-"`
	Driver  *DriverRef  `bson:"-" json:"driver,omitempty" validate:"-"`
}

// AlertUpdate edits descriptive fields and the read/resolved lifecycle.
type AlertUpdate struct {
	Title      *string     `bson:"title,omitempty" json:"title,omitempty"`
	Message    *string     `bson:"message,omitempty" json:"message,omitempty"`
	Level      *AlertLevel `bson:"level,omitempty" json:"level,omitempty" validate:"omitempty,oneof=critical warning info"`
	IsRead     *bool       `bson:"is_read,omitempty" json:"isRead,omitempty"`
	IsResolved *bool       `bson:"is_resolved,omitempty" json:"isResolved,omitempty"`
	ResolvedAt *time.Time  `bson:"resolved_at,omitempty" json:"resolvedAt,omitempty"`
	ResolvedBy *string     `bson:"resolved_by,omitempty" json:"resolvedBy,omitempty"`
}
