package models

import "time"

type CargoStatus string

const (
	CargoStatusPending   CargoStatus = "pending"
	CargoStatusLoaded    CargoStatus = "loaded"
	CargoStatusInTransit CargoStatus = "in_transit"
	CargoStatusDelivered CargoStatus = "delivered"
	CargoStatusCancelled CargoStatus = "cancelled"
)

type Cargo struct {
	ID                  string      `bson:"_id" json:"id"`
	RouteID             *string     `bson:"route_id,omitempty" json:"routeId,omitempty"`
	CargoType           string      `bson:"cargo_type" json:"cargoType" validate:"required"`
	Description         *string     `bson:"description,omitempty" json:"description,omitempty"`
	Status              CargoStatus `bson:"status" json:"status" validate:"required,oneof=pending loaded in_transit delivered cancelled"`
	Priority            *int        `bson:"priority,omitempty" json:"priority,omitempty"`
	Quantity            *int        `bson:"quantity,omitempty" json:"quantity,omitempty" validate:"omitempty,gte=0"`
	Weight              *float64    `bson:"weight,omitempty" json:"weight,omitempty" validate:"omitempty,gte=0"`
	Volume              *float64    `bson:"volume,omitempty" json:"volume,omitempty" validate:"omitempty,gte=0"`
	Value               *float64    `bson:"value,omitempty" json:"value,omitempty" validate:"omitempty,gte=0"`
	IsFragile           bool        `bson:"is_fragile" json:"isFragile"`
	IsHazardous         bool        `bson:"is_hazardous" json:"isHazardous"`
	RequiresTemperature bool        `bson:"requires_temperature" json:"requiresTemperature"`
	MinTemperature      *float64    `bson:"min_temperature,omitempty" json:"minTemperature,omitempty"`
	MaxTemperature      *float64    `bson:"max_temperature,omitempty" json:"maxTemperature,omitempty"`
	SenderName          *string     `bson:"sender_name,omitempty" json:"senderName,omitempty"`
	SenderAddress       *string     `bson:"sender_address,omitempty" json:"senderAddress,omitempty"`
	ReceiverName        *string     `bson:"receiver_name,omitempty" json:"receiverName,omitempty"`
	ReceiverAddress     *string     `bson:"receiver_address,omitempty" json:"receiverAddress,omitempty"`
	PickupDate          *time.Time  `bson:"pickup_date,omitempty" json:"pickupDate,omitempty"`
	DeliveryDate        *time.Time  `bson:"delivery_date,omitempty" json:"deliveryDate,omitempty"`
	ActualDeliveryDate  *time.Time  `bson:"actual_delivery_date,omitempty" json:"actualDeliveryDate,omitempty"`
	Notes               *string     `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt           time.Time   `bson:"created_at" json:"createdAt"`
	UpdatedAt           time.Time   `bson:"updated_at" json:"updatedAt"`

	Route *RouteRef `bson:"-" json:"route,omitempty" validate:"-"`
}

type CargoUpdate struct {
	RouteID            *string      `bson:"route_id,omitempty" json:"routeId,omitempty"`
	Status             *CargoStatus `bson:"status,omitempty" json:"status,omitempty" validate:"omitempty,oneof=pending loaded in_transit delivered cancelled"`
	Priority           *int         `bson:"priority,omitempty" json:"priority,omitempty"`
	Weight             *float64     `bson:"weight,omitempty" json:"weight,omitempty" validate:"omitempty,gte=0"`
	Volume             *float64     `bson:"volume,omitempty" json:"volume,omitempty" validate:"omitempty,gte=0"`
	DeliveryDate       *time.Time   `bson:"delivery_date,omitempty" json:"deliveryDate,omitempty"`
	ActualDeliveryDate *time.Time   `bson:"actual_delivery_date,omitempty" json:"actualDeliveryDate,omitempty"`
	Notes              *string      `bson:"notes,omitempty" json:"notes,omitempty"`
}

// CargoCondition is one environmental sample taken inside a cargo hold.
type CargoCondition struct {
	ID             string    `bson:"_id" json:"id"`
	CargoID        string    `bson:"cargo_id" json:"cargoId" validate:"required"`
	Temperature    *float64  `bson:"temperature,omitempty" json:"temperature,omitempty"`
	Humidity       *float64  `bson:"humidity,omitempty" json:"humidity,omitempty" validate:"omitempty,gte=0,lte=100"`
	VibrationLevel *float64  `bson:"vibration_level,omitempty" json:"vibrationLevel,omitempty" validate:"omitempty,gte=0"`
	RecordedAt     time.Time `bson:"recorded_at" json:"recordedAt"`
}
