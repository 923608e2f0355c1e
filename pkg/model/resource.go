package model

import "time"

type ResourceStatus string

const (
	ResourceAvailable   ResourceStatus = "AVAILABLE"
	ResourceOccupied    ResourceStatus = "OCCUPIED"
	ResourceMaintenance ResourceStatus = "MAINTENANCE"
)

type Resource struct {
	ID           string         `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	TenantID     string         `json:"tenant_id" bson:"tenant_id" validate:"required"`
	Name         string         `json:"name" bson:"name" validate:"required,min=3,max=100"`
	Description  string         `json:"description,omitempty" bson:"description" validate:"max=500"`
	PricePerHour float64        `json:"price_per_hour" bson:"price_per_hour" validate:"gte=0"`
	Status       ResourceStatus `json:"status" bson:"status" validate:"required,oneof=AVAILABLE OCCUPIED MAINTENANCE"`
	CreatedAt    time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" bson:"updated_at"`
}

type ResourceUpdate struct {
	Name         *string        `json:"name,omitempty" validate:"omitempty,min=3,max=100"`
	Description  *string        `json:"description,omitempty" validate:"omitempty,max=500"`
	PricePerHour *float64       `json:"price_per_hour,omitempty" validate:"omitempty,gte=0"`
	Status       ResourceStatus `json:"status,omitempty" validate:"omitempty,oneof=AVAILABLE OCCUPIED MAINTENANCE"`
}

type ResourceSummary struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	PricePerHour float64 `json:"price_per_hour"`
}

func (r *Resource) Summary() *ResourceSummary {
	return &ResourceSummary{ID: r.ID, Name: r.Name, PricePerHour: r.PricePerHour}
}
