package model

import "time"

type Frequency string

const (
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
)

func (f Frequency) Valid() bool {
	return f == FrequencyWeekly || f == FrequencyMonthly
}

type RecurringGroup struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty"`
	TenantID   string    `json:"tenant_id" bson:"tenant_id"`
	ResourceID string    `json:"resource_id" bson:"resource_id"`
	ClientID   string    `json:"client_id" bson:"client_id"`
	Frequency  Frequency `json:"frequency" bson:"frequency"`
	// DayOfWeek is recorded for weekly series only. It describes the series
	// and is never used to derive occurrence dates.
	DayOfWeek *int      `json:"day_of_week,omitempty" bson:"day_of_week,omitempty"`
	StartDate time.Time `json:"start_date" bson:"start_date"`
	EndDate   time.Time `json:"end_date" bson:"end_date"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
