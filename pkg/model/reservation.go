package model

import (
	"encoding/json"
	"time"

	"agenda/pkg/timerange"
)

type ReservationStatus string

const (
	StatusConfirmed ReservationStatus = "CONFIRMED"
	StatusPending   ReservationStatus = "PENDING"
	StatusCancelled ReservationStatus = "CANCELLED"
)

func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusPending, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s ReservationStatus) IsTerminal() bool {
	return s == StatusCancelled
}

type Reservation struct {
	ID                      string            `json:"id,omitempty" bson:"_id,omitempty"`
	TenantID                string            `json:"tenant_id" bson:"tenant_id"`
	ResourceID              string            `json:"resource_id" bson:"resource_id"`
	ClientID                string            `json:"client_id" bson:"client_id"`
	StartTime               time.Time         `json:"start_time" bson:"start_time"`
	EndTime                 time.Time         `json:"end_time" bson:"end_time"`
	Status                  ReservationStatus `json:"status" bson:"status"`
	IsRecurring             bool              `json:"is_recurring" bson:"is_recurring"`
	RecurringGroupID        string            `json:"recurring_group_id,omitempty" bson:"recurring_group_id,omitempty"`
	ExternalCalendarEventID string            `json:"external_calendar_event_id,omitempty" bson:"external_calendar_event_id,omitempty"`
	CreatedAt               time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt               time.Time         `json:"updated_at" bson:"updated_at"`
}

func (r *Reservation) Interval() timerange.Interval {
	return timerange.Interval{Start: r.StartTime, End: r.EndTime}
}

func (r *Reservation) HasStarted(now time.Time) bool {
	return !r.StartTime.After(now)
}

// Synced reports whether the reservation is mirrored to an external calendar.
func (r *Reservation) Synced() bool {
	return r.ExternalCalendarEventID != ""
}

type ReservationCreate struct {
	ResourceID      string      `json:"resource_id" validate:"required,mongodb"`
	ClientID        string      `json:"client_id" validate:"required,mongodb"`
	StartTime       *time.Time  `json:"start_time" validate:"required"`
	DurationInHours json.Number `json:"duration_in_hours" validate:"required"`
	IsRecurring     bool        `json:"is_recurring"`
	Frequency       Frequency   `json:"frequency,omitempty" validate:"omitempty,oneof=WEEKLY MONTHLY"`
	EndDate         *time.Time  `json:"end_date,omitempty"`
}

type ReservationUpdate struct {
	StartTime       *time.Time        `json:"start_time,omitempty"`
	DurationInHours *json.Number      `json:"duration_in_hours,omitempty"`
	Status          ReservationStatus `json:"status,omitempty" validate:"omitempty,oneof=CONFIRMED PENDING CANCELLED"`
}

func (u *ReservationUpdate) ChangesTime() bool {
	return u.StartTime != nil || u.DurationInHours != nil
}

type ReservationFilter struct {
	ResourceID string
	ClientID   string
	Status     ReservationStatus
	From       *time.Time
	To         *time.Time
}

type CancelMultipleRequest struct {
	ReservationIDs []string `json:"reservation_ids" validate:"required,min=1,max=500,dive,required"`
}

// ReservationDetails is the read model returned by the API: the reservation
// plus short summaries of the resource and the client it references.
type ReservationDetails struct {
	*Reservation
	Resource *ResourceSummary `json:"resource,omitempty"`
	Client   *ClientSummary   `json:"client,omitempty"`
}

type SkippedOccurrence struct {
	StartTime                time.Time `json:"start_time"`
	EndTime                  time.Time `json:"end_time"`
	ConflictingReservationID string    `json:"conflicting_reservation_id"`
}

type RecurringCreateResult struct {
	Message          string              `json:"message"`
	RecurringGroupID string              `json:"recurring_group_id"`
	Count            int                 `json:"count"`
	Skipped          []SkippedOccurrence `json:"skipped,omitempty"`
}

type CancelResult struct {
	Message             string   `json:"message"`
	ReservationID       string   `json:"reservation_id,omitempty"`
	CancelledCount      int64    `json:"cancelled_count"`
	AlreadyCancelledIDs []string `json:"already_cancelled_ids,omitempty"`
}
