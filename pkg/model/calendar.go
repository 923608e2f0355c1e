package model

import "time"

type CalendarCredential struct {
	TenantID     string    `json:"tenant_id" bson:"_id"`
	AccessToken  string    `json:"-" bson:"access_token"`
	RefreshToken string    `json:"-" bson:"refresh_token"`
	TokenType    string    `json:"token_type" bson:"token_type"`
	Scope        string    `json:"scope,omitempty" bson:"scope,omitempty"`
	Expiry       time.Time `json:"expiry" bson:"expiry"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

func (c *CalendarCredential) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && !now.Before(c.Expiry)
}

// CalendarChannel maps a push-notification channel back to the tenant that
// registered it, and holds the incremental sync cursor for that calendar.
type CalendarChannel struct {
	ID         string    `json:"channel_id" bson:"_id"`
	TenantID   string    `json:"tenant_id" bson:"tenant_id"`
	ResourceID string    `json:"resource_id" bson:"resource_id"`
	Token      string    `json:"-" bson:"token"`
	SyncToken  string    `json:"-" bson:"sync_token,omitempty"`
	Expiration time.Time `json:"expiration" bson:"expiration"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

type SyncOperation string

const (
	SyncCreate SyncOperation = "create"
	SyncUpdate SyncOperation = "update"
	SyncDelete SyncOperation = "delete"
)

// SyncJob is one outbound mirror request. It is executed inline or carried
// over Kafka to the calendar-sync worker.
type SyncJob struct {
	ID              string        `json:"id"`
	Operation       SyncOperation `json:"operation"`
	TenantID        string        `json:"tenant_id"`
	ReservationID   string        `json:"reservation_id"`
	ExternalEventID string        `json:"external_event_id,omitempty"`
	EnqueuedAt      time.Time     `json:"enqueued_at"`
}

type IntegrationStatus struct {
	Status    string     `json:"status"`
	IsExpired *bool      `json:"is_expired,omitempty"`
	Expiry    *time.Time `json:"expiry,omitempty"`
}

type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

const (
	HealthConnected    = "connected"
	HealthDisconnected = "disconnected"
	HealthError        = "error"

	IntegrationActive   = "integrated"
	IntegrationInactive = "not_integrated"
)
