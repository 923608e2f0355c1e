package model

// TabStatus mirrors the billing collaborator's tab states. The scheduling
// core only reads open tabs and deletes tabs through cascades.
type TabStatus string

const (
	TabOpen      TabStatus = "OPEN"
	TabPaid      TabStatus = "PAID"
	TabCancelled TabStatus = "CANCELLED"
)

type Tab struct {
	ID            string    `json:"id,omitempty" bson:"_id,omitempty"`
	TenantID      string    `json:"tenant_id" bson:"tenant_id"`
	ClientID      string    `json:"client_id" bson:"client_id"`
	ReservationID string    `json:"reservation_id,omitempty" bson:"reservation_id,omitempty"`
	Status        TabStatus `json:"status" bson:"status"`
	Total         float64   `json:"total" bson:"total"`
}
