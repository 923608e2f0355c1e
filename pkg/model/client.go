package model

import "time"

type Client struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	TenantID  string    `json:"tenant_id" bson:"tenant_id" validate:"required"`
	FullName  string    `json:"full_name" bson:"full_name" validate:"required,min=2,max=100"`
	Phone     string    `json:"phone" bson:"phone" validate:"required,e164"`
	Email     string    `json:"email,omitempty" bson:"email,omitempty" validate:"omitempty,email"`
	TaxID     string    `json:"tax_id,omitempty" bson:"tax_id,omitempty" validate:"omitempty,len=11,numeric"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

type ClientUpdate struct {
	FullName *string `json:"full_name,omitempty" validate:"omitempty,min=2,max=100"`
	Phone    *string `json:"phone,omitempty"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	TaxID    *string `json:"tax_id,omitempty"`
}

type ClientSummary struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

func (c *Client) Summary() *ClientSummary {
	return &ClientSummary{ID: c.ID, FullName: c.FullName, Phone: c.Phone}
}

type ClientStatistics struct {
	TotalReservations int64   `json:"total_reservations"`
	TotalSpent        float64 `json:"total_spent"`
}

type ClientHistory struct {
	Client     *Client          `json:"client"`
	Statistics ClientStatistics `json:"statistics"`
	Upcoming   []*Reservation   `json:"upcoming"`
	History    []*Reservation   `json:"history"`
	TotalCount int64            `json:"total_count"`
	Limit      int              `json:"limit"`
	Offset     int64            `json:"offset"`
}
