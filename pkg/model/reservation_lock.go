package model

import "time"

// ReservationLock is an advisory lock serializing writes that change the
// occupied intervals of one resource. Owner identifies the holder so a
// release never deletes a lock taken over by someone else.
type ReservationLock struct {
	ID          string    `bson:"_id" json:"id"`
	Owner       string    `bson:"owner" json:"owner"`
	ExpiresAt   time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	ConfirmedAt time.Time `bson:"confirmed_at,omitempty" json:"confirmed_at,omitempty"`
}
