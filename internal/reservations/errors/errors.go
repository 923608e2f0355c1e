package errors

import "errors"

var (
	ErrNotFound = errors.New("reservation not found")

	ErrInvalidID = errors.New("invalid reservation ID format")

	ErrGroupNotFound = errors.New("recurring group not found")

	ErrLockHeld = errors.New("resource is locked by another request")

	ErrLockLost = errors.New("reservation lock was taken over")
)
