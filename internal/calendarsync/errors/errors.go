package errors

import "errors"

var (
	ErrCredentialsNotFound = errors.New("calendar credentials not found")
	ErrChannelNotFound     = errors.New("calendar channel not found")
	ErrNotConnected        = errors.New("calendar integration not connected")
	ErrChannelToken        = errors.New("calendar channel token mismatch")
	ErrUnknownOperation    = errors.New("unknown sync operation")
)
