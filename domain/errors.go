package domain

import (
	"errors"

	"github.com/satriahrh/mockmaster-client/domain/entities"
)

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrInvalidMessage     = errors.New("invalid message")
	ErrNotConnected       = errors.New("not connected")
	ErrConnectionClosed   = errors.New("connection closed")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrDeviceUnavailable  = errors.New("device unavailable")
	ErrNotFound           = errors.New("not found")

	// ErrInvalidTransition is shared with the entities package so state checks can be matched from either side
	ErrInvalidTransition = entities.ErrInvalidTransition
)
