package api

import "github.com/satriahrh/mockmaster-client/domain/entities"

// CameraRequest toggles the camera sampler
type CameraRequest struct {
	Enabled bool `json:"enabled"`
}

// MuteResponse reports the mute flag after a toggle
type MuteResponse struct {
	Muted bool `json:"muted"`
}

// CodeShareRequest is the editor contents to send to the interviewer
type CodeShareRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// CodeRunRequest runs code in the sandbox, optionally sharing the result
type CodeRunRequest struct {
	entities.CodeRunRequest
	AutoShare bool `json:"auto_share"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
