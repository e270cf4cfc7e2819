package websocket

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/satriahrh/mockmaster-client/domain"
)

// ParseInbound decodes and validates one text frame from the interview backend
func ParseInbound(data []byte) (*domain.InboundMessage, error) {
	var msg domain.InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON format: %v", domain.ErrInvalidMessage, err)
	}

	if msg.Type == "" {
		return nil, fmt.Errorf("%w: missing type field", domain.ErrInvalidMessage)
	}

	switch msg.Type {
	case domain.MessageTypeStatus, domain.MessageTypeReady, domain.MessageTypeError:
		return &msg, nil

	case domain.MessageTypeAudio:
		if err := validateAudio(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case domain.MessageTypeTranscript:
		if !msg.Role.Valid() {
			return nil, fmt.Errorf("%w: transcript role must be one of: interviewer, candidate", domain.ErrInvalidMessage)
		}
		return &msg, nil

	case domain.MessageTypeTurnComplete:
		if !msg.Role.Valid() {
			return nil, fmt.Errorf("%w: turn_complete role must be one of: interviewer, candidate", domain.ErrInvalidMessage)
		}
		return &msg, nil

	case domain.MessageTypeEmotion:
		if err := validateEmotion(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	default:
		return &msg, fmt.Errorf("%w: %s", domain.ErrUnknownMessageType, msg.Type)
	}
}

func validateAudio(msg *domain.InboundMessage) error {
	if len(msg.Data) == 0 || bytes.Equal(msg.Data, []byte("null")) {
		return fmt.Errorf("%w: audio data is required", domain.ErrInvalidMessage)
	}
	s, err := msg.AudioData()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
	}
	if s == "" {
		return fmt.Errorf("%w: audio data is required", domain.ErrInvalidMessage)
	}
	return nil
}

func validateEmotion(msg *domain.InboundMessage) error {
	trimmed := bytes.TrimSpace(msg.Data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: emotion data must be an object", domain.ErrInvalidMessage)
	}
	if _, err := msg.Emotion(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
	}
	return nil
}
