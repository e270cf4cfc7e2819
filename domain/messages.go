package domain

import (
	"encoding/json"
	"fmt"

	"github.com/satriahrh/mockmaster-client/domain/entities"
)

// MessageType is the "type" tag carried by every JSON frame on the interview socket
type MessageType string

// Inbound message types (server to client)
const (
	MessageTypeStatus       MessageType = "status"
	MessageTypeReady        MessageType = "ready"
	MessageTypeAudio        MessageType = "audio"
	MessageTypeTranscript   MessageType = "transcript"
	MessageTypeTurnComplete MessageType = "turn_complete"
	MessageTypeEmotion      MessageType = "emotion"
	MessageTypeError        MessageType = "error"
)

// Outbound message types (client to server)
const (
	MessageTypeFrame            MessageType = "frame"
	MessageTypePlaybackComplete MessageType = "playback_complete"
	MessageTypeEnd              MessageType = "end"
	MessageTypeCodeShare        MessageType = "code_share"
	MessageTypeCodeRunResult    MessageType = "code_run_result"
)

// InboundMessage is the union of every server to client frame.
// Only the fields relevant to Type are populated.
type InboundMessage struct {
	Type    MessageType     `json:"type"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Role    entities.Role   `json:"role,omitempty"`
	Content string          `json:"content,omitempty"`
	Partial bool            `json:"partial,omitempty"`
}

// AudioData returns the base64 PCM payload of an audio message
func (m *InboundMessage) AudioData() (string, error) {
	var s string
	if err := json.Unmarshal(m.Data, &s); err != nil {
		return "", fmt.Errorf("audio data must be a base64 string: %w", err)
	}
	return s, nil
}

// Emotion decodes the payload of an emotion message
func (m *InboundMessage) Emotion() (entities.EmotionSample, error) {
	var e entities.EmotionSample
	if err := json.Unmarshal(m.Data, &e); err != nil {
		return e, fmt.Errorf("emotion data: %w", err)
	}
	return e, nil
}

// ControlMessage is an outbound frame with no payload (playback_complete, end)
type ControlMessage struct {
	Type MessageType `json:"type"`
}

// FrameMessage carries one base64 JPEG camera sample
type FrameMessage struct {
	Type MessageType `json:"type"`
	Data string      `json:"data"`
}

// TranscriptMessage carries a locally recognized candidate utterance
type TranscriptMessage struct {
	Type    MessageType   `json:"type"`
	Role    entities.Role `json:"role"`
	Content string        `json:"content"`
}

// CodeShareMessage shares the editor contents with the interviewer
type CodeShareMessage struct {
	Type     MessageType `json:"type"`
	Code     string      `json:"code"`
	Language string      `json:"language"`
}

// CodeRunResultMessage forwards a sandbox run to the interviewer
type CodeRunResultMessage struct {
	Type          MessageType `json:"type"`
	Code          string      `json:"code"`
	Language      string      `json:"language"`
	Stdout        string      `json:"stdout"`
	Stderr        string      `json:"stderr"`
	CompileOutput string      `json:"compile_output"`
	Status        string      `json:"status"`
}

// NewControlMessage builds a payload-less frame
func NewControlMessage(t MessageType) ControlMessage {
	return ControlMessage{Type: t}
}

// NewCodeRunResultMessage builds the auto-share frame for a sandbox result
func NewCodeRunResultMessage(code, language string, r *entities.CodeRunResult) CodeRunResultMessage {
	return CodeRunResultMessage{
		Type:          MessageTypeCodeRunResult,
		Code:          code,
		Language:      language,
		Stdout:        r.Stdout,
		Stderr:        r.Stderr,
		CompileOutput: r.CompileOutput,
		Status:        r.Status,
	}
}
