package session

import (
	"fmt"

	"github.com/satriahrh/mockmaster-client/domain/entities"
	"github.com/satriahrh/mockmaster-client/internal/audio"
)

// Screen is the page a front end should render for a state
type Screen string

const (
	ScreenConnecting Screen = "connecting"
	ScreenLive       Screen = "live"
	ScreenEnded      Screen = "ended"
	ScreenError      Screen = "error"
)

// ScreenFor maps a connection state to the screen to render
func ScreenFor(s entities.ConnectionState) Screen {
	switch s {
	case entities.StateReady, entities.StateActive:
		return ScreenLive
	case entities.StateEnded:
		return ScreenEnded
	case entities.StateError:
		return ScreenError
	default:
		return ScreenConnecting
	}
}

// View is a render-ready snapshot of a session
type View struct {
	SessionID       string                     `json:"session_id"`
	Title           string                     `json:"title"`
	TopicName       string                     `json:"topic_name,omitempty"`
	JobTitle        string                     `json:"job_title,omitempty"`
	DurationSeconds int                        `json:"duration_seconds,omitempty"`
	State           entities.ConnectionState   `json:"state"`
	Screen          Screen                     `json:"screen"`
	StatusText      string                     `json:"status_text,omitempty"`
	Error           string                     `json:"error,omitempty"`
	MicBlocked      bool                       `json:"mic_blocked"`
	Muted           bool                       `json:"muted"`
	CameraEnabled   bool                       `json:"camera_enabled"`
	AISpeaking      bool                       `json:"ai_speaking"`
	ElapsedSeconds  int                        `json:"elapsed_seconds"`
	Elapsed         string                     `json:"elapsed"`
	Transcript      []entities.TranscriptEntry `json:"transcript"`
	Emotion         *entities.EmotionSample    `json:"emotion,omitempty"`
	EmotionEmoji    string                     `json:"emotion_emoji,omitempty"`
	Feedback        *entities.Feedback         `json:"feedback,omitempty"`
	LoadingFeedback bool                       `json:"loading_feedback"`
	LastCodeRun     *entities.CodeRunResult    `json:"last_code_run,omitempty"`
	Mic             audio.CaptureStats         `json:"mic"`
}

// FormatElapsed renders seconds as zero-padded mm:ss
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
