package repositories

import "context"

// SpeechToText abstracts speech recognition services
type SpeechToText interface {
	// InitTranscribeStreaming opens a continuous recognition stream
	InitTranscribeStreaming(ctx context.Context, config AudioConfig) (SpeechToTextStreaming, error)
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

// SpeechToTextStreaming receives raw PCM and emits one string per finished utterance
type SpeechToTextStreaming interface {
	Stream(data []byte) error
	// Results is closed once the stream ends
	Results() <-chan string
	End() error
}
