package stt

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/mockmaster-client/domain/repositories"
)

// bytesPerUtterance is three seconds of 16 kHz PCM16
const bytesPerUtterance = 3 * 16000 * 2

var defaultPhrases = []string{
	"I would start by clarifying the requirements.",
	"Let me walk through the trade-offs.",
	"I think a hash map keeps the lookup constant time.",
}

// MockSpeechToText emits a canned phrase for every few seconds of audio
type MockSpeechToText struct {
	logger  *zap.Logger
	phrases []string
	every   int
}

// NewMockSpeechToText creates a mock recognizer. With no phrases a default set is used.
func NewMockSpeechToText(logger *zap.Logger, phrases ...string) *MockSpeechToText {
	if len(phrases) == 0 {
		phrases = defaultPhrases
	}
	return &MockSpeechToText{logger: logger, phrases: phrases, every: bytesPerUtterance}
}

// InitTranscribeStreaming creates a new mock streaming session
func (s *MockSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	s.logger.Info("Initializing mock streaming transcription",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding),
		zap.String("language", config.Language))

	return &MockSpeechToTextStream{
		logger:  s.logger,
		phrases: s.phrases,
		every:   s.every,
		results: make(chan string, 16),
	}, nil
}

// MockSpeechToTextStream is a mock implementation of streaming speech recognition
type MockSpeechToTextStream struct {
	logger  *zap.Logger
	phrases []string
	every   int

	mu       sync.Mutex
	buffered int
	next     int
	ended    bool
	results  chan string
}

// Stream counts audio and emits a phrase each time enough has arrived
func (m *MockSpeechToTextStream) Stream(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ended {
		return errors.New("speech stream closed")
	}

	m.buffered += len(data)
	for m.buffered >= m.every {
		m.buffered -= m.every
		m.emit()
	}
	return nil
}

func (m *MockSpeechToTextStream) Results() <-chan string {
	return m.results
}

// End flushes a final phrase for any leftover audio and closes Results
func (m *MockSpeechToTextStream) End() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ended {
		return nil
	}
	m.ended = true
	if m.buffered > 0 {
		m.emit()
	}
	close(m.results)
	m.logger.Info("Ending mock transcription stream", zap.Int("utterances", m.next))
	return nil
}

// emit must be called with mu held. A full results buffer drops the phrase.
func (m *MockSpeechToTextStream) emit() {
	phrase := m.phrases[m.next%len(m.phrases)]
	m.next++
	select {
	case m.results <- phrase:
	default:
		m.logger.Debug("Dropping mock transcript, consumer is behind")
	}
}
