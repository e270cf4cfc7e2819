package devices

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/mockmaster-client/domain/repositories"
	"github.com/satriahrh/mockmaster-client/internal/audio"
)

// FileSpeaker writes played audio to a raw PCM16 little-endian file
type FileSpeaker struct {
	// Realtime makes Play block for the duration of the audio
	Realtime bool

	mu     sync.Mutex
	file   *os.File
	path   string
	logger *zap.Logger
	played time.Duration
}

var _ repositories.Speaker = (*FileSpeaker)(nil)

// NewFileSpeaker creates the output file, and its directory, truncating any previous content
func NewFileSpeaker(path string, realtime bool, logger *zap.Logger) (*FileSpeaker, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, deviceError("speaker", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, deviceError("speaker", err)
	}
	return &FileSpeaker{Realtime: realtime, file: f, path: path, logger: logger}, nil
}

// Play appends the samples to the file
func (s *FileSpeaker) Play(ctx context.Context, samples []float32, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	pcm := make([]int16, len(samples))
	for i, v := range samples {
		pcm[i] = audio.FloatToPCM16(v)
	}
	duration := time.Duration(len(samples)) * time.Second / time.Duration(sampleRate)

	s.mu.Lock()
	if s.file == nil {
		s.mu.Unlock()
		return fmt.Errorf("speaker closed")
	}
	_, err := s.file.Write(audio.EncodePCM16LE(pcm))
	s.played += duration
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to write audio: %w", err)
	}

	if s.Realtime {
		t := time.NewTimer(duration)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Played returns the total duration written so far
func (s *FileSpeaker) Played() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.played
}

// Close flushes and closes the output file
func (s *FileSpeaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if s.logger != nil {
		s.logger.Info("Speaker output closed", zap.String("path", s.path), zap.Duration("played", s.played))
	}
	return err
}
