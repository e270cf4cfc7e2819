// Package devices provides file-backed microphone, speaker and camera
// implementations for running sessions headless.
package devices

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/mockmaster-client/domain"
	"github.com/satriahrh/mockmaster-client/domain/repositories"
	"github.com/satriahrh/mockmaster-client/internal/audio"
)

const defaultFrameDuration = 20 * time.Millisecond

// FileMicrophone replays a raw mono PCM16 little-endian file as a live
// microphone. An empty Path yields silence until stopped.
type FileMicrophone struct {
	Path       string
	SampleRate int
	// FrameDuration is the length of each frame; 20ms by default
	FrameDuration time.Duration
	// Realtime paces frames at wall-clock speed
	Realtime bool
	// Loop restarts the file instead of returning io.EOF
	Loop bool

	Logger *zap.Logger
}

var _ repositories.Microphone = (*FileMicrophone)(nil)

// Open loads the file and returns a stream over it
func (m *FileMicrophone) Open(ctx context.Context, c repositories.AudioConstraints) (repositories.MicStream, error) {
	if m.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid sample rate %d", domain.ErrDeviceUnavailable, m.SampleRate)
	}
	if c.ChannelCount > 1 {
		return nil, fmt.Errorf("%w: only mono capture is supported", domain.ErrDeviceUnavailable)
	}

	var samples []float32
	if m.Path != "" {
		raw, err := os.ReadFile(m.Path)
		if err != nil {
			return nil, deviceError("microphone", err)
		}
		pcm, err := audio.DecodePCM16LE(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)
		}
		samples = make([]float32, len(pcm))
		for i, s := range pcm {
			samples[i] = float32(s) / 32768
		}
	}

	frameDuration := m.FrameDuration
	if frameDuration <= 0 {
		frameDuration = defaultFrameDuration
	}
	frameLen := int(int64(m.SampleRate) * int64(frameDuration) / int64(time.Second))
	if frameLen < 1 {
		frameLen = 1
	}

	logger := m.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("Microphone opened",
		zap.String("path", m.Path),
		zap.Int("sampleRate", m.SampleRate),
		zap.Int("samples", len(samples)),
		zap.Bool("echoCancellation", c.EchoCancellation),
		zap.Bool("noiseSuppression", c.NoiseSuppression),
		zap.Bool("autoGainControl", c.AutoGainControl))

	return &fileMicStream{
		samples:  samples,
		rate:     m.SampleRate,
		frameLen: frameLen,
		interval: frameDuration,
		realtime: m.Realtime,
		loop:     m.Loop,
		silence:  m.Path == "",
		stopped:  make(chan struct{}),
	}, nil
}

type fileMicStream struct {
	samples  []float32
	pos      int
	rate     int
	frameLen int
	interval time.Duration
	realtime bool
	loop     bool
	silence  bool
	next     time.Time

	stopOnce sync.Once
	stopped  chan struct{}
}

func (s *fileMicStream) SampleRate() int { return s.rate }

func (s *fileMicStream) Read(ctx context.Context) ([]float32, error) {
	if s.realtime {
		if err := s.pace(ctx); err != nil {
			return nil, err
		}
	}

	select {
	case <-s.stopped:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if s.silence {
		return make([]float32, s.frameLen), nil
	}

	if s.pos >= len(s.samples) {
		if !s.loop || len(s.samples) == 0 {
			return nil, io.EOF
		}
		s.pos = 0
	}

	end := s.pos + s.frameLen
	if end > len(s.samples) {
		end = len(s.samples)
	}
	frame := make([]float32, end-s.pos)
	copy(frame, s.samples[s.pos:end])
	s.pos = end
	return frame, nil
}

// pace waits until the next frame is due
func (s *fileMicStream) pace(ctx context.Context) error {
	now := time.Now()
	if s.next.IsZero() {
		s.next = now
	}
	wait := s.next.Sub(now)
	s.next = s.next.Add(s.interval)
	if wait <= 0 {
		return nil
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-s.stopped:
		return io.EOF
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *fileMicStream) Stop() {
	s.stopOnce.Do(func() { close(s.stopped) })
}

// deviceError maps file errors to device errors
func deviceError(device string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %s: %v", domain.ErrPermissionDenied, device, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrDeviceUnavailable, device, err)
}
