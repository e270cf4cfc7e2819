// Package frames samples still images from the camera for emotion analysis.
package frames

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/satriahrh/mockmaster-client/domain"
	"github.com/satriahrh/mockmaster-client/domain/repositories"
	"github.com/satriahrh/mockmaster-client/internal/metrics"
)

const (
	CanvasWidth     = 640
	CanvasHeight    = 480
	DefaultInterval = 5 * time.Second
	DefaultQuality  = 60
)

// DefaultConstraints request the front camera at canvas resolution
var DefaultConstraints = repositories.VideoConstraints{
	FacingMode: "user",
	Width:      CanvasWidth,
	Height:     CanvasHeight,
}

// SendFunc delivers one frame message to the interview socket
type SendFunc func(msg domain.FrameMessage) error

// Options tunes the sampler
type Options struct {
	Interval time.Duration
	Quality  int
}

// Sampler owns the camera stream and the off-screen canvas. It is toggled
// independently of the call state.
type Sampler struct {
	camera  repositories.Camera
	send    SendFunc
	logger  *zap.Logger
	options Options

	mu     sync.Mutex
	stream repositories.CameraStream
	cancel context.CancelFunc
	done   chan struct{}

	canvas *image.RGBA
	buf    bytes.Buffer
}

// NewSampler creates a disabled sampler
func NewSampler(camera repositories.Camera, send SendFunc, logger *zap.Logger, opts Options) *Sampler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}
	return &Sampler{
		camera:  camera,
		send:    send,
		logger:  logger,
		options: opts,
		canvas:  image.NewRGBA(image.Rect(0, 0, CanvasWidth, CanvasHeight)),
	}
}

// Enable acquires the camera and starts the capture ticker. Enabling an
// enabled sampler is a no-op. On error the sampler stays disabled.
func (s *Sampler) Enable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		return nil
	}

	stream, err := s.camera.Open(ctx, DefaultConstraints)
	if err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}

	tickCtx, cancel := context.WithCancel(context.Background())
	s.stream = stream
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(tickCtx, s.done)

	s.logger.Info("Camera enabled", zap.Duration("interval", s.options.Interval))
	return nil
}

// Disable stops the ticker and releases the camera immediately. Safe to call when disabled.
func (s *Sampler) Disable() {
	s.mu.Lock()
	stream, cancel, done := s.stream, s.cancel, s.done
	s.stream, s.cancel, s.done = nil, nil, nil
	s.mu.Unlock()

	if stream == nil {
		return
	}
	cancel()
	<-done
	stream.Stop()
	s.logger.Info("Camera disabled")
}

// Enabled reports whether the camera is held
func (s *Sampler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

func (s *Sampler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.options.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.CaptureOnce(); err != nil {
				metrics.CameraFramesTotal.WithLabelValues("skipped").Inc()
				s.logger.Debug("Skipping camera frame", zap.Error(err))
			}
		}
	}
}

// CaptureOnce draws the current frame onto the canvas, encodes it as JPEG and sends it
func (s *Sampler) CaptureOnce() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return domain.ErrDeviceUnavailable
	}

	frame, err := s.stream.Frame()
	if err != nil {
		return fmt.Errorf("failed to read camera frame: %w", err)
	}
	if frame == nil || frame.Bounds().Empty() {
		return fmt.Errorf("camera frame not ready")
	}

	draw.ApproxBiLinear.Scale(s.canvas, s.canvas.Bounds(), frame, frame.Bounds(), draw.Src, nil)

	s.buf.Reset()
	if err := jpeg.Encode(&s.buf, s.canvas, &jpeg.Options{Quality: s.options.Quality}); err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	msg := domain.FrameMessage{
		Type: domain.MessageTypeFrame,
		Data: base64.StdEncoding.EncodeToString(s.buf.Bytes()),
	}
	if err := s.send(msg); err != nil {
		return fmt.Errorf("failed to send frame: %w", err)
	}

	metrics.CameraFramesTotal.WithLabelValues("sent").Inc()
	return nil
}
