package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/satriahrh/mockmaster-client/domain/repositories"
	"github.com/satriahrh/mockmaster-client/internal/metrics"
)

// FrameSink receives one 16 kHz PCM16 LE frame
type FrameSink func(pcm []byte) error

// DefaultConstraints are the microphone hints requested for an interview
var DefaultConstraints = repositories.AudioConstraints{
	ChannelCount:     1,
	EchoCancellation: true,
	NoiseSuppression: true,
	AutoGainControl:  true,
}

// CaptureStats counts what happened to captured frames
type CaptureStats struct {
	Captured     uint64 `json:"captured"`
	Sent         uint64 `json:"sent"`
	DroppedMuted uint64 `json:"dropped_muted"`
	SendErrors   uint64 `json:"send_errors"`
}

// Capture owns the microphone stream for one session. It resamples every frame
// to 16 kHz and hands it to the sink unless muted. Muting never stops the device.
type Capture struct {
	mic    repositories.Microphone
	sink   FrameSink
	taps   []FrameSink
	logger *zap.Logger

	muted atomic.Bool

	mu      sync.Mutex
	started bool
	stopped bool
	stream  repositories.MicStream
	cancel  context.CancelFunc
	done    chan struct{}

	stopOnce sync.Once

	captured     atomic.Uint64
	sent         atomic.Uint64
	droppedMuted atomic.Uint64
	sendErrors   atomic.Uint64
}

// NewCapture creates a capture pipeline. Taps receive the same frames as sink
// and are also gated by mute.
func NewCapture(mic repositories.Microphone, sink FrameSink, logger *zap.Logger, taps ...FrameSink) *Capture {
	return &Capture{
		mic:    mic,
		sink:   sink,
		taps:   taps,
		logger: logger,
	}
}

// Start acquires the microphone and begins streaming. It may be called only once.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return errors.New("capture stopped")
	}
	if c.started {
		return errors.New("capture already started")
	}
	c.started = true

	stream, err := c.mic.Open(ctx, DefaultConstraints)
	if err != nil {
		return fmt.Errorf("failed to open microphone: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c.stream = stream
	c.cancel = cancel
	c.done = make(chan struct{})

	c.logger.Info("Microphone started", zap.Int("nativeSampleRate", stream.SampleRate()))

	go c.loop(loopCtx, stream, c.done)
	return nil
}

func (c *Capture) loop(ctx context.Context, stream repositories.MicStream, done chan struct{}) {
	defer close(done)

	nativeRate := stream.SampleRate()
	for {
		frame, err := stream.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				c.logger.Info("Microphone stream finished")
				return
			}
			c.logger.Warn("Microphone read failed", zap.Error(err))
			return
		}

		c.captured.Add(1)
		pcm := EncodePCM16LE(Resample(frame, nativeRate, TargetSampleRate))

		// Read fresh on every frame so toggling takes effect immediately.
		if c.muted.Load() {
			c.droppedMuted.Add(1)
			metrics.MicFramesTotal.WithLabelValues("muted").Inc()
			continue
		}

		if err := c.sink(pcm); err != nil {
			c.sendErrors.Add(1)
			metrics.MicFramesTotal.WithLabelValues("error").Inc()
			c.logger.Debug("Failed to send microphone frame", zap.Error(err))
		} else {
			c.sent.Add(1)
			metrics.MicFramesTotal.WithLabelValues("sent").Inc()
		}

		for _, tap := range c.taps {
			if err := tap(pcm); err != nil {
				c.logger.Debug("Microphone tap failed", zap.Error(err))
			}
		}
	}
}

// SetMuted gates transmission without releasing the device
func (c *Capture) SetMuted(muted bool) {
	c.muted.Store(muted)
}

// ToggleMuted flips the mute flag atomically and returns the new value
func (c *Capture) ToggleMuted() bool {
	for {
		old := c.muted.Load()
		if c.muted.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Muted reports the current mute flag
func (c *Capture) Muted() bool {
	return c.muted.Load()
}

// Running reports whether the device is held
func (c *Capture) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

// Stop releases the microphone. Safe to call any number of times, including before Start.
func (c *Capture) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		stream, cancel, done := c.stream, c.cancel, c.done
		c.stream = nil
		c.stopped = true
		c.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if stream != nil {
			stream.Stop()
		}
		if done != nil {
			<-done
		}
		if stream != nil {
			c.logger.Info("Microphone stopped",
				zap.Uint64("captured", c.captured.Load()),
				zap.Uint64("sent", c.sent.Load()))
		}
	})
}

// Stats returns a snapshot of the frame counters
func (c *Capture) Stats() CaptureStats {
	return CaptureStats{
		Captured:     c.captured.Load(),
		Sent:         c.sent.Load(),
		DroppedMuted: c.droppedMuted.Load(),
		SendErrors:   c.sendErrors.Load(),
	}
}
