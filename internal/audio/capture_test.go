package audio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/mockmaster-client/domain"
	"github.com/satriahrh/mockmaster-client/domain/repositories"
)

type fakeMic struct {
	opens   atomic.Int32
	openErr error
	stream  *fakeMicStream
}

func (m *fakeMic) Open(ctx context.Context, c repositories.AudioConstraints) (repositories.MicStream, error) {
	m.opens.Add(1)
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.stream, nil
}

type fakeMicStream struct {
	rate     int
	frames   chan []float32
	stopped  chan struct{}
	stopOnce sync.Once
	stops    atomic.Int32
}

func newFakeMicStream(rate int) *fakeMicStream {
	return &fakeMicStream{
		rate:    rate,
		frames:  make(chan []float32),
		stopped: make(chan struct{}),
	}
}

func (s *fakeMicStream) SampleRate() int { return s.rate }

func (s *fakeMicStream) Read(ctx context.Context) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.stopped:
		return nil, context.Canceled
	case f := <-s.frames:
		return f, nil
	}
}

func (s *fakeMicStream) Stop() {
	s.stops.Add(1)
	s.stopOnce.Do(func() { close(s.stopped) })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}

func TestCaptureMuteGatesTransmissionOnly(t *testing.T) {
	stream := newFakeMicStream(48000)
	mic := &fakeMic{stream: stream}

	var sent atomic.Int32
	capture := NewCapture(mic, func(pcm []byte) error {
		if len(pcm) != 2*16 {
			t.Errorf("Expected 16 resampled samples, got %d bytes", len(pcm))
		}
		sent.Add(1)
		return nil
	}, zap.NewNop())

	if err := capture.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer capture.Stop()

	frame := make([]float32, 48)
	stream.frames <- frame
	waitFor(t, func() bool { return capture.Stats().Sent == 1 })

	capture.SetMuted(true)
	if !capture.Muted() {
		t.Error("Expected capture to report muted")
	}
	stream.frames <- frame
	stream.frames <- frame
	waitFor(t, func() bool { return capture.Stats().DroppedMuted == 2 })

	if got := capture.Stats().Captured; got != 3 {
		t.Errorf("Expected 3 captured frames while muted, got %d", got)
	}
	if sent.Load() != 1 {
		t.Errorf("Expected muted frames not to be sent, got %d sends", sent.Load())
	}

	capture.SetMuted(false)
	stream.frames <- frame
	waitFor(t, func() bool { return capture.Stats().Sent == 2 })

	if mic.opens.Load() != 1 {
		t.Errorf("Expected the device to be opened once, got %d", mic.opens.Load())
	}
}

func TestCaptureTapsReceiveFrames(t *testing.T) {
	stream := newFakeMicStream(TargetSampleRate)
	mic := &fakeMic{stream: stream}

	var tapped atomic.Int32
	capture := NewCapture(mic, func([]byte) error { return nil }, zap.NewNop(), func([]byte) error {
		tapped.Add(1)
		return nil
	})
	if err := capture.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer capture.Stop()

	stream.frames <- make([]float32, 10)
	waitFor(t, func() bool { return tapped.Load() == 1 })

	capture.SetMuted(true)
	stream.frames <- make([]float32, 10)
	waitFor(t, func() bool { return capture.Stats().DroppedMuted == 1 })
	if tapped.Load() != 1 {
		t.Errorf("Expected tap to be gated by mute, got %d calls", tapped.Load())
	}
}

func TestCaptureSinkErrorsAreNotFatal(t *testing.T) {
	stream := newFakeMicStream(TargetSampleRate)
	capture := NewCapture(&fakeMic{stream: stream}, func([]byte) error {
		return domain.ErrConnectionClosed
	}, zap.NewNop())

	if err := capture.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer capture.Stop()

	stream.frames <- make([]float32, 10)
	stream.frames <- make([]float32, 10)
	waitFor(t, func() bool { return capture.Stats().SendErrors == 2 })
}

func TestCaptureStopIsIdempotent(t *testing.T) {
	stream := newFakeMicStream(TargetSampleRate)
	capture := NewCapture(&fakeMic{stream: stream}, func([]byte) error { return nil }, zap.NewNop())

	if err := capture.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	capture.Stop()
	capture.Stop()

	if stream.stops.Load() != 1 {
		t.Errorf("Expected stream to be stopped once, got %d", stream.stops.Load())
	}
	if capture.Running() {
		t.Error("Expected no device held after stop")
	}
}

func TestCaptureStartTwice(t *testing.T) {
	stream := newFakeMicStream(TargetSampleRate)
	capture := NewCapture(&fakeMic{stream: stream}, func([]byte) error { return nil }, zap.NewNop())
	defer capture.Stop()

	if err := capture.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := capture.Start(context.Background()); err == nil {
		t.Error("Expected second start to fail")
	}
}

func TestCaptureStopBeforeStart(t *testing.T) {
	capture := NewCapture(&fakeMic{stream: newFakeMicStream(TargetSampleRate)}, func([]byte) error { return nil }, zap.NewNop())
	capture.Stop()

	if err := capture.Start(context.Background()); err == nil {
		t.Error("Expected start after stop to fail")
	}
}

func TestCaptureOpenError(t *testing.T) {
	capture := NewCapture(&fakeMic{openErr: domain.ErrPermissionDenied}, func([]byte) error { return nil }, zap.NewNop())

	err := capture.Start(context.Background())
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("Expected permission error, got %v", err)
	}
	capture.Stop()
}

func TestCaptureToggleMutedConcurrently(t *testing.T) {
	capture := NewCapture(&fakeMic{stream: newFakeMicStream(TargetSampleRate)}, func([]byte) error { return nil }, zap.NewNop())

	const toggles = 100
	var muted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if capture.ToggleMuted() {
				muted.Add(1)
			}
		}()
	}
	wg.Wait()

	// every toggle observed a distinct value, so exactly half reported muted
	if muted.Load() != toggles/2 {
		t.Errorf("Expected %d toggles to report muted, got %d", toggles/2, muted.Load())
	}
	if capture.Muted() {
		t.Error("Expected an even number of toggles to leave the flag unmuted")
	}
}
