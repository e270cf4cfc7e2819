package devices

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/mockmaster-client/domain"
	"github.com/satriahrh/mockmaster-client/domain/repositories"
	"github.com/satriahrh/mockmaster-client/internal/audio"
)

func writePCM(t *testing.T, samples []int16) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mic.pcm")
	if err := os.WriteFile(path, audio.EncodePCM16LE(samples), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestFileMicrophoneFramesFile(t *testing.T) {
	path := writePCM(t, []int16{0, 16384, -16384, 32767, 0})
	mic := &FileMicrophone{Path: path, SampleRate: 100, FrameDuration: 20 * time.Millisecond, Logger: zaptest.NewLogger(t)}

	stream, err := mic.Open(context.Background(), repositories.AudioConstraints{ChannelCount: 1})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer stream.Stop()

	if stream.SampleRate() != 100 {
		t.Errorf("Expected rate 100, got %d", stream.SampleRate())
	}

	var lens []int
	var first []float32
	for {
		frame, err := stream.Read(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if first == nil {
			first = frame
		}
		lens = append(lens, len(frame))
	}

	if len(lens) != 3 || lens[0] != 2 || lens[1] != 2 || lens[2] != 1 {
		t.Errorf("Expected frames of 2,2,1 samples, got %v", lens)
	}
	if first[1] != 0.5 {
		t.Errorf("Expected 0.5, got %f", first[1])
	}
}

func TestFileMicrophoneLoopAndStop(t *testing.T) {
	path := writePCM(t, []int16{1, 2})
	mic := &FileMicrophone{Path: path, SampleRate: 100, FrameDuration: 20 * time.Millisecond, Loop: true}

	stream, err := mic.Open(context.Background(), repositories.AudioConstraints{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := stream.Read(context.Background()); err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
	}

	stream.Stop()
	stream.Stop()
	if _, err := stream.Read(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("Expected EOF after stop, got %v", err)
	}
}

func TestFileMicrophoneSilence(t *testing.T) {
	mic := &FileMicrophone{SampleRate: 48000}
	stream, err := mic.Open(context.Background(), repositories.AudioConstraints{ChannelCount: 1})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer stream.Stop()

	frame, err := stream.Read(context.Background())
	if err != nil || len(frame) != 960 {
		t.Errorf("Expected a 20ms silent frame, got %d samples, %v", len(frame), err)
	}
}

func TestFileMicrophoneRealtimeHonoursContext(t *testing.T) {
	mic := &FileMicrophone{SampleRate: 48000, FrameDuration: time.Hour, Realtime: true}
	stream, _ := mic.Open(context.Background(), repositories.AudioConstraints{})
	defer stream.Stop()

	// first frame is immediate
	if _, err := stream.Read(context.Background()); err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := stream.Read(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestFileMicrophoneErrors(t *testing.T) {
	tests := []struct {
		name string
		mic  *FileMicrophone
		c    repositories.AudioConstraints
	}{
		{name: "missing file", mic: &FileMicrophone{Path: filepath.Join(t.TempDir(), "nope.pcm"), SampleRate: 16000}},
		{name: "bad rate", mic: &FileMicrophone{}},
		{name: "stereo", mic: &FileMicrophone{SampleRate: 16000}, c: repositories.AudioConstraints{ChannelCount: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.mic.Open(context.Background(), tt.c)
			if !errors.Is(err, domain.ErrDeviceUnavailable) {
				t.Errorf("Expected ErrDeviceUnavailable, got %v", err)
			}
		})
	}
}

func TestFileSpeakerWritesPCM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "speaker.pcm")
	speaker, err := NewFileSpeaker(path, false, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewFileSpeaker failed: %v", err)
	}

	if err := speaker.Play(context.Background(), []float32{0, 0.5, -1}, 24000); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if err := speaker.Play(context.Background(), []float32{2}, 24000); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if err := speaker.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	raw, _ := os.ReadFile(path)
	pcm, err := audio.DecodePCM16LE(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := []int16{0, 16384, -32768, 32767}
	if len(pcm) != len(want) {
		t.Fatalf("Expected %v, got %v", want, pcm)
	}
	for i := range want {
		if pcm[i] != want[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, want[i], pcm[i])
		}
	}

	if err := speaker.Play(context.Background(), []float32{0}, 24000); err == nil {
		t.Error("Expected Play after Close to fail")
	}
}

func TestFileSpeakerRealtimeBlocks(t *testing.T) {
	speaker, err := NewFileSpeaker(filepath.Join(t.TempDir(), "s.pcm"), true, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewFileSpeaker failed: %v", err)
	}
	defer speaker.Close()

	start := time.Now()
	// 1200 samples at 24kHz is 50ms
	if err := speaker.Play(context.Background(), make([]float32, 1200), 24000); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Expected Play to block for the audio duration, took %s", elapsed)
	}
	if speaker.Played() != 50*time.Millisecond {
		t.Errorf("Expected 50ms played, got %s", speaker.Played())
	}
}

func TestImageCamera(t *testing.T) {
	path := filepath.Join(t.TempDir(), "face.png")
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	f, _ := os.Create(path)
	png.Encode(f, img)
	f.Close()

	cam := &ImageCamera{Path: path}
	stream, err := cam.Open(context.Background(), repositories.VideoConstraints{FacingMode: "user", Width: 640, Height: 480})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	frame, err := stream.Frame()
	if err != nil || frame.Bounds().Dx() != 32 {
		t.Errorf("Unexpected frame %v %v", frame, err)
	}

	stream.Stop()
	if _, err := stream.Frame(); !errors.Is(err, domain.ErrDeviceUnavailable) {
		t.Errorf("Expected ErrDeviceUnavailable after stop, got %v", err)
	}
}

func TestImageCameraErrors(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.png")
	os.WriteFile(bad, []byte("not an image"), 0o644)

	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.png"), bad} {
		if _, err := (&ImageCamera{Path: path}).Open(context.Background(), repositories.VideoConstraints{}); !errors.Is(err, domain.ErrDeviceUnavailable) {
			t.Errorf("Expected ErrDeviceUnavailable for %q, got %v", path, err)
		}
	}
}
