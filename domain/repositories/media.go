package repositories

import (
	"context"
	"image"
)

// AudioConstraints are the capture hints passed to a microphone
type AudioConstraints struct {
	ChannelCount     int
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// Microphone grants access to an audio input device
type Microphone interface {
	Open(ctx context.Context, c AudioConstraints) (MicStream, error)
}

// MicStream yields mono float32 frames in [-1, 1] at the device's native rate
type MicStream interface {
	SampleRate() int
	// Read blocks until the next frame is available. io.EOF means the device is exhausted.
	Read(ctx context.Context) ([]float32, error)
	Stop()
}

// Speaker plays mono float32 audio
type Speaker interface {
	// Play blocks until the buffer has finished playing
	Play(ctx context.Context, samples []float32, sampleRate int) error
}

// VideoConstraints are the capture hints passed to a camera
type VideoConstraints struct {
	FacingMode string
	Width      int
	Height     int
}

// Camera grants access to a video input device
type Camera interface {
	Open(ctx context.Context, c VideoConstraints) (CameraStream, error)
}

// CameraStream exposes the current frame of a live camera feed
type CameraStream interface {
	Frame() (image.Image, error)
	Stop()
}
