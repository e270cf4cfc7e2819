package devices

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	"github.com/satriahrh/mockmaster-client/domain"
	"github.com/satriahrh/mockmaster-client/domain/repositories"
)

// ImageCamera serves a still JPEG or PNG file as a camera feed
type ImageCamera struct {
	Path string
}

var _ repositories.Camera = (*ImageCamera)(nil)

// Open decodes the image. Constraints are ignored; the sampler scales frames itself.
func (c *ImageCamera) Open(ctx context.Context, vc repositories.VideoConstraints) (repositories.CameraStream, error) {
	if c.Path == "" {
		return nil, fmt.Errorf("%w: no camera source configured", domain.ErrDeviceUnavailable)
	}
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, deviceError("camera", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: camera: %v", domain.ErrDeviceUnavailable, err)
	}
	return &stillStream{img: img}, nil
}

type stillStream struct {
	mu  sync.Mutex
	img image.Image
}

func (s *stillStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return nil, domain.ErrDeviceUnavailable
	}
	return s.img, nil
}

func (s *stillStream) Stop() {
	s.mu.Lock()
	s.img = nil
	s.mu.Unlock()
}
