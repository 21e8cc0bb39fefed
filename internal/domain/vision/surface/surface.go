package surface

import (
	"bytes"
	"image"
	"sync"

	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"orate-server-go/internal/domain/vision/inter"
	"orate-server-go/internal/platform/errors"
)

// Surface decodes encoded client frames (jpeg, png or webp) and scales them
// to a fixed analysis resolution. It implements inter.Surface.
type Surface struct {
	width  int
	height int

	mu   sync.Mutex
	rgba *image.RGBA
}

// New creates a surface with the given analysis resolution.
func New(width, height int) (*Surface, error) {
	const op = "surface.New"

	if width <= 0 || height <= 0 {
		return nil, errors.New(errors.KindVision, op, "invalid surface resolution")
	}
	return &Surface{width: width, height: height}, nil
}

// Draw decodes the frame and scales it onto the surface.
func (s *Surface) Draw(frame inter.Frame) error {
	const op = "surface.Draw"

	if len(frame) == 0 {
		return errors.New(errors.KindVision, op, "empty frame")
	}

	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return errors.Wrap(errors.KindVision, op, "decode frame", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	s.mu.Lock()
	s.rgba = dst
	s.mu.Unlock()
	return nil
}

// Pixels returns the flat RGBA buffer of the last drawn frame. The buffer is
// valid until the next Draw.
func (s *Surface) Pixels() (inter.PixelBuffer, error) {
	const op = "surface.Pixels"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rgba == nil {
		return inter.PixelBuffer{}, errors.New(errors.KindVision, op, "no frame drawn")
	}
	return inter.PixelBuffer{
		Width:  s.width,
		Height: s.height,
		Data:   s.rgba.Pix,
	}, nil
}
