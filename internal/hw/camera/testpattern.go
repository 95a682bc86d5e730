package camera

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/cjeanneret/FotoBoo/internal/debug"
)

// TestPattern is a Source that draws colour bars with a moving stripe.
// Used for development on a PC or testing, like the mock GPIO driver.
type TestPattern struct {
	settings Settings

	mu     sync.Mutex
	frame  int
	closed bool
}

// NewTestPattern creates a test-pattern source at the requested resolution.
func NewTestPattern(s Settings) *TestPattern {
	s = s.withDefaults()
	debug.Info("Using TEST PATTERN camera (%dx%d, facing %s)", s.Width, s.Height, s.FacingMode)
	return &TestPattern{settings: s}
}

var bars = []color.RGBA{
	{235, 235, 235, 255},
	{235, 235, 16, 255},
	{16, 235, 235, 255},
	{16, 235, 16, 255},
	{235, 16, 235, 255},
	{235, 16, 16, 255},
	{16, 16, 235, 255},
}

// Snapshot renders the next frame.
func (t *TestPattern) Snapshot(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrDeviceUnavailable
	}
	n := t.frame
	t.frame++
	t.mu.Unlock()

	w, h := t.settings.Width, t.settings.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	stripe := (n * 8) % w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := bars[x*len(bars)/w]
			if x >= stripe && x < stripe+4 {
				c = color.RGBA{0, 0, 0, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	debug.Trace("Camera: test pattern frame %d", n)
	return img, nil
}

// Close marks the source as released.
func (t *TestPattern) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}
