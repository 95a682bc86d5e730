package adjust

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// Frame is a decorative border composited over the rendered image.
// It is a separate layer: it never modifies the filtered pixels themselves.
type Frame string

const (
	FrameNone     Frame = "none"
	FrameClassic  Frame = "classic"
	FramePolaroid Frame = "polaroid"
	FrameFilm     Frame = "film"
	FrameGold     Frame = "gold"
)

// Frames lists every frame in display order.
var Frames = []Frame{FrameNone, FrameClassic, FramePolaroid, FrameFilm, FrameGold}

// ParseFrame validates a frame id coming from the UI.
func ParseFrame(s string) (Frame, error) {
	for _, f := range Frames {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: unknown frame %q", ErrInvalidAdjustment, s)
}

var (
	white    = color.NRGBA{255, 255, 255, 255}
	offWhite = color.NRGBA{250, 248, 240, 255}
	black    = color.NRGBA{12, 12, 12, 255}
	gold     = color.NRGBA{212, 175, 55, 255}
	darkGold = color.NRGBA{110, 84, 20, 255}
)

// Overlay draws the frame on a transparent layer of the given size.
// It returns nil for FrameNone.
func (f Frame) Overlay(width, height int) *image.NRGBA {
	if f == FrameNone || f == "" || width <= 0 || height <= 0 {
		return nil
	}
	layer := image.NewNRGBA(image.Rect(0, 0, width, height))
	short := width
	if height < short {
		short = height
	}
	unit := func(percent int) int {
		v := short * percent / 100
		if v < 1 {
			v = 1
		}
		return v
	}

	switch f {
	case FrameClassic:
		border(layer, unit(4), unit(4), unit(4), unit(4), white)
	case FramePolaroid:
		t := unit(5)
		border(layer, t, t, t*4, t, offWhite)
	case FrameFilm:
		band, side := unit(9), unit(3)
		border(layer, band, side, band, side, black)
		sprockets(layer, band)
	case FrameGold:
		t := unit(4)
		border(layer, t, t, t, t, gold)
		inner := t / 4
		if inner < 1 {
			inner = 1
		}
		r := layer.Bounds().Inset(t)
		outline(layer, r, inner, darkGold)
	}
	return layer
}

func fill(img draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(img, r.Intersect(img.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
}

// border paints top/right/bottom/left strips of the given thickness.
func border(img *image.NRGBA, top, right, bottom, left int, c color.Color) {
	b := img.Bounds()
	fill(img, image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+top), c)
	fill(img, image.Rect(b.Min.X, b.Max.Y-bottom, b.Max.X, b.Max.Y), c)
	fill(img, image.Rect(b.Min.X, b.Min.Y, b.Min.X+left, b.Max.Y), c)
	fill(img, image.Rect(b.Max.X-right, b.Min.Y, b.Max.X, b.Max.Y), c)
}

// outline paints a hollow rectangle of width w just inside r.
func outline(img *image.NRGBA, r image.Rectangle, w int, c color.Color) {
	fill(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+w), c)
	fill(img, image.Rect(r.Min.X, r.Max.Y-w, r.Max.X, r.Max.Y), c)
	fill(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+w, r.Max.Y), c)
	fill(img, image.Rect(r.Max.X-w, r.Min.Y, r.Max.X, r.Max.Y), c)
}

// sprockets punches film perforations into the top and bottom bands.
func sprockets(img *image.NRGBA, band int) {
	b := img.Bounds()
	holeH := band / 3
	holeW := band / 2
	if holeH < 1 || holeW < 1 {
		return
	}
	pitch := holeW * 2
	for x := b.Min.X + holeW/2; x+holeW <= b.Max.X; x += pitch {
		top := image.Rect(x, b.Min.Y+holeH, x+holeW, b.Min.Y+2*holeH)
		bottom := image.Rect(x, b.Max.Y-2*holeH, x+holeW, b.Max.Y-holeH)
		fill(img, top, offWhite)
		fill(img, bottom, offWhite)
	}
}
