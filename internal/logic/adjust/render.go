package adjust

import (
	"context"
	"image"
	"image/draw"
	"math"
	"runtime"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("github.com/cjeanneret/FotoBoo/internal/logic/adjust")

// Rendered is a filtered capture plus the frame to composite over it.
type Rendered struct {
	Image       *image.RGBA // filtered pixels, frame not applied
	Adjustments Adjustments
	Revision    uint64 // session revision the render was built from
}

// Frame returns the overlay selected for this render.
func (r *Rendered) Frame() Frame {
	return r.Adjustments.Frame
}

// Composite returns a new image with the frame layer drawn over the filtered pixels.
func (r *Rendered) Composite() *image.RGBA {
	b := r.Image.Bounds()
	out := image.NewRGBA(b)
	copy(out.Pix, r.Image.Pix)
	if layer := r.Frame().Overlay(b.Dx(), b.Dy()); layer != nil {
		draw.Draw(out, b, layer, image.Point{}, draw.Over)
	}
	return out
}

// Render applies adj to raw. It is a pure function of its inputs: the same
// capture and adjustments always produce the same pixels. A nil capture is a
// no-op and returns (nil, nil). ctx cancellation aborts a render that was
// superseded.
func Render(ctx context.Context, raw image.Image, adj Adjustments) (*Rendered, error) {
	if raw == nil {
		return nil, nil
	}
	if err := adj.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "adjust.Render")
	defer span.End()

	src := toRGBA(raw)
	b := src.Bounds()
	span.SetAttributes(
		attribute.String("fotoboo.filters", adj.FilterString()),
		attribute.String("fotoboo.frame", string(adj.Frame)),
		attribute.Int("fotoboo.width", b.Dx()),
		attribute.Int("fotoboo.height", b.Dy()),
	)
	dst := image.NewRGBA(b)
	filters := compile(adj.Filters())

	g, ctx := errgroup.WithContext(ctx)
	for _, band := range bands(b, runtime.GOMAXPROCS(0)) {
		band := band
		g.Go(func() error {
			for y := band.Min.Y; y < band.Max.Y; y++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				renderRow(dst, src, y, filters)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &Rendered{Image: dst, Adjustments: adj}, nil
}

// toRGBA returns raw as an *image.RGBA anchored at the origin. The input is
// never modified.
func toRGBA(raw image.Image) *image.RGBA {
	if rgba, ok := raw.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := raw.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), raw, b.Min, draw.Src)
	return out
}

// bands splits r into at most n horizontal strips.
func bands(r image.Rectangle, n int) []image.Rectangle {
	h := r.Dy()
	if n < 1 {
		n = 1
	}
	if n > h {
		n = h
	}
	if n == 0 {
		return nil
	}
	out := make([]image.Rectangle, 0, n)
	step := (h + n - 1) / n
	for y := r.Min.Y; y < r.Max.Y; y += step {
		end := y + step
		if end > r.Max.Y {
			end = r.Max.Y
		}
		out = append(out, image.Rect(r.Min.X, y, r.Max.X, end))
	}
	return out
}

func renderRow(dst, src *image.RGBA, y int, c chain) {
	b := src.Bounds()
	si := src.PixOffset(b.Min.X, y)
	di := dst.PixOffset(b.Min.X, y)
	for x := b.Min.X; x < b.Max.X; x, si, di = x+1, si+4, di+4 {
		a := src.Pix[si+3]
		if a == 0 {
			dst.Pix[di], dst.Pix[di+1], dst.Pix[di+2], dst.Pix[di+3] = 0, 0, 0, 0
			continue
		}
		// RGBA is alpha-premultiplied; filters work on straight colour.
		alpha := float64(a) / 255
		v := [3]float64{
			float64(src.Pix[si]) / 255 / alpha,
			float64(src.Pix[si+1]) / 255 / alpha,
			float64(src.Pix[si+2]) / 255 / alpha,
		}
		v = c.apply(v)
		dst.Pix[di] = toByte(v[0] * alpha)
		dst.Pix[di+1] = toByte(v[1] * alpha)
		dst.Pix[di+2] = toByte(v[2] * alpha)
		dst.Pix[di+3] = a
	}
}

func toByte(v float64) uint8 {
	return uint8(math.Round(clampUnit(v) * 255))
}
