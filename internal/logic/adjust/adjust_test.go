package adjust

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"sync"
	"testing"
)

func uniform(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// gradient builds a deterministic multi-colour test image.
func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x * 255 / w), uint8(y * 255 / h), uint8((x + y) % 256), 255})
		}
	}
	return img
}

func withAdj(preset Preset, brightness, contrast int, frame Frame) Adjustments {
	return Adjustments{Preset: preset, Brightness: brightness, Contrast: contrast, Frame: frame}
}

// ---------- Adjustments ----------

func TestDefaults(t *testing.T) {
	d := Defaults()
	if d.Preset != PresetNone || d.Frame != FrameNone || d.Brightness != 100 || d.Contrast != 100 {
		t.Errorf("Defaults() = %+v", d)
	}
	if err := d.Validate(); err != nil {
		t.Errorf("defaults should be valid: %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name string
		adj  Adjustments
	}{
		{"brightness_negative", withAdj(PresetNone, -1, 100, FrameNone)},
		{"brightness_too_large", withAdj(PresetNone, 201, 100, FrameNone)},
		{"contrast_too_large", withAdj(PresetNone, 100, 250, FrameNone)},
		{"unknown_preset", withAdj("sparkle", 100, 100, FrameNone)},
		{"unknown_frame", withAdj(PresetNone, 100, 100, "hearts")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.adj.Validate(); !errors.Is(err, ErrInvalidAdjustment) {
				t.Errorf("err = %v, want ErrInvalidAdjustment", err)
			}
		})
	}
}

func TestValidate_Boundaries(t *testing.T) {
	for _, v := range []int{0, 200} {
		if err := withAdj(PresetNone, v, v, FrameNone).Validate(); err != nil {
			t.Errorf("slider %d should be valid: %v", v, err)
		}
	}
}

func TestFilters_VintageComposition(t *testing.T) {
	got := withAdj(PresetVintage, 120, 110, FrameNone).Filters()
	want := []Filter{
		{Brightness, 1.2},
		{Contrast, 1.1},
		{Sepia, 0.5},
		{Contrast, 1.2},
		{Brightness, 0.9},
	}
	if len(got) != len(want) {
		t.Fatalf("Filters() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i].Kind != want[i].Kind || math.Abs(got[i].Amount-want[i].Amount) > 1e-12 {
			t.Errorf("filter %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFilters_PresetRecipes(t *testing.T) {
	cases := []struct {
		preset Preset
		extra  []Filter
	}{
		{PresetNone, nil},
		{PresetGrayscale, []Filter{{Grayscale, 1}}},
		{PresetBrightness, []Filter{{Brightness, 1.3}}},
		{PresetContrast, []Filter{{Contrast, 1.5}}},
	}
	for _, tc := range cases {
		t.Run(string(tc.preset), func(t *testing.T) {
			got := withAdj(tc.preset, 100, 100, FrameNone).Filters()
			if len(got) != 2+len(tc.extra) {
				t.Fatalf("Filters() = %v", got)
			}
			for i, f := range tc.extra {
				if got[2+i] != f {
					t.Errorf("recipe %d = %v, want %v", i, got[2+i], f)
				}
			}
		})
	}
}

func TestFilterString(t *testing.T) {
	got := withAdj(PresetVintage, 120, 110, FrameNone).FilterString()
	want := "brightness(1.2) contrast(1.1) sepia(50%) contrast(1.2) brightness(0.9)"
	if got != want {
		t.Errorf("FilterString() = %q, want %q", got, want)
	}
	if got := Defaults().FilterString(); got != "brightness(1) contrast(1)" {
		t.Errorf("default FilterString() = %q", got)
	}
}

func TestParsePresetAndFrame(t *testing.T) {
	if p, err := ParsePreset("grayscale"); err != nil || p != PresetGrayscale {
		t.Errorf("ParsePreset(grayscale) = %q, %v", p, err)
	}
	if _, err := ParsePreset("GRAYSCALE"); err == nil {
		t.Error("preset ids are case-sensitive")
	}
	if f, err := ParseFrame("film"); err != nil || f != FrameFilm {
		t.Errorf("ParseFrame(film) = %q, %v", f, err)
	}
	if _, err := ParseFrame(""); err == nil {
		t.Error("empty frame id should be rejected")
	}
}

// ---------- Render ----------

func TestRender_NilCaptureIsNoop(t *testing.T) {
	r, err := Render(context.Background(), nil, Defaults())
	if err != nil || r != nil {
		t.Errorf("Render(nil) = %v, %v; want nil, nil", r, err)
	}
}

func TestRender_Deterministic(t *testing.T) {
	raw := gradient(64, 48)
	for _, p := range Presets {
		for _, f := range Frames {
			for _, s := range []int{0, 73, 100, 200} {
				adj := withAdj(p, s, 200-s, f)
				a, err := Render(context.Background(), raw, adj)
				if err != nil {
					t.Fatalf("%+v: %v", adj, err)
				}
				b, err := Render(context.Background(), raw, adj)
				if err != nil {
					t.Fatalf("%+v: %v", adj, err)
				}
				if !bytes.Equal(a.Image.Pix, b.Image.Pix) {
					t.Fatalf("%+v: filtered pixels differ between runs", adj)
				}
				if !bytes.Equal(a.Composite().Pix, b.Composite().Pix) {
					t.Fatalf("%+v: composites differ between runs", adj)
				}
			}
		}
	}
}

func TestRender_DoesNotModifyInput(t *testing.T) {
	raw := gradient(16, 16)
	before := append([]byte(nil), raw.Pix...)
	if _, err := Render(context.Background(), raw, withAdj(PresetGrayscale, 150, 50, FrameGold)); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, raw.Pix) {
		t.Error("Render modified the capture")
	}
}

func TestRender_IdentityAdjustments(t *testing.T) {
	raw := gradient(20, 10)
	r, err := Render(context.Background(), raw, Defaults())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(r.Image.Pix, raw.Pix) {
		t.Error("neutral adjustments should leave pixels untouched")
	}
}

func TestRender_BrightnessSlider(t *testing.T) {
	raw := uniform(4, 4, color.RGBA{100, 150, 200, 255})
	r, err := Render(context.Background(), raw, withAdj(PresetNone, 150, 100, FrameNone))
	if err != nil {
		t.Fatal(err)
	}
	got := r.Image.RGBAAt(1, 1)
	want := color.RGBA{150, 225, 255, 255} // 200*1.5 clamps
	if got != want {
		t.Errorf("pixel = %v, want %v", got, want)
	}
}

func TestRender_GrayscalePreset(t *testing.T) {
	raw := uniform(2, 2, color.RGBA{255, 0, 0, 255})
	r, err := Render(context.Background(), raw, withAdj(PresetGrayscale, 100, 100, FrameNone))
	if err != nil {
		t.Fatal(err)
	}
	got := r.Image.RGBAAt(0, 0)
	want := color.RGBA{54, 54, 54, 255} // 0.2126 * 255
	if got != want {
		t.Errorf("pixel = %v, want %v", got, want)
	}
}

// vintageReference recomputes brightness 1.2, contrast 1.1, sepia 50%,
// contrast 1.2, brightness 0.9 by hand for one pixel.
func vintageReference(c color.RGBA) color.RGBA {
	cl := func(v float64) float64 { return math.Max(0, math.Min(1, v)) }
	r, g, b := float64(c.R)/255, float64(c.G)/255, float64(c.B)/255
	r, g, b = cl(r*1.2), cl(g*1.2), cl(b*1.2)
	con := func(v, a float64) float64 { return cl((v-0.5)*a + 0.5) }
	r, g, b = con(r, 1.1), con(g, 1.1), con(b, 1.1)
	r, g, b = cl(0.6965*r+0.3845*g+0.0945*b),
		cl(0.1745*r+0.843*g+0.084*b),
		cl(0.136*r+0.267*g+0.5655*b)
	r, g, b = con(r, 1.2), con(g, 1.2), con(b, 1.2)
	r, g, b = cl(r*0.9), cl(g*0.9), cl(b*0.9)
	u := func(v float64) uint8 { return uint8(math.Round(v * 255)) }
	return color.RGBA{u(r), u(g), u(b), 255}
}

func TestRender_VintageWithSliders(t *testing.T) {
	in := color.RGBA{90, 120, 60, 255}
	raw := uniform(3, 3, in)
	r, err := Render(context.Background(), raw, withAdj(PresetVintage, 120, 110, FrameNone))
	if err != nil {
		t.Fatal(err)
	}
	got := r.Image.RGBAAt(2, 2)
	want := vintageReference(in)
	diff := func(a, b uint8) int {
		if a > b {
			return int(a - b)
		}
		return int(b - a)
	}
	if diff(got.R, want.R) > 1 || diff(got.G, want.G) > 1 || diff(got.B, want.B) > 1 {
		t.Errorf("pixel = %v, want %v", got, want)
	}
	// Sepia warms the image: red ends above blue.
	if got.R <= got.B {
		t.Errorf("vintage should tint warm, got %v", got)
	}
}

func TestRender_OffsetBounds(t *testing.T) {
	full := gradient(10, 10)
	sub := full.SubImage(image.Rect(2, 3, 8, 9))
	r, err := Render(context.Background(), sub, Defaults())
	if err != nil {
		t.Fatal(err)
	}
	if r.Image.Bounds() != image.Rect(0, 0, 6, 6) {
		t.Errorf("bounds = %v, want origin-anchored 6x6", r.Image.Bounds())
	}
	if r.Image.RGBAAt(0, 0) != full.RGBAAt(2, 3) {
		t.Error("sub-image pixels misaligned")
	}
}

func TestRender_InvalidAdjustments(t *testing.T) {
	_, err := Render(context.Background(), gradient(2, 2), withAdj(PresetNone, 300, 100, FrameNone))
	if !errors.Is(err, ErrInvalidAdjustment) {
		t.Errorf("err = %v, want ErrInvalidAdjustment", err)
	}
}

func TestRender_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Render(ctx, gradient(32, 32), Defaults()); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// ---------- Frames ----------

func TestFrame_OverlayIsSeparateLayer(t *testing.T) {
	raw := uniform(100, 80, color.RGBA{10, 20, 30, 255})
	r, err := Render(context.Background(), raw, withAdj(PresetNone, 100, 100, FrameClassic))
	if err != nil {
		t.Fatal(err)
	}
	if r.Image.RGBAAt(0, 0) != (color.RGBA{10, 20, 30, 255}) {
		t.Error("frame must not be baked into the filtered image")
	}
	comp := r.Composite()
	if comp.RGBAAt(0, 0) != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("classic frame corner = %v, want white", comp.RGBAAt(0, 0))
	}
	if comp.RGBAAt(50, 40) != (color.RGBA{10, 20, 30, 255}) {
		t.Errorf("frame interior = %v, want untouched pixel", comp.RGBAAt(50, 40))
	}
}

func TestFrame_NoneHasNoOverlay(t *testing.T) {
	if FrameNone.Overlay(10, 10) != nil {
		t.Error("FrameNone should have no overlay")
	}
	raw := gradient(10, 10)
	r, _ := Render(context.Background(), raw, Defaults())
	if !bytes.Equal(r.Composite().Pix, r.Image.Pix) {
		t.Error("composite without frame should equal filtered image")
	}
}

func TestFrame_PolaroidBottomIsThicker(t *testing.T) {
	layer := FramePolaroid.Overlay(200, 200)
	// unit = 10px: sides 10, bottom 40.
	if layer.NRGBAAt(100, 165).A == 0 {
		t.Error("polaroid bottom band should be opaque")
	}
	if layer.NRGBAAt(100, 35).A != 0 {
		t.Error("polaroid top band should be thin")
	}
}

func TestFrame_AllFramesDrawSomething(t *testing.T) {
	for _, f := range Frames[1:] {
		layer := f.Overlay(120, 90)
		if layer == nil {
			t.Fatalf("%s: nil overlay", f)
		}
		if layer.NRGBAAt(0, 0).A == 0 {
			t.Errorf("%s: corner should be covered", f)
		}
		if layer.NRGBAAt(60, 45).A != 0 {
			t.Errorf("%s: centre should be transparent", f)
		}
	}
}

// ---------- Previewer ----------

func TestPreviewer_LatestRequestWins(t *testing.T) {
	var mu sync.Mutex
	var published []*Rendered
	p := NewPreviewer(func(r *Rendered) {
		mu.Lock()
		published = append(published, r)
		mu.Unlock()
	})

	raw := gradient(120, 90)
	for b := 50; b <= 150; b += 10 {
		p.Request(raw, withAdj(PresetNone, b, 100, FrameNone), uint64(b))
	}
	p.Wait()

	latest := p.Latest()
	if latest == nil {
		t.Fatal("no preview after requests")
	}
	if latest.Adjustments.Brightness != 150 || latest.Revision != 150 {
		t.Errorf("latest = brightness %d rev %d, want 150/150", latest.Adjustments.Brightness, latest.Revision)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(published) == 0 || published[len(published)-1] != latest {
		t.Error("last published render should be the latest")
	}
	for i := 1; i < len(published); i++ {
		if published[i].Revision < published[i-1].Revision {
			t.Errorf("stale render published after newer one: %d then %d", published[i-1].Revision, published[i].Revision)
		}
	}
}

func TestPreviewer_NilCaptureIsNoop(t *testing.T) {
	calls := 0
	p := NewPreviewer(func(*Rendered) { calls++ })
	p.Request(nil, Defaults(), 1)
	p.Wait()
	if p.Latest() != nil || calls != 0 {
		t.Error("request without capture should not render")
	}
}

func TestPreviewer_DiscardDropsPreview(t *testing.T) {
	p := NewPreviewer(nil)
	p.Request(gradient(64, 64), Defaults(), 1)
	p.Discard()
	p.Wait()
	if p.Latest() != nil {
		t.Error("preview should be dropped after Discard")
	}
}
