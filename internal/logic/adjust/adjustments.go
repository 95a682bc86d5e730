package adjust

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidAdjustment is returned for unknown presets/frames or out-of-range slider values.
var ErrInvalidAdjustment = errors.New("invalid adjustment")

// Slider bounds. Slider values are percentages: 100 is neutral, 200 doubles.
const (
	SliderMin     = 0
	SliderMax     = 200
	SliderDefault = 100
)

// Preset is a named filter recipe layered on top of the sliders.
type Preset string

const (
	PresetNone       Preset = "none"
	PresetGrayscale  Preset = "grayscale"
	PresetVintage    Preset = "vintage"
	PresetBrightness Preset = "brightness"
	PresetContrast   Preset = "contrast"
)

// Presets lists every preset in display order.
var Presets = []Preset{PresetNone, PresetGrayscale, PresetVintage, PresetBrightness, PresetContrast}

// ParsePreset validates a preset id coming from the UI.
func ParsePreset(s string) (Preset, error) {
	for _, p := range Presets {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: unknown preset %q", ErrInvalidAdjustment, s)
}

// recipe returns the fixed filters of the preset.
func (p Preset) recipe() []Filter {
	switch p {
	case PresetGrayscale:
		return []Filter{{Grayscale, 1}}
	case PresetVintage:
		return []Filter{{Sepia, 0.5}, {Contrast, 1.2}, {Brightness, 0.9}}
	case PresetBrightness:
		return []Filter{{Brightness, 1.3}}
	case PresetContrast:
		return []Filter{{Contrast, 1.5}}
	default:
		return nil
	}
}

// Adjustments are the user-controlled edit parameters of a session.
type Adjustments struct {
	Preset     Preset `json:"preset"`
	Brightness int    `json:"brightness"` // slider value, 0-200
	Contrast   int    `json:"contrast"`   // slider value, 0-200
	Frame      Frame  `json:"frame"`
}

// Defaults returns neutral adjustments (no preset, no frame, sliders at 100).
func Defaults() Adjustments {
	return Adjustments{
		Preset:     PresetNone,
		Brightness: SliderDefault,
		Contrast:   SliderDefault,
		Frame:      FrameNone,
	}
}

// ValidateSlider checks a brightness/contrast slider value.
func ValidateSlider(name string, v int) error {
	if v < SliderMin || v > SliderMax {
		return fmt.Errorf("%w: %s must be between %d and %d, got %d", ErrInvalidAdjustment, name, SliderMin, SliderMax, v)
	}
	return nil
}

// Validate checks every field.
func (a Adjustments) Validate() error {
	if _, err := ParsePreset(string(a.Preset)); err != nil {
		return err
	}
	if _, err := ParseFrame(string(a.Frame)); err != nil {
		return err
	}
	if err := ValidateSlider("brightness", a.Brightness); err != nil {
		return err
	}
	return ValidateSlider("contrast", a.Contrast)
}

// Filters returns the pixel filter chain in application order: sliders
// first (brightness, contrast), then the preset recipe.
func (a Adjustments) Filters() []Filter {
	chain := []Filter{
		{Brightness, float64(a.Brightness) / 100},
		{Contrast, float64(a.Contrast) / 100},
	}
	return append(chain, a.Preset.recipe()...)
}

// FilterString renders the chain as a CSS filter value, so the browser can
// mirror slider drags live while the server renders.
func (a Adjustments) FilterString() string {
	parts := make([]string, 0, 5)
	for _, f := range a.Filters() {
		parts = append(parts, f.String())
	}
	return strings.Join(parts, " ")
}

// FilterKind identifies a filter primitive.
type FilterKind int

const (
	Brightness FilterKind = iota
	Contrast
	Grayscale
	Sepia
)

func (k FilterKind) String() string {
	switch k {
	case Brightness:
		return "brightness"
	case Contrast:
		return "contrast"
	case Grayscale:
		return "grayscale"
	case Sepia:
		return "sepia"
	default:
		return "filter(" + strconv.Itoa(int(k)) + ")"
	}
}

// Filter is one primitive with its amount (1 = identity for brightness/contrast,
// 1 = full effect for grayscale/sepia).
type Filter struct {
	Kind   FilterKind
	Amount float64
}

func (f Filter) String() string {
	amount := strconv.FormatFloat(f.Amount, 'f', -1, 64)
	switch f.Kind {
	case Grayscale, Sepia:
		amount = strconv.FormatFloat(f.Amount*100, 'f', -1, 64) + "%"
	}
	return f.Kind.String() + "(" + amount + ")"
}
