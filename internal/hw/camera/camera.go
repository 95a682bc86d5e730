package camera

import (
	"context"
	"errors"
	"image"
)

// ErrDeviceUnavailable is returned when the camera cannot be acquired or
// stops delivering frames.
var ErrDeviceUnavailable = errors.New("camera device unavailable")

// Source is the high-level interface used by the rest of the application.
// It represents an abstract live video feed, regardless of how the frames
// are obtained (test pattern, USB bridge, network camera, etc.).
type Source interface {
	// Snapshot returns one still frame at the source's native resolution.
	Snapshot(ctx context.Context) (image.Image, error)
	// Close releases the device.
	Close() error
}

// Facing modes understood by camera bridges.
const (
	FacingUser        = "user"
	FacingEnvironment = "environment"
)

// Default values (used when no config is provided)
const (
	DefaultWidth  = 1280
	DefaultHeight = 720
	DefaultFacing = FacingUser
)

// Settings is the requested (ideal) stream format. Sources may deliver a
// different native resolution.
type Settings struct {
	Width      int    // ideal width in pixels
	Height     int    // ideal height in pixels
	FacingMode string // "user" or "environment"
}

// DefaultSettings returns the kiosk defaults: 1280x720, user-facing.
func DefaultSettings() Settings {
	return Settings{
		Width:      DefaultWidth,
		Height:     DefaultHeight,
		FacingMode: DefaultFacing,
	}
}

// withDefaults fills zero fields.
func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.Width <= 0 {
		s.Width = d.Width
	}
	if s.Height <= 0 {
		s.Height = d.Height
	}
	if s.FacingMode == "" {
		s.FacingMode = d.FacingMode
	}
	return s
}
