package lamp

import (
	"sync"

	"github.com/cjeanneret/FotoBoo/internal/debug"
	"github.com/cjeanneret/FotoBoo/internal/hw/gpio"
)

// GPIOFlash drives a flash lamp (LED strip behind a MOSFET or a relay)
// from a single output pin. Relay boards are usually active low, so the
// level that lights the lamp is configurable.
//
// The screen-level white flash is handled by the UI; this only mirrors it
// on real hardware.
type GPIOFlash struct {
	gpio      gpio.Driver
	pin       int
	activeLow bool

	mu sync.Mutex
	on bool
}

// NewGPIOFlash configures pin as an output and leaves the lamp off.
func NewGPIOFlash(g gpio.Driver, pin int, activeLow bool) (*GPIOFlash, error) {
	if err := g.SetupPin(pin, gpio.Output); err != nil {
		return nil, err
	}
	f := &GPIOFlash{gpio: g, pin: pin, activeLow: activeLow}
	if err := g.WritePin(pin, f.level(false)); err != nil {
		return nil, err
	}
	debug.Verbose("Flash: lamp on pin %d (active low=%v)", pin, activeLow)
	return f, nil
}

func (f *GPIOFlash) level(on bool) gpio.Level {
	if f.activeLow {
		return gpio.Level(!on)
	}
	return gpio.Level(on)
}

// SetFlash switches the lamp. Write errors are logged, never returned:
// a dead lamp must not abort a capture.
func (f *GPIOFlash) SetFlash(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.on == on {
		return
	}
	debug.Verbose("Flash: pin %d -> %v", f.pin, on)
	if err := f.gpio.WritePin(f.pin, f.level(on)); err != nil {
		debug.Error(err)
		return
	}
	f.on = on
}

// On reports whether the lamp is lit.
func (f *GPIOFlash) On() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.on
}

// Close turns the lamp off.
func (f *GPIOFlash) Close() error {
	f.SetFlash(false)
	return nil
}
