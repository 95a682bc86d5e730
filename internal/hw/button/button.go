package button

import (
	"context"
	"time"

	"github.com/cjeanneret/FotoBoo/internal/debug"
	"github.com/cjeanneret/FotoBoo/internal/hw/gpio"
)

// Default timings for a momentary push button wired between the pin and GND.
const (
	DefaultDebounce = 30 * time.Millisecond
	DefaultPoll     = 5 * time.Millisecond
)

// Watch polls pin (configured as a pull-up input) and calls onPress once
// per debounced HIGH->LOW transition. It blocks until ctx is done and
// returns ctx.Err(). Read errors are logged and polling goes on.
func Watch(ctx context.Context, g gpio.Driver, pin int, debounce, poll time.Duration, onPress func()) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if poll <= 0 {
		poll = DefaultPoll
	}
	if err := g.SetupPin(pin, gpio.InputPullUp); err != nil {
		return err
	}
	debug.Info("Button: watching pin %d (debounce %v)", pin, debounce)

	stable := gpio.High
	raw := gpio.High
	since := time.Now()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			level, err := g.ReadPin(pin)
			if err != nil {
				debug.Error(err)
				continue
			}
			if level != raw {
				raw = level
				since = now
				continue
			}
			if raw == stable || now.Sub(since) < debounce {
				continue
			}
			stable = raw
			if stable == gpio.Low {
				debug.Verbose("Button: pin %d pressed", pin)
				onPress()
			}
		}
	}
}
