package countdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/FotoBoo/internal/debug"
)

var (
	// ErrCancelled is returned by Wait when the countdown was cancelled or restarted.
	ErrCancelled = errors.New("countdown cancelled")
	// ErrInvalidDuration is returned by Start for durations below one tick.
	ErrInvalidDuration = errors.New("countdown duration must be >= 1")
)

// TickFunc receives each remaining count before the countdown resolves (N, N-1, ..., 1).
type TickFunc func(remaining int)

type signalState int

const (
	running signalState = iota
	resolved
	cancelled
)

// Signal is one countdown instance. It either resolves once or is cancelled, never both.
type Signal struct {
	mu        sync.Mutex
	state     signalState
	done      chan struct{}
	cancelled chan struct{}
}

func newSignal() *Signal {
	return &Signal{
		done:      make(chan struct{}),
		cancelled: make(chan struct{}),
	}
}

// Done is closed when the countdown reaches zero.
func (s *Signal) Done() <-chan struct{} { return s.done }

// Cancelled is closed when the countdown is cancelled before reaching zero.
func (s *Signal) Cancelled() <-chan struct{} { return s.cancelled }

// Cancel stops the countdown. It has no effect once the signal resolved.
func (s *Signal) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != running {
		return
	}
	s.state = cancelled
	close(s.cancelled)
}

// Wait blocks until the countdown resolves (nil), is cancelled (ErrCancelled)
// or ctx ends (ctx.Err()).
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-s.cancelled:
		return ErrCancelled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tick delivers remaining to onTick while the signal is still running. The
// signal lock is held across the call so Cancel never returns with a tick of
// this instance still to come.
func (s *Signal) tick(remaining int, onTick TickFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != running {
		return false
	}
	debug.Countdown(remaining)
	onTick(remaining)
	return true
}

func (s *Signal) resolve() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != running {
		return false
	}
	s.state = resolved
	close(s.done)
	return true
}

// Timer starts countdowns. Only one instance is live at a time: Start
// cancels the previous one so two captures can never race.
type Timer struct {
	interval time.Duration

	mu      sync.Mutex
	current *Signal
}

// NewTimer creates a timer ticking every interval (one "second" of the countdown).
// interval <= 0 defaults to 1s.
func NewTimer(interval time.Duration) *Timer {
	if interval <= 0 {
		interval = time.Second
	}
	return &Timer{interval: interval}
}

// Start begins a countdown from seconds. onTick is called synchronously with
// the initial count, then once per interval for each remaining count > 0.
// onTick must not cancel its own signal.
func (t *Timer) Start(seconds int, onTick TickFunc) (*Signal, error) {
	if seconds < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidDuration, seconds)
	}
	if onTick == nil {
		onTick = func(int) {}
	}

	sig := newSignal()
	t.mu.Lock()
	if t.current != nil {
		t.current.Cancel()
	}
	t.current = sig
	t.mu.Unlock()

	debug.Countdown(seconds)
	onTick(seconds)

	go t.run(sig, seconds, onTick)
	return sig, nil
}

// Stop cancels the live countdown, if any.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		t.current.Cancel()
		t.current = nil
	}
}

func (t *Timer) run(sig *Signal, remaining int, onTick TickFunc) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-sig.cancelled:
			return
		case <-ticker.C:
			remaining--
			if remaining > 0 {
				if !sig.tick(remaining, onTick) {
					return
				}
				continue
			}
			if sig.resolve() {
				debug.Live("Countdown resolved")
			}
			return
		}
	}
}
