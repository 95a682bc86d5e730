package screen

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cjeanneret/FotoBoo/internal/debug"
)

// State is one of the kiosk screens.
type State int

const (
	Welcome State = iota
	Capture
	Preview
	Result
)

func (s State) String() string {
	switch s {
	case Welcome:
		return "welcome"
	case Capture:
		return "capture"
	case Preview:
		return "preview"
	case Result:
		return "result"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event is a navigation trigger, either from the user or from a finished step.
type Event int

const (
	Start    Event = iota // user starts a session
	Back                  // user backs out of the capture screen
	Captured              // capture pipeline completed
	Retake                // user discards the capture
	Saved                 // upload completed
	NewPhoto              // user starts over from the result screen
)

func (e Event) String() string {
	switch e {
	case Start:
		return "start"
	case Back:
		return "back"
	case Captured:
		return "captured"
	case Retake:
		return "retake"
	case Saved:
		return "saved"
	case NewPhoto:
		return "new-photo"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// ErrInvalidTransition is returned when an event is not defined for the current state.
var ErrInvalidTransition = errors.New("invalid screen transition")

var transitions = map[State]map[Event]State{
	Welcome: {Start: Capture},
	Capture: {Back: Welcome, Captured: Preview},
	Preview: {Retake: Capture, Saved: Result},
	Result:  {NewPhoto: Welcome},
}

// Next returns the state reached from s on e, if the transition exists.
func Next(s State, e Event) (State, bool) {
	to, ok := transitions[s][e]
	return to, ok
}

// EnterFunc is called after every successful transition.
type EnterFunc func(from, to State)

// Controller is the screen state machine. It starts on Welcome and has no
// terminal state: Result -> Welcome restarts the cycle.
type Controller struct {
	mu      sync.Mutex
	current State
	hooks   []EnterFunc
}

func NewController() *Controller {
	return &Controller{current: Welcome}
}

// Current returns the visible screen.
func (c *Controller) Current() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// OnEnter registers a hook run after each transition, outside the controller lock.
func (c *Controller) OnEnter(fn EnterFunc) {
	c.mu.Lock()
	c.hooks = append(c.hooks, fn)
	c.mu.Unlock()
}

// Fire applies e to the current state. On an undefined event the state is
// left unchanged and ErrInvalidTransition is returned.
func (c *Controller) Fire(e Event) (State, error) {
	c.mu.Lock()
	from := c.current
	to, ok := Next(from, e)
	if !ok {
		c.mu.Unlock()
		return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, e, from)
	}
	c.current = to
	hooks := append([]EnterFunc(nil), c.hooks...)
	c.mu.Unlock()

	debug.Screen(from, to)
	for _, h := range hooks {
		h(from, to)
	}
	return to, nil
}
