package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"github.com/cjeanneret/FotoBoo/internal/debug"
	"github.com/cjeanneret/FotoBoo/internal/hw/camera"
	"github.com/cjeanneret/FotoBoo/internal/logic/countdown"
	"github.com/cjeanneret/FotoBoo/internal/logic/screen"
	"github.com/cjeanneret/FotoBoo/internal/logic/session"
)

// ErrCaptureInFlight rejects a capture request while another one runs.
var ErrCaptureInFlight = errors.New("capture already in flight")

// Flash is the momentary visual cue shown while the still frame is taken.
type Flash interface {
	SetFlash(on bool)
}

// FlashFunc adapts a function to Flash.
type FlashFunc func(on bool)

func (f FlashFunc) SetFlash(on bool) { f(on) }

// Flashes fans a cue out to several outputs (screen overlay, GPIO lamp).
type Flashes []Flash

func (fs Flashes) SetFlash(on bool) {
	for _, f := range fs {
		if f != nil {
			f.SetFlash(on)
		}
	}
}

// Params defines the timing of one capture.
type Params struct {
	CountdownSeconds int           // countdown length, >= 1
	SettleDelay      time.Duration // flash hold after the shot, before Preview
}

// DefaultParams returns a 3 second countdown and a 300ms flash.
func DefaultParams() Params {
	return Params{CountdownSeconds: 3, SettleDelay: 300 * time.Millisecond}
}

// Sequence contains the capture logic: countdown, flash, snapshot, then
// hand-off to the Preview screen.
type Sequence struct {
	camera  camera.Source
	timer   *countdown.Timer
	flash   Flash
	session *session.Session
	screen  *screen.Controller
	params  Params

	inFlight atomic.Bool
}

// NewSequence wires a capture sequence. A nil camera means the device could
// not be acquired at startup; every capture then fails with
// camera.ErrDeviceUnavailable.
func NewSequence(cam camera.Source, timer *countdown.Timer, flash Flash, sess *session.Session, scr *screen.Controller, p Params) *Sequence {
	if p.CountdownSeconds < 1 {
		p.CountdownSeconds = DefaultParams().CountdownSeconds
	}
	if p.SettleDelay < 0 {
		p.SettleDelay = 0
	}
	if flash == nil {
		flash = Flashes(nil)
	}
	return &Sequence{
		camera:  cam,
		timer:   timer,
		flash:   flash,
		session: sess,
		screen:  scr,
		params:  p,
	}
}

// InFlight reports whether a capture is running.
func (s *Sequence) InFlight() bool {
	return s.inFlight.Load()
}

// Abort cancels a countdown that has not resolved yet. The pending
// Capture then returns countdown.ErrCancelled.
func (s *Sequence) Abort() {
	s.timer.Stop()
}

// Available reports whether a camera was acquired.
func (s *Sequence) Available() bool {
	return s.camera != nil
}

// Capture runs one capture from the Capture screen. onTick receives each
// remaining count. On success the frame is stored in the session, replacing
// any previous one, and the screen moves to Preview. On failure the session
// and the screen are left unchanged. The in-flight flag is released before
// the move to Preview so the Preview screen accepts edits as soon as it shows.
func (s *Sequence) Capture(ctx context.Context, onTick countdown.TickFunc) (image.Image, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		debug.Verbose("Capture: rejected, already in flight")
		return nil, ErrCaptureInFlight
	}
	held := true
	defer func() {
		if held {
			s.inFlight.Store(false)
		}
	}()

	if s.camera == nil {
		return nil, fmt.Errorf("%w: no camera acquired", camera.ErrDeviceUnavailable)
	}
	if cur := s.screen.Current(); cur != screen.Capture {
		return nil, fmt.Errorf("%w: capture on %s", screen.ErrInvalidTransition, cur)
	}

	debug.Section("Capture")
	if onTick == nil {
		onTick = func(int) {}
	}
	sig, err := s.timer.Start(s.params.CountdownSeconds, onTick)
	if err != nil {
		return nil, err
	}
	if err := sig.Wait(ctx); err != nil {
		sig.Cancel()
		return nil, err
	}

	s.flash.SetFlash(true)
	img, err := s.snapshot(ctx)
	if err != nil {
		s.flash.SetFlash(false)
		return nil, err
	}
	s.session.SetRawCapture(img)
	b := img.Bounds()
	debug.Shot(b.Dx(), b.Dy())

	// Keep the cue visible for the settle delay even if ctx ends: the frame
	// is already stored.
	time.Sleep(s.params.SettleDelay)
	s.flash.SetFlash(false)

	held = false
	s.inFlight.Store(false)
	if _, err := s.screen.Fire(screen.Captured); err != nil {
		return img, err
	}
	return img, nil
}

func (s *Sequence) snapshot(ctx context.Context) (image.Image, error) {
	img, err := s.camera.Snapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, camera.ErrDeviceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", camera.ErrDeviceUnavailable, err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty frame", camera.ErrDeviceUnavailable)
	}
	return img, nil
}
