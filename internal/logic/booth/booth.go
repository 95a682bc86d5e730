package booth

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/cjeanneret/FotoBoo/internal/backend"
	"github.com/cjeanneret/FotoBoo/internal/debug"
	"github.com/cjeanneret/FotoBoo/internal/hw/camera"
	"github.com/cjeanneret/FotoBoo/internal/logic/adjust"
	"github.com/cjeanneret/FotoBoo/internal/logic/capture"
	"github.com/cjeanneret/FotoBoo/internal/logic/countdown"
	"github.com/cjeanneret/FotoBoo/internal/logic/screen"
	"github.com/cjeanneret/FotoBoo/internal/logic/session"
)

var (
	// ErrBusy rejects a mutating event while a save is in flight.
	ErrBusy = errors.New("booth busy")
	// ErrNoCapture is returned by Save when there is nothing to save.
	ErrNoCapture = errors.New("no capture to save")
	// ErrNotPersisted is returned by Download before a successful save.
	ErrNotPersisted = errors.New("photo not saved yet")
	// ErrDownloadDiscarded is returned when the session was reset while its
	// photo was being fetched.
	ErrDownloadDiscarded = errors.New("download discarded: session was reset")
)

// View is what the booth needs from a user interface. Calls may come from
// several goroutines.
type View interface {
	ShowScreen(s screen.State)
	ShowCountdown(remaining int)
	ShowFlash(on bool)
	ShowPreview(r *adjust.Rendered)
	ShowError(err error)
	ShowResult(ref backend.ShareReference)
	ShowDownload(a backend.Artifact)
}

// Store persists finished photos.
type Store interface {
	Save(ctx context.Context, img image.Image) (string, error)
	ShareReference(id string) (backend.ShareReference, error)
	Download(ctx context.Context, id string) (backend.Artifact, error)
}

// Config wires a Booth.
type Config struct {
	Camera       camera.Source  // nil when the device could not be acquired
	Lamp         capture.Flash  // optional GPIO flash
	Capture      capture.Params // countdown length and flash hold
	TickInterval time.Duration  // countdown tick, 1s if zero
	Store        Store
	View         View
}

// Booth is the photo booth: it turns user events into screen transitions,
// captures, renders and saves on one Session.
type Booth struct {
	mu     sync.Mutex
	saving bool

	camera  camera.Source
	session *session.Session
	screen  *screen.Controller
	seq     *capture.Sequence
	preview *adjust.Previewer
	store   Store
	view    View
}

func New(cfg Config) *Booth {
	if cfg.View == nil {
		cfg.View = NopView{}
	}
	b := &Booth{
		camera:  cfg.Camera,
		session: session.New(),
		screen:  screen.NewController(),
		store:   cfg.Store,
		view:    cfg.View,
	}
	b.preview = adjust.NewPreviewer(b.publishPreview)
	flash := capture.Flashes{capture.FlashFunc(b.view.ShowFlash)}
	if cfg.Lamp != nil {
		flash = append(flash, cfg.Lamp)
	}
	b.seq = capture.NewSequence(cfg.Camera, countdown.NewTimer(cfg.TickInterval), flash, b.session, b.screen, cfg.Capture)
	b.screen.OnEnter(b.onEnter)
	return b
}

func (b *Booth) onEnter(from, to screen.State) {
	if from == screen.Capture {
		b.seq.Abort()
	}
	if from == screen.Preview && to != screen.Preview {
		b.preview.Discard()
	}
	b.view.ShowScreen(to)
	if to == screen.Preview {
		b.requestPreview()
	}
}

func (b *Booth) requestPreview() {
	s := b.session.Snapshot()
	b.preview.Request(s.Raw, s.Adjustments, s.Revision)
}

// publishPreview drops renders built from an outdated session revision.
func (b *Booth) publishPreview(r *adjust.Rendered) {
	if r.Revision != b.session.Revision() {
		debug.Trace("Preview: dropping render of revision %d", r.Revision)
		return
	}
	b.view.ShowPreview(r)
}

// State is a read-only view of the booth for clients joining late.
type State struct {
	Screen      screen.State       `json:"-"`
	ScreenName  string             `json:"screen"`
	Adjustments adjust.Adjustments `json:"adjustments"`
	HasCapture  bool               `json:"has_capture"`
	PersistedID string             `json:"persisted_id,omitempty"`
	Capturing   bool               `json:"capturing"`
	Saving      bool               `json:"saving"`
	CameraReady bool               `json:"camera_ready"`
}

func (b *Booth) State() State {
	b.mu.Lock()
	saving := b.saving
	b.mu.Unlock()
	s := b.session.Snapshot()
	cur := b.screen.Current()
	return State{
		Screen:      cur,
		ScreenName:  cur.String(),
		Adjustments: s.Adjustments,
		HasCapture:  s.Raw != nil,
		PersistedID: s.PersistedID,
		Capturing:   b.seq.InFlight(),
		Saving:      saving,
		CameraReady: b.seq.Available(),
	}
}

// LiveFrame grabs a frame for the live view on the Capture screen.
func (b *Booth) LiveFrame(ctx context.Context) (image.Image, error) {
	if b.camera == nil {
		return nil, camera.ErrDeviceUnavailable
	}
	return b.camera.Snapshot(ctx)
}

// guard returns the error for a mutating event given the in-flight work.
// The capture flag drops just before the Preview screen is entered.
// Callers hold b.mu.
func (b *Booth) guard() error {
	if b.saving {
		return ErrBusy
	}
	if b.seq.InFlight() {
		return capture.ErrCaptureInFlight
	}
	return nil
}

// canFire validates e against the current screen before any session change is made.
// Callers hold b.mu.
func (b *Booth) canFire(e screen.Event) error {
	cur := b.screen.Current()
	if _, ok := screen.Next(cur, e); !ok {
		return fmt.Errorf("%w: %s on %s", screen.ErrInvalidTransition, e, cur)
	}
	return nil
}

// Start leaves Welcome for the Capture screen.
func (b *Booth) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.guard(); err != nil {
		return err
	}
	_, err := b.screen.Fire(screen.Start)
	return err
}

// Back returns from Capture to Welcome. It is refused during a countdown.
func (b *Booth) Back() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.guard(); err != nil {
		return err
	}
	_, err := b.screen.Fire(screen.Back)
	return err
}

// Capture runs the countdown and takes the photo. It blocks until the
// screen moved to Preview or the capture failed.
func (b *Booth) Capture(ctx context.Context) error {
	b.mu.Lock()
	err := b.guard()
	b.mu.Unlock()
	if err != nil {
		return err
	}
	_, err = b.seq.Capture(ctx, b.view.ShowCountdown)
	return err
}

// Retake discards the capture, resets the adjustments and goes back to Capture.
func (b *Booth) Retake() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.guard(); err != nil {
		return err
	}
	if err := b.canFire(screen.Retake); err != nil {
		return err
	}
	b.session.Retake()
	_, err := b.screen.Fire(screen.Retake)
	return err
}

// adjust applies fn to the session adjustments and re-renders on Preview.
// The values are recorded before any capture exists; there is just nothing
// to render yet.
func (b *Booth) adjust(fn func(*adjust.Adjustments)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.guard(); err != nil {
		return err
	}
	if cur := b.screen.Current(); cur == screen.Result {
		return fmt.Errorf("%w: adjustment on %s", screen.ErrInvalidTransition, cur)
	}
	adj, _, err := b.session.UpdateAdjustments(fn)
	if err != nil {
		return err
	}
	debug.Verbose("Adjustments: %s frame=%s", adj.FilterString(), adj.Frame)
	if b.screen.Current() == screen.Preview {
		b.requestPreview()
	}
	return nil
}

func (b *Booth) SelectPreset(p adjust.Preset) error {
	if _, err := adjust.ParsePreset(string(p)); err != nil {
		return err
	}
	return b.adjust(func(a *adjust.Adjustments) { a.Preset = p })
}

func (b *Booth) SelectFrame(f adjust.Frame) error {
	if _, err := adjust.ParseFrame(string(f)); err != nil {
		return err
	}
	return b.adjust(func(a *adjust.Adjustments) { a.Frame = f })
}

func (b *Booth) SetBrightness(v int) error {
	if err := adjust.ValidateSlider("brightness", v); err != nil {
		return err
	}
	return b.adjust(func(a *adjust.Adjustments) { a.Brightness = v })
}

func (b *Booth) SetContrast(v int) error {
	if err := adjust.ValidateSlider("contrast", v); err != nil {
		return err
	}
	return b.adjust(func(a *adjust.Adjustments) { a.Contrast = v })
}

// Save renders the session with its current adjustments and uploads the
// result. On failure the session and the screen are unchanged and the user
// may try again.
func (b *Booth) Save(ctx context.Context) error {
	b.mu.Lock()
	if err := b.guard(); err != nil {
		b.mu.Unlock()
		return err
	}
	if err := b.canFire(screen.Saved); err != nil {
		b.mu.Unlock()
		return err
	}
	snap := b.session.Snapshot()
	if snap.Raw == nil {
		b.mu.Unlock()
		return ErrNoCapture
	}
	b.saving = true
	b.mu.Unlock()

	id, err := b.upload(ctx, snap)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.saving = false
	if err != nil {
		return err
	}
	if err := b.session.SetPersistedID(id); err != nil {
		return err
	}
	if _, err := b.screen.Fire(screen.Saved); err != nil {
		return err
	}
	ref, err := b.store.ShareReference(id)
	if err != nil {
		return err
	}
	b.view.ShowResult(ref)
	return nil
}

func (b *Booth) upload(ctx context.Context, snap session.Snapshot) (string, error) {
	r, err := adjust.Render(ctx, snap.Raw, snap.Adjustments)
	if err != nil {
		return "", err
	}
	return b.store.Save(ctx, r.Composite())
}

// Download fetches the saved photo as a file named after its id and shows
// it. The artifact is dropped if the session was reset meanwhile.
func (b *Booth) Download(ctx context.Context) (backend.Artifact, error) {
	id := b.session.PersistedID()
	if id == "" {
		return backend.Artifact{}, ErrNotPersisted
	}
	a, err := b.store.Download(ctx, id)
	if err != nil {
		return backend.Artifact{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session.PersistedID() != id || b.screen.Current() != screen.Result {
		debug.Verbose("Download of %s dropped: session reset", id)
		return backend.Artifact{}, ErrDownloadDiscarded
	}
	b.view.ShowDownload(a)
	return a, nil
}

// NewPhoto resets the whole session and returns to Welcome.
func (b *Booth) NewPhoto() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.guard(); err != nil {
		return err
	}
	if err := b.canFire(screen.NewPhoto); err != nil {
		return err
	}
	b.session.Reset()
	_, err := b.screen.Fire(screen.NewPhoto)
	return err
}

// Close stops a running countdown and waits for pending renders.
func (b *Booth) Close() {
	b.seq.Abort()
	b.preview.Discard()
	b.preview.Wait()
}
