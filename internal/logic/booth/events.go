package booth

import (
	"context"
	"errors"
	"fmt"

	"github.com/cjeanneret/FotoBoo/internal/backend"
	"github.com/cjeanneret/FotoBoo/internal/debug"
	"github.com/cjeanneret/FotoBoo/internal/logic/adjust"
	"github.com/cjeanneret/FotoBoo/internal/logic/capture"
	"github.com/cjeanneret/FotoBoo/internal/logic/screen"
)

// ErrUnknownEvent is returned by Dispatch for an unsupported event type.
var ErrUnknownEvent = errors.New("unknown event")

// Event types sent by the user controls.
const (
	EventStart      = "start"
	EventBack       = "back"
	EventCapture    = "capture"
	EventRetake     = "retake"
	EventSave       = "save"
	EventDownload   = "download"
	EventNewPhoto   = "new-photo"
	EventFilter     = "filter-select"
	EventFrame      = "frame-select"
	EventBrightness = "brightness-change"
	EventContrast   = "contrast-change"
)

// Event is one user control action. ID carries the preset or frame id,
// Value the slider position.
type Event struct {
	Type  string `json:"type"`
	Value int    `json:"value,omitempty"`
	ID    string `json:"id,omitempty"`
}

func (e Event) String() string {
	switch e.Type {
	case EventFilter, EventFrame:
		return e.Type + "(" + e.ID + ")"
	case EventBrightness, EventContrast:
		return fmt.Sprintf("%s(%d)", e.Type, e.Value)
	}
	return e.Type
}

// Silent reports errors that are not shown to the user: a repeated capture,
// an event arriving while a save is running or a download outrun by a reset.
func Silent(err error) bool {
	return errors.Is(err, capture.ErrCaptureInFlight) || errors.Is(err, ErrBusy) ||
		errors.Is(err, ErrDownloadDiscarded)
}

// Dispatch routes e to the matching operation. Errors are returned and,
// unless Silent, shown on the view.
func (b *Booth) Dispatch(ctx context.Context, e Event) error {
	debug.Verbose("Event: %s", e)
	err := b.dispatch(ctx, e)
	if err != nil {
		if Silent(err) {
			debug.Verbose("Event %s ignored: %v", e, err)
		} else {
			debug.Error(err)
			b.view.ShowError(err)
		}
	}
	return err
}

func (b *Booth) dispatch(ctx context.Context, e Event) error {
	switch e.Type {
	case EventStart:
		return b.Start()
	case EventBack:
		return b.Back()
	case EventCapture:
		return b.Capture(ctx)
	case EventRetake:
		return b.Retake()
	case EventSave:
		return b.Save(ctx)
	case EventDownload:
		_, err := b.Download(ctx)
		return err
	case EventNewPhoto:
		return b.NewPhoto()
	case EventFilter:
		return b.SelectPreset(adjust.Preset(e.ID))
	case EventFrame:
		return b.SelectFrame(adjust.Frame(e.ID))
	case EventBrightness:
		return b.SetBrightness(e.Value)
	case EventContrast:
		return b.SetContrast(e.Value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, e.Type)
	}
}

// NopView discards everything.
type NopView struct{}

func (NopView) ShowScreen(screen.State)           {}
func (NopView) ShowCountdown(int)                 {}
func (NopView) ShowFlash(bool)                    {}
func (NopView) ShowPreview(*adjust.Rendered)      {}
func (NopView) ShowError(error)                   {}
func (NopView) ShowResult(backend.ShareReference) {}
func (NopView) ShowDownload(backend.Artifact)     {}
