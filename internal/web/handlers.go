package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cjeanneret/FotoBoo/internal/backend"
	"github.com/cjeanneret/FotoBoo/internal/debug"
	"github.com/cjeanneret/FotoBoo/internal/hw/camera"
	"github.com/cjeanneret/FotoBoo/internal/logic/adjust"
	"github.com/cjeanneret/FotoBoo/internal/logic/booth"
	"github.com/cjeanneret/FotoBoo/internal/logic/capture"
	"github.com/cjeanneret/FotoBoo/internal/logic/screen"
	"github.com/cjeanneret/FotoBoo/internal/logic/session"
)

// maxEventBytes caps a control event body.
const maxEventBytes = 4 << 10

// Booth is the part of booth.Booth the handlers drive.
type Booth interface {
	Dispatch(ctx context.Context, e booth.Event) error
	State() booth.State
	LiveFrame(ctx context.Context) (image.Image, error)
}

// UIConfig holds the values the page needs to build its controls.
type UIConfig struct {
	CountdownSeconds int             `json:"countdown_seconds"`
	Presets          []adjust.Preset `json:"presets"`
	Frames           []adjust.Frame  `json:"frames"`
	SliderMin        int             `json:"slider_min"`
	SliderMax        int             `json:"slider_max"`
	SliderDefault    int             `json:"slider_default"`
}

// DefaultUIConfig lists every preset and frame with the slider bounds.
func DefaultUIConfig(countdownSeconds int) UIConfig {
	return UIConfig{
		CountdownSeconds: countdownSeconds,
		Presets:          adjust.Presets,
		Frames:           adjust.Frames,
		SliderMin:        adjust.SliderMin,
		SliderMax:        adjust.SliderMax,
		SliderDefault:    adjust.SliderDefault,
	}
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Booth       Booth
	View        *View
	UI          UIConfig
	staticFS    fs.FS

	// ctx bounds events that outlive their request (capture, save, download).
	ctx      context.Context
	inflight sync.WaitGroup
}

// NewHandlers creates handlers with the given dependencies.
// If b is nil, POST /events returns 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, b Booth, view *View, ui UIConfig, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Booth:       b,
		View:        view,
		UI:          ui,
		staticFS:    staticFS,
		ctx:         context.Background(),
	}
}

// ValidateEvent rejects unknown event types and out-of-range values before
// they reach the booth.
func ValidateEvent(e booth.Event) error {
	switch e.Type {
	case booth.EventStart, booth.EventBack, booth.EventCapture, booth.EventRetake,
		booth.EventSave, booth.EventDownload, booth.EventNewPhoto:
		return nil
	case booth.EventFilter:
		_, err := adjust.ParsePreset(e.ID)
		return err
	case booth.EventFrame:
		_, err := adjust.ParseFrame(e.ID)
		return err
	case booth.EventBrightness:
		return adjust.ValidateSlider("brightness", e.Value)
	case booth.EventContrast:
		return adjust.ValidateSlider("contrast", e.Value)
	case "":
		return fmt.Errorf("%w: missing type", booth.ErrUnknownEvent)
	default:
		return fmt.Errorf("%w: %q", booth.ErrUnknownEvent, e.Type)
	}
}

// background reports events that wait on the camera or the network.
func background(e booth.Event) bool {
	switch e.Type {
	case booth.EventCapture, booth.EventSave, booth.EventDownload:
		return true
	}
	return false
}

// StatusFor maps booth errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, booth.ErrUnknownEvent), errors.Is(err, adjust.ErrInvalidAdjustment):
		return http.StatusBadRequest
	case errors.Is(err, booth.ErrBusy), errors.Is(err, capture.ErrCaptureInFlight),
		errors.Is(err, screen.ErrInvalidTransition), errors.Is(err, booth.ErrNoCapture),
		errors.Is(err, booth.ErrNotPersisted), errors.Is(err, session.ErrAlreadyPersisted),
		errors.Is(err, booth.ErrDownloadDiscarded):
		return http.StatusConflict
	case errors.Is(err, camera.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, backend.ErrSaveFailed), errors.Is(err, backend.ErrDownloadFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errBusy is returned by submit when a capture or save is still running.
var errBusy = errors.New("capture or save in progress")

// submit validates e and hands it to the booth. Background events return
// immediately with started=true; their outcome reaches clients as view
// events.
func (h *Handlers) submit(ctx context.Context, e booth.Event) (started bool, err error) {
	if err := ValidateEvent(e); err != nil {
		return false, err
	}
	if !background(e) {
		return false, h.Booth.Dispatch(ctx, e)
	}
	st := h.Booth.State()
	if e.Type == booth.EventCapture && !st.CameraReady {
		// fails before any countdown
		return false, h.Booth.Dispatch(ctx, e)
	}
	if st.Capturing || st.Saving {
		return false, errBusy
	}
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		if err := h.Booth.Dispatch(h.ctx, e); err != nil && !booth.Silent(err) {
			debug.Verbose("Event %s failed: %v", e, err)
		}
	}()
	return true, nil
}

// Wait blocks until background events have returned.
func (h *Handlers) Wait() {
	h.inflight.Wait()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// HandleEvent handles POST /events with a JSON booth.Event.
func (h *Handlers) HandleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var e booth.Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBytes)).Decode(&e); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if h.Booth == nil {
		http.Error(w, "booth not configured", http.StatusServiceUnavailable)
		return
	}

	started, err := h.submit(r.Context(), e)
	switch {
	case errors.Is(err, errBusy):
		http.Error(w, err.Error(), http.StatusConflict)
	case err != nil:
		http.Error(w, err.Error(), StatusFor(err))
	case started:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	default:
		writeJSON(w, http.StatusOK, h.Booth.State())
	}
}

// HandleState returns the booth state as JSON.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	if h.Booth == nil {
		http.Error(w, "booth not configured", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, h.Booth.State())
}

// HandleConfig returns the control definitions (from config) as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.UI)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

func writeJPEG(w http.ResponseWriter, img image.Image, quality int) {
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); err != nil {
		debug.Verbose("web: encode jpeg: %v", err)
	}
}

// HandlePreview serves the current rendered preview with its frame.
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	p := h.View.Preview()
	if p == nil {
		http.Error(w, "no preview", http.StatusNotFound)
		return
	}
	w.Header().Set("X-Preview-Revision", strconv.FormatUint(p.Revision, 10))
	writeJPEG(w, p.Composite(), 85)
}

// HandleLive serves one fresh camera frame for the capture screen.
func (h *Handlers) HandleLive(w http.ResponseWriter, r *http.Request) {
	if h.Booth == nil {
		http.Error(w, "booth not configured", http.StatusServiceUnavailable)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	img, err := h.Booth.LiveFrame(ctx)
	if err != nil {
		http.Error(w, err.Error(), StatusFor(err))
		return
	}
	writeJPEG(w, img, 70)
}

// HandleQR serves the QR code of the saved photo.
func (h *Handlers) HandleQR(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.View.Result()
	if !ok || len(ref.QRCode) == 0 {
		http.Error(w, "no saved photo", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(ref.QRCode)
}

// HandleDownload serves the file fetched by the last download event.
func (h *Handlers) HandleDownload(w http.ResponseWriter, r *http.Request) {
	a, ok := h.View.Artifact()
	if !ok {
		http.Error(w, "nothing to download", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	w.Write(a.Data)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
