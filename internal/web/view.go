package web

import (
	"sync"

	"github.com/cjeanneret/FotoBoo/internal/backend"
	"github.com/cjeanneret/FotoBoo/internal/logic/adjust"
	"github.com/cjeanneret/FotoBoo/internal/logic/screen"
)

// View implements booth.View for browsers: every call is published to the
// broadcaster, and the latest preview, share reference and download are
// kept for the image endpoints.
type View struct {
	b *StatusBroadcaster

	mu       sync.RWMutex
	preview  *adjust.Rendered
	result   *backend.ShareReference
	artifact *backend.Artifact
}

func NewView(b *StatusBroadcaster) *View {
	return &View{b: b}
}

type screenPayload struct {
	Screen string `json:"screen"`
}

type countdownPayload struct {
	Remaining int `json:"remaining"`
}

type flashPayload struct {
	On bool `json:"on"`
}

type previewPayload struct {
	Revision    uint64             `json:"revision"`
	Adjustments adjust.Adjustments `json:"adjustments"`
	Filter      string             `json:"filter"`
	URL         string             `json:"url"`
}

type resultPayload struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	DownloadName string `json:"download_name"`
	Text         string `json:"text"`
	QRURL        string `json:"qr_url"`
}

type downloadPayload struct {
	Name string `json:"name"`
	Size int    `json:"size"`
	URL  string `json:"url"`
}

func (v *View) ShowScreen(s screen.State) {
	v.mu.Lock()
	if s != screen.Preview {
		v.preview = nil
	}
	if s != screen.Result {
		v.result = nil
		v.artifact = nil
	}
	v.mu.Unlock()
	v.b.Publish(KindScreen, screenPayload{Screen: s.String()})
}

func (v *View) ShowCountdown(remaining int) {
	v.b.Publish(KindCountdown, countdownPayload{Remaining: remaining})
}

func (v *View) ShowFlash(on bool) {
	v.b.Publish(KindFlash, flashPayload{On: on})
}

func (v *View) ShowPreview(r *adjust.Rendered) {
	if r == nil {
		return
	}
	v.mu.Lock()
	v.preview = r
	v.mu.Unlock()
	v.b.Publish(KindPreview, previewPayload{
		Revision:    r.Revision,
		Adjustments: r.Adjustments,
		Filter:      r.Adjustments.FilterString(),
		URL:         "/preview.jpg",
	})
}

func (v *View) ShowError(err error) {
	if err == nil {
		return
	}
	v.b.Broadcast("error", err.Error())
}

func (v *View) ShowResult(ref backend.ShareReference) {
	v.mu.Lock()
	v.result = &ref
	v.mu.Unlock()
	v.b.Publish(KindResult, resultPayload{
		ID:           ref.ID,
		URL:          ref.URL,
		DownloadName: ref.DownloadName,
		Text:         ref.Text,
		QRURL:        "/result/qr.png",
	})
}

func (v *View) ShowDownload(a backend.Artifact) {
	v.mu.Lock()
	v.artifact = &a
	v.mu.Unlock()
	v.b.Publish(KindDownload, downloadPayload{Name: a.Name, Size: len(a.Data), URL: "/download"})
}

// Preview returns the last published render, or nil outside Preview.
func (v *View) Preview() *adjust.Rendered {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.preview
}

// Result returns the share reference of the saved photo, if any.
func (v *View) Result() (backend.ShareReference, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.result == nil {
		return backend.ShareReference{}, false
	}
	return *v.result, true
}

// Artifact returns the last downloaded file, if any.
func (v *View) Artifact() (backend.Artifact, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.artifact == nil {
		return backend.Artifact{}, false
	}
	return *v.artifact, true
}
