package adjust

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/cjeanneret/FotoBoo/internal/debug"
)

// PublishFunc receives each render that is still current when it completes.
// It is called with the previewer lock held and must not call back into the Previewer.
type PublishFunc func(r *Rendered)

// Previewer keeps the latest preview of a session. Each Request supersedes
// the previous one: a pending render is cancelled and its result dropped,
// so during a slider drag only the last value is ever shown.
type Previewer struct {
	publish PublishFunc

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	latest  *Rendered
	pending sync.WaitGroup
}

func NewPreviewer(publish PublishFunc) *Previewer {
	if publish == nil {
		publish = func(*Rendered) {}
	}
	return &Previewer{publish: publish}
}

// Request schedules a render of raw with adj, tagged with the session
// revision. A nil capture is a no-op: there is nothing to preview yet.
func (p *Previewer) Request(raw image.Image, adj Adjustments, revision uint64) {
	if raw == nil {
		return
	}

	p.mu.Lock()
	p.gen++
	gen := p.gen
	if p.cancel != nil {
		p.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.pending.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.pending.Done()
		defer cancel()

		r, err := Render(ctx, raw, adj)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				debug.Error(err)
			}
			return
		}
		r.Revision = revision

		p.mu.Lock()
		defer p.mu.Unlock()
		if gen != p.gen {
			return // superseded while rendering
		}
		p.latest = r
		if debug.IsEnabled(debug.LevelVerbose) {
			debug.Render(revision, adj.FilterString(), r.Image.Bounds().Dx(), r.Image.Bounds().Dy())
		}
		p.publish(r)
	}()
}

// Discard drops the current preview and any render still in flight.
func (p *Previewer) Discard() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.latest = nil
}

// Latest returns the most recent current render, or nil.
func (p *Previewer) Latest() *Rendered {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest
}

// Wait blocks until every scheduled render goroutine has returned.
func (p *Previewer) Wait() {
	p.pending.Wait()
}
