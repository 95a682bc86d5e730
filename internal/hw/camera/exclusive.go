package camera

import (
	"context"
	"image"
	"sync"
)

// Exclusive serialises access to a Source so the capture sequence and the
// live view never read the device at the same time.
type Exclusive struct {
	mu  sync.Mutex
	src Source
}

func NewExclusive(src Source) *Exclusive {
	return &Exclusive{src: src}
}

func (e *Exclusive) Snapshot(ctx context.Context) (image.Image, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.src.Snapshot(ctx)
}

func (e *Exclusive) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src.Close()
}
