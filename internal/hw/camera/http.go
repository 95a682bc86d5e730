package camera

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cjeanneret/FotoBoo/internal/debug"
)

// maxFrameBytes caps a single snapshot download.
const maxFrameBytes = 32 << 20

// HTTPSnapshot is a Source backed by a camera bridge exposing a still-frame
// URL (IP cameras, a USB webcam behind a small streaming daemon, etc.).
// Each Snapshot is one GET; the ideal resolution and facing mode are passed
// as query parameters.
type HTTPSnapshot struct {
	endpoint string
	settings Settings
	client   *http.Client
}

// NewHTTPSnapshot creates a snapshot source. The device is not contacted
// until Probe or Snapshot.
func NewHTTPSnapshot(endpoint string, s Settings, timeout time.Duration) (*HTTPSnapshot, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid snapshot url %q", ErrDeviceUnavailable, endpoint)
	}
	s = s.withDefaults()
	q := u.Query()
	q.Set("width", strconv.Itoa(s.Width))
	q.Set("height", strconv.Itoa(s.Height))
	q.Set("facing", s.FacingMode)
	u.RawQuery = q.Encode()

	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSnapshot{
		endpoint: u.String(),
		settings: s,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Probe grabs one frame to check the device is reachable.
func (h *HTTPSnapshot) Probe(ctx context.Context) error {
	img, err := h.Snapshot(ctx)
	if err != nil {
		return err
	}
	b := img.Bounds()
	debug.Info("Camera ready: %s (%dx%d native)", h.endpoint, b.Dx(), b.Dy())
	return nil
}

// Snapshot downloads and decodes one frame.
func (h *HTTPSnapshot) Snapshot(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	debug.Verbose("Camera: GET %s", h.endpoint)
	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: snapshot returned %s", ErrDeviceUnavailable, resp.Status)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxFrameBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: decode frame: %v", ErrDeviceUnavailable, err)
	}
	return img, nil
}

// Close releases idle connections.
func (h *HTTPSnapshot) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
