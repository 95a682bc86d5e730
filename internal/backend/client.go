package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/cjeanneret/FotoBoo/internal/debug"
)

var (
	// ErrSaveFailed covers every upload failure: network, status, body.
	ErrSaveFailed = errors.New("save failed")
	// ErrDownloadFailed is returned when a stored photo cannot be fetched.
	ErrDownloadFailed = errors.New("download failed")
)

// JPEGQuality is used for uploaded photos.
const JPEGQuality = 90

// maxDownloadBytes caps Download; the storage backend refuses larger uploads anyway.
var maxDownloadBytes int64 = 32 << 20

var tracer = otel.Tracer("github.com/cjeanneret/FotoBoo/internal/backend")

// Options configures a Client.
type Options struct {
	BaseURL        string        // storage backend as seen from the kiosk
	PublicURL      string        // storage backend as seen from guests' phones; BaseURL if empty
	DownloadPrefix string        // download file name prefix, "fotoboo" if empty
	Timeout        time.Duration // per request, 15s if zero
}

// Client talks to the photo storage backend.
type Client struct {
	baseURL   string
	publicURL string
	prefix    string
	http      *http.Client
}

func NewClient(o Options) (*Client, error) {
	base, err := normaliseBase(o.BaseURL)
	if err != nil {
		return nil, err
	}
	public := base
	if o.PublicURL != "" {
		if public, err = normaliseBase(o.PublicURL); err != nil {
			return nil, err
		}
	}
	if o.DownloadPrefix == "" {
		o.DownloadPrefix = "fotoboo"
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	return &Client{
		baseURL:   base,
		publicURL: public,
		prefix:    o.DownloadPrefix,
		http:      &http.Client{Timeout: o.Timeout},
	}, nil
}

func normaliseBase(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid backend url %q", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func (c *Client) photoURL(base, id string) string {
	return base + "/photos/" + url.PathEscape(id)
}

type createResponse struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Save encodes img as JPEG and uploads it with a single POST /photos. It
// returns the backend id. Any failure is reported as ErrSaveFailed.
func (c *Client) Save(ctx context.Context, img image.Image) (string, error) {
	ctx, span := tracer.Start(ctx, "backend.Save", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	fail := func(format string, args ...any) (string, error) {
		err := fmt.Errorf("%w: %s", ErrSaveFailed, fmt.Sprintf(format, args...))
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		return "", err
	}

	if img == nil {
		return fail("no image")
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return fail("encode: %v", err)
	}
	size := buf.Len()
	span.SetAttributes(attribute.Int("fotoboo.bytes", size))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/photos", &buf)
	if err != nil {
		return fail("%v", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	debug.Verbose("Backend: POST %s (%d bytes)", req.URL, size)
	resp, err := c.http.Do(req)
	if err != nil {
		return fail("%v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail("backend returned %s", resp.Status)
	}
	var out createResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return fail("decode response: %v", err)
	}
	if out.ID == "" {
		return fail("response carries no id")
	}

	span.SetAttributes(attribute.String("fotoboo.photo_id", out.ID))
	debug.Upload(out.ID, size)
	return out.ID, nil
}

// Artifact is a locally saveable copy of a stored photo.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// DownloadName is the deterministic file name for a stored photo.
func (c *Client) DownloadName(id string) string {
	return c.prefix + "-" + id + ".jpg"
}

// Download fetches GET /photos/{id}.
func (c *Client) Download(ctx context.Context, id string) (Artifact, error) {
	ctx, span := tracer.Start(ctx, "backend.Download", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("fotoboo.photo_id", id))

	if id == "" {
		return Artifact{}, fmt.Errorf("%w: empty id", ErrDownloadFailed)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.photoURL(c.baseURL, id), nil)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		return Artifact{}, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, resp.Status)
		return Artifact{}, fmt.Errorf("%w: backend returned %s", ErrDownloadFailed, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if int64(len(data)) > maxDownloadBytes {
		span.SetStatus(codes.Error, "photo too large")
		return Artifact{}, fmt.Errorf("%w: photo exceeds %d bytes", ErrDownloadFailed, maxDownloadBytes)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "image/jpeg"
	}
	return Artifact{Name: c.DownloadName(id), ContentType: ct, Data: data}, nil
}
