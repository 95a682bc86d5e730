package camera

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTestPattern_NativeResolution(t *testing.T) {
	cam := NewTestPattern(Settings{Width: 64, Height: 36})
	img, err := cam.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 64, 36) {
		t.Errorf("bounds = %v, want 64x36", img.Bounds())
	}
}

func TestTestPattern_Defaults(t *testing.T) {
	cam := NewTestPattern(Settings{})
	img, _ := cam.Snapshot(context.Background())
	if img.Bounds().Dx() != DefaultWidth || img.Bounds().Dy() != DefaultHeight {
		t.Errorf("bounds = %v, want %dx%d", img.Bounds(), DefaultWidth, DefaultHeight)
	}
}

func TestTestPattern_ClosedIsUnavailable(t *testing.T) {
	cam := NewTestPattern(Settings{Width: 8, Height: 8})
	cam.Close()
	if _, err := cam.Snapshot(context.Background()); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("err = %v, want ErrDeviceUnavailable", err)
	}
}

func jpegFrame(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.SetRGBA(0, 0, color.RGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestHTTPSnapshot_PassesSettings(t *testing.T) {
	frame := jpegFrame(t, 32, 18)
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(frame)
	}))
	defer srv.Close()

	cam, err := NewHTTPSnapshot(srv.URL+"/snapshot.jpg", Settings{Width: 1280, Height: 720, FacingMode: FacingUser}, time.Second)
	if err != nil {
		t.Fatalf("NewHTTPSnapshot: %v", err)
	}
	img, err := cam.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 18 {
		t.Errorf("native bounds = %v, want 32x18", img.Bounds())
	}
	if gotQuery != "facing=user&height=720&width=1280" {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestHTTPSnapshot_Failures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status_500", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"not_an_image", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("hello"))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			cam, _ := NewHTTPSnapshot(srv.URL, Settings{}, time.Second)
			if err := cam.Probe(context.Background()); !errors.Is(err, ErrDeviceUnavailable) {
				t.Errorf("err = %v, want ErrDeviceUnavailable", err)
			}
		})
	}
}

func TestHTTPSnapshot_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cam, _ := NewHTTPSnapshot(url, Settings{}, 200*time.Millisecond)
	if _, err := cam.Snapshot(context.Background()); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("err = %v, want ErrDeviceUnavailable", err)
	}
}

func TestNewHTTPSnapshot_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "not a url", "/relative/path"} {
		if _, err := NewHTTPSnapshot(u, Settings{}, 0); !errors.Is(err, ErrDeviceUnavailable) {
			t.Errorf("NewHTTPSnapshot(%q) err = %v, want ErrDeviceUnavailable", u, err)
		}
	}
}

// countingSource records the maximum number of concurrent Snapshot calls.
type countingSource struct {
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (c *countingSource) Snapshot(ctx context.Context) (image.Image, error) {
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		m := c.maxSeen.Load()
		if n <= m || c.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

func (c *countingSource) Close() error { return nil }

func TestExclusive_SerialisesConsumers(t *testing.T) {
	src := &countingSource{}
	ex := NewExclusive(src)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ex.Snapshot(context.Background())
		}()
	}
	wg.Wait()
	if src.maxSeen.Load() != 1 {
		t.Errorf("max concurrent snapshots = %d, want 1", src.maxSeen.Load())
	}
}

func TestExclusive_ImplementsSource(t *testing.T) {
	var _ Source = NewExclusive(NewTestPattern(Settings{Width: 2, Height: 2}))
	var _ Source = &HTTPSnapshot{}
}
