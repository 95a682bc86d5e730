package backend

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 16, 9))
	for i := range img.Pix {
		img.Pix[i] = 180
	}
	img.SetRGBA(1, 1, color.RGBA{255, 0, 0, 255})
	return img
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(Options{BaseURL: url, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestSave_Success(t *testing.T) {
	var gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/photos" {
			t.Errorf("request = %s %s, want POST /photos", r.Method, r.URL.Path)
		}
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"abc123","created_at":"2026-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	id, err := newTestClient(t, srv.URL+"/").Save(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id != "abc123" {
		t.Errorf("id = %q, want abc123", id)
	}
	if gotType != "image/jpeg" {
		t.Errorf("Content-Type = %q", gotType)
	}
	img, err := jpeg.Decode(bytes.NewReader(gotBody))
	if err != nil {
		t.Fatalf("payload is not a JPEG: %v", err)
	}
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 9 {
		t.Errorf("payload bounds = %v", img.Bounds())
	}
}

func TestSave_AcceptsAny2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"ok200"}`))
	}))
	defer srv.Close()
	if id, err := newTestClient(t, srv.URL).Save(context.Background(), testImage()); err != nil || id != "ok200" {
		t.Errorf("Save = %q, %v", id, err)
	}
}

func TestSave_Failures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status_500", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"failed to save photo"}`, http.StatusInternalServerError)
		}},
		{"status_400", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"invalid photo data"}`, http.StatusBadRequest)
		}},
		{"bad_json", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte("not json"))
		}},
		{"empty_id", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":""}`))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			id, err := newTestClient(t, srv.URL).Save(context.Background(), testImage())
			if !errors.Is(err, ErrSaveFailed) {
				t.Errorf("err = %v, want ErrSaveFailed", err)
			}
			if id != "" {
				t.Errorf("id = %q, want empty", id)
			}
		})
	}
}

func TestSave_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	if _, err := newTestClient(t, url).Save(context.Background(), testImage()); !errors.Is(err, ErrSaveFailed) {
		t.Errorf("err = %v, want ErrSaveFailed", err)
	}
}

func TestSave_NilImage(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	if _, err := c.Save(context.Background(), nil); !errors.Is(err, ErrSaveFailed) {
		t.Errorf("err = %v, want ErrSaveFailed", err)
	}
}

func TestNewClient_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "backend:8080", "/photos"} {
		if _, err := NewClient(Options{BaseURL: u}); err == nil {
			t.Errorf("NewClient(%q) succeeded", u)
		}
	}
	if _, err := NewClient(Options{BaseURL: "http://ok", PublicURL: "nope"}); err == nil {
		t.Error("invalid public url accepted")
	}
}

func TestShareReference_StableAndSelfContained(t *testing.T) {
	c, _ := NewClient(Options{BaseURL: "http://backend:8080", PublicURL: "https://photos.example.org/"})
	a, err := c.ShareReference("abc123")
	if err != nil {
		t.Fatalf("ShareReference: %v", err)
	}
	b, _ := c.ShareReference("abc123")

	if a.URL != "https://photos.example.org/photos/abc123" {
		t.Errorf("URL = %q", a.URL)
	}
	if a.DownloadName != "fotoboo-abc123.jpg" {
		t.Errorf("DownloadName = %q", a.DownloadName)
	}
	if !strings.Contains(a.Text, "abc123") {
		t.Errorf("Text = %q, want it to contain the id", a.Text)
	}
	if !bytes.HasPrefix(a.QRCode, []byte("\x89PNG\r\n\x1a\n")) {
		t.Error("QRCode is not a PNG")
	}
	if a.URL != b.URL || a.Text != b.Text || a.DownloadName != b.DownloadName || !bytes.Equal(a.QRCode, b.QRCode) {
		t.Error("ShareReference is not stable across calls")
	}

	// a fresh client with the same options rebuilds the same reference
	c2, _ := NewClient(Options{BaseURL: "http://backend:8080", PublicURL: "https://photos.example.org"})
	d, _ := c2.ShareReference("abc123")
	if d.URL != a.URL || !bytes.Equal(d.QRCode, a.QRCode) {
		t.Error("ShareReference depends on client state")
	}
}

func TestShareReference_EmptyID(t *testing.T) {
	c := newTestClient(t, "http://backend")
	if _, err := c.ShareReference(""); err == nil {
		t.Error("empty id accepted")
	}
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/photos/abc123" {
			http.Error(w, `{"error":"photo not found"}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()
	c, _ := NewClient(Options{BaseURL: srv.URL, DownloadPrefix: "party"})

	art, err := c.Download(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if art.Name != "party-abc123.jpg" || string(art.Data) != "jpeg-bytes" || art.ContentType != "image/jpeg" {
		t.Errorf("artifact = %+v", art)
	}

	if _, err := c.Download(context.Background(), "missing"); !errors.Is(err, ErrDownloadFailed) {
		t.Errorf("missing: err = %v, want ErrDownloadFailed", err)
	}
	if _, err := c.Download(context.Background(), ""); !errors.Is(err, ErrDownloadFailed) {
		t.Errorf("empty id: err = %v, want ErrDownloadFailed", err)
	}
}

func TestDownload_OversizedPhotoFails(t *testing.T) {
	old := maxDownloadBytes
	maxDownloadBytes = 8
	defer func() { maxDownloadBytes = old }()

	sizes := map[string]int{"/photos/exact": 8, "/photos/over": 9}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte(strings.Repeat("x", sizes[r.URL.Path])))
	}))
	defer srv.Close()
	c, _ := NewClient(Options{BaseURL: srv.URL})

	art, err := c.Download(context.Background(), "exact")
	if err != nil || len(art.Data) != 8 {
		t.Errorf("exact: len = %d, err = %v, want 8 bytes", len(art.Data), err)
	}
	if _, err := c.Download(context.Background(), "over"); !errors.Is(err, ErrDownloadFailed) {
		t.Errorf("over: err = %v, want ErrDownloadFailed", err)
	}
}
