package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cjeanneret/FotoBoo/internal/config"
	"github.com/cjeanneret/FotoBoo/internal/hw/camera"
	"github.com/cjeanneret/FotoBoo/internal/logic/booth"
	"github.com/cjeanneret/FotoBoo/internal/logic/screen"
)

// ---------- validateCLIOverrides ----------

func TestValidateCLIOverrides_AllZero(t *testing.T) {
	if err := validateCLIOverrides(cliOverrides{}); err != nil {
		t.Errorf("all zeros should be valid (use config defaults), got: %v", err)
	}
}

func TestValidateCLIOverrides_ValidBoundary(t *testing.T) {
	cases := []struct {
		name string
		o    cliOverrides
	}{
		{"min_countdown", cliOverrides{CountdownSeconds: 1}},
		{"max_countdown", cliOverrides{CountdownSeconds: 60}},
		{"backend", cliOverrides{BackendURL: "http://10.0.0.2:8080"}},
		{"both", cliOverrides{CountdownSeconds: 5, BackendURL: "https://photos.example.com/api"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateCLIOverrides(tc.o); err != nil {
				t.Errorf("expected valid, got: %v", err)
			}
		})
	}
}

func TestValidateCLIOverrides_OutOfRange(t *testing.T) {
	cases := []struct {
		name string
		o    cliOverrides
	}{
		{"countdown_negative", cliOverrides{CountdownSeconds: -1}},
		{"countdown_too_large", cliOverrides{CountdownSeconds: 61}},
		{"backend_relative", cliOverrides{BackendURL: "/photos"}},
		{"backend_no_scheme", cliOverrides{BackendURL: "localhost:8080"}},
		{"backend_garbage", cliOverrides{BackendURL: "::not a url"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateCLIOverrides(tc.o); err == nil {
				t.Error("expected error for out-of-range value, got nil")
			}
		})
	}
}

// ---------- applyOverrides ----------

func newTestConfig() *config.Config {
	return &config.Config{
		Camera:  config.CameraConfig{Type: config.CameraMock, Width: 1280, Height: 720},
		Capture: config.CaptureConfig{CountdownSeconds: 3, FlashMs: 300, TickMs: 1000},
		Backend: config.BackendConfig{
			BaseURL:        "http://localhost:8080",
			PublicURL:      "http://localhost:8080",
			DownloadPrefix: "fotoboo",
		},
		GPIO:     config.GPIOConfig{Mock: true},
		Defaults: config.DefaultsConfig{WebPort: 8080},
	}
}

func TestApplyOverrides_NonZero(t *testing.T) {
	cfg := newTestConfig()
	applyOverrides(cfg, cliOverrides{CountdownSeconds: 5, BackendURL: "http://10.0.0.2:9000"})
	if cfg.Capture.CountdownSeconds != 5 {
		t.Errorf("CountdownSeconds = %d, want 5", cfg.Capture.CountdownSeconds)
	}
	if cfg.Backend.BaseURL != "http://10.0.0.2:9000" {
		t.Errorf("BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.PublicURL != "http://10.0.0.2:9000" {
		t.Errorf("defaulted PublicURL should follow BaseURL, got %q", cfg.Backend.PublicURL)
	}
}

func TestApplyOverrides_KeepsExplicitPublicURL(t *testing.T) {
	cfg := newTestConfig()
	cfg.Backend.PublicURL = "https://photos.example.com"
	applyOverrides(cfg, cliOverrides{BackendURL: "http://10.0.0.2:9000"})
	if cfg.Backend.PublicURL != "https://photos.example.com" {
		t.Errorf("PublicURL = %q, want unchanged", cfg.Backend.PublicURL)
	}
}

func TestApplyOverrides_ZeroLeavesUnchanged(t *testing.T) {
	cfg := newTestConfig()
	want := *cfg

	applyOverrides(cfg, cliOverrides{})

	if *cfg != want {
		t.Errorf("config changed: %+v != %+v", *cfg, want)
	}
}

// ---------- webPortFlag ----------

func TestWebPortFlag_UnsetUsesConfigPort(t *testing.T) {
	w := &webPortFlag{defaultPort: 9090}
	if w.port() != 9090 {
		t.Errorf("expected config port 9090, got %d", w.port())
	}
}

func TestWebPortFlag_EmptyString(t *testing.T) {
	w := &webPortFlag{defaultPort: 8080}
	if err := w.Set(""); err != nil {
		t.Fatalf("Set(\"\") error: %v", err)
	}
	if w.port() != 8080 {
		t.Errorf("expected default port 8080, got %d", w.port())
	}
}

func TestWebPortFlag_ValidPorts(t *testing.T) {
	cases := []struct {
		input string
		want  int
	}{
		{"8080", 8080},
		{"1", 1},
		{"65535", 65535},
		{"3000", 3000},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(tc.input); err != nil {
				t.Fatalf("Set(%q) error: %v", tc.input, err)
			}
			if w.port() != tc.want {
				t.Errorf("port() = %d, want %d", w.port(), tc.want)
			}
		})
	}
}

func TestWebPortFlag_InvalidPorts(t *testing.T) {
	cases := []string{"0", "65536", "-1", "abc", "8080.5"}
	for _, input := range cases {
		t.Run(input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(input); err == nil {
				t.Errorf("Set(%q) should fail, got nil", input)
			}
		})
	}
}

func TestWebPortFlag_String(t *testing.T) {
	w := &webPortFlag{val: 0}
	if s := w.String(); s != "0" {
		t.Errorf("String() = %q, want \"0\"", s)
	}
	w.val = 9090
	if s := w.String(); s != "9090" {
		t.Errorf("String() = %q, want \"9090\"", s)
	}
}

// ---------- buttonEvent ----------

func TestButtonEvent(t *testing.T) {
	cases := []struct {
		s    screen.State
		want string
	}{
		{screen.Welcome, booth.EventStart},
		{screen.Capture, booth.EventCapture},
		{screen.Preview, booth.EventSave},
		{screen.Result, booth.EventNewPhoto},
	}
	for _, tc := range cases {
		e, ok := buttonEvent(tc.s)
		if !ok || e.Type != tc.want {
			t.Errorf("buttonEvent(%s) = %v %v, want %s", tc.s, e, ok, tc.want)
		}
	}
	if _, ok := buttonEvent(screen.State(42)); ok {
		t.Error("unknown screen should not map to an event")
	}
}

// ---------- newCameraFromConfig ----------

func TestNewCameraFromConfig_Mock(t *testing.T) {
	cfg := newTestConfig()
	cfg.Camera.Width, cfg.Camera.Height = 64, 36

	cam, err := newCameraFromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cam.Close()
	if _, ok := cam.(*camera.TestPattern); !ok {
		t.Errorf("camera = %T, want *camera.TestPattern", cam)
	}
}

func TestNewCameraFromConfig_HTTPProbed(t *testing.T) {
	var buf bytes.Buffer
	jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	cfg := newTestConfig()
	cfg.Camera.Type = config.CameraHTTP
	cfg.Camera.URL = srv.URL
	cfg.Camera.TimeoutMs = 1000

	cam, err := newCameraFromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cam.Close()
}

func TestNewCameraFromConfig_HTTPUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	cfg := newTestConfig()
	cfg.Camera.Type = config.CameraHTTP
	cfg.Camera.URL = srv.URL
	cfg.Camera.TimeoutMs = 200

	if _, err := newCameraFromConfig(context.Background(), cfg); !errors.Is(err, camera.ErrDeviceUnavailable) {
		t.Errorf("err = %v, want ErrDeviceUnavailable", err)
	}
	srv.Close()
}

func TestNewCameraFromConfig_Unsupported(t *testing.T) {
	cfg := newTestConfig()
	cfg.Camera.Type = "webcam"
	if _, err := newCameraFromConfig(context.Background(), cfg); err == nil {
		t.Error("expected error for unsupported camera type, got nil")
	}
}
