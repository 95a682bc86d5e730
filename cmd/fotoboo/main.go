package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/cjeanneret/FotoBoo/internal/backend"
	"github.com/cjeanneret/FotoBoo/internal/config"
	"github.com/cjeanneret/FotoBoo/internal/debug"
	"github.com/cjeanneret/FotoBoo/internal/hw/button"
	"github.com/cjeanneret/FotoBoo/internal/hw/camera"
	"github.com/cjeanneret/FotoBoo/internal/hw/gpio"
	"github.com/cjeanneret/FotoBoo/internal/hw/lamp"
	"github.com/cjeanneret/FotoBoo/internal/logic/booth"
	"github.com/cjeanneret/FotoBoo/internal/logic/capture"
	"github.com/cjeanneret/FotoBoo/internal/logic/screen"
	"github.com/cjeanneret/FotoBoo/internal/telemetry"
	"github.com/cjeanneret/FotoBoo/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{}
	flag.Var(webPort, "web", "web UI port; -web= for the config port (default 8080), -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	countdownSeconds := flag.Int("countdown", 0, "override countdown length in seconds (1-60)")
	backendURL := flag.String("backend", "", "override storage backend base URL")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Validate CLI overrides (zero values mean "use config")
	overrides := cliOverrides{CountdownSeconds: *countdownSeconds, BackendURL: *backendURL}
	if err := validateCLIOverrides(overrides); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, overrides)
	webPort.defaultPort = cfg.Defaults.WebPort

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	shutdownTracing, err := telemetry.Setup(ctx, "fotoboo-kiosk")
	if err != nil {
		log.Fatalf("init tracing failed: %v", err)
	}
	defer shutdownTracing(context.Background())

	// Initialize GPIO driver
	debug.Value("Mock GPIO", cfg.GPIO.Mock)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.GPIO.Mock)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()
	debug.PrintStruct("GPIO config", cfg.GPIO)

	var flashLamp capture.Flash
	if cfg.GPIO.FlashPin != 0 {
		l, err := lamp.NewGPIOFlash(gpioDriver, cfg.GPIO.FlashPin, cfg.GPIO.FlashActiveLow)
		if err != nil {
			log.Fatalf("init flash lamp failed: %v", err)
		}
		defer l.Close()
		flashLamp = l
	}

	// Initialize camera. The booth stays usable without one; capture
	// reports the device error.
	debug.Step(2, "Initializing camera")
	debug.PrintStruct("Camera config", cfg.Camera)
	var cam camera.Source
	if src, err := newCameraFromConfig(ctx, cfg); err != nil {
		debug.Error(err)
		log.Printf("camera unavailable: %v", err)
	} else {
		defer src.Close()
		cam = camera.NewExclusive(src)
	}

	// Storage backend
	debug.Step(3, "Connecting storage backend")
	debug.PrintStruct("Backend config", cfg.Backend)
	store, err := backend.NewClient(backend.Options{
		BaseURL:        cfg.Backend.BaseURL,
		PublicURL:      cfg.Backend.PublicURL,
		DownloadPrefix: cfg.Backend.DownloadPrefix,
		Timeout:        cfg.BackendTimeout(),
	})
	if err != nil {
		log.Fatalf("init backend client failed: %v", err)
	}

	broadcaster := web.NewStatusBroadcaster()
	debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
	view := web.NewView(broadcaster)

	debug.Step(4, "Starting booth")
	debug.PrintStruct("Capture config", cfg.Capture)
	b := booth.New(booth.Config{
		Camera: cam,
		Lamp:   flashLamp,
		Capture: capture.Params{
			CountdownSeconds: cfg.Capture.CountdownSeconds,
			SettleDelay:      cfg.FlashDuration(),
		},
		TickInterval: cfg.TickInterval(),
		Store:        store,
		View:         view,
	})
	defer b.Close()

	if cfg.GPIO.ButtonPin != 0 {
		go func() {
			err := button.Watch(ctx, gpioDriver, cfg.GPIO.ButtonPin, cfg.Debounce(), button.DefaultPoll, func() {
				e, ok := buttonEvent(b.State().Screen)
				if !ok {
					return
				}
				// Dispatch blocks for the whole capture or save.
				go b.Dispatch(ctx, e)
			})
			if err != nil && ctx.Err() == nil {
				log.Printf("button watcher stopped: %v", err)
			}
		}()
	}

	webAddr := fmt.Sprintf(":%d", webPort.port())
	srv := web.NewServer(webAddr, broadcaster, b, view, web.DefaultUIConfig(cfg.Capture.CountdownSeconds))
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("web server: %v", err)
	}
}

// buttonEvent maps the physical button to the main action of each screen.
func buttonEvent(s screen.State) (booth.Event, bool) {
	switch s {
	case screen.Welcome:
		return booth.Event{Type: booth.EventStart}, true
	case screen.Capture:
		return booth.Event{Type: booth.EventCapture}, true
	case screen.Preview:
		return booth.Event{Type: booth.EventSave}, true
	case screen.Result:
		return booth.Event{Type: booth.EventNewPhoto}, true
	default:
		return booth.Event{}, false
	}
}

// cliOverrides holds the flags that override the config file.
type cliOverrides struct {
	CountdownSeconds int
	BackendURL       string
}

// validateCLIOverrides checks that non-zero CLI overrides are within valid ranges.
// Zero values are ignored (they mean "use config default").
func validateCLIOverrides(o cliOverrides) error {
	if o.CountdownSeconds != 0 && (o.CountdownSeconds < 1 || o.CountdownSeconds > 60) {
		return fmt.Errorf("countdown must be between 1 and 60, got %d", o.CountdownSeconds)
	}
	if o.BackendURL != "" {
		u, err := url.Parse(o.BackendURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("backend must be an absolute URL, got %q", o.BackendURL)
		}
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-zero override values are applied.
// A backend override also moves the public URL when it was defaulted to the base URL.
func applyOverrides(cfg *config.Config, o cliOverrides) {
	if o.CountdownSeconds > 0 {
		cfg.Capture.CountdownSeconds = o.CountdownSeconds
	}
	if o.BackendURL != "" {
		if cfg.Backend.PublicURL == cfg.Backend.BaseURL {
			cfg.Backend.PublicURL = o.BackendURL
		}
		cfg.Backend.BaseURL = o.BackendURL
	}
}

// webPortFlag implements flag.Value for -web: unset or -web= → config port, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int {
	if w.val == 0 {
		return w.defaultPort
	}
	return w.val
}

// newCameraFromConfig selects a camera implementation based on configuration
// and checks it delivers frames.
func newCameraFromConfig(ctx context.Context, cfg *config.Config) (camera.Source, error) {
	settings := camera.Settings{
		Width:      cfg.Camera.Width,
		Height:     cfg.Camera.Height,
		FacingMode: cfg.Camera.FacingMode,
	}
	switch cfg.Camera.Type {
	case config.CameraMock:
		return camera.NewTestPattern(settings), nil
	case config.CameraHTTP:
		cam, err := camera.NewHTTPSnapshot(cfg.Camera.URL, settings, cfg.CameraTimeout())
		if err != nil {
			return nil, err
		}
		if err := cam.Probe(ctx); err != nil {
			cam.Close()
			return nil, err
		}
		return cam, nil
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
}
