package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes caps the size of a YAML config file.
const MaxConfigFileBytes = 1 << 20

// EnvPrefix is the prefix of every kiosk environment override.
const EnvPrefix = "FOTOBOO_"

// Camera types.
const (
	CameraMock = "mock" // test pattern, for development on PC
	CameraHTTP = "http" // snapshot URL of a camera bridge
)

// CameraConfig describes the camera source.
type CameraConfig struct {
	Type       string `yaml:"type" env:"TYPE"`               // "mock" or "http"
	URL        string `yaml:"url" env:"URL"`                 // snapshot URL (http only)
	Width      int    `yaml:"width" env:"WIDTH"`             // ideal width (default 1280)
	Height     int    `yaml:"height" env:"HEIGHT"`           // ideal height (default 720)
	FacingMode string `yaml:"facing_mode" env:"FACING_MODE"` // "user" or "environment"
	TimeoutMs  int    `yaml:"timeout_ms" env:"TIMEOUT_MS"`   // per snapshot
}

// CaptureConfig holds the capture timings.
type CaptureConfig struct {
	CountdownSeconds int `yaml:"countdown_seconds" env:"COUNTDOWN_SECONDS"` // default 3
	FlashMs          int `yaml:"flash_ms" env:"FLASH_MS"`                   // flash hold after the shot (default 300)
	TickMs           int `yaml:"tick_ms" env:"TICK_MS"`                     // countdown tick (default 1000)
}

// BackendConfig points at the photo storage backend.
type BackendConfig struct {
	BaseURL        string `yaml:"base_url" env:"URL"`                    // as reached from the kiosk
	PublicURL      string `yaml:"public_url" env:"PUBLIC_URL"`           // as reached from guests' phones (QR code)
	TimeoutMs      int    `yaml:"timeout_ms" env:"TIMEOUT_MS"`           // per request
	DownloadPrefix string `yaml:"download_prefix" env:"DOWNLOAD_PREFIX"` // <prefix>-<id>.jpg
}

// GPIOConfig describes the optional physical controls. Pin 0 means not wired.
type GPIOConfig struct {
	Mock           bool `yaml:"mock" env:"MOCK"`                         // mock driver (true=dev/test, false=real Raspberry Pi)
	ButtonPin      int  `yaml:"button_pin" env:"BUTTON_PIN"`             // capture push button to GND (BCM)
	FlashPin       int  `yaml:"flash_pin" env:"FLASH_PIN"`               // flash lamp output (BCM)
	FlashActiveLow bool `yaml:"flash_active_low" env:"FLASH_ACTIVE_LOW"` // relay boards are usually active low
	DebounceMs     int  `yaml:"debounce_ms" env:"DEBOUNCE_MS"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int `yaml:"debug_level" env:"DEBUG_LEVEL"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	WebPort    int `yaml:"web_port" env:"WEB_PORT"`       // kiosk web UI port (default 8080)
}

// Config aggregates all kiosk configuration.
type Config struct {
	Camera   CameraConfig   `yaml:"camera" envPrefix:"CAMERA_"`
	Capture  CaptureConfig  `yaml:"capture" envPrefix:"CAPTURE_"`
	Backend  BackendConfig  `yaml:"backend" envPrefix:"BACKEND_"`
	GPIO     GPIOConfig     `yaml:"gpio" envPrefix:"GPIO_"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ValidateConfigPath accepts only .yaml files placed directly in a
// directory named "configs".
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config file must have a .yaml extension: %s", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file must be in a configs/ directory: %s", path)
	}
	return nil
}

// Load reads a YAML file, applies FOTOBOO_* environment overrides and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	if err := ValidateConfigPath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file larger than %d bytes", MaxConfigFileBytes)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	// Camera
	switch cfg.Camera.Type {
	case "":
		return fmt.Errorf("camera.type is required")
	case CameraMock:
	case CameraHTTP:
		if u, err := url.Parse(cfg.Camera.URL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("camera.url must be an absolute URL for http cameras, got %q", cfg.Camera.URL)
		}
	default:
		return fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
	if cfg.Camera.Width < 0 || cfg.Camera.Height < 0 {
		return fmt.Errorf("camera width/height must be >= 0")
	}
	if cfg.Camera.Width == 0 {
		cfg.Camera.Width = 1280
	}
	if cfg.Camera.Height == 0 {
		cfg.Camera.Height = 720
	}
	switch cfg.Camera.FacingMode {
	case "":
		cfg.Camera.FacingMode = "user"
	case "user", "environment":
	default:
		return fmt.Errorf("camera.facing_mode must be user or environment, got %q", cfg.Camera.FacingMode)
	}
	if cfg.Camera.TimeoutMs <= 0 {
		cfg.Camera.TimeoutMs = 5000
	}

	// Capture
	if cfg.Capture.CountdownSeconds == 0 {
		cfg.Capture.CountdownSeconds = 3
	}
	if cfg.Capture.CountdownSeconds < 1 || cfg.Capture.CountdownSeconds > 60 {
		return fmt.Errorf("capture.countdown_seconds must be between 1 and 60, got %d", cfg.Capture.CountdownSeconds)
	}
	if cfg.Capture.FlashMs <= 0 {
		cfg.Capture.FlashMs = 300
	}
	if cfg.Capture.TickMs <= 0 {
		cfg.Capture.TickMs = 1000
	}

	// Backend
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = "http://localhost:8080"
	}
	if u, err := url.Parse(cfg.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute URL, got %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.PublicURL == "" {
		cfg.Backend.PublicURL = cfg.Backend.BaseURL
	}
	if cfg.Backend.TimeoutMs <= 0 {
		cfg.Backend.TimeoutMs = 15000
	}
	if cfg.Backend.DownloadPrefix == "" {
		cfg.Backend.DownloadPrefix = "fotoboo"
	}

	// GPIO
	if cfg.GPIO.ButtonPin < 0 || cfg.GPIO.FlashPin < 0 {
		return fmt.Errorf("gpio pins must be >= 0")
	}
	if cfg.GPIO.ButtonPin != 0 && cfg.GPIO.ButtonPin == cfg.GPIO.FlashPin {
		return fmt.Errorf("gpio.button_pin and gpio.flash_pin must differ")
	}
	if cfg.GPIO.DebounceMs <= 0 {
		cfg.GPIO.DebounceMs = 30
	}

	// Defaults
	if cfg.Defaults.DebugLevel < 0 || cfg.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", cfg.Defaults.DebugLevel)
	}
	if cfg.Defaults.WebPort == 0 {
		cfg.Defaults.WebPort = 8080
	}
	if cfg.Defaults.WebPort < 1 || cfg.Defaults.WebPort > 65535 {
		return fmt.Errorf("defaults.web_port must be 1-65535, got %d", cfg.Defaults.WebPort)
	}
	return nil
}

// CameraTimeout returns the per-snapshot timeout.
func (c *Config) CameraTimeout() time.Duration {
	return time.Duration(c.Camera.TimeoutMs) * time.Millisecond
}

// FlashDuration returns how long the flash stays on after the shot.
func (c *Config) FlashDuration() time.Duration {
	return time.Duration(c.Capture.FlashMs) * time.Millisecond
}

// TickInterval returns the countdown tick.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Capture.TickMs) * time.Millisecond
}

// BackendTimeout returns the per-request timeout of the storage backend.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutMs) * time.Millisecond
}

// Debounce returns the push button debounce time.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.GPIO.DebounceMs) * time.Millisecond
}
