package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes caps the size of a config file read by Load.
const MaxConfigFileBytes = 64 * 1024

// Capture types
const (
	CaptureRPiCam = "rpicam"
	CaptureMock   = "mock"
)

// Preview backends
const (
	PreviewGoCV = "gocv"
	PreviewV4L2 = "v4l2"
	PreviewMock = "mock"
)

// MaxCameras is the number of still camera ports the capture sequence walks.
const MaxCameras = 3

// CaptureConfig describes the still cameras and where their pictures go.
type CaptureConfig struct {
	Type            string `yaml:"type"`             // "rpicam" or "mock"
	Command         string `yaml:"command"`          // still capture binary, e.g. "rpicam-still"
	Directory       string `yaml:"directory"`        // output directory for cam<i>_<ts>.jpg
	CameraCount     int    `yaml:"camera_count"`     // number of still cameras (1-3)
	WidthPx         int    `yaml:"width_px"`         // still width, e.g. 3280
	HeightPx        int    `yaml:"height_px"`        // still height, e.g. 2464
	TimeoutMs       int    `yaml:"timeout_ms"`       // per-camera capture timeout
	ReadyDelayMs    int    `yaml:"ready_delay_ms"`   // delay before status returns to ready
	TimestampLayout string `yaml:"timestamp_layout"` // Go time layout used in file names
	FailCameras     []int  `yaml:"fail_cameras"`     // mock only: camera indexes that fail
}

// PreviewConfig describes the USB live view camera.
type PreviewConfig struct {
	Backend     string `yaml:"backend"`      // "gocv", "v4l2" or "mock"
	DeviceIndex int    `yaml:"device_index"` // OpenCV device index
	DevicePath  string `yaml:"device_path"`  // V4L2 device node
	WidthPx     int    `yaml:"width_px"`     // preview width, e.g. 320
	HeightPx    int    `yaml:"height_px"`    // preview height, e.g. 240
	FPS         int    `yaml:"fps"`          // redraw rate
}

// ButtonConfig describes the physical "take picture" button.
type ButtonConfig struct {
	Enabled    bool  `yaml:"enabled"`
	Pin        int   `yaml:"pin"`         // BCM pin number
	PullUp     *bool `yaml:"pull_up"`     // enable internal pull-up (default true)
	DebounceMs int   `yaml:"debounce_ms"` // ignore edges closer than this
	PollMs     int   `yaml:"poll_ms"`     // edge polling interval
}

// UIConfig holds the user-facing surfaces.
type UIConfig struct {
	Desktop bool   `yaml:"desktop"`  // open the desktop window
	Title   string `yaml:"title"`    // window title
	WebPort int    `yaml:"web_port"` // 0 = web UI disabled unless -web is given
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Capture  CaptureConfig  `yaml:"capture"`
	Preview  PreviewConfig  `yaml:"preview"`
	Button   ButtonConfig   `yaml:"button"`
	UI       UIConfig       `yaml:"ui"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ValidateConfigPath checks that path names a .yaml file directly inside a
// configs/ directory and does not climb out of it.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain '..'", path)
		}
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	if filepath.Base(filepath.Dir(clean)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
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
		return nil, fmt.Errorf("config file exceeds %d bytes", MaxConfigFileBytes)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied, as if an
// empty file had been loaded.
func Default() *Config {
	var cfg Config
	_ = cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() error {
	// Capture
	switch c.Capture.Type {
	case "":
		c.Capture.Type = CaptureRPiCam
	case CaptureRPiCam, CaptureMock:
	default:
		return fmt.Errorf("unsupported capture.type: %s", c.Capture.Type)
	}
	if c.Capture.Command == "" {
		c.Capture.Command = "rpicam-still"
	}
	if c.Capture.Directory == "" {
		c.Capture.Directory = "/home/sparky/multiimg"
	}
	if c.Capture.CameraCount == 0 {
		c.Capture.CameraCount = MaxCameras
	}
	if c.Capture.CameraCount < 1 || c.Capture.CameraCount > MaxCameras {
		return fmt.Errorf("capture.camera_count must be between 1 and %d, got %d", MaxCameras, c.Capture.CameraCount)
	}
	if c.Capture.WidthPx <= 0 {
		c.Capture.WidthPx = 3280
	}
	if c.Capture.HeightPx <= 0 {
		c.Capture.HeightPx = 2464
	}
	if c.Capture.TimeoutMs <= 0 {
		c.Capture.TimeoutMs = 10000
	}
	if c.Capture.ReadyDelayMs <= 0 {
		c.Capture.ReadyDelayMs = 1000
	}
	if c.Capture.TimestampLayout == "" {
		c.Capture.TimestampLayout = "20060102-150405"
	}

	// Preview
	switch c.Preview.Backend {
	case "":
		c.Preview.Backend = PreviewGoCV
	case PreviewGoCV, PreviewV4L2, PreviewMock:
	default:
		return fmt.Errorf("unsupported preview.backend: %s", c.Preview.Backend)
	}
	if c.Preview.DevicePath == "" {
		c.Preview.DevicePath = fmt.Sprintf("/dev/video%d", c.Preview.DeviceIndex)
	}
	if c.Preview.WidthPx <= 0 {
		c.Preview.WidthPx = 320
	}
	if c.Preview.HeightPx <= 0 {
		c.Preview.HeightPx = 240
	}
	if c.Preview.FPS <= 0 {
		c.Preview.FPS = 30
	}
	if c.Preview.FPS > 120 {
		return fmt.Errorf("preview.fps must be <= 120, got %d", c.Preview.FPS)
	}

	// Button
	if c.Button.Pin == 0 {
		c.Button.Pin = 21
	}
	if c.Button.Pin < 0 || c.Button.Pin > 27 {
		return fmt.Errorf("button.pin must be a BCM pin between 0 and 27, got %d", c.Button.Pin)
	}
	if c.Button.PullUp == nil {
		up := true
		c.Button.PullUp = &up
	}
	if c.Button.DebounceMs <= 0 {
		c.Button.DebounceMs = 50
	}
	if c.Button.PollMs <= 0 {
		c.Button.PollMs = 10
	}

	// UI
	if c.UI.Title == "" {
		c.UI.Title = "MultiCam"
	}
	if c.UI.WebPort < 0 || c.UI.WebPort > 65535 {
		return fmt.Errorf("ui.web_port must be 0-65535, got %d", c.UI.WebPort)
	}

	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

// PreviewInterval returns the redraw period of the live view.
func (c *Config) PreviewInterval() time.Duration {
	return time.Second / time.Duration(c.Preview.FPS)
}

// CaptureTimeout returns the per-camera capture timeout.
func (c *Config) CaptureTimeout() time.Duration {
	return time.Duration(c.Capture.TimeoutMs) * time.Millisecond
}

// ReadyDelay returns how long the last status message stays before "Camera is ready".
func (c *Config) ReadyDelay() time.Duration {
	return time.Duration(c.Capture.ReadyDelayMs) * time.Millisecond
}

// Debounce returns the button debounce window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Button.DebounceMs) * time.Millisecond
}

// ButtonPoll returns the button edge polling interval.
func (c *Config) ButtonPoll() time.Duration {
	return time.Duration(c.Button.PollMs) * time.Millisecond
}

// PullUp reports whether the button pin uses the internal pull-up.
func (c *Config) PullUp() bool {
	return c.Button.PullUp == nil || *c.Button.PullUp
}
