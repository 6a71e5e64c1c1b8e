// Package config loads the application settings.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

// Camera device kinds.
const (
	DeviceGStreamer = "gst"
	DevicePattern   = "pattern"
)

// Camera open policies.
const (
	PolicyEager = "eager"
	PolicyLazy  = "lazy"
)

// Config is the on-disk configuration. Fields absent from the file keep
// their defaults.
type Config struct {
	Window   Window `yaml:"window"`
	Language string `yaml:"language"`
	Camera   Camera `yaml:"camera"`
	Trace    Trace  `yaml:"trace"`
	Picker   Picker `yaml:"picker"`
	Log      string `yaml:"log"`
	Debug    Debug  `yaml:"debug"`
}

type Window struct {
	Title  string `yaml:"title"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

type Camera struct {
	Kind    string        `yaml:"kind"`
	Device  string        `yaml:"device"`
	Facing  string        `yaml:"facing"`
	Width   int           `yaml:"width"`
	Height  int           `yaml:"height"`
	FPS     float64       `yaml:"fps"`
	Timeout time.Duration `yaml:"timeout"`
	Policy  string        `yaml:"policy"`
}

type Trace struct {
	// Transition is the opacity animation length. Zero turns it off.
	Transition     time.Duration `yaml:"transition"`
	DefaultOpacity float64       `yaml:"default_opacity"`
	ConfirmBack    bool          `yaml:"confirm_back"`
}

type Picker struct {
	Dir string `yaml:"dir"`
}

type Debug struct {
	ShowFPS bool   `yaml:"show_fps"`
	Scene   bool   `yaml:"scene"`
	Script  string `yaml:"script"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Window: Window{Title: "Kalcame", Width: 960, Height: 720},
		Camera: Camera{
			Kind:    DeviceGStreamer,
			Facing:  "environment",
			Width:   1280,
			Height:  720,
			FPS:     30,
			Timeout: 30 * time.Second,
			Policy:  PolicyEager,
		},
		Trace: Trace{
			DefaultOpacity: 0.5,
			Transition:     150 * time.Millisecond,
		},
		Log: "<root>=INFO",
	}
}

// Dir returns the kalcame directory under the user config directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Annotate(err, "locating config directory")
	}
	return filepath.Join(base, "kalcame"), nil
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", errors.Trace(err)
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads path on top of Default. A missing file is not an error when
// optional is true.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && optional {
		return cfg, nil
	}
	if err != nil {
		return cfg, errors.Annotatef(err, "reading %s", path)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, errors.Annotatef(err, "loading %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML over cfg and validates the result.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(cfg.Validate())
}

// Validate rejects values the application cannot run with.
func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return errors.NotValidf("window size %dx%d", c.Window.Width, c.Window.Height)
	}
	switch c.Camera.Kind {
	case DeviceGStreamer, DevicePattern:
	default:
		return errors.NotValidf("camera kind %q", c.Camera.Kind)
	}
	switch c.Camera.Facing {
	case "environment", "user":
	default:
		return errors.NotValidf("camera facing %q", c.Camera.Facing)
	}
	switch c.Camera.Policy {
	case PolicyEager, PolicyLazy:
	default:
		return errors.NotValidf("camera policy %q", c.Camera.Policy)
	}
	if c.Camera.Width < 0 || c.Camera.Height < 0 || c.Camera.FPS < 0 {
		return errors.NotValidf("camera mode %dx%d@%v", c.Camera.Width, c.Camera.Height, c.Camera.FPS)
	}
	if c.Camera.Timeout < 0 {
		return errors.NotValidf("camera timeout %v", c.Camera.Timeout)
	}
	if c.Trace.DefaultOpacity < 0 || c.Trace.DefaultOpacity > 1 {
		return errors.NotValidf("default opacity %v", c.Trace.DefaultOpacity)
	}
	if c.Trace.Transition < 0 {
		return errors.NotValidf("opacity transition %v", c.Trace.Transition)
	}
	return nil
}
