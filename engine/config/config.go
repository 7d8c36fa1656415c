package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/logger"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/profiler"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/scene"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config is the file form of the engine settings. Builder options remain the programmatic path;
// the accessor methods translate a Config into them.
type Config struct {
	Window   WindowConfig   `yaml:"window"`
	Renderer RendererConfig `yaml:"renderer"`
	Logging  LoggingConfig  `yaml:"logging"`
	Scene    SceneConfig    `yaml:"scene"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// WindowConfig describes the host window.
type WindowConfig struct {
	Title     string `yaml:"title"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Resizable bool   `yaml:"resizable"`
}

// RendererConfig selects the GPU backend and presentation settings.
type RendererConfig struct {
	// Backend is "wgpu" or "headless".
	Backend string `yaml:"backend"`
	// PresentMode is "vsync" or "uncapped".
	PresentMode           string `yaml:"presentMode"`
	ForceSoftwareRenderer bool   `yaml:"forceSoftwareRenderer"`
	GPUTiming             bool   `yaml:"gpuTiming"`
}

// LoggingConfig mirrors logger.Config.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	Name        string `yaml:"name"`
}

// SceneConfig tunes the scene update.
type SceneConfig struct {
	PhysicsWorkers int `yaml:"physicsWorkers"`
	// TickRate is the target frame rate of the engine loop.
	TickRate int `yaml:"tickRate"`
}

// MetricsConfig controls the profiler and its HTTP endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Address is the listen address of the /metrics endpoint, empty to disable serving.
	Address  string        `yaml:"address"`
	Interval time.Duration `yaml:"interval"`
}

// Default returns the settings used for every field a file leaves out.
//
// Returns:
//   - Config: the defaults
func Default() Config {
	return Config{
		Window: WindowConfig{
			Title:     "oxy sandbox",
			Width:     1280,
			Height:    720,
			Resizable: true,
		},
		Renderer: RendererConfig{
			Backend:     "wgpu",
			PresentMode: "vsync",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Scene: SceneConfig{
			PhysicsWorkers: 2,
			TickRate:       60,
		},
		Metrics: MetricsConfig{
			Interval: time.Second,
		},
	}
}

// Load reads and validates a YAML configuration file.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - Config: the configuration, defaults filled in
//   - error: a read, decode or validation error
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML configuration.
//
// Parameters:
//   - data: the YAML document
//
// Returns:
//   - Config: the configuration, defaults filled in
//   - error: a decode or validation error
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid field.
//
// Returns:
//   - error: the combined validation errors, each wrapping ErrInvalid
func (c Config) Validate() error {
	var err error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		err = multierr.Append(err, fmt.Errorf("config: window size %dx%d: %w", c.Window.Width, c.Window.Height, ErrInvalid))
	}
	if _, perr := c.BackendType(); perr != nil {
		err = multierr.Append(err, perr)
	}
	if _, perr := renderer.ParsePresentMode(c.Renderer.PresentMode); perr != nil {
		err = multierr.Append(err, fmt.Errorf("config: %w: %w", ErrInvalid, perr))
	}
	if c.Scene.PhysicsWorkers <= 0 {
		err = multierr.Append(err, fmt.Errorf("config: physicsWorkers %d: %w", c.Scene.PhysicsWorkers, ErrInvalid))
	}
	if c.Scene.TickRate <= 0 {
		err = multierr.Append(err, fmt.Errorf("config: tickRate %d: %w", c.Scene.TickRate, ErrInvalid))
	}
	if c.Metrics.Enabled && c.Metrics.Interval <= 0 {
		err = multierr.Append(err, fmt.Errorf("config: metrics interval %s: %w", c.Metrics.Interval, ErrInvalid))
	}
	return err
}

// BackendType returns the renderer backend named by Renderer.Backend.
//
// Returns:
//   - renderer.RendererBackendType: the backend
//   - error: an error wrapping ErrInvalid for an unknown name
func (c Config) BackendType() (renderer.RendererBackendType, error) {
	switch c.Renderer.Backend {
	case "wgpu":
		return renderer.BackendTypeWGPU, nil
	case "headless":
		return renderer.BackendTypeHeadless, nil
	default:
		return 0, fmt.Errorf("config: unknown backend %q: %w", c.Renderer.Backend, ErrInvalid)
	}
}

// RendererOptions translates the renderer settings into builder options.
//
// Returns:
//   - []renderer.RendererBuilderOption: the options
func (c Config) RendererOptions() []renderer.RendererBuilderOption {
	mode, err := renderer.ParsePresentMode(c.Renderer.PresentMode)
	if err != nil {
		mode = renderer.PresentModeVSync
	}
	return []renderer.RendererBuilderOption{
		renderer.WithPresentMode(mode),
		renderer.WithForceSoftwareRenderer(c.Renderer.ForceSoftwareRenderer),
		renderer.WithGPUTiming(c.Renderer.GPUTiming),
	}
}

// SceneOptions translates the scene settings into builder options.
//
// Returns:
//   - []scene.SceneBuilderOption: the options
func (c Config) SceneOptions() []scene.SceneBuilderOption {
	return []scene.SceneBuilderOption{scene.WithPhysicsWorkers(c.Scene.PhysicsWorkers)}
}

// ProfilerOptions translates the metrics settings into builder options.
//
// Returns:
//   - []profiler.ProfilerBuilderOption: the options
func (c Config) ProfilerOptions() []profiler.ProfilerBuilderOption {
	return []profiler.ProfilerBuilderOption{profiler.WithUpdateInterval(c.Metrics.Interval)}
}

// LoggerConfig returns the logging settings in the form logger.New takes.
//
// Returns:
//   - logger.Config: the logger configuration
func (c Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:       c.Logging.Level,
		Development: c.Logging.Development,
		Name:        c.Logging.Name,
	}
}
