// Package config handles configuration loading and validation for invertify.
package config

import (
	"fmt"
	"os"

	"github.com/soypat/invertify/codec"
	"github.com/soypat/invertify/session"
	"github.com/soypat/invertify/viewer"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Upload UploadConfig `yaml:"upload"`
	Viewer ViewerConfig `yaml:"viewer"`
	Encode EncodeConfig `yaml:"encode"`
	Engine EngineConfig `yaml:"engine"`
	Output OutputConfig `yaml:"output"`
	Window WindowConfig `yaml:"window"`
}

// UploadConfig restricts which selected files are accepted.
type UploadConfig struct {
	MaxBytes  int64    `yaml:"max_bytes"`
	MaxPixels int64    `yaml:"max_pixels"` // decoded width*height limit
	MIMETypes []string `yaml:"mime_types"`
}

// ViewerConfig holds the zoom limits of the magnified view.
type ViewerConfig struct {
	MinZoom  float32 `yaml:"min_zoom"`
	MaxZoom  float32 `yaml:"max_zoom"`
	ZoomStep float32 `yaml:"zoom_step"`
}

// EncodeConfig controls the exported image encoding.
type EncodeConfig struct {
	Quality float64 `yaml:"quality"`
}

// EngineConfig selects the inversion backend.
type EngineConfig struct {
	GPU bool `yaml:"gpu"` // use the WebGPU compute backend, falls back to CPU without an adapter
}

// OutputConfig holds where exported images are written.
type OutputConfig struct {
	Dir string `yaml:"dir"` // empty writes next to the source file
}

// WindowConfig holds the initial desktop window size.
type WindowConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	policy := session.DefaultPolicy()
	limits := viewer.DefaultLimits()
	return Config{
		Upload: UploadConfig{
			MaxBytes:  policy.MaxBytes,
			MaxPixels: policy.MaxPixels,
			MIMETypes: policy.MIMETypes,
		},
		Viewer: ViewerConfig{
			MinZoom:  limits.MinZoom,
			MaxZoom:  limits.MaxZoom,
			ZoomStep: limits.Step,
		},
		Encode: EncodeConfig{
			Quality: codec.DefaultQuality,
		},
		Window: WindowConfig{
			Width:  1024,
			Height: 640,
		},
	}
}

// Load reads configuration from the given path.
// If configPath is empty or doesn't exist, returns defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	// Apply defaults for zero values
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Upload.MaxBytes == 0 {
		c.Upload.MaxBytes = defaults.Upload.MaxBytes
	}
	if c.Upload.MaxPixels == 0 {
		c.Upload.MaxPixels = defaults.Upload.MaxPixels
	}
	if len(c.Upload.MIMETypes) == 0 {
		c.Upload.MIMETypes = defaults.Upload.MIMETypes
	}
	if c.Viewer.MinZoom == 0 {
		c.Viewer.MinZoom = defaults.Viewer.MinZoom
	}
	if c.Viewer.MaxZoom == 0 {
		c.Viewer.MaxZoom = defaults.Viewer.MaxZoom
	}
	if c.Viewer.ZoomStep == 0 {
		c.Viewer.ZoomStep = defaults.Viewer.ZoomStep
	}
	if c.Encode.Quality == 0 {
		c.Encode.Quality = defaults.Encode.Quality
	}
	if c.Window.Width == 0 {
		c.Window.Width = defaults.Window.Width
	}
	if c.Window.Height == 0 {
		c.Window.Height = defaults.Window.Height
	}
}

// Policy returns the file acceptance policy.
func (c *Config) Policy() session.Policy {
	return session.Policy{MaxBytes: c.Upload.MaxBytes, MaxPixels: c.Upload.MaxPixels, MIMETypes: c.Upload.MIMETypes}
}

// Limits returns the viewer zoom limits.
func (c *Config) Limits() viewer.Limits {
	return viewer.Limits{MinZoom: c.Viewer.MinZoom, MaxZoom: c.Viewer.MaxZoom, Step: c.Viewer.ZoomStep}
}

// EncodeOptions returns the export encoding options.
func (c *Config) EncodeOptions() codec.Options {
	return codec.Options{Format: codec.FormatPNG, Quality: c.Encode.Quality}
}
