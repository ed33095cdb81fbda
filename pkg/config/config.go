// Package config provides configuration loading and management for isocontour.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"isocontour/internal/models"
	"isocontour/pkg/interpolation"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Contour extraction parameters
	Contour struct {
		// Isovalues lists the surfaces to extract, one mesh part each
		Isovalues []float64 `yaml:"isovalues"`

		// LowerInside treats values below the isovalue as the inside of the surface
		LowerInside bool `yaml:"lowerInside"`

		// FindNormals computes per-vertex normals from the volume gradient
		FindNormals bool `yaml:"findNormals"`

		// HistogramBins is the span-space histogram resolution
		HistogramBins int `yaml:"histogramBins"`
	} `yaml:"contour"`

	// Volume geometry
	Volume struct {
		// Spacing is the physical voxel size in mm
		Spacing models.Spacing `yaml:"spacing"`

		// Origin is the physical position of the first sample
		Origin [3]float64 `yaml:"origin"`

		// Blind is the "no data" value of 8-bit volumes, ignored when nil
		Blind *int `yaml:"blind,omitempty"`

		// Smooth is the in-plane Gaussian sigma in voxels, 0 to disable
		Smooth float64 `yaml:"smooth"`
	} `yaml:"volume"`

	// Slice interpolation parameters
	Interpolation struct {
		// Factor subdivides every slice gap, 1 to disable
		Factor int `yaml:"factor"`

		// Model is the variogram model: spherical, exponential or gaussian
		Model string `yaml:"model"`

		// Range is the variogram range in mm
		Range float64 `yaml:"range"`

		// Nugget is the variogram nugget
		Nugget float64 `yaml:"nugget"`

		// Neighbors is the number of samples used per estimate
		Neighbors int `yaml:"neighbors"`
	} `yaml:"interpolation"`

	// Processing parameters
	Processing struct {
		// NumCores bounds concurrent isovalue extractions, 0 for all CPUs
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// ASCII writes text STL instead of binary
		ASCII bool `yaml:"ascii"`

		// ExtractSlices saves orthogonal slices of the input volume
		ExtractSlices bool `yaml:"extractSlices"`

		// SlicesDir is where extracted slices are written
		SlicesDir string `yaml:"slicesDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Contour.Isovalues = []float64{0.5}
	cfg.Contour.LowerInside = false
	cfg.Contour.FindNormals = true
	cfg.Contour.HistogramBins = 300

	cfg.Volume.Spacing = models.Spacing{X: 1, Y: 1, Z: 1}
	cfg.Volume.Smooth = 0

	kp := interpolation.DefaultParams()
	cfg.Interpolation.Factor = 1
	cfg.Interpolation.Model = kp.Model.String()
	cfg.Interpolation.Range = kp.Range
	cfg.Interpolation.Nugget = kp.Nugget
	cfg.Interpolation.Neighbors = kp.Neighbors

	cfg.Processing.NumCores = 0

	cfg.Output.ASCII = false
	cfg.Output.ExtractSlices = false
	cfg.Output.SlicesDir = "slices"
	cfg.Output.Verbose = true

	return cfg
}

// Validate checks values that would otherwise fail deep inside extraction.
func (c *Config) Validate() error {
	if c.Contour.HistogramBins < 1 {
		return fmt.Errorf("histogramBins must be positive, got %d", c.Contour.HistogramBins)
	}
	for _, iso := range c.Contour.Isovalues {
		if math.IsNaN(iso) || math.IsInf(iso, 0) {
			return fmt.Errorf("isovalue %v is not finite", iso)
		}
	}
	if !c.Volume.Spacing.Valid() {
		return fmt.Errorf("spacing must be positive, got %+v", c.Volume.Spacing)
	}
	if b := c.Volume.Blind; b != nil && (*b < -128 || *b > 255) {
		return fmt.Errorf("blind value %d does not fit in 8 bits", *b)
	}
	if c.Volume.Smooth < 0 {
		return fmt.Errorf("smooth must not be negative, got %v", c.Volume.Smooth)
	}
	if c.Interpolation.Factor < 1 {
		return fmt.Errorf("interpolation factor must be at least 1, got %d", c.Interpolation.Factor)
	}
	// Smoothing and interpolation produce float32 volumes with no blind value.
	if c.Volume.Blind != nil && (c.Volume.Smooth > 0 || c.Interpolation.Factor > 1) {
		return fmt.Errorf("blind value %d cannot be combined with smoothing or interpolation", *c.Volume.Blind)
	}
	if _, err := c.KrigingParams(); err != nil {
		return err
	}
	if c.Processing.NumCores < 0 {
		return fmt.Errorf("numCores must not be negative, got %d", c.Processing.NumCores)
	}
	return nil
}

// KrigingParams converts the interpolation section for the interpolator.
// The sill is left at zero so it is estimated from the data.
func (c *Config) KrigingParams() (interpolation.KrigingParams, error) {
	p := interpolation.KrigingParams{
		Range:     c.Interpolation.Range,
		Nugget:    c.Interpolation.Nugget,
		Neighbors: c.Interpolation.Neighbors,
	}
	model, err := interpolation.ParseVariogramModel(c.Interpolation.Model)
	if err != nil {
		return p, err
	}
	p.Model = model
	if p.Range <= 0 {
		return p, fmt.Errorf("interpolation range must be positive, got %v", p.Range)
	}
	if p.Nugget < 0 {
		return p, fmt.Errorf("interpolation nugget must not be negative, got %v", p.Nugget)
	}
	if p.Neighbors < 1 || p.Neighbors > interpolation.MaxNeighbors {
		return p, fmt.Errorf("interpolation neighbors must be in [1, %d], got %d", interpolation.MaxNeighbors, p.Neighbors)
	}
	return p, nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
