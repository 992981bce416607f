// Package config provides configuration loading and management for sparseframe.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"sparseframe/pkg/densify"
	"sparseframe/pkg/synth"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// Workers is the number of goroutines materializing frames in parallel
		Workers int `yaml:"workers"`

		// Strategy selects the materializer: auto, reference or optimized
		Strategy string `yaml:"strategy"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// Format is the image format of rendered frames: png or jpg
		Format string `yaml:"format"`

		// Directory receives rendered frames and plots
		Directory string `yaml:"directory"`

		// Compression is the chunk codec of generated stores: raw or zstd
		Compression string `yaml:"compression"`

		// SaveProfiles additionally plots the background profiles
		SaveProfiles bool `yaml:"saveProfiles"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	// Verify parameters
	Verify struct {
		// Tolerance is the largest accepted per-pixel difference
		Tolerance float64 `yaml:"tolerance"`

		// MaxDifferingFraction bounds the share of pixels that may differ at all
		MaxDifferingFraction float64 `yaml:"maxDifferingFraction"`
	} `yaml:"verify"`

	// Synth holds the parameters of generated series
	Synth synth.Params `yaml:"synth"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.Workers = runtime.NumCPU()
	cfg.Processing.Strategy = densify.StrategyAuto.String()

	cfg.Output.Format = "png"
	cfg.Output.Directory = "frames"
	cfg.Output.Compression = "zstd"
	cfg.Output.SaveProfiles = false
	cfg.Output.Verbose = true

	cfg.Verify.Tolerance = 1
	cfg.Verify.MaxDifferingFraction = 0.002

	cfg.Synth = synth.DefaultParams()

	return cfg
}

// Validate reports the first setting that cannot be used
func (c *Config) Validate() error {
	if _, err := densify.ParseStrategy(c.Processing.Strategy); err != nil {
		return fmt.Errorf("processing.strategy: %w", err)
	}
	switch c.Output.Format {
	case "png", "jpg", "jpeg":
	default:
		return fmt.Errorf("output.format: unsupported %q", c.Output.Format)
	}
	switch c.Output.Compression {
	case "raw", "zstd":
	default:
		return fmt.Errorf("output.compression: unsupported %q", c.Output.Compression)
	}
	if c.Verify.Tolerance < 0 || c.Verify.MaxDifferingFraction < 0 || c.Verify.MaxDifferingFraction > 1 {
		return fmt.Errorf("verify: tolerance %v and fraction %v out of range", c.Verify.Tolerance, c.Verify.MaxDifferingFraction)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

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
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
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
