// Package config provides configuration loading and management for medfilt.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"medfilt/internal/models"
)

// Backend names accepted in Workers.Backend
const (
	BackendLocal = "local"
	BackendRedis = "redis"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Filter parameters
	Filter struct {
		// Size is the odd width of the square median window
		Size int `yaml:"size"`
	} `yaml:"filter"`

	// Input and output locations
	Paths struct {
		// Input is the directory whose images are filtered
		Input string `yaml:"input"`

		// Output is the directory receiving the filtered copies
		Output string `yaml:"output"`

		// Count limits the number of images taken from Input; -1 processes
		// every listed image
		Count int `yaml:"count"`
	} `yaml:"paths"`

	// Worker group parameters
	Workers struct {
		// Count is the number of workers in a local group, or the group size
		// each process joins when Backend is redis
		Count int `yaml:"count"`

		// Backend selects the coordination mechanism: local or redis
		Backend string `yaml:"backend"`
	} `yaml:"workers"`

	// Redis coordination, used when Workers.Backend is redis
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`

		// Job is the name shared by every process of one run
		Job string `yaml:"job"`

		// Rank is this process's rank; -1 claims one from the server
		Rank int `yaml:"rank"`

		// KeyTTL bounds the lifetime of coordination keys
		KeyTTL time.Duration `yaml:"keyTTL"`
	} `yaml:"redis"`

	// Output parameters
	Output struct {
		// Report is an optional path for the YAML run summary
		Report string `yaml:"report"`

		// Debug switches to human-readable development logging
		Debug bool `yaml:"debug"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Filter.Size = 3
	cfg.Paths.Count = -1

	cfg.Workers.Count = runtime.NumCPU()
	cfg.Workers.Backend = BackendLocal

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.Rank = -1
	cfg.Redis.KeyTTL = 24 * time.Hour

	return cfg
}

// Validate reports the first setting that makes the configuration unusable
func (c *Config) Validate() error {
	if c.Filter.Size < 1 || c.Filter.Size%2 == 0 {
		return fmt.Errorf("%w: filter size must be an odd positive integer, got %d", models.ErrInvalidArguments, c.Filter.Size)
	}
	if c.Paths.Input == "" || c.Paths.Output == "" {
		return fmt.Errorf("%w: input and output directories are required", models.ErrInvalidArguments)
	}
	if c.Paths.Count < -1 {
		return fmt.Errorf("%w: image count must be -1 or more, got %d", models.ErrInvalidArguments, c.Paths.Count)
	}
	if c.Workers.Count < 1 {
		return fmt.Errorf("%w: worker count must be positive, got %d", models.ErrInvalidArguments, c.Workers.Count)
	}

	switch c.Workers.Backend {
	case BackendLocal:
	case BackendRedis:
		if c.Redis.Job == "" {
			return fmt.Errorf("%w: redis backend needs a job name", models.ErrInvalidArguments)
		}
		if c.Redis.Rank < -1 || c.Redis.Rank >= c.Workers.Count {
			return fmt.Errorf("%w: rank %d outside group of %d", models.ErrInvalidArguments, c.Redis.Rank, c.Workers.Count)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", models.ErrInvalidArguments, c.Workers.Backend)
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
		return nil, fmt.Errorf("%w: error parsing config file: %v", models.ErrInvalidArguments, err)
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
	return SaveConfig(DefaultConfig(), configPath)
}
