// Package config loads harness configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all harness configuration.
type Config struct {
	// Docker execution settings
	Docker DockerConfig `yaml:"docker"`

	// Evaluation defaults
	Eval EvalConfig `yaml:"eval"`

	// Run history storage
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DockerConfig configures container execution.
type DockerConfig struct {
	Timeout      string `yaml:"timeout"`
	PullTimeout  string `yaml:"pull_timeout"`
	CPUQuota     int    `yaml:"cpu_quota"`
	Memory       string `yaml:"memory"`
	Platform     string `yaml:"platform"`
	BlockNetwork bool   `yaml:"block_network"`
}

// EvalConfig configures evaluation defaults.
type EvalConfig struct {
	NumWorkers        int    `yaml:"num_workers"`
	DockerhubUsername string `yaml:"dockerhub_username"`
	OutputDir         string `yaml:"output_dir"`
	ScriptsDir        string `yaml:"scripts_dir"`
}

// StoreConfig configures the run history database.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
	Disabled     bool   `yaml:"disabled"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Docker: DockerConfig{
			Timeout:     "30m",
			PullTimeout: "15m",
			CPUQuota:    400000,
			Memory:      "30g",
			Platform:    "linux/amd64",
		},

		Eval: EvalConfig{
			NumWorkers: 4,
			OutputDir:  "output",
			ScriptsDir: "scripts",
		},

		Store: StoreConfig{
			DatabasePath: "data/sweap.db",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; a present file is merged over them.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if user := os.Getenv("SWEAP_DOCKERHUB_USERNAME"); user != "" {
		c.Eval.DockerhubUsername = user
	}
	if workers := os.Getenv("SWEAP_NUM_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil && n > 0 {
			c.Eval.NumWorkers = n
		}
	}
	if path := os.Getenv("SWEAP_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if level := os.Getenv("SWEAP_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetContainerTimeout returns the container timeout as a duration.
func (c *Config) GetContainerTimeout() time.Duration {
	d, err := time.ParseDuration(c.Docker.Timeout)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// GetPullTimeout returns the image pull timeout as a duration.
func (c *Config) GetPullTimeout() time.Duration {
	d, err := time.ParseDuration(c.Docker.PullTimeout)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Eval.NumWorkers < 1 {
		return fmt.Errorf("num_workers must be at least 1, got %d", c.Eval.NumWorkers)
	}
	if c.Docker.CPUQuota <= 0 {
		return fmt.Errorf("cpu_quota must be positive, got %d", c.Docker.CPUQuota)
	}
	if _, err := time.ParseDuration(c.Docker.Timeout); err != nil {
		return fmt.Errorf("invalid docker timeout %q: %w", c.Docker.Timeout, err)
	}
	return nil
}
