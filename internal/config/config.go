// Package config provides configuration management for cts.
// It supports loading configuration from YAML files and environment variables,
// with validation and sensible defaults. Command-line flags are applied on top
// by the cli package.
package config

import (
	"path/filepath"
	"time"

	"github.com/tungetti/cts/internal/constants"
)

// Config represents the harness configuration.
// Configuration values can be set via YAML file or environment variables,
// with environment variables taking precedence.
type Config struct {
	// General settings
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
	Verbose  bool   `yaml:"verbose"`
	Quiet    bool   `yaml:"quiet"`
	NoColor  bool   `yaml:"no_color"`

	// Directories and files
	ConfigDir   string `yaml:"config_dir"`
	BinDir      string `yaml:"bin_dir"`
	DataDir     string `yaml:"data_dir"`
	Output      string `yaml:"output"`
	MetricsFile string `yaml:"metrics_file"`
	CatalogFile string `yaml:"catalog_file"`

	// Test selection; empty runs every applicable test
	Tests []string `yaml:"tests"`

	// Reference data
	DataRevision string `yaml:"data_revision"`
	DataURL      string `yaml:"data_url"`

	// Timeouts
	ProbeTimeout      time.Duration `yaml:"probe_timeout"`
	DiagnosticTimeout time.Duration `yaml:"diagnostic_timeout"`
	FetchTimeout      time.Duration `yaml:"fetch_timeout"`

	// Limits
	MaxOutputBytes int `yaml:"max_output_bytes"`

	// Report
	Diagnostics bool `yaml:"diagnostics"`
}

// ConfigPath returns the path to the config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.ConfigDir, constants.ConfigFileName)
}

// IsVerbose returns true if verbose output is enabled and quiet is not.
func (c *Config) IsVerbose() bool {
	return c.Verbose && !c.Quiet
}

// IsSilent returns true if quiet mode is enabled.
func (c *Config) IsSilent() bool {
	return c.Quiet
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Tests != nil {
		clone.Tests = append([]string(nil), c.Tests...)
	}
	return &clone
}
