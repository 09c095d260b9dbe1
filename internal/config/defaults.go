package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"

	"github.com/tungetti/cts/internal/constants"
)

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultBinDir is the default directory holding the test executables.
	DefaultBinDir = "."
)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:          DefaultLogLevel,
		ConfigDir:         defaultConfigDir(),
		BinDir:            DefaultBinDir,
		DataDir:           constants.DefaultDataDir,
		Output:            constants.DefaultReportFile,
		DataRevision:      constants.TestDataRevision,
		DataURL:           constants.TestDataArchiveURL,
		ProbeTimeout:      constants.ProbeTimeout,
		DiagnosticTimeout: constants.DiagnosticTimeout,
		FetchTimeout:      constants.FetchTimeout,
		MaxOutputBytes:    constants.DefaultMaxOutputBytes,
		Diagnostics:       true,
	}
}

// ArchiveURL returns the download URL of the pinned reference data snapshot.
func (c *Config) ArchiveURL() string {
	return fmt.Sprintf(c.DataURL, c.DataRevision)
}

// defaultConfigDir returns the config directory for cts.
// Falls back to ~/.config/cts if XDG_CONFIG_HOME is not set.
func defaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, constants.AppName)
	}
	home, err := homedir.Dir()
	if err != nil {
		return filepath.Join(".", constants.DefaultConfigDir)
	}
	return filepath.Join(home, constants.DefaultConfigDir)
}

// GetConfigDir returns the configuration directory, respecting XDG.
func GetConfigDir() string {
	return defaultConfigDir()
}
