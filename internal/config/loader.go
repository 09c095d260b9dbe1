package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/tungetti/cts/internal/errors"
)

const (
	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "CTS_"
)

// Loader handles configuration loading from multiple sources.
// It loads configuration in order: defaults -> file -> environment variables,
// with later sources overriding earlier ones.
type Loader struct {
	configPath string
	envPrefix  string
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a new configuration loader.
// If configPath is empty, only defaults and environment variables are used.
func NewLoader(configPath string) *Loader {
	return NewLoaderWithPrefix(configPath, EnvPrefix)
}

// NewLoaderWithPrefix creates a new loader with a custom environment variable prefix.
func NewLoaderWithPrefix(configPath, envPrefix string) *Loader {
	return &Loader{
		configPath: configPath,
		envPrefix:  envPrefix,
		lookupEnv:  os.LookupEnv,
	}
}

// Load loads configuration from file and environment.
// Returns an error if the file exists but cannot be parsed.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, err
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.ExpandPaths(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadAndValidate loads configuration and validates it.
func (l *Loader) LoadAndValidate() (*Config, error) {
	cfg, err := l.Load()
	if err != nil {
		return nil, err
	}

	if err := NewValidator().ValidateOrError(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile loads config from YAML file. A missing file is not an error.
func (l *Loader) loadFromFile(cfg *Config) error {
	path, err := homedir.Expand(l.configPath)
	if err != nil {
		return errors.Wrap(errors.Configuration, "failed to expand config path", err).
			WithOp("config.loadFromFile")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(errors.Configuration, "failed to read config file", err).
			WithOp("config.loadFromFile")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrap(errors.Configuration, "failed to parse config file", err).
			WithOp("config.loadFromFile")
	}

	return nil
}

// loadFromEnv loads config from environment variables.
// Malformed durations and integers are reported instead of silently ignored.
func (l *Loader) loadFromEnv(cfg *Config) error {
	strs := map[string]*string{
		"LOG_LEVEL":     &cfg.LogLevel,
		"LOG_FILE":      &cfg.LogFile,
		"CONFIG_DIR":    &cfg.ConfigDir,
		"BIN_DIR":       &cfg.BinDir,
		"DATA_DIR":      &cfg.DataDir,
		"OUTPUT":        &cfg.Output,
		"METRICS_FILE":  &cfg.MetricsFile,
		"CATALOG_FILE":  &cfg.CatalogFile,
		"DATA_REVISION": &cfg.DataRevision,
		"DATA_URL":      &cfg.DataURL,
	}
	for key, dst := range strs {
		if v, ok := l.env(key); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"VERBOSE":     &cfg.Verbose,
		"QUIET":       &cfg.Quiet,
		"NO_COLOR":    &cfg.NoColor,
		"DIAGNOSTICS": &cfg.Diagnostics,
	}
	for key, dst := range bools {
		if v, ok := l.env(key); ok {
			*dst = parseBool(v)
		}
	}

	durations := map[string]*time.Duration{
		"PROBE_TIMEOUT":      &cfg.ProbeTimeout,
		"DIAGNOSTIC_TIMEOUT": &cfg.DiagnosticTimeout,
		"FETCH_TIMEOUT":      &cfg.FetchTimeout,
	}
	for key, dst := range durations {
		v, ok := l.env(key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(errors.Configuration, err, "invalid %s%s", l.envPrefix, key).
				WithOp("config.loadFromEnv")
		}
		*dst = d
	}

	if v, ok := l.env("MAX_OUTPUT_BYTES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(errors.Configuration, err, "invalid %sMAX_OUTPUT_BYTES", l.envPrefix).
				WithOp("config.loadFromEnv")
		}
		cfg.MaxOutputBytes = n
	}

	if v, ok := l.env("TESTS"); ok {
		cfg.Tests = SplitList(v)
	}

	return nil
}

// env returns the trimmed value of a prefixed variable, ignoring empty ones.
func (l *Loader) env(key string) (string, bool) {
	v, ok := l.lookupEnv(l.envPrefix + key)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// ExpandPaths resolves a leading "~" in every path setting.
func (c *Config) ExpandPaths() error {
	for _, p := range []*string{&c.LogFile, &c.ConfigDir, &c.BinDir, &c.DataDir, &c.Output, &c.MetricsFile, &c.CatalogFile} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return errors.Wrapf(errors.Configuration, err, "cannot expand path %q", *p).
				WithOp("config.ExpandPaths")
		}
		*p = expanded
	}
	return nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseBool parses a string as a boolean value.
// Accepts: true, 1, yes, on (case-insensitive) as true.
// All other values are treated as false.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// LoadDefaultConfig loads configuration from the default location.
func LoadDefaultConfig() (*Config, error) {
	return NewLoader(DefaultConfig().ConfigPath()).Load()
}
