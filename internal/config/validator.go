package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/tungetti/cts/internal/errors"
	"github.com/tungetti/cts/internal/logging"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s", e.Field, e.Message)
}

// revisionPattern matches a full git commit hash. Branch names are rejected so
// the reference data stays pinned.
var revisionPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// minOutputBytes is the smallest useful per-test capture buffer.
const minOutputBytes = 1024

// Validator validates configuration.
type Validator struct{}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the configuration and returns every problem found,
// combined into a *multierror.Error, or nil.
func (v *Validator) Validate(cfg *Config) *multierror.Error {
	var result *multierror.Error
	add := func(field, format string, args ...interface{}) {
		result = multierror.Append(result, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if !logging.ValidLevel(cfg.LogLevel) {
		add("log_level", "invalid log level %q: must be one of: debug, info, warn, error", cfg.LogLevel)
	}

	if cfg.Verbose && cfg.Quiet {
		add("verbose/quiet", "verbose and quiet cannot both be true")
	}

	if cfg.ProbeTimeout <= 0 {
		add("probe_timeout", "probe timeout must be positive")
	}
	if cfg.DiagnosticTimeout <= 0 {
		add("diagnostic_timeout", "diagnostic timeout must be positive")
	}
	if cfg.FetchTimeout <= 0 {
		add("fetch_timeout", "fetch timeout must be positive")
	}

	if cfg.MaxOutputBytes < minOutputBytes {
		add("max_output_bytes", "must be at least %d", minOutputBytes)
	}

	if cfg.BinDir == "" {
		add("bin_dir", "binary directory cannot be empty")
	}
	if cfg.DataDir == "" {
		add("data_dir", "data directory cannot be empty")
	}

	if cfg.Output == "" {
		add("output", "report path cannot be empty")
	} else if info, err := os.Stat(cfg.Output); err == nil && info.IsDir() {
		add("output", "report path is a directory: %s", cfg.Output)
	}

	if !revisionPattern.MatchString(cfg.DataRevision) {
		add("data_revision", "must be a full 40 character commit hash, got %q", cfg.DataRevision)
	}
	if strings.Count(cfg.DataURL, "%s") != 1 {
		add("data_url", "must contain exactly one %%s for the revision")
	}

	for _, f := range []struct{ field, path string }{
		{"log_file", cfg.LogFile},
		{"metrics_file", cfg.MetricsFile},
	} {
		if f.path == "" {
			continue
		}
		dir := filepath.Dir(f.path)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			add(f.field, "directory does not exist: %s", dir)
		}
	}

	seen := make(map[string]bool, len(cfg.Tests))
	for _, id := range cfg.Tests {
		if seen[id] {
			add("tests", "test %q selected twice", id)
		}
		seen[id] = true
	}

	if result != nil {
		result.ErrorFormat = formatErrors
	}
	return result
}

// ValidateOrError validates and returns a single wrapped error.
// If there are no validation errors, nil is returned.
func (v *Validator) ValidateOrError(cfg *Config) error {
	if err := v.Validate(cfg).ErrorOrNil(); err != nil {
		return errors.Wrap(errors.Configuration, "invalid configuration", err).
			WithOp("config.Validate")
	}
	return nil
}

// IsValid returns true if the configuration is valid.
func (v *Validator) IsValid(cfg *Config) bool {
	return v.Validate(cfg).ErrorOrNil() == nil
}

// formatErrors joins validation errors on one line so they fit the single
// line fatal error output.
func formatErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}
