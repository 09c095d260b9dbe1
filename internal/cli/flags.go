// Package cli provides command-line argument parsing for cts.
// It supports commands and global flags with both short and long variants.
// Flags are accepted before or after the command name. The parser integrates
// with the config package: flags that are set override file and environment
// values.
package cli

import (
	"strings"

	"github.com/tungetti/cts/internal/config"
)

// GlobalFlags holds flags common to all commands.
type GlobalFlags struct {
	// Output is the report file path.
	Output string

	// ConfigFile specifies a custom configuration file path.
	ConfigFile string

	// BinDir is the directory containing lstpu and the test executables.
	BinDir string

	// DataDir is the reference data directory.
	DataDir string

	// Tests restricts the run to the named tests. Repeatable.
	Tests TestList

	// MetricsFile is an optional Prometheus textfile written after the run.
	MetricsFile string

	// LogFile specifies the path to write log output.
	LogFile string

	// LogLevel sets the logging verbosity (debug, info, warn, error).
	LogLevel string

	// Verbose enables detailed output, including the live test output.
	Verbose bool

	// Quiet suppresses non-essential output, only showing errors.
	Quiet bool

	// NoColor disables colored terminal output.
	NoColor bool

	// NoDiagnostics leaves the system diagnostics section out of the report.
	NoDiagnostics bool
}

// Validate checks GlobalFlags for conflicting options.
// It returns an error if incompatible flags are set together.
func (f *GlobalFlags) Validate() error {
	if f.Verbose && f.Quiet {
		return &FlagError{
			Flag:    "verbose/quiet",
			Message: "cannot use --verbose and --quiet together",
		}
	}
	return nil
}

// Apply overlays the flags that were given onto cfg.
func (f *GlobalFlags) Apply(cfg *config.Config) {
	for _, s := range []struct {
		val string
		dst *string
	}{
		{f.Output, &cfg.Output},
		{f.BinDir, &cfg.BinDir},
		{f.DataDir, &cfg.DataDir},
		{f.MetricsFile, &cfg.MetricsFile},
		{f.LogFile, &cfg.LogFile},
		{f.LogLevel, &cfg.LogLevel},
	} {
		if s.val != "" {
			*s.dst = s.val
		}
	}
	if len(f.Tests) > 0 {
		cfg.Tests = append([]string(nil), f.Tests...)
	}
	if f.Verbose {
		cfg.Verbose = true
		cfg.Quiet = false
	}
	if f.Quiet {
		cfg.Quiet = true
		cfg.Verbose = false
	}
	if f.NoColor {
		cfg.NoColor = true
	}
	if f.NoDiagnostics {
		cfg.Diagnostics = false
	}
}

// TestList is a repeatable flag value. Each occurrence may also hold a comma
// separated list.
type TestList []string

// String implements flag.Value.
func (l *TestList) String() string {
	return strings.Join(*l, ",")
}

// Set implements flag.Value.
func (l *TestList) Set(v string) error {
	ids := config.SplitList(v)
	if len(ids) == 0 {
		return &FlagError{Flag: "test", Message: "empty test name"}
	}
	*l = append(*l, ids...)
	return nil
}

// FlagError represents an error with a command-line flag.
type FlagError struct {
	Flag    string
	Message string
}

// Error implements the error interface.
func (e *FlagError) Error() string {
	return "flag error: " + e.Flag + ": " + e.Message
}
