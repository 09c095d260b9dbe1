// Package catalog holds the registry of compatibility tests: which executable
// each test runs, with which arguments, on which topologies, for how long,
// and how its outcome is judged. A Catalog is built once and never changes.
package catalog

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tungetti/cts/internal/device"
)

// ResultRule selects how a finished test is judged.
type ResultRule int

const (
	// ExitCodeOnly passes a test that exits 0.
	ExitCodeOnly ResultRule = iota
	// ExitCodeAndOutputPattern also requires the pass marker in the output,
	// for executables that exit 0 after printing a failure summary.
	ExitCodeAndOutputPattern
)

// String returns the rule name used in catalog files.
func (r ResultRule) String() string {
	switch r {
	case ExitCodeOnly:
		return "exit_code"
	case ExitCodeAndOutputPattern:
		return "exit_code_and_pattern"
	default:
		return fmt.Sprintf("ResultRule(%d)", int(r))
	}
}

// ParseResultRule parses a rule name.
func ParseResultRule(s string) (ResultRule, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exit_code":
		return ExitCodeOnly, nil
	case "exit_code_and_pattern":
		return ExitCodeAndOutputPattern, nil
	}
	return ExitCodeOnly, fmt.Errorf("unknown result rule %q", s)
}

// Predicate decides whether a test applies to a topology. It must be pure.
type Predicate func(device.Topology) bool

// MinDevices applies when at least n accelerators are present.
func MinDevices(n int) Predicate {
	return func(t device.Topology) bool {
		return t.Count >= n
	}
}

// OnInterface narrows p to hosts whose accelerators use iface.
func OnInterface(iface device.Interface, p Predicate) Predicate {
	return func(t device.Topology) bool {
		return t.Interface == iface && p(t)
	}
}

// TestSpec describes one test.
type TestSpec struct {
	ID          string
	Executable  string   // File name inside the binary directory
	Args        []string // Fixed arguments
	Applicable  Predicate
	Requirement string // Human-readable form of Applicable, used as the skip reason
	Timeout     time.Duration
	Rule        ResultRule
	PassPattern *regexp.Regexp // Required in the output under ExitCodeAndOutputPattern
	FailPattern *regexp.Regexp // Must not appear in the output, when set
	NeedsData   bool           // Reads the reference data directory
	Description string
}

// AppliesTo reports whether the test runs on topology t.
func (s TestSpec) AppliesTo(t device.Topology) bool {
	return s.Applicable != nil && s.Applicable(t)
}

// CommandLine returns the executable and its arguments as one string.
func (s TestSpec) CommandLine() string {
	return strings.TrimSpace(s.Executable + " " + strings.Join(s.Args, " "))
}

// Judge applies the result rule to a test that exited 0. It returns whether
// the output passes and, if not, why.
func (s TestSpec) Judge(output []byte) (bool, string) {
	if s.FailPattern != nil {
		if m := s.FailPattern.Find(output); m != nil {
			return false, fmt.Sprintf("output contains failure marker %q", strings.TrimSpace(string(m)))
		}
	}
	if s.Rule == ExitCodeAndOutputPattern {
		if s.PassPattern == nil {
			return false, "no pass pattern configured"
		}
		if !s.PassPattern.Match(output) {
			return false, fmt.Sprintf("output does not match pass pattern %q", s.PassPattern.String())
		}
	}
	return true, ""
}
