// Package engine runs the tests of a plan one after another, each in its own
// process group with a hard deadline, and classifies how each one ended.
package engine

import (
	"fmt"
	"strings"
	"time"
)

// Status is the outcome of one test.
type Status int

const (
	// StatusSkipped means the test did not run.
	StatusSkipped Status = iota
	// StatusPass means the test exited 0 and satisfied its result rule.
	StatusPass
	// StatusFail means the test exited non-zero, failed its result rule or could not be started.
	StatusFail
	// StatusTimeout means the test was killed at its deadline.
	StatusTimeout
	// StatusCrash means the test died from a signal or was interrupted.
	StatusCrash
)

// String returns the status as shown in reports.
func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "SKIPPED"
	case StatusPass:
		return "PASS"
	case StatusFail:
		return "FAIL"
	case StatusTimeout:
		return "TIMEOUT"
	case StatusCrash:
		return "CRASH"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Ran returns true for statuses of tests that were started.
func (s Status) Ran() bool {
	return s != StatusSkipped
}

// Result is the recorded outcome of one plan entry.
type Result struct {
	TestID         string
	Command        string // Executable and arguments as run
	Status         Status
	ExitCode       *int   // Set only when the process exited on its own
	Signal         string // Terminating signal, for crashes
	Duration       time.Duration
	Output         []byte // Combined output, bounded
	Truncated      int64  // Bytes dropped from the middle of Output
	ErrorDetail    string // Why the test did not pass, or why it was skipped
	MaxTemperature *float64
}

// Passed returns true if the test passed.
func (r Result) Passed() bool {
	return r.Status == StatusPass
}

// Tail returns the last n lines of the output.
func (r Result) Tail(n int) []string {
	text := strings.TrimRight(string(r.Output), "\n")
	if text == "" || n <= 0 {
		return nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

// Skipped creates the result of a test that did not run.
func Skipped(id, reason string) Result {
	return Result{TestID: id, Status: StatusSkipped, ErrorDetail: reason}
}

// Counts tallies results by status.
type Counts struct {
	Total   int
	Pass    int
	Fail    int
	Timeout int
	Crash   int
	Skipped int
}

// Count tallies results.
func Count(results []Result) Counts {
	c := Counts{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			c.Pass++
		case StatusFail:
			c.Fail++
		case StatusTimeout:
			c.Timeout++
		case StatusCrash:
			c.Crash++
		default:
			c.Skipped++
		}
	}
	return c
}

// Ran returns the number of tests that were started.
func (c Counts) Ran() int {
	return c.Total - c.Skipped
}

// AllPassed returns true if every test that ran passed. A run where nothing
// ran counts as passed.
func (c Counts) AllPassed() bool {
	return c.Fail == 0 && c.Timeout == 0 && c.Crash == 0
}
