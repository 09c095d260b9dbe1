// Package exec provides a testable child-process abstraction. It runs one
// external program in its own process group, bounds the captured output,
// enforces hard wall-clock deadlines and reports how the process ended.
package exec

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// Result represents the outcome of one child process.
type Result struct {
	Command     string        // The executable that was run
	Args        []string      // The arguments passed to the executable
	Output      []byte        // Combined stdout and stderr, bounded
	Truncated   int64         // Bytes dropped from the middle of Output
	ExitCode    int           // Exit code of the process (-1 if it never exited normally)
	Signal      string        // Terminating signal, when the process was killed by one
	TimedOut    bool          // The per-command deadline expired and the process was killed
	Interrupted bool          // The parent context was cancelled and the process was killed
	Duration    time.Duration // Wall-clock time from start to reap
	Error       error         // Set when the process could not be started or was killed by us
	StartTime   time.Time     // When the command started
	EndTime     time.Time     // When the command finished
}

// Success returns true if the command exited with code 0 on its own.
func (r *Result) Success() bool {
	return r.ExitCode == 0 && r.Error == nil && r.Signal == ""
}

// Failed returns true if the command did not succeed.
func (r *Result) Failed() bool {
	return !r.Success()
}

// Signaled returns true if the process was terminated by a signal it did not
// receive from the runner (a fault, or a kill from elsewhere).
func (r *Result) Signaled() bool {
	return r.Signal != "" && !r.TimedOut && !r.Interrupted
}

// Started returns true if the process was actually spawned.
func (r *Result) Started() bool {
	return r.ExitCode != -1 || r.Signal != "" || r.TimedOut || r.Interrupted
}

// OutputString returns the captured output as a string.
func (r *Result) OutputString() string {
	return string(r.Output)
}

// OutputLines returns the captured output split by newlines.
// Empty output returns an empty slice.
func (r *Result) OutputLines() []string {
	trimmed := strings.TrimSpace(r.OutputString())
	if trimmed == "" {
		return []string{}
	}
	return strings.Split(trimmed, "\n")
}

// truncationMarker separates the kept head and tail of an oversized output.
const truncationMarker = "\n[... %d bytes truncated ...]\n"

// boundedBuffer keeps the first and last bytes written to it, up to limit in
// total, and counts what was dropped in between. Memory stays O(limit).
type boundedBuffer struct {
	headCap int
	tailCap int
	head    []byte
	tail    []byte
	dropped int64
}

func newBoundedBuffer(limit int) *boundedBuffer {
	if limit < 2 {
		limit = 2
	}
	headCap := limit / 2
	return &boundedBuffer{
		headCap: headCap,
		tailCap: limit - headCap,
		head:    make([]byte, 0, headCap),
		tail:    make([]byte, 0, limit-headCap),
	}
}

// Write implements io.Writer. It never fails.
func (b *boundedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if room := b.headCap - len(b.head); room > 0 {
		k := min(room, len(p))
		b.head = append(b.head, p[:k]...)
		p = p[k:]
	}
	if len(p) == 0 {
		return n, nil
	}
	if len(p) >= b.tailCap {
		b.dropped += int64(len(b.tail)) + int64(len(p)-b.tailCap)
		b.tail = append(b.tail[:0], p[len(p)-b.tailCap:]...)
		return n, nil
	}
	if over := len(b.tail) + len(p) - b.tailCap; over > 0 {
		copy(b.tail, b.tail[over:])
		b.tail = b.tail[:len(b.tail)-over]
		b.dropped += int64(over)
	}
	b.tail = append(b.tail, p...)
	return n, nil
}

// Bytes returns head, an optional truncation marker, and tail.
func (b *boundedBuffer) Bytes() []byte {
	var buf bytes.Buffer
	buf.Grow(len(b.head) + len(b.tail) + len(truncationMarker) + 20)
	buf.Write(b.head)
	if b.dropped > 0 {
		fmt.Fprintf(&buf, truncationMarker, b.dropped)
	}
	buf.Write(b.tail)
	return buf.Bytes()
}

// Dropped returns the number of bytes discarded.
func (b *boundedBuffer) Dropped() int64 {
	return b.dropped
}
