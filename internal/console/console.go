// Package console prints the live progress of a run: one line when a test
// starts, one when it finishes, and the final verdict. Output is plain lines
// so it reads the same on a terminal and in a CI log.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/tungetti/cts/internal/device"
	"github.com/tungetti/cts/internal/engine"
	"github.com/tungetti/cts/internal/errors"
	"github.com/tungetti/cts/internal/plan"
	"github.com/tungetti/cts/internal/report"
)

// DefaultBarWidth is the width of the progress bar in cells.
const DefaultBarWidth = 20

// Console writes status lines. It is safe for concurrent use.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	styles Styles
	bar    progress.Model
	quiet  bool
	done   int
	total  int
}

// Option configures the console.
type Option func(*options)

type options struct {
	color    bool
	quiet    bool
	barWidth int
}

// WithColor enables or disables ANSI colors. Colors are on by default when
// the writer is a terminal that supports them.
func WithColor(enabled bool) Option {
	return func(o *options) {
		o.color = enabled
	}
}

// WithQuiet prints only the final verdict and errors.
func WithQuiet(quiet bool) Option {
	return func(o *options) {
		o.quiet = quiet
	}
}

// WithBarWidth sets the progress bar width.
func WithBarWidth(n int) Option {
	return func(o *options) {
		o.barWidth = n
	}
}

// New creates a console writing to w.
func New(w io.Writer, opts ...Option) *Console {
	o := options{color: true, barWidth: DefaultBarWidth}
	for _, opt := range opts {
		opt(&o)
	}

	r := lipgloss.NewRenderer(w)
	if !o.color {
		r.SetColorProfile(termenv.Ascii)
	}

	return &Console{
		w:      w,
		styles: NewStyles(r),
		bar: progress.New(
			progress.WithSolidFill(string(CoralTeal)),
			progress.WithWidth(o.barWidth),
			progress.WithoutPercentage(),
			progress.WithColorProfile(r.ColorProfile()),
		),
		quiet: o.quiet,
	}
}

func (c *Console) println(s string) {
	fmt.Fprintln(c.w, s)
}

// Plan announces the tests about to run.
func (c *Console) Plan(p plan.Plan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done, c.total = 0, len(p.Runnable())
	if c.quiet {
		return
	}
	c.println(c.styles.Title.Render(fmt.Sprintf("Running %d of %d tests on %s", c.total, p.Len(), p.Topology)))
}

// TestStarted prints the line for a test that is starting.
func (c *Console) TestStarted(p engine.Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = p.Total
	if c.quiet {
		return
	}
	c.println(fmt.Sprintf("%s %s  %s %s",
		c.bar.ViewAs(p.Percent()), c.counter(p.Index+1), c.styles.Muted.Render("RUN    "), p.TestID))
}

// TestFinished prints the summary line of a result.
func (c *Console) TestFinished(r engine.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.Status.Ran() {
		c.done++
	}
	if c.quiet {
		return
	}

	percent := 1.0
	if c.total > 0 {
		percent = float64(c.done) / float64(c.total)
	}
	status := c.styles.Status(r.Status).Render(fmt.Sprintf("%-7s", r.Status))
	line := fmt.Sprintf("%s %s  %s %s", c.bar.ViewAs(percent), c.counter(c.done), status, r.TestID)

	switch {
	case !r.Status.Ran():
		line += c.styles.Muted.Render(" (" + r.ErrorDetail + ")")
	case r.Passed():
		line += " " + report.FormatDuration(r.Duration)
	default:
		line += " " + report.FormatDuration(r.Duration) + c.styles.Muted.Render(": "+r.ErrorDetail)
	}
	c.println(line)
}

func (c *Console) counter(n int) string {
	width := len(fmt.Sprint(c.total))
	return fmt.Sprintf("%*d/%d", width, n, c.total)
}

// Overall prints the final aggregate line and where the report went.
func (c *Console) Overall(r *report.Report, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cnt := r.Counts
	if !c.quiet {
		c.println(c.styles.Muted.Render(fmt.Sprintf("%d passed, %d failed, %d timed out, %d crashed, %d skipped; report written to %s",
			cnt.Pass, cnt.Fail, cnt.Timeout, cnt.Crash, cnt.Skipped, path)))
	}
	c.println(report.OverallPrefix + c.styles.Status(r.Overall).Render(r.Overall.String()))
}

// Error prints a fatal error as "Error: <stage>: <cause>".
func (c *Console) Error(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.println(c.styles.Error.Render("Error:") + " " + errors.Describe(err))
}

// Topology prints the result of a device probe.
func (c *Console) Topology(t device.Topology) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.println(c.styles.Key.Render("Topology:") + " " + t.String())
	for _, d := range t.Devices {
		c.println("  " + d)
	}
}

// Catalog prints every test with its run decision under p.
func (c *Console) Catalog(p plan.Plan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	width := 0
	for _, e := range p.Entries {
		width = max(width, len(e.Spec.ID))
	}
	for _, e := range p.Entries {
		mark := c.styles.Pass.Render("run ")
		note := c.styles.Muted.Render(e.Spec.Description)
		if !e.Run {
			mark = c.styles.Skipped.Render("skip")
			note = c.styles.Muted.Render(e.SkipReason)
		}
		c.println(fmt.Sprintf("%s  %-*s  %-8s  %s", mark, width, e.Spec.ID, e.Spec.Timeout, note))
		c.println(strings.Repeat(" ", 6) + c.styles.Muted.Render(e.Spec.CommandLine()))
	}
}

