package report

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/tungetti/cts/internal/constants"
	"github.com/tungetti/cts/internal/engine"
)

// OverallPrefix starts the last line of every report.
const OverallPrefix = "Overall Compatibility: "

// Render writes the report to w.
func (r *Report) Render(w io.Writer) error {
	bw := bufio.NewWriter(w)
	r.header(bw)
	r.environment(bw)
	if err := r.table(bw); err != nil {
		return err
	}
	r.failures(bw)
	r.thermals(bw)
	r.systemDiagnostics(bw)
	r.summary(bw)
	return bw.Flush()
}

// Bytes renders the report into memory.
func (r *Report) Bytes() []byte {
	var buf bytes.Buffer
	_ = r.Render(&buf)
	return buf.Bytes()
}

// OverallLine returns the final verdict line.
func (r *Report) OverallLine() string {
	return OverallPrefix + r.Overall.String()
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n%s\n", title, strings.Repeat("-", len(title)))
}

func field(w io.Writer, name, value string) {
	if value == "" {
		value = "unknown"
	}
	fmt.Fprintf(w, "%-14s %s\n", name+":", value)
}

func (r *Report) header(w io.Writer) {
	title := constants.AppDescription + " Report"
	fmt.Fprintf(w, "%s\n%s\n", title, strings.Repeat("=", len(title)))
	field(w, "Version", r.Meta.Version)
	field(w, "Run ID", r.Meta.RunID)
	started := ""
	if !r.Meta.Started.IsZero() {
		started = r.Meta.Started.UTC().Format(time.RFC3339)
	}
	field(w, "Started", started)
	field(w, "Test data", r.Meta.DataRevision)
}

func (r *Report) environment(w io.Writer) {
	env := r.Environment
	section(w, "Environment")
	field(w, "Architecture", env.Host.Arch)
	field(w, "OS", env.Host.OS)
	field(w, "Platform", env.Host.PlatformString())
	field(w, "Kernel", env.Host.Kernel)
	field(w, "Hostname", env.Host.Hostname)
	field(w, "Topology", env.Topology.String())
	if len(env.Topology.Devices) > 0 {
		fmt.Fprintln(w, "Devices:")
		for _, d := range env.Topology.Devices {
			fmt.Fprintf(w, "  %s\n", d)
		}
	}
	if len(env.PCI) > 0 {
		fmt.Fprintln(w, "PCI functions:")
		for _, f := range env.PCI {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
}

func (r *Report) table(w io.Writer) error {
	section(w, "Results")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TEST\tSTATUS\tDURATION\tEXIT\tDETAIL")
	for _, res := range r.Results {
		duration, exit := "-", "-"
		if res.Status.Ran() {
			duration = FormatDuration(res.Duration)
		}
		if res.ExitCode != nil {
			exit = fmt.Sprintf("%d", *res.ExitCode)
		}
		detail := res.ErrorDetail
		if detail == "" {
			detail = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", res.TestID, res.Status, duration, exit, detail)
	}
	return tw.Flush()
}

// failures quotes the end of the output of every test that ran and did not pass.
func (r *Report) failures(w io.Writer) {
	var failed []engine.Result
	for _, res := range r.Results {
		if res.Status.Ran() && !res.Passed() {
			failed = append(failed, res)
		}
	}
	if len(failed) == 0 {
		return
	}

	section(w, "Diagnostics")
	for i, res := range failed {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "[%s] %s\n", res.Status, res.TestID)
		field(w, "Command", res.Command)
		field(w, "Reason", res.ErrorDetail)
		if res.Truncated > 0 {
			field(w, "Output", fmt.Sprintf("%d bytes truncated", res.Truncated))
		}
		tail := res.Tail(constants.ExcerptLines)
		if len(tail) == 0 {
			fmt.Fprintln(w, "  (no output)")
			continue
		}
		fmt.Fprintf(w, "Last %d line(s) of output:\n", len(tail))
		for _, line := range tail {
			fmt.Fprintf(w, "  | %s\n", strings.TrimRight(line, "\r"))
		}
	}
}

func (r *Report) thermals(w io.Writer) {
	best, test, ok := r.MaxTemperature()
	if !ok {
		return
	}
	section(w, "Temperatures")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, res := range r.Results {
		if res.MaxTemperature != nil {
			fmt.Fprintf(tw, "%s\t%s\n", res.TestID, FormatCelsius(*res.MaxTemperature))
		}
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "Max temperature: %s (after %s)\n", FormatCelsius(best), test)
}

func (r *Report) systemDiagnostics(w io.Writer) {
	if len(r.Environment.Diagnostics) == 0 {
		return
	}
	section(w, "System")
	for i, d := range r.Environment.Diagnostics {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s\n$ %s\n", d.Title, d.Command)
		if d.Err != "" {
			fmt.Fprintf(w, "  (%s)\n", d.Err)
		}
		for _, line := range d.Lines {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}

func (r *Report) summary(w io.Writer) {
	c := r.Counts
	section(w, "Summary")
	fmt.Fprintf(w, "Total: %d  Pass: %d  Fail: %d  Timeout: %d  Crash: %d  Skipped: %d\n",
		c.Total, c.Pass, c.Fail, c.Timeout, c.Crash, c.Skipped)
	fmt.Fprintf(w, "Test time: %s\n", FormatDuration(engine.Elapsed(r.Results)))
	fmt.Fprintf(w, "\n%s\n", r.OverallLine())
}
