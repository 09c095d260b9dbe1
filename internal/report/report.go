// Package report turns the results of a run into the plain-text compatibility
// report. Rendering is deterministic: the same report always renders to the
// same bytes.
package report

import (
	"fmt"
	"time"

	"github.com/tungetti/cts/internal/engine"
	"github.com/tungetti/cts/internal/errors"
	"github.com/tungetti/cts/internal/plan"
	"github.com/tungetti/cts/internal/sysinfo"
)

// Meta identifies the run.
type Meta struct {
	Version      string
	RunID        string
	Started      time.Time
	DataRevision string
}

// Report is the aggregated outcome of a run. It is not modified after
// Aggregate returns it.
type Report struct {
	Meta        Meta
	Environment sysinfo.Environment
	Results     []engine.Result // Plan order
	Counts      engine.Counts
	Overall     engine.Status // StatusPass or StatusFail
}

// Passed returns true if the overall verdict is PASS.
func (r *Report) Passed() bool {
	return r.Overall == engine.StatusPass
}

// Aggregate builds the report. results must hold exactly one entry per plan
// entry, in plan order, and entries the plan skipped must be SKIPPED.
func Aggregate(meta Meta, env sysinfo.Environment, p plan.Plan, results []engine.Result) (*Report, error) {
	const op = "report.Aggregate"

	if len(results) != p.Len() {
		return nil, errors.Newf(errors.Validation, "%d results for %d plan entries", len(results), p.Len()).WithOp(op)
	}
	for i, e := range p.Entries {
		r := results[i]
		if r.TestID != e.Spec.ID {
			return nil, errors.Newf(errors.Validation, "result %d is for %q, plan has %q", i, r.TestID, e.Spec.ID).WithOp(op)
		}
		if !e.Run && r.Status != engine.StatusSkipped {
			return nil, errors.Newf(errors.Validation, "skipped test %q has status %s", r.TestID, r.Status).WithOp(op)
		}
	}

	counts := engine.Count(results)
	overall := engine.StatusFail
	if counts.AllPassed() {
		overall = engine.StatusPass
	}

	return &Report{
		Meta:        meta,
		Environment: env,
		Results:     append([]engine.Result(nil), results...),
		Counts:      counts,
		Overall:     overall,
	}, nil
}

// MaxTemperature returns the hottest reading of the run and the test it was
// taken after.
func (r *Report) MaxTemperature() (float64, string, bool) {
	var (
		best  float64
		test  string
		found bool
	)
	for _, res := range r.Results {
		if res.MaxTemperature == nil {
			continue
		}
		if !found || *res.MaxTemperature > best {
			best, test, found = *res.MaxTemperature, res.TestID, true
		}
	}
	return best, test, found
}

// FormatDuration renders d in seconds with millisecond precision.
func FormatDuration(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// FormatCelsius renders a temperature with one decimal.
func FormatCelsius(c float64) string {
	return fmt.Sprintf("%.1f C", c)
}
