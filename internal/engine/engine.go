package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/tungetti/cts/internal/catalog"
	"github.com/tungetti/cts/internal/constants"
	"github.com/tungetti/cts/internal/exec"
	"github.com/tungetti/cts/internal/logging"
	"github.com/tungetti/cts/internal/plan"
	"github.com/tungetti/cts/internal/thermal"
)

// Skip and crash details recorded when the run is interrupted.
const (
	DetailInterrupted    = "interrupted"
	DetailRunInterrupted = "run interrupted"
)

// Progress describes the test about to start.
type Progress struct {
	TestID string
	Index  int // 0-based position among runnable tests
	Total  int // Number of runnable tests
}

// Percent returns the share of runnable tests already finished, 0 to 1.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 1
	}
	return float64(p.Index) / float64(p.Total)
}

// Engine runs plans. It is not safe for concurrent use.
type Engine struct {
	runner    exec.Runner
	binDir    string
	workDir   string
	maxOutput int
	thermal   thermal.Sampler
	tee       io.Writer
	onStart   func(Progress)
	onResult  func(Result)
	logger    logging.Logger
}

// Option configures the engine.
type Option func(*Engine)

// WithBinDir sets the directory test executables are resolved in.
func WithBinDir(dir string) Option {
	return func(e *Engine) {
		e.binDir = dir
	}
}

// WithWorkDir sets the working directory of the tests.
func WithWorkDir(dir string) Option {
	return func(e *Engine) {
		e.workDir = dir
	}
}

// WithMaxOutput bounds the output kept per test.
func WithMaxOutput(n int) Option {
	return func(e *Engine) {
		e.maxOutput = n
	}
}

// WithThermal samples device temperatures after each test on PCIe hosts.
func WithThermal(s thermal.Sampler) Option {
	return func(e *Engine) {
		e.thermal = s
	}
}

// WithTee streams the raw output of every test to w.
func WithTee(w io.Writer) Option {
	return func(e *Engine) {
		e.tee = w
	}
}

// OnStart registers a callback invoked before each test starts.
func OnStart(fn func(Progress)) Option {
	return func(e *Engine) {
		e.onStart = fn
	}
}

// OnResult registers a callback invoked once per plan entry, in plan order,
// as soon as its result is recorded.
func OnResult(fn func(Result)) Option {
	return func(e *Engine) {
		e.onResult = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an engine that spawns tests through runner.
func New(runner exec.Runner, opts ...Option) *Engine {
	e := &Engine{
		runner:    runner,
		binDir:    ".",
		maxOutput: constants.DefaultMaxOutputBytes,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the runnable entries of p one at a time, in order, and returns
// exactly one result per entry. A failing test never stops the run. When ctx
// is cancelled the running test is killed and recorded as a crash, and every
// later entry is recorded as skipped.
func (e *Engine) Run(ctx context.Context, p plan.Plan) []Result {
	results := make([]Result, 0, p.Len())
	total := len(p.Runnable())
	index := 0

	for _, entry := range p.Entries {
		var r Result
		switch {
		case !entry.Run:
			r = Skipped(entry.Spec.ID, entry.SkipReason)
		case ctx.Err() != nil:
			r = Skipped(entry.Spec.ID, DetailRunInterrupted)
		default:
			if e.onStart != nil {
				e.onStart(Progress{TestID: entry.Spec.ID, Index: index, Total: total})
			}
			index++
			r = e.runOne(ctx, entry.Spec)
			if p.Topology.IsPCIe() {
				r.MaxTemperature = e.sampleMax()
			}
		}

		e.logger.Debug("test finished", "test", r.TestID, "status", r.Status.String(), "duration", r.Duration)
		results = append(results, r)
		if e.onResult != nil {
			e.onResult(r)
		}
	}
	return results
}

func (e *Engine) runOne(ctx context.Context, spec catalog.TestSpec) Result {
	path := exec.InDir(e.binDir, spec.Executable)
	r := Result{
		TestID:  spec.ID,
		Command: spec.CommandLine(),
	}

	e.logger.Info("running test", "test", spec.ID, "path", path, "timeout", spec.Timeout)
	res := e.runner.Run(ctx, exec.Command{
		Path:      path,
		Args:      spec.Args,
		Dir:       e.workDir,
		Timeout:   spec.Timeout,
		MaxOutput: e.maxOutput,
		Tee:       e.tee,
	})

	r.Duration = res.Duration
	if r.Duration == 0 && !res.EndTime.IsZero() {
		r.Duration = res.EndTime.Sub(res.StartTime)
	}
	r.Output = res.Output
	r.Truncated = res.Truncated
	classify(&r, spec, path, res)
	return r
}

// classify sets the status of r from how the process ended.
func classify(r *Result, spec catalog.TestSpec, path string, res *exec.Result) {
	switch {
	case res.Interrupted:
		r.Status = StatusCrash
		r.ErrorDetail = DetailInterrupted
	case res.TimedOut:
		r.Status = StatusTimeout
		r.ErrorDetail = fmt.Sprintf("exceeded timeout of %s", spec.Timeout)
	case !res.Started():
		r.Status = StatusFail
		r.ErrorDetail = startFailure(path, res.Error)
	case res.Signaled():
		r.Status = StatusCrash
		r.Signal = res.Signal
		r.ErrorDetail = "killed by signal: " + res.Signal
	case res.ExitCode != 0:
		code := res.ExitCode
		r.ExitCode = &code
		r.Status = StatusFail
		r.ErrorDetail = fmt.Sprintf("exited with code %d", code)
	default:
		code := 0
		r.ExitCode = &code
		if ok, why := spec.Judge(res.Output); ok {
			r.Status = StatusPass
		} else {
			r.Status = StatusFail
			r.ErrorDetail = why
		}
	}
}

// sampleMax returns the hottest device reading, or nil when none is available.
func (e *Engine) sampleMax() *float64 {
	if e.thermal == nil {
		return nil
	}
	readings, err := e.thermal.Sample()
	if err != nil {
		e.logger.Warn("temperature sample failed", "error", err)
		return nil
	}
	best, ok := thermal.Max(readings)
	if !ok {
		return nil
	}
	c := best.Celsius
	return &c
}

// Elapsed sums the durations of results.
func Elapsed(results []Result) time.Duration {
	var d time.Duration
	for _, r := range results {
		d += r.Duration
	}
	return d
}

// startFailure names path once, followed by the operating system's reason
// when one is known.
func startFailure(path string, err error) string {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return fmt.Sprintf("could not start %s: %v", path, pathErr.Err)
	}
	return fmt.Sprintf("could not start %s", path)
}
