package exec

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	ctserrors "github.com/tungetti/cts/internal/errors"
)

// Command describes a single child process invocation.
type Command struct {
	Path      string        // Executable path
	Args      []string      // Arguments, excluding the program name
	Dir       string        // Working directory (empty = inherit)
	Env       []string      // Environment (nil = inherit)
	Timeout   time.Duration // Hard wall-clock deadline (0 = runner default)
	MaxOutput int           // Captured output bound in bytes (0 = runner default)
	Tee       io.Writer     // Optional live copy of the combined output
}

// Runner spawns external programs. Implementations run exactly one child per
// call and block until it has been reaped.
type Runner interface {
	Run(ctx context.Context, cmd Command) *Result
}

// Options configures the runner behavior.
type Options struct {
	Timeout   time.Duration // Default deadline for commands without one (0 = none)
	MaxOutput int           // Default captured output bound in bytes
	KillGrace time.Duration // How long to wait for pipes after the child is killed
	WorkDir   string        // Default working directory
}

// DefaultOptions returns sensible defaults for command execution.
func DefaultOptions() Options {
	return Options{
		Timeout:   2 * time.Minute,
		MaxOutput: 64 * 1024,
		KillGrace: 5 * time.Second,
	}
}

// RealExecutor is the production Runner. Each child is placed in its own
// process group, which is killed on deadline and again once the child has
// exited, so nothing it forked survives the call.
type RealExecutor struct {
	opts Options
}

// NewExecutor creates a new real executor with the given options.
func NewExecutor(opts Options) *RealExecutor {
	return &RealExecutor{opts: opts}
}

// Run executes cmd and returns its result. It never returns nil.
func (e *RealExecutor) Run(ctx context.Context, cmd Command) *Result {
	opts := e.Options()

	result := &Result{
		Command:   cmd.Path,
		Args:      cmd.Args,
		StartTime: time.Now(),
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = opts.Timeout
	}
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	limit := cmd.MaxOutput
	if limit <= 0 {
		limit = opts.MaxOutput
	}
	out := newBoundedBuffer(limit)
	var w io.Writer = out
	if cmd.Tee != nil {
		w = io.MultiWriter(out, cmd.Tee)
	}

	c := exec.CommandContext(runCtx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	if c.Dir == "" {
		c.Dir = opts.WorkDir
	}
	if cmd.Env != nil {
		c.Env = cmd.Env
	}
	// Same writer for both streams: exec serialises the writes.
	c.Stdout = w
	c.Stderr = w
	c.WaitDelay = opts.KillGrace
	configureProcessGroup(c)

	err := c.Run()
	// Nothing the test started may outlive it.
	killProcessGroup(c)

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.Output = out.Bytes()
	result.Truncated = out.Dropped()

	if c.ProcessState != nil {
		result.ExitCode = c.ProcessState.ExitCode()
		result.Signal = terminationSignal(c.ProcessState)
	}

	if err == nil {
		return result
	}

	// Context errors take priority: the process was killed by us.
	if runCtx.Err() != nil {
		result.ExitCode = -1
		if ctx.Err() != nil {
			result.Interrupted = true
			result.Error = ctserrors.Wrap(ctserrors.Cancelled, "command interrupted", ctx.Err())
		} else {
			result.TimedOut = true
			result.Error = ctserrors.Wrapf(ctserrors.Timeout, err, "command exceeded timeout of %s", timeout)
		}
		return result
	}

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		// Non-zero exit or death by signal; both already recorded from ProcessState.
	case errors.Is(err, exec.ErrWaitDelay):
		// The program exited but a grandchild held its output open.
	case errors.Is(err, fs.ErrNotExist) || errors.Is(err, exec.ErrNotFound):
		result.ExitCode = -1
		result.Error = ctserrors.Wrapf(ctserrors.NotFound, err, "executable not found: %s", cmd.Path)
	default:
		result.ExitCode = -1
		result.Error = ctserrors.Wrapf(ctserrors.Execution, err, "failed to start %s", cmd.Path)
	}

	return result
}

// Options returns the executor options.
func (e *RealExecutor) Options() Options {
	return e.opts
}

// Ensure RealExecutor implements Runner.
var _ Runner = (*RealExecutor)(nil)

// InDir returns the path of name inside dir. The result always contains a
// path separator, so it is run from dir rather than looked up in PATH.
func InDir(dir, name string) string {
	p := filepath.Join(dir, name)
	if !strings.ContainsRune(p, filepath.Separator) {
		p = "." + string(filepath.Separator) + p
	}
	return p
}
