package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/tungetti/cts/internal/catalog"
	"github.com/tungetti/cts/internal/cli"
	"github.com/tungetti/cts/internal/config"
	"github.com/tungetti/cts/internal/console"
	"github.com/tungetti/cts/internal/constants"
	"github.com/tungetti/cts/internal/dataset"
	"github.com/tungetti/cts/internal/device"
	"github.com/tungetti/cts/internal/errors"
	"github.com/tungetti/cts/internal/exec"
	"github.com/tungetti/cts/internal/logging"
	"github.com/tungetti/cts/internal/sysinfo"
	"github.com/tungetti/cts/internal/thermal"
)

// App represents the harness with its dependencies and lifecycle.
type App struct {
	container *Container
	lifecycle *Lifecycle
	opts      Options
	closers   []io.Closer
}

// Options configures the application. Every dependency left nil gets its
// production implementation during Initialize.
type Options struct {
	Version         string
	BuildTime       string
	GitCommit       string
	ShutdownTimeout time.Duration

	// Stdout receives the live status lines, Stderr the log and fatal errors.
	Stdout io.Writer
	Stderr io.Writer

	Runner     exec.Runner
	Logger     logging.Logger
	Prober     device.Prober
	Fetcher    dataset.Fetcher
	Catalog    *catalog.Catalog
	HostReader sysinfo.HostReader
	PCILister  sysinfo.PCILister
	Thermal    thermal.Sampler

	// Now is the clock used for the run start time.
	Now func() time.Time
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Version:         "unknown",
		BuildTime:       "unknown",
		GitCommit:       "unknown",
		ShutdownTimeout: 30 * time.Second,
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
	}
}

// New creates a new application with the given options.
func New(opts Options) *App {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &App{
		container: NewContainer(),
		lifecycle: NewLifecycle(opts.ShutdownTimeout),
		opts:      opts,
	}
}

// Initialize validates cfg and sets up the shared components in order:
// configuration, logger, runner, console.
func (a *App) Initialize(cfg *config.Config) error {
	if err := config.NewValidator().ValidateOrError(cfg); err != nil {
		return err
	}
	a.container.SetConfig(cfg)

	logger, err := a.initLogger(cfg)
	if err != nil {
		return errors.Wrap(errors.Configuration, "failed to initialize logger", err)
	}
	a.container.SetLogger(logger)

	logger.Debug("starting cts",
		"version", a.opts.Version,
		"build_time", a.opts.BuildTime,
		"git_commit", a.opts.GitCommit,
	)

	runner := a.opts.Runner
	if runner == nil {
		execOpts := exec.DefaultOptions()
		execOpts.MaxOutput = cfg.MaxOutputBytes
		execOpts.KillGrace = constants.KillGrace
		runner = exec.NewExecutor(execOpts)
	}
	a.container.SetRunner(runner)

	a.container.SetConsole(console.New(a.opts.Stdout,
		console.WithColor(!cfg.NoColor),
		console.WithQuiet(cfg.IsSilent()),
	))

	return a.container.Validate()
}

// Run executes command and returns the process exit code. Panics are
// recovered and reported as general errors.
func (a *App) Run(ctx context.Context, command cli.Command) (code constants.ExitCode) {
	defer func() {
		if r := recover(); r != nil {
			a.reportError(a.handlePanic(r))
			code = constants.ExitError
		}
	}()

	if err := a.container.Validate(); err != nil {
		a.reportError(err)
		return constants.ExitError
	}

	switch command {
	case cli.CommandList:
		return a.list(ctx)
	case cli.CommandProbe:
		return a.probe(ctx)
	default:
		return a.runSuite(ctx)
	}
}

// RunWithLifecycle runs command under a context that SIGINT and SIGTERM
// cancel, then shuts down.
func (a *App) RunWithLifecycle(ctx context.Context, command cli.Command) constants.ExitCode {
	runCtx, cancel := a.lifecycle.CancelOnSignal(ctx)
	defer cancel()

	code := a.Run(runCtx, command)

	if sig := a.lifecycle.Signal(); sig != nil {
		if logger := a.container.GetLogger(); logger != nil {
			logger.Warn("run interrupted", "signal", sig.String())
		}
	}

	if err := a.Shutdown(); err != nil {
		a.reportError(err)
		if code == constants.ExitSuccess {
			code = constants.ExitError
		}
	}
	return code
}

// Shutdown gracefully shuts down the application and releases log files.
func (a *App) Shutdown() error {
	a.lifecycle.OnShutdown(func(context.Context) error {
		var last error
		for _, c := range a.closers {
			if err := c.Close(); err != nil {
				last = err
			}
		}
		a.closers = nil
		return last
	})
	return a.lifecycle.Shutdown()
}

func (a *App) initLogger(cfg *config.Config) (logging.Logger, error) {
	if a.opts.Logger != nil {
		return a.opts.Logger, nil
	}

	level := logging.ParseLevel(cfg.LogLevel)
	if cfg.IsVerbose() {
		level = logging.LevelDebug
	}

	opts := logging.DefaultOptions()
	opts.Output = a.opts.Stderr
	opts.Level = level
	opts.NoColor = cfg.NoColor
	if cfg.IsSilent() {
		opts.Level = logging.LevelError
	}
	logger := logging.New(opts)

	if cfg.LogFile == "" {
		return logger, nil
	}

	fileLogger, closer, err := logging.NewFileLogger(cfg.LogFile, logging.LevelDebug)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closer)
	return logging.NewMultiLogger(logger, fileLogger), nil
}

// reportError prints a fatal error as a single line on stderr.
func (a *App) reportError(err error) {
	con := console.New(a.opts.Stderr, console.WithColor(a.colorEnabled()))
	con.Error(err)
}

func (a *App) colorEnabled() bool {
	cfg := a.container.GetConfig()
	return cfg == nil || !cfg.NoColor
}

// handlePanic handles a recovered panic and returns an error.
// It logs the panic with a stack trace if a logger is available.
func (a *App) handlePanic(r interface{}) error {
	stack := debug.Stack()
	logger := a.container.GetLogger()

	if logger != nil {
		logger.Error("panic recovered",
			"panic", fmt.Sprintf("%v", r),
			"stack", string(stack),
		)
	} else {
		fmt.Fprintf(a.opts.Stderr, "PANIC: %v\n%s\n", r, stack)
	}

	return errors.Newf(errors.Unknown, "panic: %v", r)
}
