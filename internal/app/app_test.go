package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tungetti/cts/internal/cli"
	"github.com/tungetti/cts/internal/config"
	"github.com/tungetti/cts/internal/console"
	"github.com/tungetti/cts/internal/constants"
	"github.com/tungetti/cts/internal/device"
	"github.com/tungetti/cts/internal/errors"
	"github.com/tungetti/cts/internal/exec"
	"github.com/tungetti/cts/internal/logging"
	"github.com/tungetti/cts/internal/sysinfo"
	ctstesting "github.com/tungetti/cts/internal/testing"
	"github.com/tungetti/cts/internal/thermal"
)

// =============================================================================
// Container Tests
// =============================================================================

func TestNewContainer(t *testing.T) {
	c := NewContainer()
	assert.NotNil(t, c)
	assert.Nil(t, c.Config)
	assert.Nil(t, c.Logger)
	assert.Nil(t, c.Runner)
	assert.Nil(t, c.Console)
}

func TestContainer_SetGet(t *testing.T) {
	c := NewContainer()
	cfg := &config.Config{LogLevel: "debug"}
	logger := logging.NewNop()
	runner := exec.NewMockRunner()
	con := console.New(&bytes.Buffer{})

	c.SetConfig(cfg)
	c.SetLogger(logger)
	c.SetRunner(runner)
	c.SetConsole(con)

	assert.Same(t, cfg, c.GetConfig())
	assert.Equal(t, logger, c.GetLogger())
	assert.Same(t, runner, c.GetRunner())
	assert.Same(t, con, c.GetConsole())
	assert.NoError(t, c.Validate())
}

func TestContainer_Validate_Missing(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(c *Container)
		message string
	}{
		{"config", func(c *Container) {}, "config not initialized"},
		{"logger", func(c *Container) {
			c.SetConfig(&config.Config{})
		}, "logger not initialized"},
		{"runner", func(c *Container) {
			c.SetConfig(&config.Config{})
			c.SetLogger(logging.NewNop())
		}, "runner not initialized"},
		{"console", func(c *Container) {
			c.SetConfig(&config.Config{})
			c.SetLogger(logging.NewNop())
			c.SetRunner(exec.NewMockRunner())
		}, "console not initialized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewContainer()
			tt.setup(c)

			err := c.Validate()

			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.Configuration))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestContainer_ConcurrentAccess(t *testing.T) {
	c := NewContainer()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.SetConfig(&config.Config{})
			c.SetRunner(exec.NewMockRunner())
		}()
		go func() {
			defer wg.Done()
			_ = c.GetConfig()
			_ = c.GetRunner()
		}()
	}
	wg.Wait()
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestNewLifecycle(t *testing.T) {
	l := NewLifecycle(5 * time.Second)

	assert.Equal(t, 5*time.Second, l.timeout)
	assert.False(t, shuttingDown(l))
	assert.Nil(t, l.Signal())
}

func TestLifecycle_OnShutdown(t *testing.T) {
	l := NewLifecycle(time.Second)
	var callOrder []int

	for i := 1; i <= 3; i++ {
		i := i
		l.OnShutdown(func(ctx context.Context) error {
			callOrder = append(callOrder, i)
			return nil
		})
	}

	require.NoError(t, l.Shutdown())
	assert.Equal(t, []int{3, 2, 1}, callOrder)
}

func TestLifecycle_Shutdown_ReturnsLastError(t *testing.T) {
	l := NewLifecycle(time.Second)
	firstErr := errors.New(errors.Unknown, "first error")
	lastErr := errors.New(errors.Unknown, "last error")

	l.OnShutdown(func(ctx context.Context) error { return firstErr })
	l.OnShutdown(func(ctx context.Context) error { return lastErr })

	// Called in reverse order, so the first registered error comes last.
	assert.Equal(t, firstErr, l.Shutdown())
}

func TestLifecycle_Shutdown_Idempotent(t *testing.T) {
	l := NewLifecycle(time.Second)
	var callCount int32

	l.OnShutdown(func(ctx context.Context) error {
		atomic.AddInt32(&callCount, 1)
		return nil
	})

	_ = l.Shutdown()
	_ = l.Shutdown()

	assert.Equal(t, int32(1), atomic.LoadInt32(&callCount))
	assert.True(t, shuttingDown(l))
}

func TestLifecycle_ShutdownTimeout(t *testing.T) {
	timeout := 50 * time.Millisecond
	l := NewLifecycle(timeout)

	var ctxDeadline time.Time
	l.OnShutdown(func(ctx context.Context) error {
		ctxDeadline, _ = ctx.Deadline()
		return nil
	})

	start := time.Now()
	_ = l.Shutdown()

	assert.WithinDuration(t, start.Add(timeout), ctxDeadline, 10*time.Millisecond)
}

func shuttingDown(l *Lifecycle) bool {
	select {
	case <-l.shutdownCh:
		return true
	default:
		return false
	}
}

// fakeSignals replaces signal registration and returns the channel the
// lifecycle registered.
func fakeSignals(l *Lifecycle) <-chan chan<- os.Signal {
	registered := make(chan chan<- os.Signal, 1)
	l.notify = func(c chan<- os.Signal, _ ...os.Signal) { registered <- c }
	l.stop = func(chan<- os.Signal) {}
	return registered
}

func TestLifecycle_CancelOnSignal(t *testing.T) {
	l := NewLifecycle(time.Second)
	registered := fakeSignals(l)

	ctx, cancel := l.CancelOnSignal(context.Background())
	defer cancel()

	(<-registered) <- syscall.SIGTERM

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled by signal")
	}
	assert.Equal(t, syscall.SIGTERM, l.Signal())
}

func TestLifecycle_CancelOnSignal_Shutdown(t *testing.T) {
	l := NewLifecycle(time.Second)
	fakeSignals(l)

	ctx, cancel := l.CancelOnSignal(context.Background())
	defer cancel()

	_ = l.Shutdown()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled by shutdown")
	}
	assert.Nil(t, l.Signal())
}

// =============================================================================
// App Tests
// =============================================================================

type harness struct {
	dir     string
	cfg     *config.Config
	runner  *exec.MockRunner
	fetcher *ctstesting.MockFetcher
	logger  *ctstesting.MockLogger
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
	opts    Options
}

func newHarness(t *testing.T, topo device.Topology) *harness {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.BinDir = dir
	cfg.DataDir = filepath.Join(dir, "test_data")
	cfg.Output = filepath.Join(dir, "cts.txt")
	cfg.NoColor = true
	cfg.Diagnostics = false

	h := &harness{
		dir:     dir,
		cfg:     cfg,
		runner:  exec.NewMockRunner(),
		fetcher: &ctstesting.MockFetcher{},
		logger:  ctstesting.NewMockLogger(),
		stdout:  &bytes.Buffer{},
		stderr:  &bytes.Buffer{},
	}
	h.runner.SetDefaultResponse(exec.SuccessResult(ctstesting.GTestPassed))

	h.opts = Options{
		Version:    "1.0.0",
		Stdout:     h.stdout,
		Stderr:     h.stderr,
		Runner:     h.runner,
		Logger:     h.logger,
		Prober:     device.StaticProber{Topology: topo},
		Fetcher:    h.fetcher,
		Catalog:    ctstesting.SmallCatalog(),
		HostReader: sysinfo.StaticHost(sysinfo.Host{Arch: "x86_64", OS: "linux", Kernel: "6.1.0"}),
		Thermal:    thermal.Static{},
		Now:        func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
	return h
}

func (h *harness) run(t *testing.T, ctx context.Context, command cli.Command) constants.ExitCode {
	t.Helper()
	a := New(h.opts)
	require.NoError(t, a.Initialize(h.cfg))
	return a.Run(ctx, command)
}

func (h *harness) report(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(h.cfg.Output)
	require.NoError(t, err)
	return string(data)
}

var oneUSB = ctstesting.OneUSB()

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.Equal(t, "unknown", opts.Version)
	assert.Equal(t, 30*time.Second, opts.ShutdownTimeout)
	assert.Equal(t, os.Stdout, opts.Stdout)
}

func TestApp_Initialize_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LogLevel = "loud"

	err := New(Options{Logger: logging.NewNop()}).Initialize(cfg)

	require.Error(t, err)
	ctstesting.AssertErrorCode(t, err, errors.Configuration)
	assert.Equal(t, constants.ExitValidation, exitCodeFor(context.Background(), err))
}

func TestApp_Initialize_WithLogFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.LogFile = filepath.Join(dir, "cts.log")

	a := New(Options{Stderr: &bytes.Buffer{}})
	require.NoError(t, a.Initialize(cfg))
	a.container.GetLogger().Info("hello")
	require.NoError(t, a.Shutdown())

	data, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestApp_Run_AllPass(t *testing.T) {
	h := newHarness(t, oneUSB)

	code := h.run(t, context.Background(), cli.CommandRun)

	assert.Equal(t, constants.ExitSuccess, code)
	assert.Equal(t, []string{constants.TestDataRevision}, h.fetcher.Revisions())
	assert.Equal(t, []string{"a_test", "b_test"}, h.runner.CalledNames())
	ctstesting.AssertLogContains(t, h.logger, "report written")
	msg, _ := h.logger.Find("report written")
	assert.NotEmpty(t, msg.Field("run_id"))

	rep := h.report(t)
	assert.Contains(t, rep, "Overall Compatibility: PASS")
	assert.Contains(t, rep, "multi_test")
	assert.Contains(t, rep, "requires at least 2 devices")

	out := h.stdout.String()
	assert.Contains(t, out, "Running 2 of 3 tests on 1 device(s) over USB")
	assert.Contains(t, out, "PASS    a_test")
	assert.Contains(t, out, "Overall Compatibility: PASS")
	assert.Empty(t, h.stderr.String())
}

func TestApp_Run_CommandShape(t *testing.T) {
	h := newHarness(t, oneUSB)

	h.run(t, context.Background(), cli.CommandRun)

	calls := h.runner.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, filepath.Join(h.dir, "a_test"), calls[0].Path)
	assert.Equal(t, h.dir, calls[0].Dir)
	assert.Equal(t, time.Minute, calls[0].Timeout)
}

func TestApp_Run_TestFailure(t *testing.T) {
	h := newHarness(t, oneUSB)
	h.runner.SetResponse("b_test", exec.FailureResult(1, ctstesting.GTestFailed))

	code := h.run(t, context.Background(), cli.CommandRun)

	assert.Equal(t, constants.ExitTestsFailed, code)
	assert.Equal(t, []string{"a_test", "b_test"}, h.runner.CalledNames())
	assert.Contains(t, h.report(t), "Overall Compatibility: FAIL")
	assert.Contains(t, h.stdout.String(), "exited with code 1")
}

func TestApp_Run_DataPresentIsNotFetched(t *testing.T) {
	h := newHarness(t, oneUSB)
	require.NoError(t, os.MkdirAll(h.cfg.DataDir, 0o755))

	code := h.run(t, context.Background(), cli.CommandRun)

	assert.Equal(t, constants.ExitSuccess, code)
	assert.Zero(t, h.fetcher.CallCount())
}

func TestApp_Run_NoDevices(t *testing.T) {
	h := newHarness(t, device.Topology{})

	code := h.run(t, context.Background(), cli.CommandRun)

	assert.Equal(t, constants.ExitSuccess, code)
	assert.Zero(t, h.fetcher.CallCount())
	assert.Zero(t, h.runner.CallCount())
	assert.Contains(t, h.report(t), "Overall Compatibility: PASS")
}

func TestApp_Run_PreflightFailures(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(h *harness)
		code   constants.ExitCode
		stderr string
	}{
		{
			name: "probe fails",
			setup: func(h *harness) {
				h.opts.Prober = device.StaticProber{Err: errors.Wrap(errors.DeviceProbe, "lstpu not found", errors.ErrNoEnumerator)}
			},
			code:   constants.ExitPreflight,
			stderr: "Error: device probe: lstpu not found",
		},
		{
			name: "fetch fails",
			setup: func(h *harness) {
				h.opts.Fetcher = &ctstesting.MockFetcher{Err: errors.New(errors.Network, "connection refused")}
			},
			code:   constants.ExitPreflight,
			stderr: "Error: test data: ",
		},
		{
			name: "unknown test selected",
			setup: func(h *harness) {
				h.cfg.Tests = []string{"a_test", "nope_test"}
			},
			code:   constants.ExitValidation,
			stderr: `Error: configuration: app.catalog: unknown test(s): nope_test`,
		},
		{
			name: "catalog file missing",
			setup: func(h *harness) {
				h.opts.Catalog = nil
				h.cfg.CatalogFile = filepath.Join(h.dir, "missing.yaml")
			},
			code:   constants.ExitValidation,
			stderr: "Error: configuration: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, oneUSB)
			tt.setup(h)

			code := h.run(t, context.Background(), cli.CommandRun)

			assert.Equal(t, tt.code, code)
			assert.Contains(t, h.stderr.String(), tt.stderr)
			assert.Zero(t, h.runner.CallCount())
			assert.NoFileExists(t, h.cfg.Output)
			ctstesting.AssertLogLevel(t, h.logger, logging.LevelError, "run aborted")
		})
	}
}

func TestApp_Run_Interrupted(t *testing.T) {
	h := newHarness(t, oneUSB)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.runner.SetHandler("a_test", func(ctx context.Context, cmd exec.Command) *exec.Result {
		cancel()
		return &exec.Result{ExitCode: -1, Interrupted: true, Error: errors.ErrCancelled}
	})

	code := h.run(t, ctx, cli.CommandRun)

	assert.Equal(t, constants.ExitUserAbort, code)
	assert.Equal(t, []string{"a_test"}, h.runner.CalledNames())

	rep := h.report(t)
	assert.Contains(t, rep, "run interrupted")
	assert.Contains(t, rep, "CRASH")
	assert.Contains(t, rep, "Overall Compatibility: FAIL")
}

func TestApp_Run_ReportWriteFails(t *testing.T) {
	h := newHarness(t, oneUSB)
	h.cfg.Output = filepath.Join(h.dir, "missing", "cts.txt")

	code := h.run(t, context.Background(), cli.CommandRun)

	assert.Equal(t, constants.ExitError, code)
	assert.Contains(t, h.stderr.String(), "Error: report: ")
}

func TestApp_Run_MetricsFile(t *testing.T) {
	h := newHarness(t, oneUSB)
	h.cfg.MetricsFile = filepath.Join(h.dir, "cts.prom")

	require.Equal(t, constants.ExitSuccess, h.run(t, context.Background(), cli.CommandRun))

	data, err := os.ReadFile(h.cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cts_overall_pass 1")
}

func TestApp_Run_Quiet(t *testing.T) {
	h := newHarness(t, oneUSB)
	h.cfg.Quiet = true

	require.Equal(t, constants.ExitSuccess, h.run(t, context.Background(), cli.CommandRun))

	assert.Equal(t, "Overall Compatibility: PASS\n", h.stdout.String())
}

func TestApp_List(t *testing.T) {
	h := newHarness(t, oneUSB)

	code := h.run(t, context.Background(), cli.CommandList)

	assert.Equal(t, constants.ExitSuccess, code)
	assert.Zero(t, h.runner.CallCount())
	out := h.stdout.String()
	assert.Contains(t, out, "Topology: 1 device(s) over USB")
	assert.Contains(t, out, "run   a_test")
	assert.Contains(t, out, "skip  multi_test")
	assert.NoFileExists(t, h.cfg.Output)
}

func TestApp_Probe(t *testing.T) {
	h := newHarness(t, device.Topology{Count: 2, Interface: device.InterfacePCIe, Devices: []string{"0 PCI", "1 PCI"}})

	code := h.run(t, context.Background(), cli.CommandProbe)

	assert.Equal(t, constants.ExitSuccess, code)
	assert.Equal(t, "Topology: 2 device(s) over PCIE\n  0 PCI\n  1 PCI\n", h.stdout.String())
}

type panicProber struct{}

func (panicProber) Probe(context.Context) (device.Topology, error) {
	panic("boom")
}

func TestApp_Run_PanicRecovery(t *testing.T) {
	h := newHarness(t, oneUSB)
	h.opts.Prober = panicProber{}

	code := h.run(t, context.Background(), cli.CommandProbe)

	assert.Equal(t, constants.ExitError, code)
	assert.Contains(t, h.stderr.String(), "panic: boom")
}

func TestApp_Run_NotInitialized(t *testing.T) {
	stderr := &bytes.Buffer{}

	code := New(Options{Stderr: stderr}).Run(context.Background(), cli.CommandRun)

	assert.Equal(t, constants.ExitError, code)
	assert.Contains(t, stderr.String(), "config not initialized")
}

func TestApp_RunWithLifecycle(t *testing.T) {
	h := newHarness(t, oneUSB)
	a := New(h.opts)
	fakeSignals(a.lifecycle)
	require.NoError(t, a.Initialize(h.cfg))

	code := a.RunWithLifecycle(context.Background(), cli.CommandRun)

	assert.Equal(t, constants.ExitSuccess, code)
	assert.True(t, shuttingDown(a.lifecycle))
}

func TestExitCodeFor(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want constants.ExitCode
	}{
		{"configuration", context.Background(), errors.New(errors.Configuration, "x"), constants.ExitValidation},
		{"validation", context.Background(), errors.New(errors.Validation, "x"), constants.ExitValidation},
		{"device probe", context.Background(), errors.New(errors.DeviceProbe, "x"), constants.ExitPreflight},
		{"data", context.Background(), errors.New(errors.DataUnavailable, "x"), constants.ExitPreflight},
		{"report", context.Background(), errors.New(errors.ReportWrite, "x"), constants.ExitError},
		{"cancelled code", context.Background(), errors.ErrCancelled, constants.ExitUserAbort},
		{"cancelled context", cancelled, errors.New(errors.DeviceProbe, "x"), constants.ExitUserAbort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCodeFor(tt.ctx, tt.err))
		})
	}
}
