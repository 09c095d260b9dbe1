package device

import (
	"context"
	"strconv"
	"time"

	"github.com/tungetti/cts/internal/constants"
	"github.com/tungetti/cts/internal/errors"
	"github.com/tungetti/cts/internal/exec"
	"github.com/tungetti/cts/internal/logging"
)

// Prober determines the accelerator topology of the host.
type Prober interface {
	Probe(ctx context.Context) (Topology, error)
}

// EnumeratorProber runs the lstpu executable and parses its output.
type EnumeratorProber struct {
	runner  exec.Runner
	path    string
	timeout time.Duration
	logger  logging.Logger
}

// ProberOption configures the prober.
type ProberOption func(*EnumeratorProber)

// WithBinDir resolves the enumerator inside dir.
func WithBinDir(dir string) ProberOption {
	return func(p *EnumeratorProber) {
		p.path = exec.InDir(dir, constants.EnumeratorName)
	}
}

// WithEnumeratorPath sets the full path of the enumerator executable.
func WithEnumeratorPath(path string) ProberOption {
	return func(p *EnumeratorProber) {
		p.path = path
	}
}

// WithProbeTimeout bounds the enumerator run.
func WithProbeTimeout(d time.Duration) ProberOption {
	return func(p *EnumeratorProber) {
		p.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) ProberOption {
	return func(p *EnumeratorProber) {
		p.logger = l
	}
}

// NewProber creates a prober that runs the enumerator through runner.
func NewProber(runner exec.Runner, opts ...ProberOption) *EnumeratorProber {
	p := &EnumeratorProber{
		runner:  runner,
		path:    exec.InDir(".", constants.EnumeratorName),
		timeout: constants.ProbeTimeout,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Path returns the enumerator path the prober runs.
func (p *EnumeratorProber) Path() string {
	return p.path
}

// Probe runs the enumerator once. Zero devices is a successful probe. It fails
// with a DeviceProbe error when the enumerator cannot be run, or exits
// non-zero without printing a device list.
func (p *EnumeratorProber) Probe(ctx context.Context) (Topology, error) {
	p.logger.Debug("probing devices", "enumerator", p.path)

	res := p.runner.Run(ctx, exec.Command{Path: p.path, Timeout: p.timeout})

	switch {
	case res.Interrupted:
		return Topology{}, errors.Wrap(errors.DeviceProbe, "device probe interrupted", res.Error).
			WithOp("device.Probe")
	case res.TimedOut:
		return Topology{}, errors.Wrapf(errors.DeviceProbe, res.Error, "%s did not finish within %s", p.path, p.timeout).
			WithOp("device.Probe")
	case errors.IsCode(res.Error, errors.NotFound):
		return Topology{}, errors.Wrapf(errors.DeviceProbe, errors.ErrNoEnumerator, "%s not found", p.path).
			WithOp("device.Probe")
	case res.Error != nil:
		return Topology{}, errors.Wrapf(errors.DeviceProbe, res.Error, "cannot run %s", p.path).
			WithOp("device.Probe")
	}

	topo := ParseEnumeration(res.OutputString())

	if res.Failed() {
		if !topo.hasBusLines() {
			reason := "exited with code " + strconv.Itoa(res.ExitCode)
			if res.Signal != "" {
				reason = "killed by " + res.Signal
			}
			return Topology{}, errors.Newf(errors.DeviceProbe, "%s %s without a device list", p.path, reason).
				WithOp("device.Probe")
		}
		p.logger.Warn("enumerator failed but listed devices", "exit_code", res.ExitCode, "devices", topo.Count)
	}

	p.logger.Info("devices detected", "count", topo.Count, "interface", topo.Interface.String())
	return topo, nil
}

// StaticProber returns a fixed topology.
type StaticProber struct {
	Topology Topology
	Err      error
}

// Probe implements Prober.
func (s StaticProber) Probe(ctx context.Context) (Topology, error) {
	return s.Topology, s.Err
}

var (
	_ Prober = (*EnumeratorProber)(nil)
	_ Prober = StaticProber{}
)
