package sysinfo

import (
	"context"
	"sync"
	"time"

	"github.com/tungetti/cts/internal/constants"
	"github.com/tungetti/cts/internal/device"
	"github.com/tungetti/cts/internal/exec"
	"github.com/tungetti/cts/internal/logging"
)

// PCILister lists Coral PCIe functions.
type PCILister interface {
	Scan(ctx context.Context) ([]device.PCIFunction, error)
}

// Environment is everything the report header says about the host.
type Environment struct {
	Host        Host
	Topology    device.Topology
	PCI         []device.PCIFunction
	Diagnostics []Diagnostic
}

// Collector gathers the environment. Every part is best effort: a failing
// piece is logged and left empty, never fatal.
type Collector struct {
	runner      exec.Runner
	readHost    HostReader
	pci         PCILister
	timeout     time.Duration
	maxLines    int
	diagnostics bool
	logger      logging.Logger
}

// Option configures the collector.
type Option func(*Collector)

// WithHostReader replaces the gopsutil host reader.
func WithHostReader(r HostReader) Option {
	return func(c *Collector) {
		c.readHost = r
	}
}

// WithPCILister replaces the sysfs PCI scanner.
func WithPCILister(l PCILister) Option {
	return func(c *Collector) {
		c.pci = l
	}
}

// WithTimeout bounds each diagnostic command.
func WithTimeout(d time.Duration) Option {
	return func(c *Collector) {
		c.timeout = d
	}
}

// WithMaxLines bounds the lines kept per diagnostic command.
func WithMaxLines(n int) Option {
	return func(c *Collector) {
		c.maxLines = n
	}
}

// WithDiagnostics enables or disables the diagnostic commands.
func WithDiagnostics(enabled bool) Option {
	return func(c *Collector) {
		c.diagnostics = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Collector) {
		c.logger = l
	}
}

// NewCollector creates a collector that runs diagnostics through runner.
func NewCollector(runner exec.Runner, opts ...Option) *Collector {
	c := &Collector{
		runner:      runner,
		readHost:    ReadHost,
		pci:         device.NewPCIScanner(),
		timeout:     constants.DiagnosticTimeout,
		maxLines:    DefaultMaxLines,
		diagnostics: true,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Host reads host metadata only.
func (c *Collector) Host(ctx context.Context) Host {
	h, err := c.readHost(ctx)
	if err != nil {
		c.logger.Warn("incomplete host metadata", "error", err)
	}
	return h
}

// Collect gathers the environment for topology t. Host metadata and the PCI
// scan run concurrently with the diagnostic commands, which run in order.
func (c *Collector) Collect(ctx context.Context, t device.Topology) Environment {
	env := Environment{Topology: t}

	var wg sync.WaitGroup
	var mu sync.Mutex

	wg.Add(1)
	go func() {
		defer wg.Done()
		h := c.Host(ctx)
		mu.Lock()
		env.Host = h
		mu.Unlock()
	}()

	if t.IsPCIe() && c.pci != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			functions, err := c.pci.Scan(ctx)
			if err != nil {
				c.logger.Warn("PCI scan failed", "error", err)
				return
			}
			mu.Lock()
			env.PCI = functions
			mu.Unlock()
		}()
	}

	if c.diagnostics {
		wg.Add(1)
		go func() {
			defer wg.Done()
			diags := c.Diagnose(ctx, t)
			mu.Lock()
			env.Diagnostics = diags
			mu.Unlock()
		}()
	}

	wg.Wait()
	return env
}

// Diagnose runs the diagnostic commands for t, one at a time.
func (c *Collector) Diagnose(ctx context.Context, t device.Topology) []Diagnostic {
	probes := ProbesFor(t)
	out := make([]Diagnostic, 0, len(probes))
	for _, p := range probes {
		if ctx.Err() != nil {
			break
		}
		d := p.run(ctx, c.runner, c.timeout, c.maxLines)
		c.logger.Debug("diagnostic collected", "command", d.Command, "lines", len(d.Lines), "error", d.Err)
		out = append(out, d)
	}
	return out
}
