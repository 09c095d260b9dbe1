package app

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/tungetti/cts/internal/catalog"
	"github.com/tungetti/cts/internal/config"
	"github.com/tungetti/cts/internal/constants"
	"github.com/tungetti/cts/internal/dataset"
	"github.com/tungetti/cts/internal/device"
	"github.com/tungetti/cts/internal/engine"
	"github.com/tungetti/cts/internal/errors"
	"github.com/tungetti/cts/internal/logging"
	"github.com/tungetti/cts/internal/metrics"
	"github.com/tungetti/cts/internal/plan"
	"github.com/tungetti/cts/internal/report"
	"github.com/tungetti/cts/internal/sysinfo"
	"github.com/tungetti/cts/internal/thermal"
)

// runSuite performs one full run: probe, plan, data gate, execution,
// diagnostics, report. Pre-flight failures abort before any test runs and no
// report is written. Once tests have started a report is always attempted,
// including after an interrupt.
func (a *App) runSuite(ctx context.Context) constants.ExitCode {
	cfg := a.container.GetConfig()
	con := a.container.GetConsole()
	runID := uuid.New().String()
	logger := a.container.GetLogger().WithFields("run_id", runID)
	started := a.opts.Now()

	logger.Info("starting compatibility run", "version", a.opts.Version, "output", cfg.Output)

	cat, err := a.catalog(cfg)
	if err != nil {
		return a.fail(ctx, logger, err)
	}

	binDir, err := filepath.Abs(cfg.BinDir)
	if err != nil {
		return a.fail(ctx, logger, errors.Wrap(errors.Configuration, "cannot resolve binary directory", err))
	}
	dataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return a.fail(ctx, logger, errors.Wrap(errors.Configuration, "cannot resolve data directory", err))
	}

	topo, err := a.prober(binDir, cfg, logger).Probe(ctx)
	if err != nil {
		return a.fail(ctx, logger, err)
	}
	if !cfg.IsSilent() {
		con.Topology(topo)
	}

	p := plan.Build(cat, topo, plan.Options{Only: cfg.Tests})
	logger.Info("plan built", "tests", p.Len(), "runnable", len(p.Runnable()))

	if p.NeedsData() {
		gate := dataset.NewGate(a.fetcher(cfg, logger),
			dataset.WithRevision(cfg.DataRevision),
			dataset.WithLogger(logger),
		)
		if err := gate.Ensure(ctx, dataDir); err != nil {
			return a.fail(ctx, logger, err)
		}
	}

	con.Plan(p)

	engOpts := []engine.Option{
		engine.WithBinDir(binDir),
		engine.WithWorkDir(filepath.Dir(dataDir)),
		engine.WithMaxOutput(cfg.MaxOutputBytes),
		engine.WithThermal(a.thermal()),
		engine.OnStart(con.TestStarted),
		engine.OnResult(con.TestFinished),
		engine.WithLogger(logger),
	}
	if cfg.IsVerbose() {
		engOpts = append(engOpts, engine.WithTee(a.opts.Stderr))
	}
	results := engine.New(a.container.GetRunner(), engOpts...).Run(ctx, p)

	// Collection and the report outlive an interrupt; both are bounded on
	// their own.
	post := context.WithoutCancel(ctx)
	env := a.collector(cfg, logger).Collect(post, topo)

	rep, err := report.Aggregate(report.Meta{
		Version:      a.opts.Version,
		RunID:        runID,
		Started:      started,
		DataRevision: cfg.DataRevision,
	}, env, p, results)
	if err != nil {
		return a.fail(ctx, logger, err)
	}

	if err := report.Write(post, rep, cfg.Output); err != nil {
		logger.Error("report not written", "path", cfg.Output, "error", err)
		a.reportError(err)
		return constants.ExitError
	}
	logger.Info("report written", "path", cfg.Output, "overall", rep.Overall.String())

	if cfg.MetricsFile != "" {
		if err := metrics.Export(rep, cfg.MetricsFile); err != nil {
			logger.Warn("metrics not written", "path", cfg.MetricsFile, "error", err)
		}
	}

	con.Overall(rep, cfg.Output)

	switch {
	case ctx.Err() != nil:
		return constants.ExitUserAbort
	case rep.Passed():
		return constants.ExitSuccess
	default:
		return constants.ExitTestsFailed
	}
}

// list prints the catalog and what would run on this host.
func (a *App) list(ctx context.Context) constants.ExitCode {
	cfg := a.container.GetConfig()
	con := a.container.GetConsole()
	logger := a.container.GetLogger()

	cat, err := a.catalog(cfg)
	if err != nil {
		return a.fail(ctx, logger, err)
	}
	binDir, err := filepath.Abs(cfg.BinDir)
	if err != nil {
		return a.fail(ctx, logger, errors.Wrap(errors.Configuration, "cannot resolve binary directory", err))
	}
	topo, err := a.prober(binDir, cfg, logger).Probe(ctx)
	if err != nil {
		return a.fail(ctx, logger, err)
	}

	con.Topology(topo)
	con.Catalog(plan.Build(cat, topo, plan.Options{Only: cfg.Tests}))
	return constants.ExitSuccess
}

// probe prints the detected topology only.
func (a *App) probe(ctx context.Context) constants.ExitCode {
	cfg := a.container.GetConfig()
	logger := a.container.GetLogger()

	binDir, err := filepath.Abs(cfg.BinDir)
	if err != nil {
		return a.fail(ctx, logger, errors.Wrap(errors.Configuration, "cannot resolve binary directory", err))
	}
	topo, err := a.prober(binDir, cfg, logger).Probe(ctx)
	if err != nil {
		return a.fail(ctx, logger, err)
	}
	a.container.GetConsole().Topology(topo)
	return constants.ExitSuccess
}

// fail reports a fatal error and maps it to an exit code.
func (a *App) fail(ctx context.Context, logger logging.Logger, err error) constants.ExitCode {
	logger.Error("run aborted", "error", err)
	a.reportError(err)
	return exitCodeFor(ctx, err)
}

// exitCodeFor maps a fatal error to the process exit code.
func exitCodeFor(ctx context.Context, err error) constants.ExitCode {
	if ctx.Err() != nil || errors.IsCode(err, errors.Cancelled) {
		return constants.ExitUserAbort
	}
	switch errors.GetCode(err) {
	case errors.Configuration, errors.Validation:
		return constants.ExitValidation
	case errors.DeviceProbe, errors.DataUnavailable:
		return constants.ExitPreflight
	default:
		return constants.ExitError
	}
}

// catalog returns the injected catalog, the one named by the configuration,
// or the built-in one, and checks the selected tests exist in it.
func (a *App) catalog(cfg *config.Config) (*catalog.Catalog, error) {
	cat := a.opts.Catalog
	if cat == nil {
		if cfg.CatalogFile != "" {
			loaded, err := catalog.Load(cfg.CatalogFile)
			if err != nil {
				return nil, err
			}
			cat = loaded
		} else {
			cat = catalog.Default()
		}
	}

	if unknown := cat.Unknown(cfg.Tests); len(unknown) > 0 {
		return nil, errors.Newf(errors.Validation, "unknown test(s): %s (known: %s)",
			strings.Join(unknown, ", "), strings.Join(cat.IDs(), ", ")).WithOp("app.catalog")
	}
	return cat, nil
}

func (a *App) prober(binDir string, cfg *config.Config, logger logging.Logger) device.Prober {
	if a.opts.Prober != nil {
		return a.opts.Prober
	}
	return device.NewProber(a.container.GetRunner(),
		device.WithBinDir(binDir),
		device.WithProbeTimeout(cfg.ProbeTimeout),
		device.WithLogger(logger),
	)
}

func (a *App) fetcher(cfg *config.Config, logger logging.Logger) dataset.Fetcher {
	if a.opts.Fetcher != nil {
		return a.opts.Fetcher
	}
	return dataset.NewArchiveFetcher(
		dataset.WithHTTPClient(&http.Client{Timeout: cfg.FetchTimeout}),
		dataset.WithURLTemplate(cfg.DataURL),
		dataset.WithFetchLogger(logger),
	)
}

func (a *App) thermal() thermal.Sampler {
	if a.opts.Thermal != nil {
		return a.opts.Thermal
	}
	return thermal.NewReader()
}

func (a *App) collector(cfg *config.Config, logger logging.Logger) *sysinfo.Collector {
	opts := []sysinfo.Option{
		sysinfo.WithTimeout(cfg.DiagnosticTimeout),
		sysinfo.WithDiagnostics(cfg.Diagnostics),
		sysinfo.WithLogger(logger),
	}
	if a.opts.HostReader != nil {
		opts = append(opts, sysinfo.WithHostReader(a.opts.HostReader))
	}
	if a.opts.PCILister != nil {
		opts = append(opts, sysinfo.WithPCILister(a.opts.PCILister))
	}
	return sysinfo.NewCollector(a.container.GetRunner(), opts...)
}
