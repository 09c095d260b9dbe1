// Package metrics exports the outcome of a run in the Prometheus text format,
// for node_exporter's textfile collector on fleet hosts.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tungetti/cts/internal/engine"
	"github.com/tungetti/cts/internal/errors"
	"github.com/tungetti/cts/internal/report"
)

var allStatuses = []engine.Status{
	engine.StatusPass,
	engine.StatusFail,
	engine.StatusTimeout,
	engine.StatusCrash,
	engine.StatusSkipped,
}

// Exporter holds the gauges of one run in a private registry.
type Exporter struct {
	registry    *prometheus.Registry
	status      *prometheus.GaugeVec
	duration    *prometheus.GaugeVec
	temperature *prometheus.GaugeVec
	devices     *prometheus.GaugeVec
	overall     prometheus.Gauge
	finished    prometheus.Gauge
}

// NewExporter creates an exporter with all gauges registered.
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		status: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cts_test_status",
				Help: "1 for the status the test ended with, 0 for the others",
			},
			[]string{"test", "status"},
		),
		duration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cts_test_duration_seconds",
				Help: "Wall-clock time of the test",
			},
			[]string{"test"},
		),
		temperature: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cts_test_max_temperature_celsius",
				Help: "Hottest accelerator reading taken after the test",
			},
			[]string{"test"},
		),
		devices: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cts_devices",
				Help: "Accelerators found by the device probe",
			},
			[]string{"interface"},
		),
		overall: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cts_overall_pass",
			Help: "1 if every test that ran passed",
		}),
		finished: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cts_last_run_timestamp_seconds",
			Help: "Start time of the run as a Unix timestamp",
		}),
	}
	e.registry.MustRegister(e.status, e.duration, e.temperature, e.devices, e.overall, e.finished)
	return e
}

// Registry returns the registry holding the gauges.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Observe records a report.
func (e *Exporter) Observe(r *report.Report) {
	t := r.Environment.Topology
	e.devices.WithLabelValues(t.Interface.String()).Set(float64(t.Count))

	for _, res := range r.Results {
		for _, s := range allStatuses {
			v := 0.0
			if res.Status == s {
				v = 1
			}
			e.status.WithLabelValues(res.TestID, s.String()).Set(v)
		}
		if res.Status.Ran() {
			e.duration.WithLabelValues(res.TestID).Set(res.Duration.Seconds())
		}
		if res.MaxTemperature != nil {
			e.temperature.WithLabelValues(res.TestID).Set(*res.MaxTemperature)
		}
	}

	if r.Passed() {
		e.overall.Set(1)
	} else {
		e.overall.Set(0)
	}
	if !r.Meta.Started.IsZero() {
		e.finished.Set(float64(r.Meta.Started.Unix()))
	}
}

// WriteFile writes the gauges to path. The file is replaced atomically.
func (e *Exporter) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
		return errors.Wrapf(errors.ReportWrite, err, "cannot write metrics to %s", path).WithOp("metrics.WriteFile")
	}
	return nil
}

// Export observes r and writes the gauges to path.
func Export(r *report.Report, path string) error {
	e := NewExporter()
	e.Observe(r)
	return e.WriteFile(path)
}
