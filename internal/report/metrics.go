package report

// A watch owns exactly one child. Nothing it starts outlives it.
// Observation reads, it never writes.

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/psantana5/paw/pkg/watch"
)

// Metrics exposes watch activity as Prometheus collectors on a private
// registry. Gauges describe the latest sample; counters accumulate across
// every watch recorded through the same Metrics.
type Metrics struct {
	registry *prometheus.Registry

	watchesStarted  prometheus.Counter
	watchesFinished *prometheus.CounterVec
	watchesFailed   *prometheus.CounterVec
	samples         prometheus.Counter
	unavailable     *prometheus.CounterVec

	rssBytes      prometheus.Gauge
	vmsBytes      prometheus.Gauge
	cpuPercent    prometheus.Gauge
	uptimeSeconds prometheus.Gauge
	exitCode      prometheus.Gauge
}

// NewMetrics creates and registers all collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		watchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paw_watches_started_total",
			Help: "Watches started",
		}),
		watchesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paw_watches_finished_total",
			Help: "Watches that ran to completion, by exit reason",
		}, []string{"reason"}),
		watchesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paw_watches_failed_total",
			Help: "Watches that failed to run, by failing stage",
		}, []string{"op"}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paw_samples_total",
			Help: "Samples delivered to observers",
		}),
		unavailable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paw_sample_metric_unavailable_total",
			Help: "Samples where a metric could not be read",
		}, []string{"metric"}),
		rssBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "paw_child_resident_memory_bytes",
			Help: "Resident memory of the watched child at the last sample",
		}),
		vmsBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "paw_child_virtual_memory_bytes",
			Help: "Virtual memory of the watched child at the last sample",
		}),
		cpuPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "paw_child_cpu_percent",
			Help: "CPU utilization of the watched child at the last sample, percent of one core",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "paw_child_uptime_seconds",
			Help: "Time since the current watch began",
		}),
		exitCode: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "paw_child_last_exit_code",
			Help: "Exit code of the last finished child, -1 when killed by a signal",
		}),
	}

	m.registry.MustRegister(
		m.watchesStarted,
		m.watchesFinished,
		m.watchesFailed,
		m.samples,
		m.unavailable,
		m.rssBytes,
		m.vmsBytes,
		m.cpuPercent,
		m.uptimeSeconds,
		m.exitCode,
	)

	return m
}

// Registry returns the registry backing all collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// IncrStarted counts a watch that is about to spawn
func (m *Metrics) IncrStarted() {
	m.watchesStarted.Inc()
}

// ObserveSample updates gauges from one sample. Unavailable readings leave
// the gauge at its previous value.
func (m *Metrics) ObserveSample(s watch.Sample) {
	m.samples.Inc()
	m.uptimeSeconds.Set(float64(s.Uptime) / 1000)

	if s.Memory != nil {
		m.rssBytes.Set(float64(s.Memory.RSS))
		m.vmsBytes.Set(float64(s.Memory.VMS))
	} else {
		m.unavailable.WithLabelValues("memory").Inc()
	}

	if s.CPU != nil {
		m.cpuPercent.Set(*s.CPU)
	} else {
		m.unavailable.WithLabelValues("cpu").Inc()
	}
}

// RecordSummary counts a finished watch
func (m *Metrics) RecordSummary(s *Summary) {
	m.watchesFinished.WithLabelValues(string(s.Reason)).Inc()
	if s.ExitCode != nil {
		m.exitCode.Set(float64(*s.ExitCode))
	} else {
		m.exitCode.Set(-1)
	}
}

// RecordFailure counts a watch that returned an error
func (m *Metrics) RecordFailure(err error) {
	op := "unknown"
	var werr *watch.Error
	if errors.As(err, &werr) {
		op = string(werr.Op)
	}
	m.watchesFailed.WithLabelValues(op).Inc()
}
