// Package metrics exposes rotation outcomes as Prometheus metrics.
//
// A Collector is a report.Sink. Serve mode mounts Handler on /metrics; one
// shot runs write the registry to a node_exporter textfile with
// WriteTextfile.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/geeooff/iis-log-rotator/internal/report"
)

const namespace = "iislogrotator"

// Collector holds the rotation metrics.
type Collector struct {
	reg *prometheus.Registry

	FilesCompressed *prometheus.CounterVec
	FilesDeleted    *prometheus.CounterVec
	FilesFailed     *prometheus.CounterVec
	StreamsSkipped  *prometheus.CounterVec
	Runs            *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	LastRun         prometheus.Gauge
	LastRunFailed   prometheus.Gauge
}

// New creates a Collector on its own registry.
func New() *Collector {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates a Collector registered with reg.
func NewWithRegistry(reg *prometheus.Registry) *Collector {
	c := &Collector{
		reg: reg,
		FilesCompressed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "files",
				Name:      "compressed_total",
				Help:      "Log files compressed into a zip archive.",
			},
			[]string{"stream", "simulated"},
		),
		FilesDeleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "files",
				Name:      "deleted_total",
				Help:      "Log files and archives deleted, by reason.",
			},
			[]string{"stream", "reason", "simulated"},
		),
		FilesFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "files",
				Name:      "failed_total",
				Help:      "File actions that did not complete, by action.",
			},
			[]string{"stream", "action"},
		),
		StreamsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "streams",
				Name:      "skipped_total",
				Help:      "Streams not processed, by reason.",
			},
			[]string{"stream", "reason"},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Completed rotation runs.",
			},
			[]string{"dry_run"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of a rotation run.",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
		),
		LastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last rotation run ended.",
			},
		),
		LastRunFailed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_failed_files",
				Help:      "File actions that failed during the last run.",
			},
		),
	}

	reg.MustRegister(
		c.FilesCompressed,
		c.FilesDeleted,
		c.FilesFailed,
		c.StreamsSkipped,
		c.Runs,
		c.RunDuration,
		c.LastRun,
		c.LastRunFailed,
	)
	return c
}

// Registry returns the registry the metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}

// WriteTextfile writes the registry to path for the node_exporter textfile
// collector. The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.reg)
}

func (c *Collector) StreamStarted(report.Stream) {}

func (c *Collector) FileDone(streamID string, o report.FileOutcome) {
	if o.Failed() {
		c.FilesFailed.WithLabelValues(streamID, string(o.Action)).Inc()
		return
	}
	simulated := strconv.FormatBool(o.Simulated)
	switch o.Action {
	case report.ActionCompress:
		c.FilesCompressed.WithLabelValues(streamID, simulated).Inc()
	case report.ActionDelete:
		c.FilesDeleted.WithLabelValues(streamID, string(o.Reason), simulated).Inc()
	}
}

func (c *Collector) StreamDone(s report.Stream) {
	if s.Skipped() {
		c.StreamsSkipped.WithLabelValues(s.ID, string(s.Skip)).Inc()
	}
}

func (c *Collector) RunDone(r report.Run) {
	_, _, failed, _ := r.Totals()
	c.Runs.WithLabelValues(strconv.FormatBool(r.DryRun)).Inc()
	c.RunDuration.Observe(r.Duration().Seconds())
	end := r.End
	if end.IsZero() {
		end = time.Now()
	}
	c.LastRun.Set(float64(end.Unix()))
	c.LastRunFailed.Set(float64(failed))
}
