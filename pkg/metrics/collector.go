// Package metrics exposes run metrics in Prometheus format. A run is a
// short-lived batch job, so metrics are written once to a node-exporter
// textfile instead of being served.
package metrics

import (
	"time"

	"github.com/glorpus-work/fetchmirror/pkg/errors"
	"github.com/glorpus-work/fetchmirror/pkg/fsutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fetchmirror"

// Collector holds the metrics of one run on a private registry.
type Collector struct {
	registry *prometheus.Registry

	tasksTotal    *prometheus.CounterVec
	batchesTotal  prometheus.Counter
	fetchDuration prometheus.Histogram
	batchSize     prometheus.Histogram
	lastRun       prometheus.Gauge
}

// NewCollector creates a collector with all metrics registered.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		tasksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_total",
				Help:      "Manifest tasks by final outcome",
			},
			[]string{"outcome"},
		),
		batchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batches dispatched",
		}),
		fetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time from request to committed artifact or failure",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		batchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Tasks per dispatched batch",
			Buckets:   prometheus.LinearBuckets(5, 5, 6),
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run completed",
		}),
	}
}

// Registry returns the private registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// AddOutcome adds n tasks with the given outcome label.
func (c *Collector) AddOutcome(outcome string, n int64) {
	if n <= 0 {
		return
	}
	c.tasksTotal.WithLabelValues(outcome).Add(float64(n))
}

// ObserveFetch records the duration of one fetch attempt.
func (c *Collector) ObserveFetch(d time.Duration) {
	c.fetchDuration.Observe(d.Seconds())
}

// ObserveBatch records one dispatched batch.
func (c *Collector) ObserveBatch(size int) {
	c.batchesTotal.Inc()
	c.batchSize.Observe(float64(size))
}

// MarkRunComplete sets the last run timestamp.
func (c *Collector) MarkRunComplete(t time.Time) {
	c.lastRun.Set(float64(t.Unix()))
}

// WriteTextfile writes every metric to path atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := fsutil.EnsureFileDir(path); err != nil {
		return errors.Wrapf(err, "failed to create metrics directory for %s", path)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return errors.Wrapf(err, "failed to write metrics to %s", path)
	}
	return nil
}
