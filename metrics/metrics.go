// Package metrics exposes backup progress as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sksouk/phajay-file-backup/sync"
)

// Metrics holds the backup metrics and implements sync.Recorder.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec // backup_runs_total{result}
	RunDuration     prometheus.Histogram   // backup_run_duration_seconds
	FetchesTotal    *prometheus.CounterVec // backup_fetches_total{reason,result}
	BytesDownloaded prometheus.Counter     // backup_bytes_downloaded_total
	RemoteObjects   prometheus.Gauge       // backup_remote_objects
	TrackedObjects  prometheus.Gauge       // backup_tracked_objects
	SkippedKeys     prometheus.Counter     // backup_skipped_keys_total
	LastSuccess     prometheus.Gauge       // backup_last_success_timestamp_seconds

	gatherer prometheus.Gatherer
}

// New registers the backup metrics with registry. A nil registry uses a
// fresh one.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	f := promauto.With(registry)
	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "backup_runs_total",
			Help: "Backup runs by result (success, failure, noop, dry_run)",
		}, []string{"result"}),

		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "backup_run_duration_seconds",
			Help:    "Backup run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 14),
		}),

		FetchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "backup_fetches_total",
			Help: "Object downloads by candidate reason and result",
		}, []string{"reason", "result"}),

		BytesDownloaded: f.NewCounter(prometheus.CounterOpts{
			Name: "backup_bytes_downloaded_total",
			Help: "Total bytes written to the local backup",
		}),

		RemoteObjects: f.NewGauge(prometheus.GaugeOpts{
			Name: "backup_remote_objects",
			Help: "Objects under the prefix at the last listing",
		}),

		TrackedObjects: f.NewGauge(prometheus.GaugeOpts{
			Name: "backup_tracked_objects",
			Help: "Keys recorded in the manifest",
		}),

		SkippedKeys: f.NewCounter(prometheus.CounterOpts{
			Name: "backup_skipped_keys_total",
			Help: "Listed keys that could not be mapped to a local path",
		}),

		LastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "backup_last_success_timestamp_seconds",
			Help: "Unix time the last successful run started",
		}),

		gatherer: registry,
	}
}

// ObserveFetch records a single download.
func (m *Metrics) ObserveFetch(reason sync.Reason, bytes int64, err error) {
	if err != nil {
		m.FetchesTotal.WithLabelValues(string(reason), "failure").Inc()
		return
	}
	m.FetchesTotal.WithLabelValues(string(reason), "success").Inc()
	m.BytesDownloaded.Add(float64(bytes))
}

// ObserveRun records the outcome of a run.
func (m *Metrics) ObserveRun(res *sync.Result, err error) {
	if res != nil {
		m.RunDuration.Observe(res.Duration.Seconds())
		m.SkippedKeys.Add(float64(len(res.Skipped)))
	}
	if err != nil || res == nil {
		m.RunsTotal.WithLabelValues("failure").Inc()
		return
	}

	m.RemoteObjects.Set(float64(res.TotalObjects))
	m.TrackedObjects.Set(float64(res.TotalTracked))
	m.LastSuccess.Set(float64(res.StartedAt.Unix()))

	switch {
	case res.DryRun:
		m.RunsTotal.WithLabelValues("dry_run").Inc()
	case res.NoOp:
		m.RunsTotal.WithLabelValues("noop").Inc()
	default:
		m.RunsTotal.WithLabelValues("success").Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
