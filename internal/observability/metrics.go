package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the refresh pipeline.
type Metrics struct {
	RefreshCycles    *prometheus.CounterVec // labels: outcome={success,failure}
	RefreshDuration  prometheus.Histogram
	SkippedTriggers  prometheus.Counter
	SchedulerRunning prometheus.Gauge
	SnapshotEvents   prometheus.Gauge

	// Feed metrics.
	FetchDuration *prometheus.HistogramVec // labels: outcome={success,network_error,decode_error}

	// Snapshot file metrics.
	BackupsCreated prometheus.Counter
	BackupsPruned  prometheus.Counter
	SaveErrors     prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RefreshCycles,
		m.RefreshDuration,
		m.SkippedTriggers,
		m.SchedulerRunning,
		m.SnapshotEvents,
		m.FetchDuration,
		m.BackupsCreated,
		m.BackupsPruned,
		m.SaveErrors,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as
// many as they need without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RefreshCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sismos",
			Name:      "refresh_cycles_total",
			Help:      "Refresh cycles by outcome.",
		}, []string{"outcome"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sismos",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete fetch-transform-persist cycle.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		SkippedTriggers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sismos",
			Name:      "refresh_triggers_skipped_total",
			Help:      "Timer triggers dropped because a cycle was already pending.",
		}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sismos",
			Name:      "scheduler_running",
			Help:      "1 when the refresh scheduler is active, 0 when stopped.",
		}),
		SnapshotEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sismos",
			Name:      "snapshot_events",
			Help:      "Number of events in the last saved snapshot.",
		}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sismos",
			Name:      "feed_fetch_duration_seconds",
			Help:      "Feed request duration in seconds by outcome.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}),
		BackupsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sismos",
			Name:      "snapshot_backups_created_total",
			Help:      "Backups taken before overwriting the snapshot.",
		}),
		BackupsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sismos",
			Name:      "snapshot_backups_pruned_total",
			Help:      "Old backups removed by retention.",
		}),
		SaveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sismos",
			Name:      "snapshot_save_errors_total",
			Help:      "Snapshot writes that failed.",
		}),
	}
}
