package logwatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for logwatch, grouped by operation
// NOTE: No client labels are used to avoid high cardinality issues
type Metrics struct {
	Ingest IngestMetrics
	Query  QueryMetrics
}

// IngestMetrics tracks the ingestion cycle
type IngestMetrics struct {
	// LinesRead tracks log lines read from the access log, by outcome
	LinesRead *prometheus.CounterVec // labels: outcome (parsed/skipped)

	// EventsInserted tracks events durably inserted into the store
	EventsInserted prometheus.Counter

	// DuplicatesIgnored tracks events dropped by the uniqueness constraint
	DuplicatesIgnored prometheus.Counter

	// EventsPurged tracks events removed by the retention sweep
	EventsPurged prometheus.Counter

	// RotationsDetected tracks log file rotations and truncations
	RotationsDetected prometheus.Counter

	// SyncFailures tracks aborted ingestion cycles
	SyncFailures prometheus.Counter

	// SyncDuration tracks end-to-end ingestion cycle time
	SyncDuration prometheus.Histogram
}

// QueryMetrics tracks the consumer-facing read path
type QueryMetrics struct {
	// Requests tracks read requests served, by kind
	Requests *prometheus.CounterVec // labels: kind (summary/events)
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates metrics with a custom registry
// This is useful for testing to avoid conflicts with the default registry
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Ingest: IngestMetrics{
			LinesRead: factory.NewCounterVec(
				prometheus.CounterOpts{
					Name: "logwatch_ingest_lines_total",
					Help: "Total number of access log lines read",
				},
				[]string{"outcome"}, // outcome: parsed, skipped
			),
			EventsInserted: factory.NewCounter(
				prometheus.CounterOpts{
					Name: "logwatch_ingest_events_inserted_total",
					Help: "Total number of access events inserted into the store",
				},
			),
			DuplicatesIgnored: factory.NewCounter(
				prometheus.CounterOpts{
					Name: "logwatch_ingest_duplicates_ignored_total",
					Help: "Total number of duplicate events ignored by the uniqueness constraint",
				},
			),
			EventsPurged: factory.NewCounter(
				prometheus.CounterOpts{
					Name: "logwatch_ingest_events_purged_total",
					Help: "Total number of events removed by the retention sweep",
				},
			),
			RotationsDetected: factory.NewCounter(
				prometheus.CounterOpts{
					Name: "logwatch_ingest_rotations_total",
					Help: "Total number of log file rotations or truncations detected",
				},
			),
			SyncFailures: factory.NewCounter(
				prometheus.CounterOpts{
					Name: "logwatch_ingest_sync_failures_total",
					Help: "Total number of ingestion cycles aborted by errors",
				},
			),
			SyncDuration: factory.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "logwatch_ingest_sync_duration_seconds",
					Help:    "End-to-end ingestion cycle time (stat + read + commit)",
					Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15}, // 1ms to 15s
				},
			),
		},

		Query: QueryMetrics{
			Requests: factory.NewCounterVec(
				prometheus.CounterOpts{
					Name: "logwatch_query_requests_total",
					Help: "Total number of read requests served",
				},
				[]string{"kind"}, // kind: summary, events
			),
		},
	}
}
