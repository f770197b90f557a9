// Package observability provides Prometheus metrics for the aggregation
// pipeline.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	// Discovery metrics
	EventPagesFetched   prometheus.Counter
	CandidatesExtracted prometheus.Counter

	// Resolution metrics
	ObjectsResolved prometheus.Counter
	ObjectsAbsent   prometheus.Counter
	RecordsSkipped  *prometheus.CounterVec

	// Fetch metrics
	FetchAttempts  prometheus.Counter
	FetchFailures  *prometheus.CounterVec
	FetchSuccesses *prometheus.CounterVec

	// Controller metrics
	BatchSize     prometheus.Gauge
	BatchDelayMS  prometheus.Gauge
	RecoveryMode  prometheus.Gauge
	BatchOutcomes *prometheus.CounterVec

	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration prometheus.Histogram
	LastTVL     prometheus.Gauge
}

// NewMetrics creates a Metrics instance with all metrics registered on the
// default registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "tvlscan"
	}

	return &Metrics{
		EventPagesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "event_pages_fetched_total",
			Help:      "Total number of event-log pages fetched",
		}),
		CandidatesExtracted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "candidates_extracted_total",
			Help:      "Total number of candidate object IDs extracted from events",
		}),
		ObjectsResolved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolve",
			Name:      "objects_resolved_total",
			Help:      "Total number of candidate objects resolved to live state",
		}),
		ObjectsAbsent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolve",
			Name:      "objects_absent_total",
			Help:      "Total number of candidates whose objects were deleted or converted",
		}),
		RecordsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "records_skipped_total",
			Help:      "Total number of resolved objects skipped during extraction, by reason",
		}, []string{"reason"}),
		FetchAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "attempts_total",
			Help:      "Total number of position data fetch attempts",
		}),
		FetchFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "failures_total",
			Help:      "Total number of final per-record fetch failures, by pass",
		}, []string{"pass"}),
		FetchSuccesses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "successes_total",
			Help:      "Total number of per-record fetch successes, by pass",
		}, []string{"pass"}),
		BatchSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "controller",
			Name:      "batch_size",
			Help:      "Current adaptive batch size",
		}),
		BatchDelayMS: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "controller",
			Name:      "batch_delay_ms",
			Help:      "Current inter-batch delay in milliseconds",
		}),
		RecoveryMode: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "controller",
			Name:      "recovery_mode",
			Help:      "1 while the controller is in recovery mode, 0 otherwise",
		}),
		BatchOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "controller",
			Name:      "batch_outcomes_total",
			Help:      "Total number of batches by controller classification",
		}, []string{"outcome"}),
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"status"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Pipeline run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		LastTVL: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "last_total_tvl_usd",
			Help:      "Total TVL in USD from the most recent completed run",
		}),
	}
}

// Handler returns an HTTP handler for a /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// The record helpers below are nil-safe so pipeline code can run without a
// registry (unit tests construct runners with no Metrics).

// RecordPage increments the pages-fetched counter and adds extracted candidates.
func (m *Metrics) RecordPage(candidates int) {
	if m == nil {
		return
	}
	m.EventPagesFetched.Inc()
	m.CandidatesExtracted.Add(float64(candidates))
}

// RecordResolution adds resolved and absent object counts.
func (m *Metrics) RecordResolution(resolved, absent int) {
	if m == nil {
		return
	}
	m.ObjectsResolved.Add(float64(resolved))
	m.ObjectsAbsent.Add(float64(absent))
}

// RecordSkip increments the extraction-skip counter for a reason.
func (m *Metrics) RecordSkip(reason string) {
	if m == nil {
		return
	}
	m.RecordsSkipped.WithLabelValues(reason).Inc()
}

// RecordFetch records one final per-record fetch outcome for a pass.
func (m *Metrics) RecordFetch(pass string, ok bool) {
	if m == nil {
		return
	}
	m.FetchAttempts.Inc()
	if ok {
		m.FetchSuccesses.WithLabelValues(pass).Inc()
	} else {
		m.FetchFailures.WithLabelValues(pass).Inc()
	}
}

// RecordController updates the controller gauges and the outcome counter.
func (m *Metrics) RecordController(batchSize, delayMS int, recovery bool, outcome string) {
	if m == nil {
		return
	}
	m.BatchSize.Set(float64(batchSize))
	m.BatchDelayMS.Set(float64(delayMS))
	if recovery {
		m.RecoveryMode.Set(1)
	} else {
		m.RecoveryMode.Set(0)
	}
	if outcome != "" {
		m.BatchOutcomes.WithLabelValues(outcome).Inc()
	}
}

// RecordRun records a completed run.
func (m *Metrics) RecordRun(status string, seconds, totalTVL float64) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(seconds)
	if status == "complete" {
		m.LastTVL.Set(totalTVL)
	}
}
