package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "harvest_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	reconcileOutcomes *prometheus.CounterVec
	regoChanges       prometheus.Counter

	blobFetchLatency prometheus.Histogram

	harvestScanTotal   *prometheus.CounterVec
	harvestScanLatency *prometheus.HistogramVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_events_total",
				Help: "Total ingested telemetry events by result",
			},
			[]string{"result"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Per-event ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		reconcileOutcomes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconcile_outcomes_total",
				Help: "Reconciliation outcomes by kind",
			},
			[]string{"outcome"},
		)
		regoChanges = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "rego_changes_total",
				Help: "Device registration reassignments applied",
			},
		)

		blobFetchLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "blob_fetch_latency_seconds",
				Help:    "Blob download latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		)

		harvestScanTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "scan_total",
				Help: "Polling harvester scans by result",
			},
			[]string{"result"},
		)
		harvestScanLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "scan_latency_seconds",
				Help:    "Polling harvester scan latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "history_export_total",
				Help: "History export operations by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "history_export_latency_seconds",
				Help:    "History export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestLatency,
			reconcileOutcomes,
			regoChanges,
			blobFetchLatency,
			harvestScanTotal,
			harvestScanLatency,
			exportTotal,
			exportLatency,
		)

		registerDBMetrics(db, logger)
	})
}

// ObserveIngest records one processed event.
func ObserveIngest(result string, duration time.Duration) {
	if ingestRequests == nil {
		return
	}
	ingestRequests.WithLabelValues(result).Inc()
	ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
}

// IncReconcileOutcome records one reconciliation outcome.
func IncReconcileOutcome(outcome string) {
	if reconcileOutcomes == nil {
		return
	}
	reconcileOutcomes.WithLabelValues(outcome).Inc()
}

// IncRegoChange records one registration reassignment.
func IncRegoChange() {
	if regoChanges == nil {
		return
	}
	regoChanges.Inc()
}

// ObserveBlobFetch records one blob download.
func ObserveBlobFetch(duration time.Duration) {
	if blobFetchLatency == nil {
		return
	}
	blobFetchLatency.Observe(duration.Seconds())
}

// ObserveHarvestScan records one polling scan.
func ObserveHarvestScan(err error, duration time.Duration) {
	if harvestScanTotal == nil {
		return
	}
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	harvestScanTotal.WithLabelValues(result).Inc()
	harvestScanLatency.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveExport records one history export.
func ObserveExport(format, result string, duration time.Duration) {
	if exportTotal == nil {
		return
	}
	exportTotal.WithLabelValues(format, result).Inc()
	exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
}
