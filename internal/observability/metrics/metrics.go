package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "meterdesk_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestTotal   *prometheus.CounterVec
	ingestLatency *prometheus.HistogramVec

	importRows *prometheus.CounterVec

	extractionTotal   *prometheus.CounterVec
	extractionLatency *prometheus.HistogramVec

	chainImports *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reading_ingest_total",
				Help: "Total reading ingest operations by source and result",
			},
			[]string{"source", "result"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "reading_ingest_latency_seconds",
				Help:    "Reading ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source", "result"},
		)

		importRows = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "import_rows_total",
				Help: "Total bulk import rows by outcome",
			},
			[]string{"outcome"},
		)

		extractionTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "extraction_total",
				Help: "Total oracle extraction calls by kind and result",
			},
			[]string{"kind", "result"},
		)
		extractionLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "extraction_latency_seconds",
				Help:    "Oracle extraction latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind", "result"},
		)

		chainImports = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "chain_imports_total",
				Help: "Total meter chain imports by result",
			},
			[]string{"result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total reading export operations by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Reading export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ingestTotal,
			ingestLatency,
			importRows,
			extractionTotal,
			extractionLatency,
			chainImports,
			exportTotal,
			exportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveIngest records one reading ingest by source, outcome and
// elapsed time since start.
func ObserveIngest(source string, start time.Time, err error) {
	if source == "" {
		source = "unknown"
	}
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	if ingestTotal != nil {
		ingestTotal.WithLabelValues(source, result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(source, result).Observe(time.Since(start).Seconds())
	}
}

// IncImportRow increments the per-row import counter. Outcomes are
// imported, overwritten and skipped.
func IncImportRow(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if importRows != nil {
		importRows.WithLabelValues(outcome).Inc()
	}
}

// ObserveExtraction records an oracle extraction call.
func ObserveExtraction(kind, result string, duration time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if extractionTotal != nil {
		extractionTotal.WithLabelValues(kind, result).Inc()
	}
	if extractionLatency != nil {
		extractionLatency.WithLabelValues(kind, result).Observe(duration.Seconds())
	}
}

// IncChainImport increments chain import counters.
func IncChainImport(result string) {
	if result == "" {
		result = "unknown"
	}
	if chainImports != nil {
		chainImports.WithLabelValues(result).Inc()
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
