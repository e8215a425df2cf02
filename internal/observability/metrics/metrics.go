package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "mapping_"

	resultSuccess    = "success"
	resultError      = "error"
	resultNoRows     = "no_rows"
	resultNotFound   = "not_found"
	resultLoadFailed = "load_failed"
)

var (
	registerOnce sync.Once

	loadTotal   *prometheus.CounterVec
	loadLatency *prometheus.HistogramVec

	saveTotal   *prometheus.CounterVec
	saveLatency *prometheus.HistogramVec
	savedRows   prometheus.Counter

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	editTotal      *prometheus.CounterVec
	windowShifts   prometheus.Counter
	droppedPeriods prometheus.Counter
	orphanMappings prometheus.Counter

	activeSessions prometheus.Gauge
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		loadTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "session_load_total",
				Help: "Total session loads by result",
			},
			[]string{"result"},
		)
		loadLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "session_load_latency_seconds",
				Help:    "Session load latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		saveTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "save_total",
				Help: "Total save operations by result",
			},
			[]string{"result"},
		)
		saveLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "save_latency_seconds",
				Help:    "Save latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		savedRows = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "saved_rows_total",
				Help: "Total product rows sent to the store",
			},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total table exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Table export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		editTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "edit_total",
				Help: "Total edit operations by kind and result",
			},
			[]string{"kind", "result"},
		)
		windowShifts = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "window_shift_total",
				Help: "Total financial year window shifts",
			},
		)
		droppedPeriods = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "window_dropped_periods_total",
				Help: "Total periods discarded by window shifts",
			},
		)
		orphanMappings = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "orphan_mappings_total",
				Help: "Persisted mappings skipped at load for lack of a catalog product",
			},
		)

		activeSessions = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "active_sessions",
				Help: "Open edit sessions",
			},
		)

		prometheus.MustRegister(
			loadTotal,
			loadLatency,
			saveTotal,
			saveLatency,
			savedRows,
			exportTotal,
			exportLatency,
			editTotal,
			windowShifts,
			droppedPeriods,
			orphanMappings,
			activeSessions,
		)

		if db != nil {
			prometheus.MustRegister(newStoreCollector(db, logger))
		}
	})
}

// ObserveLoad records session load duration and result.
func ObserveLoad(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if loadTotal != nil {
		loadTotal.WithLabelValues(result).Inc()
	}
	if loadLatency != nil {
		loadLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveSave records save duration and result.
func ObserveSave(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if saveTotal != nil {
		saveTotal.WithLabelValues(result).Inc()
	}
	if saveLatency != nil {
		saveLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddSavedRows increments the saved row counter by count.
func AddSavedRows(count int) {
	if count <= 0 {
		return
	}
	if savedRows != nil {
		savedRows.Add(float64(count))
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

// IncEdit increments the edit counter.
func IncEdit(kind, result string) {
	if kind == "" {
		kind = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if editTotal != nil {
		editTotal.WithLabelValues(kind, result).Inc()
	}
}

// ObserveWindowShift counts a shift and the periods it discarded.
func ObserveWindowShift(dropped int) {
	if windowShifts != nil {
		windowShifts.Inc()
	}
	if dropped > 0 && droppedPeriods != nil {
		droppedPeriods.Add(float64(dropped))
	}
}

// AddOrphanMappings counts persisted mappings skipped at load.
func AddOrphanMappings(count int) {
	if count <= 0 {
		return
	}
	if orphanMappings != nil {
		orphanMappings.Add(float64(count))
	}
}

// SetActiveSessions sets the open session gauge.
func SetActiveSessions(count int) {
	if count < 0 {
		count = 0
	}
	if activeSessions != nil {
		activeSessions.Set(float64(count))
	}
}

// Exported constants for callers.
const (
	ResultSuccess    = resultSuccess
	ResultError      = resultError
	ResultNoRows     = resultNoRows
	ResultNotFound   = resultNotFound
	ResultLoadFailed = resultLoadFailed
)
