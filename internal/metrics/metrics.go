package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Indexer graph metrics
	SafeHeight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "indexgraph_safe_height",
			Help: "Last committed safe height of an indexer",
		},
		[]string{"indexer"},
	)

	UpdateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "indexgraph_update_duration_seconds",
			Help:    "Duration of indexer update cycles",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"indexer"},
	)

	UpdateOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexgraph_update_cycles_total",
			Help: "Total number of update cycles by outcome (complete, partial, skipped, error)",
		},
		[]string{"indexer", "outcome"},
	)

	Invalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexgraph_invalidations_total",
			Help: "Total number of invalidations applied to an indexer",
		},
		[]string{"indexer"},
	)

	InvalidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexgraph_invalidation_failures_total",
			Help: "Total number of rollbacks that failed and need operator intervention",
		},
		[]string{"indexer"},
	)

	RecordsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexgraph_records_written_total",
			Help: "Total number of records written by an indexer",
		},
		[]string{"indexer"},
	)

	ReorgsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexgraph_reorgs_detected_total",
			Help: "Total number of chain reorganizations detected below an indexer",
		},
		[]string{"indexer"},
	)

	ReorgDepth = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "indexgraph_reorg_depth_blocks",
			Help:    "Depth of detected chain reorganizations in blocks",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)

	// External request metrics
	Requests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexgraph_requests_total",
			Help: "Total number of external requests by source and method",
		},
		[]string{"source", "method"},
	)

	RequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexgraph_request_errors_total",
			Help: "Total number of failed external requests by source and method",
		},
		[]string{"source", "method"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "indexgraph_request_duration_seconds",
			Help:    "Duration of external requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "method"},
	)

	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexgraph_retries_total",
			Help: "Total number of retried operations",
		},
		[]string{"operation"},
	)

	// System metrics
	Uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexgraph_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)

	ComponentHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "indexgraph_component_health",
			Help: "Component health status (1=healthy, 0=unhealthy)",
		},
		[]string{"component"},
	)

	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexgraph_goroutines",
			Help: "Number of active goroutines",
		},
	)

	MemoryUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "indexgraph_memory_usage_bytes",
			Help: "Memory usage statistics",
		},
		[]string{"type"},
	)

	startTime = time.Now()
)

func SafeHeightSet(indexer string, height uint64) {
	SafeHeight.WithLabelValues(indexer).Set(float64(height))
}

func UpdateDurationLog(indexer string, duration time.Duration) {
	UpdateDuration.WithLabelValues(indexer).Observe(duration.Seconds())
}

func UpdateOutcomeInc(indexer, outcome string) {
	UpdateOutcomes.WithLabelValues(indexer, outcome).Inc()
}

func InvalidationsInc(indexer string) {
	Invalidations.WithLabelValues(indexer).Inc()
}

func InvalidationFailedInc(indexer string) {
	InvalidationFailures.WithLabelValues(indexer).Inc()
}

func ReorgDetectedLog(indexer string, depth uint64) {
	ReorgsDetected.WithLabelValues(indexer).Inc()
	ReorgDepth.Observe(float64(depth))
}

func RecordsWrittenAdd(indexer string, count int) {
	RecordsWritten.WithLabelValues(indexer).Add(float64(count))
}

func RequestInc(source, method string) {
	Requests.WithLabelValues(source, method).Inc()
}

func RequestErrorInc(source, method string) {
	RequestErrors.WithLabelValues(source, method).Inc()
}

func RequestDurationLog(source, method string, duration time.Duration) {
	RequestDuration.WithLabelValues(source, method).Observe(duration.Seconds())
}

func RetriesInc(operation string) {
	Retries.WithLabelValues(operation).Inc()
}

func ComponentHealthSet(component string, healthy bool) {
	boolAsFloat := float64(1)
	if !healthy {
		boolAsFloat = 0
	}

	ComponentHealth.WithLabelValues(component).Set(boolAsFloat)
}

// UpdateSystemMetrics updates runtime system metrics.
func UpdateSystemMetrics() {
	Uptime.Set(time.Since(startTime).Seconds())
	Goroutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	MemoryUsage.WithLabelValues("alloc").Set(float64(m.Alloc))
	MemoryUsage.WithLabelValues("sys").Set(float64(m.Sys))
	MemoryUsage.WithLabelValues("heap_inuse").Set(float64(m.HeapInuse))
}
