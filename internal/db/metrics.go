package db

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	maintenanceOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexgraph_maintenance_runs_total",
			Help: "Total number of maintenance runs by outcome",
		},
		[]string{"status"},
	)

	maintenanceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "indexgraph_maintenance_duration_seconds",
			Help:    "Duration of maintenance runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	maintenanceSpaceReclaimed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexgraph_maintenance_space_reclaimed_bytes",
			Help: "Bytes reclaimed by the last maintenance run",
		},
	)

	walCheckpoints = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexgraph_wal_checkpoint_total",
			Help: "Total number of WAL checkpoint operations",
		},
		[]string{"mode"},
	)

	dbSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexgraph_db_size_bytes",
			Help: "Database size in bytes, including WAL and SHM files",
		},
	)
)

func maintenanceDone(duration time.Duration, err error) {
	maintenanceDuration.Observe(duration.Seconds())
	if err != nil {
		maintenanceOutcomes.WithLabelValues("error").Inc()
		return
	}
	maintenanceOutcomes.WithLabelValues("success").Inc()
}

func spaceReclaimedLog(bytes int64) {
	maintenanceSpaceReclaimed.Set(float64(bytes))
}

func walCheckpointInc(mode string) {
	walCheckpoints.WithLabelValues(mode).Inc()
}

func dbSizeLog(bytes int64) {
	dbSize.Set(float64(bytes))
}
