package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	writesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "housing_store_writes_total",
		Help: "Dataset writes by operation (refresh, upsert, reload)",
	}, []string{"operation"})

	writesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "housing_store_writes_failed_total",
		Help: "Dataset writes that were rejected or rolled back",
	}, []string{"operation"})

	writeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "housing_store_write_duration_seconds",
		Help:    "Time from source load to snapshot swap",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"operation"})

	snapshotRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "housing_store_snapshot_records",
		Help: "Municipalities in the current snapshot",
	})

	snapshotVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "housing_store_snapshot_version",
		Help: "Version of the current snapshot",
	})
)

const (
	opRefresh = "refresh"
	opUpsert  = "upsert"
	opReload  = "reload"
)
