package prom

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "extdedup_records_processed_total",
		Help: "The total number of lines or rows read",
	}, []string{"mode"})
	DuplicatesFound = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "extdedup_duplicates_total",
		Help: "The total number of duplicate lines or rows found",
	}, []string{"mode"})
	RunTimes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "extdedup_run_time_seconds",
		Help: "Duration of a full dedup pass",
		// runs range from tiny files to many hours over huge ones
		Buckets: []float64{.01, .1, 1, 10, 60, 300, 900, 1800, 3600, 7200, 14400},
	}, []string{"mode"})
)
