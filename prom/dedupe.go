package prom

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DedupeCacheLookups = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extdedup_cache_lookups_total",
		Help: "The total number of dedupe cache lookups",
	})
	DedupeCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extdedup_cache_hits_total",
		Help: "The total number of dedupe cache hits",
	})
	DedupeCacheDiskHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extdedup_cache_disk_hits_total",
		Help: "The total number of dedupe cache hits answered by the spill table",
	})
	DedupeCacheInserts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extdedup_cache_inserts_total",
		Help: "The total number of new keys added to the dedupe cache",
	})
	DedupeCacheFlushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extdedup_cache_flushes_total",
		Help: "The total number of times the in-memory set was spilled to disk",
	})
	DedupeDiskWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extdedup_disk_writes_total",
		Help: "The total number of encoded keys written to the spill table",
	})
	DedupeDiskGrowths = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extdedup_disk_growths_total",
		Help: "The total number of times the spill table was resized",
	})
	DedupeMemoBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "extdedup_cache_memo_bytes",
		Help: "Bytes of keys currently accounted against the memory budget",
	})
)
