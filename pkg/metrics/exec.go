package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	QueryTotalCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ModuleWireQL,
			Subsystem: LabelExec,
			Name:      "query_total",
			Help:      "Counter of executed statements.",
		}, []string{LabelBackend, "result"})

	QueryDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ModuleWireQL,
			Subsystem: LabelExec,
			Name:      "query_duration_seconds",
			Help:      "Bucketed histogram of statement execution latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 20),
		}, []string{LabelBackend})

	StmtCacheHitCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ModuleWireQL,
			Subsystem: LabelExec,
			Name:      "stmt_cache_hit_total",
			Help:      "Counter of statement cache lookups, by outcome.",
		}, []string{LabelBackend, "outcome"})
)

// Statement cache outcomes.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)
