package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	PoolIdleGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: ModuleWireQL,
			Subsystem: LabelPool,
			Name:      "idle_connections",
			Help:      "Number of idle connections held by the pool.",
		}, []string{LabelBackend})

	PoolInUseGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: ModuleWireQL,
			Subsystem: LabelPool,
			Name:      "in_use_connections",
			Help:      "Number of leased connections.",
		}, []string{LabelBackend})

	PoolWaitingGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: ModuleWireQL,
			Subsystem: LabelPool,
			Name:      "waiting_acquires",
			Help:      "Number of callers suspended in acquire.",
		}, []string{LabelBackend})

	PoolAcquireCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ModuleWireQL,
			Subsystem: LabelPool,
			Name:      "acquire_total",
			Help:      "Counter of acquire calls.",
		}, []string{LabelBackend, "result"})

	PoolAcquireDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ModuleWireQL,
			Subsystem: LabelPool,
			Name:      "acquire_duration_seconds",
			Help:      "Bucketed histogram of acquire latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 18),
		}, []string{LabelBackend})

	PoolDiscardCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ModuleWireQL,
			Subsystem: LabelPool,
			Name:      "discard_total",
			Help:      "Counter of connections discarded instead of pooled, by reason.",
		}, []string{LabelBackend, "reason"})
)

// Discard reasons.
const (
	DiscardBroken   = "broken"
	DiscardLifetime = "lifetime"
	DiscardIdle     = "idle"
	DiscardClosing  = "closing"
)
