// Package metrics declares the prometheus collectors the toolkit reports.
// Collectors are created at package init but only exported to a registry
// when the host application calls RegisterWireQLMetrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ModuleWireQL = "wireql"
)

// metrics labels.
const (
	LabelPool    = "pool"
	LabelExec    = "exec"
	LabelBackend = "backend"

	opSucc   = "ok"
	opFailed = "err"
)

// RetLabel returns "ok" when err == nil and "err" when err != nil.
// This could be useful when you need to observe the operation result.
func RetLabel(err error) string {
	if err == nil {
		return opSucc
	}
	return opFailed
}

// RegisterWireQLMetrics registers every collector with the default
// prometheus registry.
func RegisterWireQLMetrics() {
	prometheus.MustRegister(PoolIdleGauge)
	prometheus.MustRegister(PoolInUseGauge)
	prometheus.MustRegister(PoolWaitingGauge)
	prometheus.MustRegister(PoolAcquireCounter)
	prometheus.MustRegister(PoolAcquireDurationHistogram)
	prometheus.MustRegister(PoolDiscardCounter)

	prometheus.MustRegister(QueryTotalCounter)
	prometheus.MustRegister(QueryDurationHistogram)
	prometheus.MustRegister(StmtCacheHitCounter)
}
