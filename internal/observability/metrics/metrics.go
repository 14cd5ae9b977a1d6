// Package metrics exposes the Prometheus instrumentation for the API and
// the ledger core.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forgecredit_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "forgecredit_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	ledgerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forgecredit_ledger_transitions_total",
		Help: "Committed state transitions by entity and transition",
	}, []string{"entity", "transition"})

	tipVolume = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forgecredit_tip_volume_microcredits_total",
		Help: "Cumulative net tip volume in micro-credits",
	})
)

// ObserveHTTPRequest records one completed HTTP request.
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveTransition counts one committed state transition. eventType is the
// dotted event name, e.g. "issue.assigned".
func ObserveTransition(eventType string) {
	entity, transition := eventType, ""
	if i := strings.IndexByte(eventType, '.'); i >= 0 {
		entity, transition = eventType[:i], eventType[i+1:]
	}
	ledgerTransitions.WithLabelValues(entity, transition).Inc()
}

// AddTipVolume adds net settled micro-credits to the volume counter.
func AddTipVolume(amount int64) {
	if amount > 0 {
		tipVolume.Add(float64(amount))
	}
}

// RegisterOpenIssues exposes the open-issue count as a gauge backed by f.
func RegisterOpenIssues(f func() int) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "forgecredit_open_issues",
		Help: "Number of issues currently in the open state",
	}, func() float64 { return float64(f()) })
}
