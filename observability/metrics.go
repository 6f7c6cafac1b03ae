package observability

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ledgergate/ledger"
)

// LedgerMetrics records the queries the gateway issues against the node and
// the requests it turns away before querying.
type LedgerMetrics struct {
	queries   *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var _ ledger.QueryObserver = (*LedgerMetrics)(nil)

// NewLedgerMetrics registers the ledger collectors with reg, which is usually
// the registry served on /metrics.
func NewLedgerMetrics(namespace string, reg prometheus.Registerer) (*LedgerMetrics, error) {
	if namespace == "" {
		namespace = "ledgergate"
	}
	m := &LedgerMetrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "queries_total",
			Help:      "Total ledger queries segmented by method and outcome.",
		}, []string{"method", "outcome"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "query_errors_total",
			Help:      "Failed ledger queries segmented by method and reason.",
		}, []string{"method", "reason"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "query_duration_seconds",
			Help:      "Latency distribution for ledger queries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "throttles_total",
			Help:      "Requests rejected by the rate limiter before reaching the ledger.",
		}, []string{"key"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.queries, m.errors, m.latency, m.throttles} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// ObserveQuery records the outcome of a single ledger query.
func (m *LedgerMetrics) ObserveQuery(method string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		m.errors.WithLabelValues(method, errorReason(err)).Inc()
	}
	m.queries.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(elapsed.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied limit key.
func (m *LedgerMetrics) RecordThrottle(key string) {
	if m == nil {
		return
	}
	if key == "" {
		key = "unspecified"
	}
	m.throttles.WithLabelValues(key).Inc()
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrTxNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "failure"
	}
}
