package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultSuccess           = "success"
	ResultReplayed          = "replayed"
	ResultValidation        = "validation"
	ResultForbidden         = "forbidden"
	ResultNotFound          = "not_found"
	ResultInsufficientStock = "insufficient_stock"
	ResultConflict          = "conflict"
	ResultTimeout           = "timeout"
	ResultError             = "error"
)

// OrderMetrics are the commit engine collectors. A nil *OrderMetrics is valid
// and records nothing.
type OrderMetrics struct {
	commits        *prometheus.CounterVec
	retries        prometheus.Counter
	commitDuration prometheus.Histogram
	statusChanges  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &OrderMetrics{
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookstore_order_commits_total",
			Help: "Order placement attempts by outcome",
		}, []string{"result"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookstore_order_commit_retries_total",
			Help: "Order commits retried after losing a stock race",
		}),
		commitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bookstore_order_commit_duration_seconds",
			Help:    "Wall time of order placement including retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookstore_order_status_changes_total",
			Help: "Order status updates by new status",
		}, []string{"status"}),
	}
	reg.MustRegister(m.commits, m.retries, m.commitDuration, m.statusChanges)
	return m
}

func (m *OrderMetrics) ObserveCommit(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(result).Inc()
	m.commitDuration.Observe(d.Seconds())
}

func (m *OrderMetrics) IncRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *OrderMetrics) IncStatusChange(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}
