package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RemoteMetrics records table operations served by the API.
type RemoteMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewRemoteMetrics registers the table operation metrics on the provided registerer.
func NewRemoteMetrics(reg prometheus.Registerer) *RemoteMetrics {
	if reg == nil {
		return &RemoteMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "remote_operations_total",
		Help: "Table operations handled by the remote store.",
	}, []string{"table", "op", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "remote_operation_duration_seconds",
		Help:    "Duration of table operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"table", "op"})
	reg.MustRegister(operations, duration)
	return &RemoteMetrics{operations: operations, duration: duration}
}

// Observe records one table operation.
func (r *RemoteMetrics) Observe(table, op string, duration time.Duration, err error) {
	if r == nil || r.operations == nil {
		return
	}
	table = normalizeLabel(table)
	op = normalizeLabel(op)
	r.operations.WithLabelValues(table, op, outcome(err)).Inc()
	r.duration.WithLabelValues(table, op).Observe(duration.Seconds())
}
