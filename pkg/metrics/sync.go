package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// SyncMetrics records optimistic cache activity per resource.
type SyncMetrics struct {
	mutations *prometheus.CounterVec
	rollbacks *prometheus.CounterVec
	loads     *prometheus.HistogramVec
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_mutations_total",
		Help: "Cache mutations issued against the remote store.",
	}, []string{"resource", "op", "outcome"})
	rollbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_rollbacks_total",
		Help: "Optimistic mutations reverted after a remote failure.",
	}, []string{"resource", "op"})
	loads := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_load_duration_seconds",
		Help:    "Duration of full cache loads in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"resource", "outcome"})
	reg.MustRegister(mutations, rollbacks, loads)
	return &SyncMetrics{
		mutations: mutations,
		rollbacks: rollbacks,
		loads:     loads,
	}
}

// ObserveMutation counts a remote write and its outcome.
func (s *SyncMetrics) ObserveMutation(resource, op string, err error) {
	if s == nil || s.mutations == nil {
		return
	}
	s.mutations.WithLabelValues(normalizeLabel(resource), normalizeLabel(op), outcome(err)).Inc()
}

// IncRollback counts a reverted optimistic mutation.
func (s *SyncMetrics) IncRollback(resource, op string) {
	if s == nil || s.rollbacks == nil {
		return
	}
	s.rollbacks.WithLabelValues(normalizeLabel(resource), normalizeLabel(op)).Inc()
}

// ObserveLoad records how long a load took.
func (s *SyncMetrics) ObserveLoad(resource string, duration time.Duration, err error) {
	if s == nil || s.loads == nil {
		return
	}
	s.loads.WithLabelValues(normalizeLabel(resource), outcome(err)).Observe(duration.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
