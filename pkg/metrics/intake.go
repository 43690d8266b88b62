package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IntakeMetrics records document intake pipeline activity.
type IntakeMetrics struct {
	duration   *prometheus.HistogramVec
	accepted   *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	bytesSaved prometheus.Counter
}

// NewIntakeMetrics registers the intake metrics on the provided registerer.
func NewIntakeMetrics(reg prometheus.Registerer) *IntakeMetrics {
	if reg == nil {
		return &IntakeMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "document_intake_duration_seconds",
		Help:    "Duration of document intake from upload to stored record.",
		Buckets: prometheus.DefBuckets,
	}, []string{"document_type"})
	accepted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "document_intake_accepted",
		Help: "Documents accepted by the intake pipeline.",
	}, []string{"document_type"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "document_intake_rejected",
		Help: "Documents rejected during validation.",
	}, []string{"document_type", "reason"})
	bytesSaved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "document_optimizer_bytes_saved",
		Help: "Bytes shaved off image uploads by the optimizer.",
	})
	reg.MustRegister(duration, accepted, rejected, bytesSaved)
	return &IntakeMetrics{
		duration:   duration,
		accepted:   accepted,
		rejected:   rejected,
		bytesSaved: bytesSaved,
	}
}

// ObserveDuration records the intake duration for the given document type.
func (m *IntakeMetrics) ObserveDuration(documentType string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(documentType)).Observe(duration.Seconds())
}

// IncAccepted increments the accepted counter for the given document type.
func (m *IntakeMetrics) IncAccepted(documentType string) {
	if m == nil || m.accepted == nil {
		return
	}
	m.accepted.WithLabelValues(normalizeLabel(documentType)).Inc()
}

// IncRejected increments the rejected counter with the failing check as reason.
func (m *IntakeMetrics) IncRejected(documentType, reason string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(documentType), normalizeLabel(reason)).Inc()
}

// AddBytesSaved accumulates optimizer savings.
func (m *IntakeMetrics) AddBytesSaved(n int64) {
	if m == nil || m.bytesSaved == nil || n <= 0 {
		return
	}
	m.bytesSaved.Add(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
