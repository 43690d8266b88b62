package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OCRMetrics records text extraction outcomes.
type OCRMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewOCRMetrics registers the OCR metrics on the provided registerer.
func NewOCRMetrics(reg prometheus.Registerer) *OCRMetrics {
	if reg == nil {
		return &OCRMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ocr_duration_seconds",
		Help:    "Duration of OCR extraction per document.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
	}, []string{"document_type"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ocr_success",
		Help: "Successful OCR extractions.",
	}, []string{"document_type"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ocr_failure",
		Help: "Failed OCR extractions.",
	}, []string{"document_type"})
	reg.MustRegister(duration, success, failure)
	return &OCRMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
	}
}

// ObserveDuration records the extraction duration for the given document type.
func (m *OCRMetrics) ObserveDuration(documentType string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(documentType)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter.
func (m *OCRMetrics) IncSuccess(documentType string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(documentType)).Inc()
}

// IncFailure increments the failure counter.
func (m *OCRMetrics) IncFailure(documentType string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(documentType)).Inc()
}
