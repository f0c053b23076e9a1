package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dubflow",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dubflow",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dubflow",
			Subsystem: "dubbing",
			Name:      "uploads_total",
			Help:      "Total video uploads by declared content type and outcome",
		},
		[]string{"content_type", "status"},
	)

	UploadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dubflow",
			Subsystem: "dubbing",
			Name:      "upload_bytes_total",
			Help:      "Total bytes of accepted uploads",
		},
		[]string{"content_type"},
	)

	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dubflow",
			Subsystem: "dubbing",
			Name:      "jobs_total",
			Help:      "Dubbing jobs by terminal status",
		},
		[]string{"status"},
	)

	JobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dubflow",
			Subsystem: "dubbing",
			Name:      "jobs_in_flight",
			Help:      "Dubbing jobs currently holding a processing slot",
		},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dubflow",
			Subsystem: "dubbing",
			Name:      "job_duration_seconds",
			Help:      "End-to-end dubbing job duration in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	GatewayCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dubflow",
			Subsystem: "gemini",
			Name:      "calls_total",
			Help:      "Calls to the Gemini API by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	GatewayCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dubflow",
			Subsystem: "gemini",
			Name:      "call_duration_seconds",
			Help:      "Gemini API call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"operation"},
	)
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordRequest records an HTTP request
func RecordRequest(method, route, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, route, status).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(durationSec)
}

// RecordUpload records a video upload attempt
func RecordUpload(contentType, status string, bytes int64) {
	UploadsTotal.WithLabelValues(contentType, status).Inc()
	if status == "success" {
		UploadBytesTotal.WithLabelValues(contentType).Add(float64(bytes))
	}
}

// RecordJob records a job reaching a terminal status
func RecordJob(status string, durationSec float64) {
	JobsTotal.WithLabelValues(status).Inc()
	JobDuration.WithLabelValues(status).Observe(durationSec)
}

// RecordGatewayCall records one Gemini API call
func RecordGatewayCall(operation string, err error, durationSec float64) {
	GatewayCallsTotal.WithLabelValues(operation, outcome(err)).Inc()
	GatewayCallDuration.WithLabelValues(operation).Observe(durationSec)
}
