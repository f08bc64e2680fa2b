package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	apiRequestsTotal    *prometheus.CounterVec
	apiLatencySeconds   *prometheus.HistogramVec
	apiErrorsTotal      *prometheus.CounterVec
	gradeUpdatesTotal   *prometheus.CounterVec
	uploadRequestsTotal *prometheus.CounterVec
	uploadRejectedTotal *prometheus.CounterVec
	uploadLatency       prometheus.Histogram
	statsCacheTotal     *prometheus.CounterVec
	feedClients         prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bargeh_api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bargeh_api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bargeh_api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		gradeUpdatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bargeh_grade_updates_total",
			Help: "Rubric grade updates by outcome.",
		}, []string{"outcome"})

		uploadRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bargeh_upload_requests_total",
			Help: "Stored uploads by kind.",
		}, []string{"kind"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bargeh_upload_rejected_total",
			Help: "Rejected uploads by reason.",
		}, []string{"reason"})

		uploadLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bargeh_upload_latency_seconds",
			Help:    "Time spent validating and storing uploads.",
			Buckets: prometheus.DefBuckets,
		})

		statsCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bargeh_statistics_cache_total",
			Help: "Assignment statistics cache lookups by result.",
		}, []string{"result"})

		feedClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bargeh_grading_feed_clients",
			Help: "Connected live grading feed clients.",
		})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			gradeUpdatesTotal,
			uploadRequestsTotal, uploadRejectedTotal, uploadLatency,
			statsCacheTotal, feedClients,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// GradeUpdates counts grade updates labelled by outcome (ok, invalid, conflict, error).
func GradeUpdates() *prometheus.CounterVec {
	RegisterMetrics()
	return gradeUpdatesTotal
}

// UploadRequests counts stored uploads.
func UploadRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRequestsTotal
}

// UploadRejected counts rejected uploads.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// UploadLatency observes upload processing time.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatency
}

// StatisticsCache counts statistics cache hits and misses.
func StatisticsCache() *prometheus.CounterVec {
	RegisterMetrics()
	return statsCacheTotal
}

// FeedClients tracks connected websocket clients.
func FeedClients() prometheus.Gauge {
	RegisterMetrics()
	return feedClients
}
