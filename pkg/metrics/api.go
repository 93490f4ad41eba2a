package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	APIREST     = "rest"
	APIGraphQL  = "graphql"
	APIUpload   = "upload"
	APIDownload = "download"

	OutcomeOK        = "ok"
	OutcomeHTTP      = "http_error"
	OutcomeGraphQL   = "graphql_error"
	OutcomeTransport = "transport_error"
)

// APIMetrics counts calls made to the ad platform.
type APIMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewAPIMetrics(reg prometheus.Registerer) *APIMetrics {
	if reg == nil {
		return &APIMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ttd_api_requests_total",
		Help: "Ad platform API calls by api and outcome.",
	}, []string{"api", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ttd_api_request_duration_seconds",
		Help:    "Latency of ad platform API calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"api"})
	reg.MustRegister(requests, duration)
	return &APIMetrics{requests: requests, duration: duration}
}

// Observe records one finished call.
func (a *APIMetrics) Observe(api, outcome string, took time.Duration) {
	if a == nil || a.requests == nil {
		return
	}
	a.requests.WithLabelValues(normalizeLabel(api), normalizeLabel(outcome)).Inc()
	a.duration.WithLabelValues(normalizeLabel(api)).Observe(took.Seconds())
}
