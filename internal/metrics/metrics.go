// Package metrics exposes Prometheus instruments for the query pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestCount counts pipeline requests by terminal outcome
	// (ok, invalid_input, no_emails, panic).
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailmind_requests_total",
			Help: "Total pipeline requests by outcome",
		},
		[]string{"outcome"},
	)

	// InferenceCallLatency tracks completion-call latency per stage.
	InferenceCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailmind_inference_call_latency_ms",
			Help:    "Inference service call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"stage", "status"},
	)

	// EmailsRetrieved observes how many messages each retrieval returned.
	EmailsRetrieved = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mailmind_emails_retrieved",
			Help:    "Messages returned per mailbox retrieval",
			Buckets: prometheus.LinearBuckets(0, 5, 11), // 0 to 50
		},
	)
)

// RecordRequest increments the request counter for an outcome.
func RecordRequest(outcome string) {
	RequestCount.WithLabelValues(outcome).Inc()
}

// RecordInferenceCall records one completion call's latency.
func RecordInferenceCall(stage, status string, duration time.Duration) {
	InferenceCallLatency.WithLabelValues(stage, status).
		Observe(float64(duration.Milliseconds()))
}

// ObserveEmailsRetrieved records the size of one retrieval batch.
func ObserveEmailsRetrieved(count int) {
	EmailsRetrieved.Observe(float64(count))
}
