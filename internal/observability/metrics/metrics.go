package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "defi_rag_upstream_requests_total",
			Help: "Total number of market data requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "defi_rag_upstream_request_duration_seconds",
			Help:    "Duration of market data requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	PipelineRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "defi_rag_pipeline_requests_total",
			Help: "Total number of answered queries by outcome",
		},
		[]string{"outcome"},
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "defi_rag_pipeline_duration_seconds",
			Help:    "End-to-end duration of one query in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40},
		},
	)

	DescriptorFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "defi_rag_descriptor_fallbacks_total",
			Help: "Number of times intent extraction fell back to the default descriptor",
		},
		[]string{"reason"},
	)

	LLMCost = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "defi_rag_llm_cost_usd_total",
			Help: "Accumulated language model cost in USD",
		},
		[]string{"model"},
	)
)

// Outcome maps an error to the outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
