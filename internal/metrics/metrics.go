// Package metrics exposes Prometheus counters for tool calls, guardrail
// rejections and authentication failures.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tool call outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

var (
	// toolCalls tracks every tool invocation by outcome
	toolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolgate_tool_calls_total",
			Help: "Total tool calls by service, tool and outcome",
		},
		[]string{"service", "tool", "outcome"},
	)

	// toolDuration tracks tool latency including backend calls
	toolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toolgate_tool_duration_seconds",
			Help:    "Tool call duration by service and tool",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "tool"},
	)

	// guardrailRejections tracks rejections by guardrail kind
	guardrailRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolgate_guardrail_rejections_total",
			Help: "Total guardrail rejections by service, tool and kind",
		},
		[]string{"service", "tool", "kind"},
	)

	// authFailures tracks rejected HTTP requests
	authFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolgate_auth_failures_total",
			Help: "Total authentication failures by service and reason",
		},
		[]string{"service", "reason"},
	)

	// bytesEstimated tracks dry-run estimates that passed the cost gate
	bytesEstimated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "toolgate_bigquery_bytes_estimated_total",
			Help: "Total bytes estimated by BigQuery dry runs for executed queries",
		},
	)

	// tokenReloads tracks token registry reloads
	tokenReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolgate_token_reloads_total",
			Help: "Total token registry reloads by result",
		},
		[]string{"result"},
	)
)

// RecordToolCall counts a finished tool call and observes its duration.
func RecordToolCall(service, tool, outcome string, elapsed time.Duration) {
	toolCalls.WithLabelValues(service, tool, outcome).Inc()
	toolDuration.WithLabelValues(service, tool).Observe(elapsed.Seconds())
}

// RecordRejection counts a guardrail rejection.
func RecordRejection(service, tool, kind string) {
	guardrailRejections.WithLabelValues(service, tool, kind).Inc()
}

// RecordAuthFailure counts a request rejected by the auth middleware.
func RecordAuthFailure(service, reason string) {
	authFailures.WithLabelValues(service, reason).Inc()
}

// RecordBytesEstimated adds a dry-run estimate for a query that was executed.
func RecordBytesEstimated(bytes int64) {
	if bytes > 0 {
		bytesEstimated.Add(float64(bytes))
	}
}

// RecordTokenReload counts a registry reload attempt.
func RecordTokenReload(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	tokenReloads.WithLabelValues(result).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
