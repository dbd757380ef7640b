// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the chatbridge server.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method, status class, and route pattern.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbridge_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatbridge_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// StreamingConnections tracks the number of active SSE streaming connections.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatbridge_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// ProviderRequestsTotal counts chat streams opened against the upstream
	// by final outcome (completed, cancelled, failed, rejected).
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbridge_provider_requests_total",
			Help: "Provider requests",
		},
		[]string{"provider", "model", "status"},
	)

	// ProviderLatency records the time from request to end of stream.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatbridge_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// ProviderTokensTotal counts tokens reported by the upstream by direction (input/output).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbridge_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "model", "direction"},
	)

	// StreamPartsTotal counts response parts delivered to hosts by kind.
	StreamPartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbridge_stream_parts_total",
			Help: "Response parts emitted",
		},
		[]string{"kind"},
	)

	// ToolCallFallbacksTotal counts tool calls emitted with empty input
	// because their arguments never parsed.
	ToolCallFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatbridge_tool_call_fallbacks_total",
			Help: "Tool calls emitted with fallback input",
		},
	)

	// ModelCacheTotal counts model listing lookups by result (hit, miss, error).
	ModelCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbridge_model_cache_total",
			Help: "Model cache lookups",
		},
		[]string{"result"},
	)

	// ToolExecutionsTotal counts MCP tool executions by name and outcome.
	ToolExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbridge_tool_executions_total",
			Help: "Tool executions",
		},
		[]string{"tool_name", "status"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbridge_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
		StreamPartsTotal,
		ToolCallFallbacksTotal,
		ModelCacheTotal,
		ToolExecutionsTotal,
		RateLimitRejectedTotal,
	)
}
