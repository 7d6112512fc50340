package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks the number of outbound calls to the order backend.
	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bankr_api_requests_total",
			Help: "Total number of order backend requests (by endpoint, method and status).",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Measures duration of order backend requests.
	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bankr_api_request_duration_seconds",
			Help:    "Duration of order backend requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"endpoint", "method"},
	)

	// Counts submission workflow step transitions.
	WorkflowSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_workflow_steps_total",
			Help: "Submission workflow step transitions by step.",
		},
		[]string{"step"},
	)

	// Counts failed workflows by the step they failed at.
	WorkflowFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_workflow_failures_total",
			Help: "Failed submission or cancel workflows by workflow and step.",
		},
		[]string{"workflow", "step"},
	)

	WorkflowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "order_workflow_duration_seconds",
			Help:    "End-to-end duration of submission and cancel workflows.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"workflow", "result"},
	)

	ProxyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_proxy_requests_total",
			Help: "Requests forwarded by the same-origin proxy by method and status.",
		},
		[]string{"method", "status"},
	)

	// Counts AMQP order commands by queue and outcome.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_commands_total",
			Help: "Order commands consumed from AMQP by queue and result.",
		},
		[]string{"queue", "result"}, // result = "ack" | "requeue" | "reject"
	)

	// Tracks NATS messages processed by subject and result.
	NATSMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_total",
			Help: "Total number of NATS messages processed.",
		},
		[]string{"subject", "result"}, // result = "ok" | "error"
	)

	NATSMessageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nats_message_latency_seconds",
			Help:    "Time taken to publish NATS messages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subject"},
	)

	// Tracks cache hits and misses for secrets.
	SecretsCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secrets_cache_access_total",
			Help: "Number of cache hits/misses in secret cache.",
		},
		[]string{"result"}, // hit | miss
	)

	// Tracks total errors (aggregated).
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_errors_total",
			Help: "Count of adapter-level errors by component.",
		},
		[]string{"component", "reason"},
	)

	// Gauges the last successful poll time (seconds since epoch).
	LastPollTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adapter_last_poll_timestamp",
			Help: "Timestamp (unix seconds) of the last successful order poll or list refresh.",
		},
		[]string{"component"},
	)

	// Number of orders currently tracked by the status poller.
	TrackedOrders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "order_poller_tracked_orders",
			Help: "Orders currently polled until terminal status.",
		},
	)
)

// ObserveDuration records time since start on a histogram or summary vector.
func ObserveDuration(v prometheus.Collector, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()

	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	}
}

func IncGatewayRequest(endpoint, method, status string) {
	GatewayRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

func IncWorkflowStep(step string) {
	WorkflowSteps.WithLabelValues(step).Inc()
}

func IncWorkflowFailure(workflow, step string) {
	WorkflowFailures.WithLabelValues(workflow, step).Inc()
}

func IncProxyRequest(method, status string) {
	ProxyRequestsTotal.WithLabelValues(method, status).Inc()
}

func IncCommand(queue, result string) {
	CommandsTotal.WithLabelValues(queue, result).Inc()
}

func IncNATSMessage(subject, result string) {
	NATSMessageCount.WithLabelValues(subject, result).Inc()
}

func IncCacheHit(result string) {
	SecretsCacheHits.WithLabelValues(result).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}

func SetLastPoll(component string, t time.Time) {
	LastPollTimestamp.WithLabelValues(component).Set(float64(t.Unix()))
}
