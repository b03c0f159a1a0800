package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ consume latency (ms)
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// Roadmap generator (agent service) latency (ms)
	AgentCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_call_latency_ms",
			Help:    "Agent service call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"endpoint", "status"},
	)

	DBSlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Number of queries slower than the configured threshold",
		},
		[]string{"statement"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// Roadmap engine operations by outcome (ok, access_denied, validation_error, ...)
	RoadmapOperationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadmap_operation_count",
			Help: "Total number of roadmap engine operations by result",
		},
		[]string{"operation", "result"},
	)

	MilestoneTransitionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "milestone_transition_count",
			Help: "Total number of milestone status transitions",
		},
		[]string{"from", "to"},
	)

	// success counts generated milestones, failed counts failed generation runs
	MilestoneGenerationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "milestone_generation_count",
			Help: "Milestones generated and failed generation runs",
		},
		[]string{"status"},
	)

	OutboxPublishCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_publish_count",
			Help: "Outbox events published to MQ by result",
		},
		[]string{"routing_key", "result"},
	)

	DeadLetterCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_message_count",
			Help: "Messages sent to the dead letter exchange by handler",
		},
		[]string{"routing_key", "source"},
	)
)

func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

func RecordAgentCallLatency(endpoint, status string, duration time.Duration) {
	AgentCallLatency.WithLabelValues(endpoint, status).Observe(float64(duration.Milliseconds()))
}

func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementSlowQuery counts a slow statement. The statement label is cut to
// its leading keyword to keep cardinality low.
func IncrementSlowQuery(statement string, duration time.Duration) {
	DBSlowQueryCount.WithLabelValues(statementKind(statement)).Inc()
	DBQueryDuration.WithLabelValues(statementKind(statement), "slow").Observe(duration.Seconds())
}

func statementKind(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToUpper(fields[0])
}

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func IncrementRoadmapOperation(operation, result string) {
	RoadmapOperationCount.WithLabelValues(operation, result).Inc()
}

func IncrementMilestoneTransition(from, to string) {
	MilestoneTransitionCount.WithLabelValues(from, to).Inc()
}

func IncrementMilestoneGeneration(status string, n int) {
	MilestoneGenerationCount.WithLabelValues(status).Add(float64(n))
}

func IncrementOutboxPublish(routingKey, result string) {
	OutboxPublishCount.WithLabelValues(routingKey, result).Inc()
}

func IncrementDeadLetter(routingKey, source string) {
	DeadLetterCount.WithLabelValues(routingKey, source).Inc()
}
