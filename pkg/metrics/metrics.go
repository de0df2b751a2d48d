// Package metrics provides Prometheus metrics for the clover service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CandidatesUpserted tracks candidate upserts by resulting status and reason
	CandidatesUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "dedupe",
			Name:      "candidates_upserted_total",
			Help:      "Total number of dedupe candidates upserted by status and reason",
		},
		[]string{"status", "reason"},
	)

	// CandidateScores tracks the distribution of composite scores
	CandidateScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "dedupe",
			Name:      "candidate_score",
			Help:      "Distribution of composite similarity scores",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	// CandidateTransitions tracks reviewer transitions
	CandidateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "dedupe",
			Name:      "candidate_transitions_total",
			Help:      "Total number of reviewer status transitions",
		},
		[]string{"status"},
	)

	// BatchDuration tracks batch pass duration in seconds
	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "dedupe",
			Name:      "batch_duration_seconds",
			Help:      "Duration of normalization and scoring batches in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	// BatchItemErrors tracks per-item failures inside batches
	BatchItemErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "dedupe",
			Name:      "batch_item_errors_total",
			Help:      "Total number of per-item errors recorded by batch passes",
		},
		[]string{"operation", "kind"},
	)

	// ContactsNormalized tracks contacts written back by the normalizer
	ContactsNormalized = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "dedupe",
			Name:      "contacts_normalized_total",
			Help:      "Total number of contacts normalized",
		},
	)

	// MergesRecorded tracks recorded merges
	MergesRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "dedupe",
			Name:      "merges_recorded_total",
			Help:      "Total number of merges recorded",
		},
	)

	// HTTPRequestsTotal tracks inbound HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRequestDuration tracks inbound HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of inbound HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// KafkaMessagesPublished tracks messages published to Kafka
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// KafkaMessagesConsumed tracks messages consumed from Kafka
	KafkaMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "messages_consumed_total",
			Help:      "Total number of messages consumed from Kafka",
		},
		[]string{"topic", "status"},
	)

	// SchedulerRuns tracks normalization scheduler cycles
	SchedulerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Total number of normalization scheduler cycles by outcome",
		},
		[]string{"outcome"},
	)
)

func RecordUpsert(status, reason string, score float64) {
	CandidatesUpserted.WithLabelValues(status, reason).Inc()
	CandidateScores.Observe(score)
}

func RecordTransition(status string) {
	CandidateTransitions.WithLabelValues(status).Inc()
}

func RecordBatch(operation string, elapsed time.Duration) {
	BatchDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func RecordItemError(operation, kind string) {
	BatchItemErrors.WithLabelValues(operation, kind).Inc()
}

func RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}

func RecordKafkaConsume(topic, status string) {
	KafkaMessagesConsumed.WithLabelValues(topic, status).Inc()
}

func RecordSchedulerRun(outcome string) {
	SchedulerRuns.WithLabelValues(outcome).Inc()
}
