package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "puzzlemarket_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// ConversationsStarted counts new conversations by context kind.
	ConversationsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "puzzlemarket_conversations_started_total",
		Help: "Total number of conversations created",
	}, []string{"context"})

	// MessagesPosted counts stored messages by kind (user or system type).
	MessagesPosted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "puzzlemarket_messages_posted_total",
		Help: "Total number of messages stored",
	}, []string{"kind"})

	// MessagesRejected counts refused posts by error code.
	MessagesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "puzzlemarket_messages_rejected_total",
		Help: "Total number of message posts refused",
	}, []string{"code"})

	// ModerationActionsApplied counts admin sanctions by type.
	ModerationActionsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "puzzlemarket_moderation_actions_total",
		Help: "Total number of moderation actions applied",
	}, []string{"action_type"})

	// RatingsSubmitted counts ratings by reviewer role.
	RatingsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "puzzlemarket_ratings_submitted_total",
		Help: "Total number of ratings submitted",
	}, []string{"role"})

	// DigestsSent counts digest emails handed to the mailer, by outcome.
	DigestsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "puzzlemarket_digests_total",
		Help: "Total number of digest dispatch attempts by outcome",
	}, []string{"outcome"})

	// DigestSweepDuration records how long one digest sweep took.
	DigestSweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "puzzlemarket_digest_sweep_duration_seconds",
		Help:    "Duration of digest sweeps in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	// RedisCommands records Redis round trips by command and result
	// (ok, miss or error).
	RedisCommands = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "puzzlemarket_redis_command_duration_seconds",
		Help:    "Redis command latency in seconds",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	}, []string{"command", "result"})

	// StandingCacheLookups counts standing cache hits and misses.
	StandingCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "puzzlemarket_standing_cache_lookups_total",
		Help: "Marketplace standing cache lookups by result",
	}, []string{"result"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// ObserveSweep records the duration of a digest sweep that began at start.
func ObserveSweep(start time.Time) {
	DigestSweepDuration.Observe(time.Since(start).Seconds())
}
