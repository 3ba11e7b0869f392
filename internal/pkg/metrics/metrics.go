package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QuotaDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bossboard_quota_decisions_total",
			Help: "Quota gate decisions by plan and outcome",
		},
		[]string{"plan", "outcome"},
	)

	QuotaCheckErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bossboard_quota_check_errors_total",
			Help: "Quota checks that failed closed because the ledger could not be read",
		},
	)

	UsageRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bossboard_usage_credits_recorded_total",
			Help: "Credits appended to the usage ledger by feature",
		},
		[]string{"feature"},
	)

	UsageRecordFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bossboard_usage_record_failures_total",
			Help: "Usage ledger appends that failed, by stage",
		},
		[]string{"stage"},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bossboard_webhook_events_total",
			Help: "Payment webhook deliveries by event type and outcome",
		},
		[]string{"event_type", "outcome"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bossboard_generation_duration_seconds",
			Help:    "Duration of text generation calls",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		},
		[]string{"feature"},
	)

	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bossboard_jobs_processed_total",
			Help: "Background jobs processed by type and result",
		},
		[]string{"type", "result"},
	)
)
