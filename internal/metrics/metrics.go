// Package metrics exposes the pipeline's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "taskradar"

var (
	PostsHarvested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_harvested_total",
			Help:      "Posts returned by the data source",
		},
		[]string{"kind"}, // "need", "task"
	)

	SourceErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      "Failed subreddit queries",
		},
	)

	PostsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_classified_total",
			Help:      "Classified posts by classifier and category",
		},
		[]string{"classifier", "category"},
	)

	EnrichmentCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_calls_total",
			Help:      "Enrichment attempts by outcome",
		},
		[]string{"status"}, // "analyzed", "rejected", "failed"
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Channel deliveries by channel and outcome",
		},
		[]string{"channel", "status"},
	)

	PostsNotified = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_notified_total",
			Help:      "Posts newly marked as notified",
		},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_cycle_duration_seconds",
			Help:      "Duration of scan-and-notify cycles",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	CycleFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_cycle_failures_total",
			Help:      "Scheduler cycles that returned an error or panicked",
		},
	)
)
