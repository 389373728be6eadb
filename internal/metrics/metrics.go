// Package metrics provides Prometheus metrics for the matching engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RescansTotal tracks rescan runs by scope (all, investor, target) and outcome.
	RescansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchmaker",
			Subsystem: "rescan",
			Name:      "runs_total",
			Help:      "Total number of rescan runs by scope and outcome",
		},
		[]string{"scope", "outcome"},
	)

	// RescanDuration tracks rescan run duration in seconds.
	RescanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "matchmaker",
			Subsystem: "rescan",
			Name:      "duration_seconds",
			Help:      "Duration of rescan runs in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"scope"},
	)

	// PairsScored tracks scored pairs by result (persisted, discarded, failed).
	PairsScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchmaker",
			Subsystem: "scoring",
			Name:      "pairs_total",
			Help:      "Total number of scored investor/target pairs by result",
		},
		[]string{"result"},
	)

	// PairScore tracks the distribution of total pair scores.
	PairScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "matchmaker",
			Subsystem: "scoring",
			Name:      "total_score",
			Help:      "Distribution of total pair scores (0-100)",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		},
	)

	// MatchTransitions tracks match status changes.
	MatchTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchmaker",
			Subsystem: "matches",
			Name:      "transitions_total",
			Help:      "Total number of match status transitions by status",
		},
		[]string{"status"},
	)

	// RescanJobsInFlight is 1 while an asynchronous full rescan runs.
	RescanJobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "matchmaker",
			Subsystem: "rescan",
			Name:      "jobs_in_flight",
			Help:      "Number of asynchronous rescan jobs currently running",
		},
	)
)

// RecordRescan records a finished rescan run.
func RecordRescan(scope, outcome string, durationSeconds float64) {
	RescansTotal.WithLabelValues(scope, outcome).Inc()
	RescanDuration.WithLabelValues(scope).Observe(durationSeconds)
}

// RecordPair records the result of scoring one pair. total is ignored for failures.
func RecordPair(result string, total int) {
	PairsScored.WithLabelValues(result).Inc()
	if result != PairFailed {
		PairScore.Observe(float64(total))
	}
}

// RecordTransition records a match status change.
func RecordTransition(status string) {
	MatchTransitions.WithLabelValues(status).Inc()
}

const (
	PairPersisted = "persisted"
	PairDiscarded = "discarded"
	PairFailed    = "failed"
)
