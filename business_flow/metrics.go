package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Time spent ranking one feed request, excluding data loading
	feedScoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_scoring_duration_seconds",
			Help:    "Time spent scoring and ordering feed candidates",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
	)

	feedCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_candidates",
			Help:    "Number of candidate posts scored per feed request",
			Buckets: prometheus.ExponentialBuckets(8, 2, 8),
		},
	)

	// Boost lifecycle transitions partitioned by action and result (ok, conflict, error)
	boostTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boost_transitions_total",
			Help: "Total number of boost lifecycle transitions attempted",
		},
		[]string{"action", "result"},
	)
)

func transitionResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsConflictError(err):
		return "conflict"
	case IsValidationError(err):
		return "invalid"
	default:
		return "error"
	}
}
