package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RefreshAttempts counts token refresh attempts by outcome
	// (success, failure, skipped).
	RefreshAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forumoauth_token_refresh_total",
			Help: "The total number of token refresh attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// SweepDuration is a histogram of the time a full refresh sweep takes.
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "forumoauth_sweep_duration_seconds",
			Help:    "A histogram of the refresh sweep duration.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	// SweepCandidates is the number of tokens due for refresh found by the
	// most recent sweep.
	SweepCandidates = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "forumoauth_sweep_candidates",
			Help: "The number of expiring tokens found by the last sweep.",
		},
	)
)
