// Package monitoring exposes prometheus metrics for the attribution
// and rekey batches.  Metrics are registered with the default
// registry and served by the /metrics endpoint.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attributionRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attribution_runs_total",
			Help: "Total attribution batch runs",
		},
		[]string{"status"},
	)

	sessionsExamined = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attribution_sessions_examined_total",
			Help: "Candidate sessions examined by the attribution batch",
		},
	)

	sessionsAttributed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attribution_sessions_attributed_total",
			Help: "Sessions granted a winner by the attribution batch",
		},
	)

	sessionsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attribution_sessions_skipped_total",
			Help: "Sessions skipped by the attribution batch",
		},
		[]string{"reason"},
	)

	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "attribution_run_duration_seconds",
			Help:    "Duration of attribution batch runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	rekeyRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rekey_runs_total",
			Help: "Total rekey runs",
		},
		[]string{"status"},
	)

	rekeyMoves = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rekey_moves_total",
			Help: "Session id moves applied by rekey runs",
		},
	)
)

// Skip reasons used by the attribution selector.
const (
	SkipDataError  = "data_error"
	SkipConflict   = "conflict"
	SkipNoEligible = "no_eligible"
	SkipScoring    = "scoring_error"
)

// ObserveRun records the outcome of one attribution batch run.
func ObserveRun(examined, attributed int, duration time.Duration, failed bool) {
	status := "ok"
	if failed {
		status = "error"
	}
	attributionRuns.WithLabelValues(status).Inc()
	sessionsExamined.Add(float64(examined))
	sessionsAttributed.Add(float64(attributed))
	runDuration.Observe(duration.Seconds())
}

// ObserveSkip records one skipped session with its reason.
func ObserveSkip(reason string) {
	sessionsSkipped.WithLabelValues(reason).Inc()
}

// ObserveRekey records the outcome of one rekey run.
func ObserveRekey(moves int, failed bool) {
	status := "ok"
	if failed {
		status = "error"
	}
	rekeyRuns.WithLabelValues(status).Inc()
	rekeyMoves.Add(float64(moves))
}
