// internal/common/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScoringRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_requests_total",
			Help: "Total number of scoring calls by entry point and outcome",
		},
		[]string{"source", "status"},
	)

	ScoringErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_errors_total",
			Help: "Total number of failed scoring calls by error code",
		},
		[]string{"source", "error_code"},
	)

	ScoredRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_rows_total",
			Help: "Total number of rows scored",
		},
		[]string{"source"},
	)

	ScoringDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scoring_duration_seconds",
			Help:    "Duration of scoring calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_cache_lookups_total",
			Help: "Prediction cache lookups by result",
		},
		[]string{"result"},
	)

	LoadedModel = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scoring_model_loaded",
			Help: "Set to 1 for the model currently served",
		},
		[]string{"name", "version", "format"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// ObserveScoring records one scoring call. An empty code means success.
func ObserveScoring(source, code string, rows int, elapsed time.Duration) {
	status := "succeeded"
	if code != "" {
		status = "failed"
		ScoringErrors.WithLabelValues(source, code).Inc()
	} else {
		ScoredRows.WithLabelValues(source).Add(float64(rows))
	}
	ScoringRequests.WithLabelValues(source, status).Inc()
	ScoringDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// ObserveCache records a cache hit or miss.
func ObserveCache(hit bool) {
	if hit {
		CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	CacheLookups.WithLabelValues("miss").Inc()
}
