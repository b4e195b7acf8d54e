package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Candidate generation metrics
	generateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "atctl_generate_duration_seconds",
			Help:    "Duration of candidate configuration generation in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)

	generateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atctl_generate_total",
			Help: "Total number of generate invocations",
		},
		[]string{"status"}, // success or error
	)

	// Run launch metrics
	launchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atctl_run_launch_total",
			Help: "Total number of candidate job launches",
		},
		[]string{"status"}, // launched, skipped, or error
	)

	// Results analysis metrics
	resultsParseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "atctl_results_parse_duration_seconds",
			Help:    "Time taken to parse and rank training logs",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)
)
