package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "contentforge"

var (
	TaskSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_submitted_total",
			Help:      "Total number of tasks submitted.",
		},
		[]string{"task_type"},
	)

	TaskTransitionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_transition_total",
			Help:      "Total number of task status transitions, labeled by source and target.",
		},
		[]string{"from", "to"},
	)

	TaskPipelineDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_pipeline_duration_seconds",
			Help:      "Pipeline execution time from pickup to terminal or review state.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"task_type", "outcome"},
	)

	GenerationAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_attempts_total",
			Help:      "Total generation attempts against providers, labeled by outcome.",
		},
		[]string{"provider", "model", "outcome"},
	)

	GenerationLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_latency_seconds",
			Help:      "Latency of individual provider generation calls (seconds).",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "model"},
	)

	FallbackExhaustedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_exhausted_total",
			Help:      "Total requests for which every candidate provider failed.",
		},
		[]string{"task_type"},
	)

	ProviderProbeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_probe_total",
			Help:      "Total availability probes, labeled by result.",
		},
		[]string{"provider", "result"},
	)

	QAIterationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qa_iterations_total",
			Help:      "Total QA review iterations, labeled by verdict.",
		},
		[]string{"task_type", "verdict"},
	)
)

func init() {
	prometheus.MustRegister(
		TaskSubmittedTotal,
		TaskTransitionTotal,
		TaskPipelineDurationSeconds,
		GenerationAttemptsTotal,
		GenerationLatencySeconds,
		FallbackExhaustedTotal,
		ProviderProbeTotal,
		QAIterationsTotal,
	)
}
