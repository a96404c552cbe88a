package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	capabilityInvocations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "caseline_capability_invocations_total",
		Help: "Capability invocations by capability name and outcome.",
	}, []string{"capability", "outcome"})

	stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "caseline_stage_duration_seconds",
		Help:    "Wall time per completed pipeline stage.",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	}, []string{"stage"})

	casesScreened = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "caseline_cases_total",
		Help: "Cases reaching a pipeline outcome, by outcome stage.",
	}, []string{"stage"})
)

func init() {
	prometheus.MustRegister(capabilityInvocations, stageDuration, casesScreened)
}
