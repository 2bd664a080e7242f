package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AttemptsTotal counts individual attempts per action
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flakeproof_attempts_total",
			Help: "Total number of attempts executed",
		},
		[]string{"action"},
	)

	// FailuresTotal counts classified attempt failures
	FailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flakeproof_failures_total",
			Help: "Total number of failed attempts by failure kind",
		},
		[]string{"action", "kind"},
	)

	// HealingTotal counts self-healing remediations by outcome
	HealingTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flakeproof_healing_total",
			Help: "Total number of self-healing remediations",
		},
		[]string{"kind", "outcome"},
	)

	// ExhaustedTotal counts invocations that ran out of attempts
	ExhaustedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flakeproof_exhausted_total",
			Help: "Total number of invocations that exhausted their retries",
		},
		[]string{"action", "last_kind"},
	)

	// InvocationDuration tracks end-to-end invocation latency
	InvocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flakeproof_invocation_duration_seconds",
			Help:    "End-to-end duration of retry invocations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action", "outcome"},
	)

	// WaitTimeoutsTotal counts adaptive waits that hit their deadline
	WaitTimeoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flakeproof_wait_timeouts_total",
			Help: "Total number of adaptive waits that timed out",
		},
		[]string{"action"},
	)
)
