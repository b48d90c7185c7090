// Package metrics exposes Prometheus instrumentation for drlab.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation counters. Registered on the default registry and served by the
// /metrics endpoint.
var (
	LoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "drlab",
		Subsystem: "auth",
		Name:      "logins_total",
		Help:      "Login attempts by outcome.",
	}, []string{"outcome"})

	SetupsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "drlab",
		Subsystem: "auth",
		Name:      "setups_completed_total",
		Help:      "One-time user setup flows completed.",
	})

	BatchesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "drlab",
		Subsystem: "lab",
		Name:      "batches_created_total",
		Help:      "Sample batches registered.",
	})

	SamplesRegisteredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "drlab",
		Subsystem: "lab",
		Name:      "samples_registered_total",
		Help:      "Samples registered by department.",
	}, []string{"department"})

	SamplesDiscardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "drlab",
		Subsystem: "lab",
		Name:      "samples_discarded_total",
		Help:      "Samples discarded after the retention period.",
	})

	InvitationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "drlab",
		Subsystem: "groups",
		Name:      "invitations_total",
		Help:      "Group invitation outcomes.",
	}, []string{"outcome"})

	SweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "drlab",
		Subsystem: "sweep",
		Name:      "duration_seconds",
		Help:      "Background sweep durations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"sweep"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "drlab",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latencies by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
