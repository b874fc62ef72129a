// Package metrics exposes the dispatcher's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsSeenCounter tracks every accepted enqueue.
	RequestsSeenCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ollamamq",
		Name:      "requests_seen_total",
		Help:      "Total number of requests accepted at the enqueue API",
	})

	// CompletedCounter tracks jobs whose backend call finished successfully.
	CompletedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ollamamq",
		Name:      "jobs_completed_total",
		Help:      "Total number of jobs completed successfully",
	})

	// CancelledCounter tracks jobs cancelled (client disconnect or shutdown).
	CancelledCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ollamamq",
		Name:      "jobs_cancelled_total",
		Help:      "Total number of jobs cancelled before or during dispatch",
	})

	// FailedCounter tracks jobs that failed (upstream error or timeout).
	FailedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ollamamq",
		Name:      "jobs_failed_total",
		Help:      "Total number of jobs that failed (upstream error or timeout)",
	})

	// InFlightGauge is 1 while the scheduler has a backend call outstanding, else 0.
	InFlightGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ollamamq",
		Name:      "in_flight",
		Help:      "1 if a backend request is currently in flight, else 0",
	})

	// ActiveUsersGauge tracks the number of users currently in rotation.
	ActiveUsersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ollamamq",
		Name:      "active_users",
		Help:      "Current number of users with pending or executing jobs",
	})
)
