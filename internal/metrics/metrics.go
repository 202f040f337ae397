// Package metrics provides Prometheus metrics for TaskHive.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "taskhive"
)

// HTTP metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// HTTPRequestsInFlight tracks concurrent HTTP requests.
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)
)

// Invite lifecycle metrics
var (
	// InvitesIssued counts invites created or refreshed.
	InvitesIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "invites",
			Name:      "issued_total",
			Help:      "Total workspace invites issued",
		},
	)

	// InvitesAccepted counts successfully consumed invites.
	InvitesAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "invites",
			Name:      "accepted_total",
			Help:      "Total workspace invites accepted",
		},
	)

	// InvitesDeclined counts declined invites.
	InvitesDeclined = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "invites",
			Name:      "declined_total",
			Help:      "Total workspace invites declined",
		},
	)

	// InvitesExpired counts invites removed or rejected past their TTL.
	InvitesExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "invites",
			Name:      "expired_total",
			Help:      "Total workspace invites expired",
		},
	)
)

// Notification metrics
var (
	// NotificationsEmitted counts notification records created, by type.
	NotificationsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "emitted_total",
			Help:      "Total notification records created",
		},
		[]string{"type"},
	)
)

// Task metrics
var (
	// TasksCreated counts tasks created.
	TasksCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "created_total",
			Help:      "Total tasks created",
		},
	)

	// TasksCompleted counts tasks moved to done.
	TasksCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "completed_total",
			Help:      "Total tasks completed",
		},
	)
)

// Janitor metrics
var (
	// JanitorSweepsTotal counts background sweep runs by kind.
	JanitorSweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "janitor",
			Name:      "sweeps_total",
			Help:      "Total background sweep runs",
		},
		[]string{"kind"},
	)

	// JanitorReapedTotal counts rows removed by background sweeps.
	JanitorReapedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "janitor",
			Name:      "reaped_total",
			Help:      "Total rows removed by background sweeps",
		},
		[]string{"kind"},
	)
)
