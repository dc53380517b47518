// Package metrics registers the Prometheus collectors of the challan server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "challan"

// HTTP metrics. Routes are labelled by their mux pattern, never the raw path.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests by route and status class",
		},
		[]string{"route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request latency by route",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "API requests currently being served",
		},
	)
)

// Delivery job metrics
var (
	DeliveryJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "jobs_total",
			Help:      "Email and SMS delivery jobs by outcome",
		},
		[]string{"type", "outcome"},
	)

	DeliveryJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "job_duration_seconds",
			Help:      "Time spent in a delivery attempt",
			Buckets:   []float64{.05, .1, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"type"},
	)
)

// Business metrics
var (
	ChallansIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challans_issued_total",
			Help:      "Total number of challans issued",
		},
		[]string{"kind"},
	)

	FinesIssuedAmount = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fines_issued_amount_total",
			Help:      "Sum of fines issued in rupees",
		},
	)

	PaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment attempts by method and outcome",
		},
		[]string{"method", "status"},
	)

	RefundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refunds_total",
			Help:      "Refund attempts by gateway and outcome",
		},
		[]string{"gateway", "status"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification channel deliveries by outcome",
		},
		[]string{"channel", "status"},
	)
)
