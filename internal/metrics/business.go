package metrics

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChallanIssued records a new challan and its fine.
func ChallanIssued(kind string, fine decimal.Decimal) {
	ChallansIssued.WithLabelValues(kind).Inc()
	FinesIssuedAmount.Add(fine.InexactFloat64())
}

// PaymentProcessed records a payment attempt. status is "completed",
// "rejected" or "failed".
func PaymentProcessed(method, status string) {
	PaymentsTotal.WithLabelValues(method, status).Inc()
}

// RefundProcessed records a refund attempt.
func RefundProcessed(gateway, status string) {
	RefundsTotal.WithLabelValues(gateway, status).Inc()
}

// NotificationDelivered records one channel's handling of an event. status
// is "ok", "error", "panic" or "stuck" (still running when Publish gave up).
func NotificationDelivered(channel, status string) {
	NotificationsTotal.WithLabelValues(channel, status).Inc()
}

// DeliveryJobFinished records one delivery attempt. outcome is "completed"
// or "failed"; a failed job may still be retried.
func DeliveryJobFinished(jobType, outcome string, took time.Duration) {
	DeliveryJobsTotal.WithLabelValues(jobType, outcome).Inc()
	DeliveryJobDuration.WithLabelValues(jobType).Observe(took.Seconds())
}
