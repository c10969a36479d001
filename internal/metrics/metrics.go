// Package metrics holds the Prometheus instruments used across the signup
// service.  All collectors are registered with the global registry, so
// mounting promhttp.Handler() in main.go is enough to expose them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Submission outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeInvalid  = "invalid"
	OutcomeBusy     = "busy"
	ResultSent      = "sent"
	ResultRejected  = "rejected"
	ResultFailed    = "failed"
	ResultDropped   = "dropped"
	ResultMalformed = "malformed"
)

var (
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signup_submissions_total",
			Help: "Submit attempts by outcome (success, error, invalid, busy).",
		}, []string{"outcome"})

	FieldErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signup_field_errors_total",
			Help: "Field validation failures by field name.",
		}, []string{"field"})

	WebhookDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signup_webhook_dispatch_total",
			Help: "Webhook deliveries by result (sent, rejected, failed, dropped).",
		}, []string{"result"})

	WebhookDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "signup_webhook_duration_seconds",
			Help:    "Round-trip time of webhook requests.",
			Buckets: prometheus.DefBuckets,
		})

	WebhookQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "signup_webhook_queue_depth",
			Help: "Webhook requests waiting for a worker.",
		})

	ActiveForms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "signup_active_forms",
			Help: "Form sessions currently held in memory.",
		})
)

func init() {
	prometheus.MustRegister(
		SubmissionsTotal,
		FieldErrorsTotal,
		WebhookDispatchTotal,
		WebhookDuration,
		WebhookQueueDepth,
		ActiveForms,
	)
}
