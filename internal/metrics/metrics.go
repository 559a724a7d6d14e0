package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	SubmissionCount      prometheus.Counter
	AcceptedCount        prometheus.Counter
	RejectedCount        *prometheus.CounterVec
	CaptchaVerifications prometheus.Counter
	CaptchaFailures      prometheus.Counter
	EmailSuccesses       prometheus.Counter
	EmailFailures        prometheus.Counter
	ProcessingTime       prometheus.Histogram
	LedgerEntries        prometheus.Gauge
}

// NewMetrics creates new Prometheus metrics on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates new Prometheus metrics on the given registry;
// tests pass a fresh registry to avoid duplicate registration.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SubmissionCount: factory.NewCounter(prometheus.CounterOpts{
			Name: "contact_guard_submissions_total",
			Help: "Total number of contact form submissions received",
		}),
		AcceptedCount: factory.NewCounter(prometheus.CounterOpts{
			Name: "contact_guard_accepted_total",
			Help: "Total number of accepted submissions",
		}),
		RejectedCount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contact_guard_rejected_total",
			Help: "Total number of rejected submissions by pipeline stage",
		}, []string{"stage"}),
		CaptchaVerifications: factory.NewCounter(prometheus.CounterOpts{
			Name: "contact_guard_captcha_verifications_total",
			Help: "Total number of captcha verification calls",
		}),
		CaptchaFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "contact_guard_captcha_failures_total",
			Help: "Total number of failed captcha verifications",
		}),
		EmailSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "contact_guard_email_successes_total",
			Help: "Total number of successfully dispatched emails",
		}),
		EmailFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "contact_guard_email_failures_total",
			Help: "Total number of failed email dispatches",
		}),
		ProcessingTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "contact_guard_processing_duration_seconds",
			Help:    "Time spent running the submission pipeline",
			Buckets: prometheus.DefBuckets,
		}),
		LedgerEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "contact_guard_ledger_entries",
			Help: "Number of timestamps currently retained in the IP rate-limit ledger",
		}),
	}
}
