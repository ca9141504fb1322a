// Package metrics holds the Prometheus instruments for the intake pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rejection reasons.
const (
	ReasonBot        = "bot"
	ReasonValidation = "validation"
	ReasonRateLimit  = "rate_limit"
	ReasonConflict   = "conflict"
	ReasonInvalid    = "invalid_input"
	ReasonInternal   = "internal"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	Registrations  *prometheus.CounterVec
	Rejections     *prometheus.CounterVec
	UpsertDuration prometheus.Histogram
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Registrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "party_signup_registrations_total",
			Help: "Accepted registrations, split into newly created and updated rows",
		}, []string{"outcome"}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "party_signup_rejections_total",
			Help: "Registration requests rejected before or during persistence",
		}, []string{"reason"}),
		UpsertDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "party_signup_upsert_duration_seconds",
			Help:    "Latency of the transactional registration upsert",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// IncRegistration counts an accepted registration.
func (m *Metrics) IncRegistration(created bool) {
	if m == nil {
		return
	}
	outcome := "updated"
	if created {
		outcome = "created"
	}
	m.Registrations.WithLabelValues(outcome).Inc()
}

// IncRejection counts a rejected registration.
func (m *Metrics) IncRejection(reason string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(reason).Inc()
}

// ObserveUpsert records how long an upsert took.
func (m *Metrics) ObserveUpsert(seconds float64) {
	if m == nil {
		return
	}
	m.UpsertDuration.Observe(seconds)
}
