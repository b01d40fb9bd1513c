package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records authentication and settlement activity. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	challenges    prometheus.Counter
	verifications *prometheus.CounterVec
	settlements   *prometheus.CounterVec
	confirmations *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		challenges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "estate",
			Subsystem: "auth",
			Name:      "challenges_issued_total",
			Help:      "Total wallet login challenges issued.",
		}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "estate",
			Subsystem: "auth",
			Name:      "verifications_total",
			Help:      "Wallet signature verifications segmented by outcome.",
		}, []string{"outcome"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "estate",
			Subsystem: "settlement",
			Name:      "operations_total",
			Help:      "Settlement operations segmented by operation and final state.",
		}, []string{"op", "state"}),
		confirmations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "estate",
			Subsystem: "settlement",
			Name:      "confirmation_seconds",
			Help:      "Time between submission and first confirmation.",
			Buckets:   []float64{1, 2, 5, 10, 15, 30, 60, 120, 300},
		}, []string{"step"}),
	}
	if reg != nil {
		reg.MustRegister(m.challenges, m.verifications, m.settlements, m.confirmations)
	}
	return m
}

func (m *Metrics) challengeIssued() {
	if m == nil {
		return
	}
	m.challenges.Inc()
}

func (m *Metrics) verification(outcome string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) settlement(op string, state string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(op, state).Inc()
}

func (m *Metrics) confirmed(step string, took time.Duration) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(step).Observe(took.Seconds())
}
