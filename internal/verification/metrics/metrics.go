package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification module.
type Metrics struct {
	// Verification attempts by provider class and outcome code
	Attempts *prometheus.CounterVec

	// Accounts folded into a canonical account
	Merges prometheus.Counter

	// Tier changes by resulting tier
	TierUpgrades *prometheus.CounterVec

	// Session begin/complete outcomes
	SessionOps *prometheus.CounterVec

	// Session store round trip by operation
	SessionLatency *prometheus.HistogramVec

	// Upstream verifier and resolver latency
	ProviderLatency *prometheus.HistogramVec
}

// New registers the verification metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civitas_verification_attempts_total",
			Help: "Verification attempts by provider class and outcome",
		}, []string{"provider", "outcome"}), // outcome: "ok", "merged" or an error code

		Merges: factory.NewCounter(prometheus.CounterOpts{
			Name: "civitas_verification_merges_total",
			Help: "Accounts merged into an earlier account holding the same identity commitment",
		}),

		TierUpgrades: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civitas_verification_tier_upgrades_total",
			Help: "Trust tier upgrades by resulting tier",
		}, []string{"tier"}),

		SessionOps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civitas_verification_session_ops_total",
			Help: "Mobile credential session operations by outcome",
		}, []string{"op", "outcome"}),

		SessionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "civitas_verification_session_store_duration_seconds",
			Help:    "Session store operation latency",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}, []string{"op"}),

		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "civitas_verification_provider_duration_seconds",
			Help:    "Upstream provider call latency",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
	}
}

// IncrementAttempt records a verification outcome.
func (m *Metrics) IncrementAttempt(provider, outcome string) {
	if m != nil {
		m.Attempts.WithLabelValues(provider, outcome).Inc()
	}
}

// IncrementMerge records an account merge.
func (m *Metrics) IncrementMerge() {
	if m != nil {
		m.Merges.Inc()
	}
}

// IncrementTierUpgrade records a tier increase.
func (m *Metrics) IncrementTierUpgrade(tier string) {
	if m != nil {
		m.TierUpgrades.WithLabelValues(tier).Inc()
	}
}

// ObserveSessionOp records a session operation outcome and its store latency.
func (m *Metrics) ObserveSessionOp(op, outcome string, d time.Duration) {
	if m != nil {
		m.SessionOps.WithLabelValues(op, outcome).Inc()
		m.SessionLatency.WithLabelValues(op).Observe(d.Seconds())
	}
}

// ObserveProviderLatency records an upstream call duration.
func (m *Metrics) ObserveProviderLatency(provider string, d time.Duration) {
	if m != nil {
		m.ProviderLatency.WithLabelValues(provider).Observe(d.Seconds())
	}
}
