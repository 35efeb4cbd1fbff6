package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"civitas/internal/verification/session"
)

var _ session.Observer = (*Metrics)(nil)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementAttempt("passport", "ok")
	m.IncrementAttempt("passport", "ok")
	m.IncrementAttempt("passport", "age_ineligible")
	m.IncrementMerge()
	m.IncrementTierUpgrade("4")
	m.ObserveSessionOp("complete", "expired", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Attempts.WithLabelValues("passport", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Attempts.WithLabelValues("passport", "age_ineligible")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Merges))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TierUpgrades.WithLabelValues("4")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionOps.WithLabelValues("complete", "expired")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementAttempt("passport", "ok")
		m.IncrementMerge()
		m.IncrementTierUpgrade("1")
		m.ObserveSessionOp("begin", "ok", time.Millisecond)
		m.ObserveProviderLatency("passport", time.Millisecond)
	})
}
