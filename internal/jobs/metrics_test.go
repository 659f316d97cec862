package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("debts:reconcile").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("debts:reconcile").End(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("debts:reconcile", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("debts:reconcile", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("debts:reconcile")))
}

func TestAlertsAndReminders(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.AddAlerts("low_stock", 3)
	m.AddAlerts("expired", 0)
	m.AddReminders(2)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.alerts.WithLabelValues("low_stock")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.alerts.WithLabelValues("expired")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.notices.WithLabelValues("debt_reminder")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.AddAlerts("low_stock", 1)
	m.AddReminders(1)
	assert.NoError(t, m.Track("x").End(nil))
}
