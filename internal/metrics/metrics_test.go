package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New("test", reg)
	require.NoError(t, err)

	m.Message("awarded")
	m.Message("awarded")
	m.PointsAwarded(5)
	m.PointsAwarded(-1)
	m.Milestone()
	m.LedgerOperation("append", time.Millisecond, nil)
	m.LedgerOperation("append", time.Millisecond, errors.New("quota"))
	m.Push(nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.messages.WithLabelValues("awarded")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.points))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.milestones))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ledgerErrors.WithLabelValues("append")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pushes.WithLabelValues("delivered")))
}

func TestMetricsRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New("test", reg)
	require.NoError(t, err)
	_, err = New("test", reg)
	assert.NoError(t, err)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Message("x")
		m.PointsAwarded(1)
		m.Milestone()
		m.LedgerOperation("read", time.Second, nil)
		m.Push(errors.New("x"))
	})
}
