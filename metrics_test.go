package otrace

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilSelfMetricsMethodsDoNotPanic(t *testing.T) {
	var m *selfMetrics
	assert.NotPanics(t, func() {
		m.incEmitted(PhaseBegin)
		m.incDropped("disabled")
		m.incRingOverwrite()
		m.observeFlush(0)
		m.incFlushError()
		m.setHeapLiveBytes(10)
	})
}

func TestNewSelfMetricsNilRegistererReturnsNil(t *testing.T) {
	assert.Nil(t, newSelfMetrics(nil, nil))
}

func TestSelfMetricsRegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newSelfMetrics(reg, nil)
	require.NotNil(t, m)

	m.incEmitted(PhaseComplete)
	m.incEmitted(PhaseComplete)

	families, err := reg.Gather()
	require.NoError(t, err)

	var found *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "otrace_events_emitted_total" {
			found = f
		}
	}
	require.NotNil(t, found)
	require.Len(t, found.Metric, 1)
	assert.Equal(t, float64(2), found.Metric[0].GetCounter().GetValue())
}
